package app

import (
	"fmt"
	"image"
	"sync"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/env_telemetry/internal/config"
	"github.com/relabs-tech/env_telemetry/internal/env"
	log "github.com/sirupsen/logrus"
)

const (
	displayWidth  = 128
	displayHeight = 64
)

// addrBus sends every transaction to addr instead of the fixed 0x3C used
// by ssd1306.NewI2C.
type addrBus struct {
	i2c.Bus
	addr uint16
}

func (b *addrBus) Tx(_ uint16, w, r []byte) error {
	return b.Bus.Tx(b.addr, w, r)
}

// DisplayData holds the latest data for display
type DisplayData struct {
	mu   sync.RWMutex
	msg  env.Message
	have bool
}

func (d *DisplayData) set(m env.Message) {
	d.mu.Lock()
	d.msg = m
	d.have = true
	d.mu.Unlock()
}

func (d *DisplayData) snapshot() (env.Message, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.msg, d.have
}

func RunDisplay() error {
	cfg := config.Get()

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(&addrBus{Bus: bus, addr: cfg.DisplayI2CAddr}, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: initialized at 0x%02X", cfg.DisplayI2CAddr)

	if err := dev.Draw(dev.Bounds(), renderSplash(cfg.DeviceID), image.Point{}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	data := &DisplayData{}

	client, err := connectMQTT(cfg, cfg.MQTTClientIDDisplay)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	if err := subscribeJSON(client, cfg.TopicTelemetry, "display", data.set); err != nil {
		return err
	}

	// Display update loop
	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for range ticker.C {
		m, have := data.snapshot()
		if err := dev.Draw(dev.Bounds(), renderEnv(m, have), image.Point{}); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}

	return nil
}

// newCanvas returns a blank frame and a drawer writing on it.
func newCanvas() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayWidth, displayHeight))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

func drawLine(d *font.Drawer, x, y int, s string) {
	d.Dot = fixed.P(x, y)
	d.DrawString(s)
}

// renderEnv draws the latest telemetry, one quantity per line.
func renderEnv(m env.Message, have bool) *image1bit.VerticalLSB {
	img, d := newCanvas()

	if !have {
		drawLine(d, 0, 26, "BME280")
		drawLine(d, 0, 39, "Waiting...")
		return img
	}

	drawLine(d, 0, 13, fmt.Sprintf("T: %6.2f C", m.Temperature))
	drawLine(d, 0, 26, fmt.Sprintf("H: %6.2f %%", m.Humidity))
	drawLine(d, 0, 39, fmt.Sprintf("P: %7.2f hPa", m.Reading().PressureHPa()))
	status := fmt.Sprintf("#%d", m.MessageID)
	if m.TemperatureAlert {
		status += " ALERT"
	}
	drawLine(d, 0, 52, status)
	return img
}

func renderSplash(deviceID string) *image1bit.VerticalLSB {
	img, d := newCanvas()
	drawLine(d, 10, 26, "Env Telemetry")
	drawLine(d, 5, 43, deviceID)
	return img
}
