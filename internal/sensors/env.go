package sensors

import (
	"fmt"
	"io"
	"sync"

	"github.com/relabs-tech/env_telemetry/internal/bme280"
	"github.com/relabs-tech/env_telemetry/internal/config"
	"github.com/relabs-tech/env_telemetry/internal/env"
	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"
)

// EnvSource produces calibrated environmental readings.
type EnvSource interface {
	Read() (env.Reading, error)
	Close() error
}

// NewEnvSource builds the source selected by the configuration:
// simulated data, the periph bmxx80 driver or the native driver.
func NewEnvSource(cfg *config.Config) (EnvSource, error) {
	switch {
	case cfg.SimulatedData:
		log.Println("BME280: using simulated device")
		return NewSimSource(cfg), nil
	case cfg.BMEDriver == "periph":
		return newPeriphSource(cfg)
	default:
		return newNativeSourceFromConfig(cfg)
	}
}

// NewRegisterSource builds a native-driver source for register-level
// access, whatever BME_DRIVER selects. cfg is not modified.
func NewRegisterSource(cfg *config.Config) (*NativeSource, error) {
	if cfg.SimulatedData {
		log.Println("BME280: using simulated device")
		s := NewSimSource(cfg).NativeSource
		if err := s.init(); err != nil {
			log.Printf("BME280: initialization failed, will retry: %v", err)
		}
		return s, nil
	}
	return newNativeSourceFromConfig(cfg)
}

// DriverOpts maps the BME_* configuration keys onto driver options.
func DriverOpts(cfg *config.Config) bme280.Opts {
	opts := bme280.DefaultOpts
	opts.Temperature = bme280.Oversampling(cfg.BMETempOSR)
	opts.Pressure = bme280.Oversampling(cfg.BMEPressureOSR)
	opts.Humidity = bme280.Oversampling(cfg.BMEHumidityOSR)
	opts.Mode = bme280.Mode(cfg.BMEMode)
	opts.Filter = bme280.Filter(cfg.BMEIIRFilter)
	opts.Standby = bme280.Standby(cfg.BMEStandbyTime)
	opts.LegacyXLSBMask = cfg.BMELegacyXLSBMask
	opts.Logger = log.WithField("device", "bme280")
	return opts
}

// NativeSource reads the BME280 through the in-tree driver.
//
// A failed Init is retried on the next Read, so a sensor that is plugged in
// late or browns out recovers without restarting the process.
type NativeSource struct {
	mu     sync.Mutex
	dev    *bme280.Dev
	line   bme280.Line
	closer io.Closer
}

func newNativeSourceFromConfig(cfg *config.Config) (*NativeSource, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("BME280: periph host init: %w", err)
	}

	ce0, ce1 := cfg.BMESPIDeviceCE0, cfg.BMESPIDeviceCE1
	// Only open the port that is in use.
	if cfg.BMEChipEnable == 0 {
		ce1 = ""
	} else {
		ce0 = ""
	}
	tr, err := bme280.OpenSPI(ce0, ce1, physic.Frequency(cfg.BMESPISpeedHz)*physic.Hertz)
	if err != nil {
		return nil, fmt.Errorf("BME280: SPI transport: %w", err)
	}

	opts := DriverOpts(cfg)
	s := NewNativeSource(tr, tr, &opts, bme280.Line(cfg.BMEChipEnable))
	if err := s.init(); err != nil {
		// Not fatal; retried on every Read.
		log.Printf("BME280: initialization failed, will retry: %v", err)
	}
	return s, nil
}

// NewNativeSource wraps a driver on tr. closer may be nil.
func NewNativeSource(tr bme280.Transport, closer io.Closer, opts *bme280.Opts, line bme280.Line) *NativeSource {
	return &NativeSource{
		dev:    bme280.New(tr, opts),
		line:   line,
		closer: closer,
	}
}

// Device returns the underlying driver.
func (s *NativeSource) Device() *bme280.Dev {
	return s.dev
}

func (s *NativeSource) init() error {
	if err := s.dev.Init(s.line); err != nil {
		return err
	}
	cal, _ := s.dev.Calibration()
	log.WithFields(log.Fields{"line": s.line.String(), "T1": cal.T1, "P1": cal.P1, "H1": cal.H1}).Info("BME280: initialized")
	return nil
}

// Read implements EnvSource.
func (s *NativeSource) Read() (env.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.dev.Calibration(); !ok {
		if err := s.init(); err != nil {
			return env.Reading{}, fmt.Errorf("BME280 init: %w", err)
		}
	}
	m, err := s.dev.ReadSensors()
	if err != nil {
		return env.Reading{}, fmt.Errorf("BME280 read: %w", err)
	}
	return env.Reading{
		Temperature: m.Temperature,
		Humidity:    m.Humidity,
		Pressure:    m.Pressure,
	}, nil
}

// Close implements EnvSource.
func (s *NativeSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// periphSource reads the sensor through periph's bmxx80 driver.
type periphSource struct {
	port spi.PortCloser
	dev  *bmxx80.Dev
}

func newPeriphSource(cfg *config.Config) (*periphSource, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("BME280: periph host init: %w", err)
	}

	name := cfg.BMESPIDeviceCE0
	if cfg.BMEChipEnable == 1 {
		name = cfg.BMESPIDeviceCE1
	}
	port, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("BME280 SPI open (%s): %w", name, err)
	}

	opts := bmxx80.Opts{
		Temperature: bmxx80.Oversampling(cfg.BMETempOSR),
		Pressure:    bmxx80.Oversampling(cfg.BMEPressureOSR),
		Humidity:    bmxx80.Oversampling(cfg.BMEHumidityOSR),
		Filter:      bmxx80.Filter(cfg.BMEIIRFilter),
	}
	dev, err := bmxx80.NewSPI(port, &opts)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("BME280 init (periph): %w", err)
	}

	log.Printf("BME280: %s initialized via periph on %s", dev, name)
	return &periphSource{port: port, dev: dev}, nil
}

func (s *periphSource) Read() (env.Reading, error) {
	var e physic.Env
	if err := s.dev.Sense(&e); err != nil {
		return env.Reading{}, fmt.Errorf("BME280 sense: %w", err)
	}
	return readingFromEnv(e), nil
}

func (s *periphSource) Close() error {
	if err := s.dev.Halt(); err != nil {
		log.Printf("BME280: halt: %v", err)
	}
	return s.port.Close()
}

// readingFromEnv converts periph units to °C, %RH and Pa.
func readingFromEnv(e physic.Env) env.Reading {
	return env.Reading{
		Temperature: e.Temperature.Celsius(),
		Humidity:    float64(e.Humidity) / float64(physic.PercentRH),
		Pressure:    float64(e.Pressure) / float64(physic.Pascal),
	}
}
