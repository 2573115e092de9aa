package app

import (
	"testing"

	"github.com/relabs-tech/env_telemetry/internal/env"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

func TestAddrBusRewritesAddress(t *testing.T) {
	rec := &i2ctest.Record{}
	bus := &addrBus{Bus: rec, addr: 0x3D}

	require.NoError(t, bus.Tx(0x3C, []byte{0x00, 0xAE}, nil))
	require.NoError(t, bus.Tx(0x3C, []byte{0x40, 0xFF}, nil))

	require.Len(t, rec.Ops, 2)
	for _, op := range rec.Ops {
		assert.Equal(t, uint16(0x3D), op.Addr)
	}
	assert.Equal(t, []byte{0x40, 0xFF}, rec.Ops[1].W)
	assert.Equal(t, rec.String(), bus.String())
}

func litPixels(img *image1bit.VerticalLSB) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.BitAt(x, y) == image1bit.On {
				n++
			}
		}
	}
	return n
}

func TestRenderEnv(t *testing.T) {
	waiting := renderEnv(env.Message{}, false)
	assert.Equal(t, 128, waiting.Bounds().Dx())
	assert.Equal(t, 64, waiting.Bounds().Dy())
	assert.Positive(t, litPixels(waiting))

	m := env.NewMessage("node-1", 12, env.Reading{Temperature: 31, Humidity: 50, Pressure: 100000}, 30, fixedNow())
	full := renderEnv(m, true)
	assert.Greater(t, litPixels(full), litPixels(waiting))

	// The alert marker adds pixels on the status line.
	m.TemperatureAlert = false
	assert.Greater(t, litPixels(full), litPixels(renderEnv(m, true)))
}

func TestDisplayData(t *testing.T) {
	var d DisplayData
	_, have := d.snapshot()
	assert.False(t, have)

	m := env.Message{MessageID: 3}
	d.set(m)
	got, have := d.snapshot()
	assert.True(t, have)
	assert.Equal(t, m, got)
}
