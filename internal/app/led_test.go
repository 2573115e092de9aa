package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func TestStatusLED(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO7", L: gpio.High}
	led := newStatusLED(pin)
	require.NoError(t, led.Blink())
	assert.Equal(t, gpio.Low, pin.Read())
}

func TestStatusLEDDisabled(t *testing.T) {
	led, err := NewStatusLED("")
	require.NoError(t, err)
	assert.Nil(t, led)
	assert.NoError(t, led.Blink())
}
