package app

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

const blinkDuration = 100 * time.Millisecond

// StatusLED flashes a GPIO pin after every confirmed publish. A nil
// StatusLED is valid and does nothing.
type StatusLED struct {
	mu  sync.Mutex
	pin gpio.PinOut
}

// NewStatusLED looks up name in the periph GPIO registry. An empty name
// disables the LED. periph's host.Init must have been called.
func NewStatusLED(name string) (*StatusLED, error) {
	if name == "" {
		return nil, nil
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("LED pin %q not found", name)
	}
	if err := pin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("LED pin %q: %w", name, err)
	}
	return newStatusLED(pin), nil
}

func newStatusLED(pin gpio.PinOut) *StatusLED {
	return &StatusLED{pin: pin}
}

// Blink drives the pin high for 100ms.
func (l *StatusLED) Blink() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.pin.Out(gpio.High); err != nil {
		return err
	}
	time.Sleep(blinkDuration)
	return l.pin.Out(gpio.Low)
}
