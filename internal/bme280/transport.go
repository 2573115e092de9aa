// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bme280

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
)

// Line selects one of the two chip-enable lines of the SPI controller.
type Line int

const (
	LineNone Line = -1
	Line0    Line = 0
	Line1    Line = 1
)

func (l Line) valid() bool { return l == Line0 || l == Line1 }

func (l Line) String() string {
	switch l {
	case Line0:
		return "CE0"
	case Line1:
		return "CE1"
	default:
		return "none"
	}
}

// Transport exchanges bytes with the device selected by line.
//
// buf is sent and overwritten in place with the bytes clocked in during the
// same transfer. The first byte is the register header. The returned count
// may be smaller than len(buf) if the bus under-delivers.
type Transport interface {
	Transfer(line Line, buf []byte) (int, error)
}

// SPITransport is a Transport over periph SPI connections, one per
// chip-enable line.
type SPITransport struct {
	conns [2]spi.Conn
	ports [2]spi.PortCloser
	rx    [maxXfer * 2]byte
}

// NewSPITransport wraps already connected SPI connections. Either may be nil
// when nothing is wired to that line.
func NewSPITransport(ce0, ce1 spi.Conn) *SPITransport {
	return &SPITransport{conns: [2]spi.Conn{ce0, ce1}}
}

// OpenSPI opens the named SPI ports (for example "/dev/spidev0.0" and
// "/dev/spidev0.1") and connects them in mode 0 at freq. An empty name leaves
// that line unconnected. periph's host.Init must have been called.
func OpenSPI(ce0, ce1 string, freq physic.Frequency) (*SPITransport, error) {
	t := &SPITransport{}
	for i, name := range []string{ce0, ce1} {
		if name == "" {
			continue
		}
		p, err := spireg.Open(name)
		if err != nil {
			t.Close()
			return nil, fmt.Errorf("bme280: open %s: %w", name, err)
		}
		c, err := p.Connect(freq, spi.Mode0, 8)
		if err != nil {
			p.Close()
			t.Close()
			return nil, fmt.Errorf("bme280: connect %s: %w", name, err)
		}
		t.ports[i] = p
		t.conns[i] = c
	}
	return t, nil
}

// Transfer implements Transport.
func (t *SPITransport) Transfer(line Line, buf []byte) (int, error) {
	if !line.valid() || t.conns[line] == nil {
		return 0, fmt.Errorf("%w: no SPI connection on %s", ErrInvalidArgument, line)
	}
	if len(buf) > len(t.rx) {
		return 0, ErrInvalidLength
	}
	r := t.rx[:len(buf)]
	if err := t.conns[line].Tx(buf, r); err != nil {
		return 0, err
	}
	copy(buf, r)
	return len(buf), nil
}

// Close releases the SPI ports opened by OpenSPI.
func (t *SPITransport) Close() error {
	var first error
	for i, p := range t.ports {
		if p == nil {
			continue
		}
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
		t.ports[i] = nil
		t.conns[i] = nil
	}
	return first
}
