// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bme280

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Oversampling is the osrs_x field of the control registers.
type Oversampling uint8

const (
	Off  Oversampling = 0
	O1x  Oversampling = 1
	O2x  Oversampling = 2
	O4x  Oversampling = 3
	O8x  Oversampling = 4
	O16x Oversampling = 5
)

// xlsbMask returns the valid bits of xlsb[7:4] for a 20-bit reading at this
// oversampling. One sample gives 16 bits, each doubling adds one.
func (o Oversampling) xlsbMask() int32 {
	switch o {
	case O2x:
		return 0x8
	case O4x:
		return 0xC
	case O8x:
		return 0xE
	case O16x:
		return 0xF
	default:
		return 0x0
	}
}

// Mode is the power mode field of ctrl_meas.
type Mode uint8

const (
	Sleep  Mode = 0
	Forced Mode = 1
	Normal Mode = 3
)

// Filter is the IIR filter coefficient field of the config register.
type Filter uint8

const (
	NoFilter Filter = 0
	F2       Filter = 1
	F4       Filter = 2
	F8       Filter = 3
	F16      Filter = 4
)

// Standby is the t_sb field of the config register, inactive time between
// measurements in normal mode.
type Standby uint8

// Opts configures the device and the acquisition protocol.
type Opts struct {
	Temperature Oversampling
	Pressure    Oversampling
	Humidity    Oversampling
	Mode        Mode
	Filter      Filter
	Standby     Standby

	// LegacyXLSBMask decodes the low bits of pressure and temperature as
	// xlsb&0x04 instead of deriving them from the oversampling.
	LegacyXLSBMask bool

	// Retries is the number of extra burst reads after a short read.
	Retries    int
	RetryDelay time.Duration

	// MaxStatusPolls bounds the wait for the measuring bit to clear.
	MaxStatusPolls     int
	StatusPollInterval time.Duration

	Logger logrus.FieldLogger
}

// DefaultOpts is temperature x1, pressure x16, humidity x1 in normal mode.
var DefaultOpts = Opts{
	Temperature:        O1x,
	Pressure:           O16x,
	Humidity:           O1x,
	Mode:               Normal,
	Retries:            3,
	RetryDelay:         time.Millisecond,
	MaxStatusPolls:     100,
	StatusPollInterval: time.Millisecond,
}

// ctrlMeas packs osrs_t, osrs_p and mode.
func (o *Opts) ctrlMeas() byte {
	return byte(o.Temperature)<<5 | byte(o.Pressure)<<2 | byte(o.Mode)
}

// forcedCtrlMeas is ctrlMeas with the mode bits set to start one forced
// conversion.
func (o *Opts) forcedCtrlMeas() byte {
	return o.ctrlMeas()&^0x3 | byte(Forced)
}

func (o *Opts) config() byte {
	return byte(o.Standby&0x7)<<5 | byte(o.Filter&0x7)<<2
}
