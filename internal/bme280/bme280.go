// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package bme280 drives a Bosch BME280 temperature, pressure and humidity
// sensor over SPI.
//
// The driver reads the factory calibration once in Init and converts raw ADC
// codes with the fixed-point formulas of the datasheet, so results match the
// Bosch reference implementation bit for bit.
//
// Datasheet:
// https://www.bosch-sensortec.com/media/boschsensortec/downloads/datasheets/bst-bme280-ds002.pdf
package bme280

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Dev is a handle to one BME280 on one chip-enable line.
//
// All methods are safe for concurrent use; an acquisition holds the device
// lock from the status poll to the last compensation step.
type Dev struct {
	mu    sync.Mutex
	tr    Transport
	opts  Opts
	log   logrus.FieldLogger
	sleep func(time.Duration)

	line  Line
	cal   Calibration
	ready bool

	buf [maxXfer * 2]byte
}

// New returns a device bound to tr. It does not touch the bus; call Init.
func New(tr Transport, opts *Opts) *Dev {
	o := DefaultOpts
	if opts != nil {
		o = *opts
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.MaxStatusPolls <= 0 {
		o.MaxStatusPolls = DefaultOpts.MaxStatusPolls
	}
	if o.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.Logger = l
	}
	return &Dev{
		tr:    tr,
		opts:  o,
		log:   o.Logger,
		sleep: time.Sleep,
		line:  LineNone,
	}
}

func (d *Dev) String() string {
	return fmt.Sprintf("BME280{%s}", d.Line())
}

// Line returns the chip-enable line the device is bound to.
func (d *Dev) Line() Line {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.line
}

// Calibration returns a copy of the trim coefficients and whether Init
// completed.
func (d *Dev) Calibration() (Calibration, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cal, d.ready
}

// Init binds the device to line, verifies the chip id, loads the calibration
// and starts measuring.
//
// It always re-reads the calibration. On error the device is left without
// calibration and ReadSensors fails until a later Init succeeds.
func (d *Dev) Init(line Line) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.ready = false
	d.cal = Calibration{}

	if !line.valid() {
		return fmt.Errorf("%w: chip-enable line %d", ErrInvalidArgument, int(line))
	}
	d.line = line
	log := d.log.WithField("line", line.String())

	var id [1]byte
	n, err := d.read(regChipID, id[:])
	if err != nil {
		return fmt.Errorf("%w: read chip id: %w", ErrDeviceNotFound, err)
	}
	if n != 1 || id[0] != ChipID {
		return fmt.Errorf("%w: chip id 0x%02X on %s, expecting 0x%02X", ErrDeviceNotFound, id[0], line, ChipID)
	}

	var tp [calibTPLen]byte
	if err := d.readCalib(regCalibTP, tp[:]); err != nil {
		return err
	}
	var h1 [1]byte
	if err := d.readCalib(regCalibH1, h1[:]); err != nil {
		return err
	}
	var h [calibHLen]byte
	if err := d.readCalib(regCalibH2, h[:]); err != nil {
		return err
	}
	cal := decodeCalibration(tp[:], h1[0], h[:])
	log.WithField("calibration", fmt.Sprintf("%+v", cal)).Debug("read calibration")

	// ctrl_hum only takes effect after the next ctrl_meas write.
	if d.opts.Humidity != Off {
		if err := d.writeConfig(regCtrlHum, byte(d.opts.Humidity)&0x7); err != nil {
			return err
		}
	}
	if d.opts.Filter != NoFilter || d.opts.Standby != 0 {
		if err := d.writeConfig(regConfig, d.opts.config()); err != nil {
			return err
		}
	}
	if err := d.writeConfig(regCtrlMeas, d.opts.ctrlMeas()); err != nil {
		return err
	}

	d.cal = cal
	d.ready = true
	log.Debug("initialized")
	return nil
}

func (d *Dev) readCalib(reg byte, b []byte) error {
	n, err := d.read(reg, b)
	if err != nil {
		return fmt.Errorf("%w: register 0x%02X: %w", ErrCalibrationRead, reg, err)
	}
	if n != len(b) {
		return fmt.Errorf("%w: register 0x%02X: read %d of %d bytes", ErrCalibrationRead, reg, n, len(b))
	}
	return nil
}

func (d *Dev) writeConfig(reg, v byte) error {
	n, err := d.write(reg, []byte{v})
	if err != nil {
		return fmt.Errorf("%w: register 0x%02X: %w", ErrConfigWrite, reg, err)
	}
	if n < 1 {
		return fmt.Errorf("%w: could not write 0x%02X to register 0x%02X", ErrConfigWrite, v, reg)
	}
	d.log.WithFields(logrus.Fields{"reg": fmt.Sprintf("0x%02X", reg), "value": fmt.Sprintf("0x%02X", v)}).Debug("wrote register")
	return nil
}

// read reads len(b) registers starting at reg and returns how many bytes
// were actually obtained. Callers must check the count.
//
// It must be called with d.mu held.
func (d *Dev) read(reg byte, b []byte) (int, error) {
	if !d.line.valid() {
		return 0, ErrNotInitialized
	}
	// One slot of the buffer is reserved for the header.
	if len(b) >= maxXfer {
		return 0, fmt.Errorf("%w (%w): read of %d bytes", ErrInvalidLength, ErrInvalidArgument, len(b))
	}
	buf := d.buf[:len(b)+1]
	clear(buf)
	buf[0] = readFlag | reg
	n, err := d.tr.Transfer(d.line, buf)
	if err != nil {
		return 0, err
	}
	n = min(max(n-1, 0), len(b))
	copy(b, buf[1:1+n])
	return n, nil
}

// write writes data to consecutive registers starting at reg, one
// address/value pair per byte, and returns how many pairs were transferred.
//
// The bound is checked against the full buffer, unlike read.
//
// It must be called with d.mu held.
func (d *Dev) write(reg byte, data []byte) (int, error) {
	if !d.line.valid() {
		return 0, ErrNotInitialized
	}
	if len(data) > maxXfer {
		return 0, fmt.Errorf("%w (%w): write of %d bytes", ErrInvalidLength, ErrInvalidArgument, len(data))
	}
	buf := d.buf[:2*len(data)]
	for i, v := range data {
		buf[2*i] = (reg + byte(i)) & writeMask
		buf[2*i+1] = v
	}
	n, err := d.tr.Transfer(d.line, buf)
	if err != nil {
		return 0, err
	}
	return n / 2, nil
}

// ReadRegisters returns n registers starting at reg. A short transfer is an
// error.
func (d *Dev) ReadRegisters(reg byte, n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: read of %d registers", ErrInvalidArgument, n)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	b := make([]byte, n)
	got, err := d.read(reg, b)
	if err != nil {
		return nil, err
	}
	if got != n {
		return nil, fmt.Errorf("%w: register 0x%02X: read %d of %d bytes", ErrIO, reg, got, n)
	}
	return b, nil
}

// WriteRegister writes a single register.
func (d *Dev) WriteRegister(reg, v byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.write(reg, []byte{v})
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("%w: register 0x%02X: write not confirmed", ErrIO, reg)
	}
	return nil
}
