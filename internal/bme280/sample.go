// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bme280

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/physic"
)

// RawSample holds the uncompensated ADC codes of one burst read.
type RawSample struct {
	Temperature int32 // 20 bits
	Pressure    int32 // 20 bits
	Humidity    int32 // 16 bits
}

// Compensated holds the fixed-point outputs of the compensation formulas.
type Compensated struct {
	Temperature int32  // 0.01 °C
	Pressure    uint32 // Pa, Q24.8
	Humidity    uint32 // %RH, Q22.10
}

// Measurement is one calibrated sample.
type Measurement struct {
	Temperature float64 // °C
	Pressure    float64 // Pa
	Humidity    float64 // %RH

	Raw         RawSample
	Compensated Compensated
}

// Compensate runs the three formulas on raw in the required order:
// temperature first, its fine temperature then feeds pressure and humidity.
func (c *Calibration) Compensate(raw RawSample) Measurement {
	t, fine := c.CompensateTemperature(raw.Temperature)
	p := c.CompensatePressure(raw.Pressure, fine)
	h := c.CompensateHumidity(raw.Humidity, fine)
	return Measurement{
		Temperature: float64(t) / 100,
		Pressure:    float64(p) / 256,
		Humidity:    float64(h) / 1024,
		Raw:         raw,
		Compensated: Compensated{Temperature: t, Pressure: p, Humidity: h},
	}
}

// ReadSensors waits for the device to finish its current measurement cycle,
// burst-reads the data registers and returns the calibrated sample.
//
// Short burst reads are retried Opts.Retries times, Opts.RetryDelay apart.
// Outside normal mode every call first starts a forced conversion.
func (d *Dev) ReadSensors() (Measurement, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.ready {
		return Measurement{}, ErrNotInitialized
	}
	if d.opts.Mode != Normal {
		if err := d.writeConfig(regCtrlMeas, d.opts.forcedCtrlMeas()); err != nil {
			return Measurement{}, err
		}
	}
	if err := d.waitIdle(); err != nil {
		return Measurement{}, err
	}

	var buf [burstLen]byte
	var lastErr error
	attempts := d.opts.Retries + 1
	for i := 0; i < attempts; i++ {
		if i > 0 {
			d.sleep(d.opts.RetryDelay)
		}
		n, err := d.read(regPressData, buf[:])
		if err == nil && n == len(buf) {
			return d.cal.Compensate(d.decode(buf)), nil
		}
		lastErr = err
		d.log.WithFields(logrus.Fields{"attempt": i + 1, "bytes": n, "error": err}).Debug("short sample read")
	}
	if lastErr != nil {
		return Measurement{}, fmt.Errorf("%w after %d attempts: %w", ErrAcquisitionExhausted, attempts, lastErr)
	}
	return Measurement{}, fmt.Errorf("%w after %d attempts", ErrAcquisitionExhausted, attempts)
}

// waitIdle polls the status register until the measuring bit clears.
//
// It must be called with d.mu held.
func (d *Dev) waitIdle() error {
	var st [1]byte
	for i := 0; i < d.opts.MaxStatusPolls; i++ {
		n, err := d.read(regStatus, st[:])
		if err != nil {
			return fmt.Errorf("%w: status read: %w", ErrIO, err)
		}
		if n != 1 {
			return fmt.Errorf("%w: status read returned %d bytes", ErrIO, n)
		}
		if st[0]&statusMeasuring == 0 {
			return nil
		}
		d.sleep(d.opts.StatusPollInterval)
	}
	return fmt.Errorf("%w: still measuring after %d polls", ErrMeasureTimeout, d.opts.MaxStatusPolls)
}

// decode extracts the three ADC codes from press_msb..hum_lsb.
func (d *Dev) decode(b [burstLen]byte) RawSample {
	low := func(xlsb byte, o Oversampling) int32 {
		if d.opts.LegacyXLSBMask {
			return int32(xlsb) & 0x04
		}
		// The IIR filter output is always 20 bits wide.
		if d.opts.Filter != NoFilter {
			return int32(xlsb >> 4)
		}
		return int32(xlsb>>4) & o.xlsbMask()
	}
	return RawSample{
		Pressure:    int32(b[0])<<12 | int32(b[1])<<4 | low(b[2], d.opts.Pressure),
		Temperature: int32(b[3])<<12 | int32(b[4])<<4 | low(b[5], d.opts.Temperature),
		Humidity:    int32(b[6])<<8 | int32(b[7]),
	}
}

// Sense reads one sample into e, in periph units.
func (d *Dev) Sense(e *physic.Env) error {
	m, err := d.ReadSensors()
	if err != nil {
		return err
	}
	c := m.Compensated
	// Centi-Celsius to Kelvin.
	e.Temperature = physic.Temperature(c.Temperature)*10*physic.MilliCelsius + physic.ZeroCelsius
	// 8 bits of fractional Pascal.
	e.Pressure = physic.Pressure(c.Pressure) * 15625 * physic.MicroPascal / 4
	// Base 1024 to base 1000.
	e.Humidity = physic.RelativeHumidity(c.Humidity) * 10000 / 1024 * physic.MicroRH
	return nil
}
