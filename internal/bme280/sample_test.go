// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bme280

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"
)

func TestReadSensors(t *testing.T) {
	d, _, slept := newTestDev(t, nil)
	require.NoError(t, d.Init(Line0))

	m, err := d.ReadSensors()
	require.NoError(t, err)
	assert.Equal(t, ReferenceRaw, m.Raw)
	assert.Equal(t, int32(5123), m.Compensated.Temperature)
	assert.Equal(t, uint32(24674862), m.Compensated.Pressure)
	assert.Equal(t, uint32(47445), m.Compensated.Humidity)
	assert.InDelta(t, 51.23, m.Temperature, 1e-9)
	assert.InDelta(t, 96386.2, m.Pressure, 0.05)
	assert.InDelta(t, 46.333, m.Humidity, 0.001)
	assert.Empty(t, *slept)
}

func TestReadSensorsNotInitialized(t *testing.T) {
	d, sim, _ := newTestDev(t, nil)
	_, err := d.ReadSensors()
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.Zero(t, sim.Transfers())
}

func TestReadSensorsXLSBDecoding(t *testing.T) {
	tests := []struct {
		name   string
		legacy bool
		press  int32
		temp   int32
	}{
		{name: "oversampling mask", press: 461387, temp: 603584},
		// xlsb 0xB0 & 0x04 drops the whole nibble.
		{name: "legacy mask", legacy: true, press: 461376, temp: 603584},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOpts
			opts.LegacyXLSBMask = tt.legacy
			d, _, _ := newTestDev(t, &opts)
			require.NoError(t, d.Init(Line0))

			m, err := d.ReadSensors()
			require.NoError(t, err)
			assert.Equal(t, tt.press, m.Raw.Pressure)
			assert.Equal(t, tt.temp, m.Raw.Temperature)
			assert.Equal(t, int32(28396), m.Raw.Humidity)
		})
	}
}

func TestDecodeMask(t *testing.T) {
	b := [burstLen]byte{0x70, 0xA4, 0xF0, 0x93, 0x5C, 0xF0, 0x6E, 0xEC}
	tests := []struct {
		osr  Oversampling
		want int32
	}{
		{O1x, 0x70A40},
		{O2x, 0x70A48},
		{O4x, 0x70A4C},
		{O8x, 0x70A4E},
		{O16x, 0x70A4F},
	}
	for _, tt := range tests {
		opts := DefaultOpts
		opts.Pressure = tt.osr
		d := New(nil, &opts)
		assert.Equal(t, tt.want, d.decode(b).Pressure, "oversampling %d", tt.osr)
		assert.Equal(t, int32(0x935C0), d.decode(b).Temperature)
		assert.Equal(t, int32(0x6EEC), d.decode(b).Humidity)
	}

	// With the IIR filter on, both channels carry 20 bits whatever the
	// oversampling.
	for _, f := range []Filter{F2, F4, F8, F16} {
		opts := DefaultOpts
		opts.Temperature = O1x
		opts.Pressure = O2x
		opts.Filter = f
		d := New(nil, &opts)
		assert.Equal(t, int32(0x935CF), d.decode(b).Temperature, "filter %d", f)
		assert.Equal(t, int32(0x70A4F), d.decode(b).Pressure, "filter %d", f)
		assert.Equal(t, int32(0x6EEC), d.decode(b).Humidity, "filter %d", f)
	}

	// The legacy decoder ignores the filter.
	opts := DefaultOpts
	opts.Filter = F16
	opts.LegacyXLSBMask = true
	assert.Equal(t, int32(0x935C0), New(nil, &opts).decode(b).Temperature)
}

func TestReadSensorsTriggersConversion(t *testing.T) {
	tests := []struct {
		name     string
		mode     Mode
		triggers int
		ctrlMeas byte
	}{
		{name: "normal", mode: Normal, triggers: 0, ctrlMeas: 0x37},
		{name: "forced", mode: Forced, triggers: 3, ctrlMeas: 0x35},
		{name: "forced alias", mode: 2, triggers: 3, ctrlMeas: 0x35},
		{name: "sleep", mode: Sleep, triggers: 3, ctrlMeas: 0x35},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOpts
			opts.Mode = tt.mode
			d, sim, _ := newTestDev(t, &opts)
			require.NoError(t, d.Init(Line0))
			afterInit := sim.Writes(RegCtrlMeas)
			assert.Equal(t, 1, afterInit)

			for i := 0; i < 3; i++ {
				m, err := d.ReadSensors()
				require.NoError(t, err)
				assert.Equal(t, ReferenceRaw, m.Raw)
			}
			assert.Equal(t, tt.triggers, sim.Writes(RegCtrlMeas)-afterInit)
			assert.Equal(t, tt.ctrlMeas, sim.Register(RegCtrlMeas))
		})
	}
}

func TestReadSensorsTriggerWriteFailure(t *testing.T) {
	opts := DefaultOpts
	opts.Mode = Forced
	sim := NewSimTransport(ReferenceCalibration, ReferenceRaw)
	ft := &failingTransport{inner: sim}
	d := New(ft, &opts)
	require.NoError(t, d.Init(Line0))

	ft.dropWrites = true
	_, err := d.ReadSensors()
	assert.ErrorIs(t, err, ErrConfigWrite)
}

func TestReadSensorsRetries(t *testing.T) {
	d, sim, slept := newTestDev(t, nil)
	require.NoError(t, d.Init(Line0))
	sim.Truncate(RegData, 1)

	before := sim.Transfers()
	_, err := d.ReadSensors()
	assert.ErrorIs(t, err, ErrAcquisitionExhausted)
	// One status poll and four burst reads.
	assert.Equal(t, 5, sim.Transfers()-before)
	assert.Equal(t, []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}, *slept)
}

func TestReadSensorsNoRetries(t *testing.T) {
	opts := DefaultOpts
	opts.Retries = -1
	d, sim, slept := newTestDev(t, &opts)
	require.NoError(t, d.Init(Line0))
	sim.Truncate(RegData, 8)

	before := sim.Transfers()
	_, err := d.ReadSensors()
	assert.ErrorIs(t, err, ErrAcquisitionExhausted)
	assert.Equal(t, 2, sim.Transfers()-before)
	assert.Empty(t, *slept)
}

func TestReadSensorsWaitsForConversion(t *testing.T) {
	d, sim, slept := newTestDev(t, nil)
	require.NoError(t, d.Init(Line0))
	sim.SetMeasuring(2)

	_, err := d.ReadSensors()
	require.NoError(t, err)
	assert.Len(t, *slept, 2)
}

func TestReadSensorsMeasureTimeout(t *testing.T) {
	opts := DefaultOpts
	opts.MaxStatusPolls = 5
	d, sim, slept := newTestDev(t, &opts)
	require.NoError(t, d.Init(Line0))
	sim.SetMeasuring(-1)

	before := sim.Transfers()
	_, err := d.ReadSensors()
	assert.ErrorIs(t, err, ErrMeasureTimeout)
	assert.Equal(t, 5, sim.Transfers()-before)
	assert.Len(t, *slept, 5)
}

func TestReadSensorsStatusReadFailure(t *testing.T) {
	d, sim, _ := newTestDev(t, nil)
	require.NoError(t, d.Init(Line0))
	sim.Truncate(RegStatus, 1)

	_, err := d.ReadSensors()
	assert.ErrorIs(t, err, ErrIO)
}

func TestSense(t *testing.T) {
	d, _, _ := newTestDev(t, nil)
	require.NoError(t, d.Init(Line0))

	var e physic.Env
	require.NoError(t, d.Sense(&e))
	assert.Equal(t, 51230*physic.MilliCelsius+physic.ZeroCelsius, e.Temperature)
	assert.InDelta(t, 96386.18, float64(e.Pressure)/float64(physic.Pascal), 0.01)
	assert.InDelta(t, 46.333, float64(e.Humidity)/float64(physic.PercentRH), 0.001)
}
