// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bme280

import (
	"fmt"
	"sync"
)

// ReferenceCalibration is the trim set of the datasheet's worked example for
// temperature and pressure, with typical humidity coefficients.
var ReferenceCalibration = Calibration{
	T1: 27504, T2: 26435, T3: -1000,
	P1: 36477, P2: -10685, P3: 3024, P4: 2855, P5: 140, P6: -7, P7: 15500, P8: -14600, P9: 6000,
	H1: 75, H2: 362, H3: 0, H4: 313, H5: 50, H6: 30,
}

// ReferenceRaw compensates to 51.23 °C, 96386.2 Pa and 46.333 %RH with
// ReferenceCalibration.
var ReferenceRaw = RawSample{Temperature: 603584, Pressure: 461387, Humidity: 28396}

// SimTransport emulates the register file of a BME280 behind an SPI bus.
// It backs the SIMULATED_DATA mode and the tests.
type SimTransport struct {
	mu        sync.Mutex
	regs      [256]byte
	short     map[byte]int
	writes    map[byte]int
	measuring int
	transfers int
}

// NewSimTransport returns a simulated device holding cal and raw.
func NewSimTransport(cal Calibration, raw RawSample) *SimTransport {
	s := &SimTransport{short: map[byte]int{}, writes: map[byte]int{}}
	tp, h1, h := cal.encode()
	copy(s.regs[regCalibTP:], tp[:])
	s.regs[regCalibH1] = h1
	copy(s.regs[regCalibH2:], h[:])
	s.regs[regChipID] = ChipID
	s.SetRaw(raw)
	return s
}

// SetRaw stores raw in the data registers using the 20-bit layout.
func (s *SimTransport) SetRaw(raw RawSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	put20 := func(reg int, v int32) {
		s.regs[reg] = byte(v >> 12)
		s.regs[reg+1] = byte(v >> 4)
		s.regs[reg+2] = byte(v&0xF) << 4
	}
	put20(regPressData, raw.Pressure)
	put20(regTempData, raw.Temperature)
	s.regs[regHumData] = byte(raw.Humidity >> 8)
	s.regs[regHumData+1] = byte(raw.Humidity)
}

// SetChipID overrides the identification register.
func (s *SimTransport) SetChipID(id byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regs[regChipID] = id
}

// SetMeasuring makes the next polls status reads report a conversion in
// progress. A negative value keeps it measuring forever.
func (s *SimTransport) SetMeasuring(polls int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.measuring = polls
}

// Truncate makes every read starting at reg deliver n fewer bytes.
func (s *SimTransport) Truncate(reg byte, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.short[reg] = n
}

// Register returns the current value of reg.
func (s *SimTransport) Register(reg byte) byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs[reg]
}

// Writes returns how many times reg has been written.
func (s *SimTransport) Writes(reg byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes[reg]
}

// Transfers returns the number of Transfer calls so far.
func (s *SimTransport) Transfers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transfers
}

// Transfer implements Transport.
func (s *SimTransport) Transfer(line Line, buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transfers++
	if !line.valid() {
		return 0, fmt.Errorf("%w: no device on %s", ErrInvalidArgument, line)
	}
	if len(buf) == 0 {
		return 0, nil
	}

	if buf[0]&readFlag == 0 {
		// In SPI mode bit 7 of the address is dropped on writes.
		for i := 0; i+1 < len(buf); i += 2 {
			reg := buf[i] | readFlag
			if reg == regReset && buf[i+1] == ResetCommand {
				continue
			}
			s.regs[reg] = buf[i+1]
			s.writes[reg]++
		}
		return len(buf), nil
	}

	reg := buf[0]
	buf[0] = 0
	for i := 1; i < len(buf); i++ {
		buf[i] = s.regs[reg+byte(i-1)]
	}
	if reg == regStatus && s.measuring != 0 {
		buf[1] |= statusMeasuring
		if s.measuring > 0 {
			s.measuring--
		}
	}
	return max(len(buf)-s.short[reg], 0), nil
}
