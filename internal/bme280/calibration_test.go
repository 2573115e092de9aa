// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bme280

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeCalibration(t *testing.T) {
	tp, h1, h := ReferenceCalibration.encode()
	assert.Equal(t, ReferenceCalibration, decodeCalibration(tp[:], h1, h[:]))

	// dig_T1 is little endian.
	assert.Equal(t, byte(27504&0xFF), tp[0])
	assert.Equal(t, byte(27504>>8), tp[1])
}

func TestDecodeCalibrationHumidityNibbles(t *testing.T) {
	var tp [calibTPLen]byte
	h := []byte{0x6A, 0x01, 0x00, 0x13, 0x2B, 0x03, 0xE2}
	cal := decodeCalibration(tp[:], 0x4B, h)

	assert.Equal(t, uint8(0x4B), cal.H1)
	assert.Equal(t, int16(0x016A), cal.H2)
	assert.Equal(t, uint8(0), cal.H3)
	// H4 = E4[7:0] E5[3:0], H5 = E6[7:0] E5[7:4].
	assert.Equal(t, int16(0x13B), cal.H4)
	assert.Equal(t, int16(0x032), cal.H5)
	assert.Equal(t, int8(-30), cal.H6)
}
