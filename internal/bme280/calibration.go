// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bme280

// Calibration holds the factory trim coefficients of one sensor unit.
//
// Field widths follow the register layout of datasheet table 16.
type Calibration struct {
	T1     uint16
	T2, T3 int16

	P1                             uint16
	P2, P3, P4, P5, P6, P7, P8, P9 int16

	H1     uint8
	H2     int16
	H3     uint8
	H4, H5 int16
	H6     int8
}

// decodeCalibration parses the 0x88..0x9F block, dig_H1 at 0xA1 and the
// 0xE1..0xE7 block.
func decodeCalibration(tp []byte, h1 byte, h []byte) Calibration {
	u16 := func(b []byte, i int) uint16 { return uint16(b[i]) | uint16(b[i+1])<<8 }
	s16 := func(b []byte, i int) int16 { return int16(u16(b, i)) }

	return Calibration{
		T1: u16(tp, 0),
		T2: s16(tp, 2),
		T3: s16(tp, 4),

		P1: u16(tp, 6),
		P2: s16(tp, 8),
		P3: s16(tp, 10),
		P4: s16(tp, 12),
		P5: s16(tp, 14),
		P6: s16(tp, 16),
		P7: s16(tp, 18),
		P8: s16(tp, 20),
		P9: s16(tp, 22),

		H1: h1,
		H2: s16(h, 0),
		H3: h[2],
		// dig_H4 is 0xE4[7:0] / 0xE5[3:0], dig_H5 is 0xE5[7:4] / 0xE6[7:0].
		H4: int16(uint16(h[3])<<4 | uint16(h[4])&0x0F),
		H5: int16(uint16(h[4])>>4 | uint16(h[5])<<4),
		H6: int8(h[6]),
	}
}

// encode is the inverse of decodeCalibration. It is used by SimTransport to
// lay out a register file.
func (c *Calibration) encode() (tp [calibTPLen]byte, h1 byte, h [calibHLen]byte) {
	put := func(b []byte, i int, v uint16) { b[i], b[i+1] = byte(v), byte(v>>8) }
	put(tp[:], 0, c.T1)
	put(tp[:], 2, uint16(c.T2))
	put(tp[:], 4, uint16(c.T3))
	put(tp[:], 6, c.P1)
	for i, p := range []int16{c.P2, c.P3, c.P4, c.P5, c.P6, c.P7, c.P8, c.P9} {
		put(tp[:], 8+2*i, uint16(p))
	}
	h1 = c.H1
	put(h[:], 0, uint16(c.H2))
	h[2] = c.H3
	h[3] = byte(uint16(c.H4) >> 4)
	h[4] = byte(uint16(c.H4)&0x0F) | byte(uint16(c.H5)<<4)
	h[5] = byte(uint16(c.H5) >> 4)
	h[6] = byte(c.H6)
	return tp, h1, h
}
