// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bme280

// FineTemperature is the t_fine intermediate of the datasheet. It is produced
// by CompensateTemperature and must come from the same sample as the raw
// pressure or humidity value it is used with.
type FineTemperature int32

// Humidity clamp before the final shift: 100 %RH in Q22.10 << 12.
const humidityMax = 419430400

// CompensateTemperature returns temperature in 0.01 °C (5123 equals 51.23 °C)
// and the fine temperature needed by the pressure and humidity formulas.
//
// adc has 20 bits of resolution. Datasheet section 4.2.3,
// BME280_compensate_T_int32.
func (c *Calibration) CompensateTemperature(adc int32) (int32, FineTemperature) {
	var1 := (((adc >> 3) - (int32(c.T1) << 1)) * int32(c.T2)) >> 11
	var2 := (((((adc >> 4) - int32(c.T1)) * ((adc >> 4) - int32(c.T1))) >> 12) * int32(c.T3)) >> 14
	tFine := var1 + var2
	return (tFine*5 + 128) >> 8, FineTemperature(tFine)
}

// CompensatePressure returns pressure in Pa as Q24.8 (24674867 equals
// 24674867/256 = 96386.2 Pa).
//
// It returns 0 when the calibration would cause a division by zero.
// Datasheet section 4.2.3, BME280_compensate_P_int64.
func (c *Calibration) CompensatePressure(adc int32, fine FineTemperature) uint32 {
	var1 := int64(fine) - 128000
	var2 := var1 * var1 * int64(c.P6)
	var2 += (var1 * int64(c.P5)) << 17
	var2 += int64(c.P4) << 35
	var1 = ((var1 * var1 * int64(c.P3)) >> 8) + ((var1 * int64(c.P2)) << 12)
	var1 = ((int64(1) << 47) + var1) * int64(c.P1) >> 33
	if var1 == 0 {
		return 0
	}
	p := 1048576 - int64(adc)
	p = (((p << 31) - var2) * 3125) / var1
	var1 = (int64(c.P9) * (p >> 13) * (p >> 13)) >> 25
	var2 = (int64(c.P8) * p) >> 19
	p = ((p + var1 + var2) >> 8) + (int64(c.P7) << 4)
	return uint32(p)
}

// CompensateHumidity returns relative humidity in %RH as Q22.10 (47445
// equals 47445/1024 = 46.333 %RH). The result never exceeds 100 %RH.
//
// Datasheet section 4.2.3, bme280_compensate_H_int32.
func (c *Calibration) CompensateHumidity(adc int32, fine FineTemperature) uint32 {
	v := int32(fine) - 76800
	v = ((((adc << 14) - (int32(c.H4) << 20) - (int32(c.H5) * v)) + 16384) >> 15) *
		(((((((v*int32(c.H6))>>10)*(((v*int32(c.H3))>>11)+32768))>>10)+2097152)*int32(c.H2) + 8192) >> 14)
	v -= ((((v >> 15) * (v >> 15)) >> 7) * int32(c.H1)) >> 4
	if v < 0 {
		v = 0
	}
	if v > humidityMax {
		v = humidityMax
	}
	return uint32(v >> 12)
}
