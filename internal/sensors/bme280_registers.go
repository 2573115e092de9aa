// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import "github.com/relabs-tech/env_telemetry/internal/bme280"

// BitField describes one field inside a register.
type BitField struct {
	Bits        string `json:"bits"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Values      string `json:"values,omitempty"`
}

// RegisterInfo describes one register for the register debug tool.
type RegisterInfo struct {
	Address     string     `json:"address"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Access      string     `json:"access"` // "R", "W", "RW"
	Default     string     `json:"default,omitempty"`
	BitFields   []BitField `json:"bit_fields,omitempty"`
}

const osrsValues = "0=Skipped, 1=x1, 2=x2, 3=x4, 4=x8, 5..7=x16"

// BME280RegisterMap returns metadata for all BME280 registers.
// This provides register names, descriptions, access types, and bit field definitions.
func BME280RegisterMap() []RegisterInfo {
	return []RegisterInfo{
		// Identification
		{Address: "0xD0", Name: "id", Description: "Chip identification number", Access: "R", Default: "0x60",
			BitFields: []BitField{
				{Bits: "7:0", Name: "chip_id", Description: "Always 0x60 on a BME280", Values: "0x60"},
			}},
		{Address: "0xE0", Name: "reset", Description: "Soft reset", Access: "W", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7:0", Name: "reset", Description: "Writing 0xB6 triggers a power-on reset", Values: "0xB6"},
			}},

		// Control
		{Address: "0xF2", Name: "ctrl_hum", Description: "Humidity acquisition options", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "2:0", Name: "osrs_h", Description: "Humidity oversampling, effective after a ctrl_meas write", Values: osrsValues},
			}},
		{Address: "0xF3", Name: "status", Description: "Device status", Access: "R", Default: "0x00",
			BitFields: []BitField{
				{Bits: "3", Name: "measuring", Description: "Set while a conversion is running", Values: "0=Idle, 1=Measuring"},
				{Bits: "0", Name: "im_update", Description: "Set while NVM data is copied to image registers", Values: "0=Done, 1=Copying"},
			}},
		{Address: "0xF4", Name: "ctrl_meas", Description: "Pressure and temperature acquisition options", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7:5", Name: "osrs_t", Description: "Temperature oversampling", Values: osrsValues},
				{Bits: "4:2", Name: "osrs_p", Description: "Pressure oversampling", Values: osrsValues},
				{Bits: "1:0", Name: "mode", Description: "Sensor mode", Values: "0=Sleep, 1|2=Forced, 3=Normal"},
			}},
		{Address: "0xF5", Name: "config", Description: "Rate, filter and interface options", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7:5", Name: "t_sb", Description: "Standby time in normal mode", Values: "0=0.5ms, 1=62.5ms, 2=125ms, 3=250ms, 4=500ms, 5=1000ms, 6=10ms, 7=20ms"},
				{Bits: "4:2", Name: "filter", Description: "IIR filter time constant", Values: "0=Off, 1=2, 2=4, 3=8, 4..7=16"},
				{Bits: "0", Name: "spi3w_en", Description: "3-wire SPI", Values: "0=Disabled, 1=Enabled"},
			}},

		// Data (Read-Only)
		{Address: "0xF7", Name: "press_msb", Description: "Pressure ADC [19:12]", Access: "R", Default: "0x80"},
		{Address: "0xF8", Name: "press_lsb", Description: "Pressure ADC [11:4]", Access: "R", Default: "0x00"},
		{Address: "0xF9", Name: "press_xlsb", Description: "Pressure ADC [3:0] in bits 7:4", Access: "R", Default: "0x00"},
		{Address: "0xFA", Name: "temp_msb", Description: "Temperature ADC [19:12]", Access: "R", Default: "0x80"},
		{Address: "0xFB", Name: "temp_lsb", Description: "Temperature ADC [11:4]", Access: "R", Default: "0x00"},
		{Address: "0xFC", Name: "temp_xlsb", Description: "Temperature ADC [3:0] in bits 7:4", Access: "R", Default: "0x00"},
		{Address: "0xFD", Name: "hum_msb", Description: "Humidity ADC [15:8]", Access: "R", Default: "0x80"},
		{Address: "0xFE", Name: "hum_lsb", Description: "Humidity ADC [7:0]", Access: "R", Default: "0x00"},

		// Calibration (NVM, Read-Only)
		{Address: "0x88", Name: "calib00", Description: "dig_T1 .. dig_P9, 24 bytes little endian", Access: "R"},
		{Address: "0xA1", Name: "calib25", Description: "dig_H1", Access: "R"},
		{Address: "0xE1", Name: "calib26", Description: "dig_H2 .. dig_H6, 7 bytes, H4/H5 share 0xE5", Access: "R"},
	}
}

// WritableRegister reports whether the debug tool may write addr. Only the
// control registers and the reset register are writable.
func WritableRegister(addr byte) bool {
	switch addr {
	case bme280.RegCtrlHum, bme280.RegCtrlMeas, bme280.RegConfig, bme280.RegReset:
		return true
	}
	return false
}

// DumpRegisters returns the identification, control and data registers.
func DumpRegisters(dev *bme280.Dev) (map[byte]byte, error) {
	regs := make(map[byte]byte)
	for _, blk := range []struct {
		start byte
		n     int
	}{
		{bme280.RegChipID, 1},
		{bme280.RegCtrlHum, 4},
		{bme280.RegData, 8},
	} {
		b, err := dev.ReadRegisters(blk.start, blk.n)
		if err != nil {
			return nil, err
		}
		for i, v := range b {
			regs[blk.start+byte(i)] = v
		}
	}
	return regs, nil
}
