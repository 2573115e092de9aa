// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bme280

// Register map (datasheet section 5.3).
const (
	regCalibTP   = 0x88 // dig_T1 .. dig_P9, 24 bytes
	regCalibH1   = 0xA1
	regCalibH2   = 0xE1 // dig_H2 .. dig_H6, 7 bytes
	regChipID    = 0xD0
	regVersion   = 0xD1
	regReset     = 0xE0
	regCtrlHum   = 0xF2
	regStatus    = 0xF3
	regCtrlMeas  = 0xF4
	regConfig    = 0xF5
	regPressData = 0xF7 // press_msb .. hum_lsb, 8 bytes
	regTempData  = 0xFA
	regHumData   = 0xFD
)

// Exported addresses for tools that inspect the device directly.
const (
	RegChipID   = regChipID
	RegReset    = regReset
	RegCtrlHum  = regCtrlHum
	RegStatus   = regStatus
	RegCtrlMeas = regCtrlMeas
	RegConfig   = regConfig
	RegData     = regPressData
)

const (
	// ChipID is the identification value of a BME280.
	ChipID = 0x60

	// ResetCommand written to RegReset triggers a power-on reset.
	ResetCommand = 0xB6

	// maxXfer is the transfer buffer budget, header byte included.
	maxXfer = 128

	calibTPLen = 24
	calibHLen  = 7
	burstLen   = 8

	statusMeasuring = 0x01
	readFlag        = 0x80
	writeMask       = 0x7F
)
