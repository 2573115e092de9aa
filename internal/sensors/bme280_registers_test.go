// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"strconv"
	"testing"

	"github.com/relabs-tech/env_telemetry/internal/bme280"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritableRegister(t *testing.T) {
	for _, addr := range []byte{0xE0, 0xF2, 0xF4, 0xF5} {
		assert.True(t, WritableRegister(addr), "0x%02X", addr)
	}
	for _, addr := range []byte{0x88, 0xA1, 0xD0, 0xE1, 0xF3, 0xF7, 0xFE} {
		assert.False(t, WritableRegister(addr), "0x%02X", addr)
	}
}

func TestRegisterMapWritableMatchesAccess(t *testing.T) {
	for _, r := range BME280RegisterMap() {
		addr, err := strconv.ParseUint(r.Address, 0, 8)
		require.NoError(t, err, r.Address)
		assert.Equal(t, r.Access != "R", WritableRegister(byte(addr)), r.Name)
	}
}

func TestDumpRegisters(t *testing.T) {
	sim := bme280.NewSimTransport(bme280.ReferenceCalibration, bme280.ReferenceRaw)
	dev := bme280.New(sim, nil)
	require.NoError(t, dev.Init(bme280.Line0))

	regs, err := DumpRegisters(dev)
	require.NoError(t, err)
	assert.Len(t, regs, 13)
	assert.Equal(t, byte(0x60), regs[0xD0])
	assert.Equal(t, byte(0x01), regs[0xF2])
	assert.Equal(t, byte(0x37), regs[0xF4])
	assert.Equal(t, byte(0x70), regs[0xF7])
	assert.Equal(t, byte(0xEC), regs[0xFE])
}
