// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bme280

import "errors"

// Errors returned by the driver. Callers compare with errors.Is; the driver
// wraps them with register and byte-count context.
var (
	ErrNotInitialized       = errors.New("bme280: no chip-enable line selected")
	ErrInvalidArgument      = errors.New("bme280: invalid argument")
	ErrInvalidLength        = errors.New("bme280: transfer length exceeds buffer")
	ErrDeviceNotFound       = errors.New("bme280: device not found")
	ErrCalibrationRead      = errors.New("bme280: calibration read failed")
	ErrConfigWrite          = errors.New("bme280: configuration write failed")
	ErrIO                   = errors.New("bme280: i/o error")
	ErrAcquisitionExhausted = errors.New("bme280: sample read retries exhausted")
	ErrMeasureTimeout       = errors.New("bme280: measurement did not complete")
)
