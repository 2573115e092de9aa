package env

// Reading represents a single calibrated environmental measurement (BME280).
type Reading struct {
	Temperature float64 `json:"temperature"` // °C
	Humidity    float64 `json:"humidity"`    // %RH
	Pressure    float64 `json:"pressure"`    // Pa
}

// PressureHPa returns the pressure in hPa (1 hPa = 100 Pa, same as mbar).
func (r Reading) PressureHPa() float64 {
	return r.Pressure / 100.0
}
