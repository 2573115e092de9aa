package sensors

import (
	"github.com/relabs-tech/env_telemetry/internal/bme280"
	"github.com/relabs-tech/env_telemetry/internal/config"
	"github.com/relabs-tech/env_telemetry/internal/env"
	"github.com/valyala/fastrand"
)

// Raw codes around 25 °C, 1006 hPa and 46 %RH with the reference calibration.
const (
	simTempCenter  = 519888
	simPressCenter = 415148
	simHumCenter   = 28396

	// Roughly 20-30 °C, 997-1016 hPa and 37-55 %RH.
	simTempSpan  = 15800
	simPressSpan = 1200
	simHumSpan   = 1600
)

// SimSource runs the native driver against a simulated register file whose
// raw codes wander randomly between reads.
type SimSource struct {
	*NativeSource
	sim *bme280.SimTransport
}

// NewSimSource returns a simulated sensor configured like the real one.
func NewSimSource(cfg *config.Config) *SimSource {
	sim := bme280.NewSimTransport(bme280.ReferenceCalibration, bme280.RawSample{
		Temperature: simTempCenter,
		Pressure:    simPressCenter,
		Humidity:    simHumCenter,
	})
	opts := DriverOpts(cfg)
	return &SimSource{
		NativeSource: NewNativeSource(sim, nil, &opts, bme280.Line(cfg.BMEChipEnable)),
		sim:          sim,
	}
}

// Transport exposes the simulated bus, mainly for fault injection.
func (s *SimSource) Transport() *bme280.SimTransport {
	return s.sim
}

// Read implements EnvSource.
func (s *SimSource) Read() (env.Reading, error) {
	s.sim.SetRaw(bme280.RawSample{
		Temperature: s.jitter(simTempCenter, simTempSpan),
		Pressure:    s.jitter(simPressCenter, simPressSpan),
		Humidity:    s.jitter(simHumCenter, simHumSpan),
	})
	return s.NativeSource.Read()
}

func (s *SimSource) jitter(center, span int32) int32 {
	return center - span + int32(fastrand.Uint32n(uint32(2*span+1)))
}
