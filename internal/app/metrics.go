package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/relabs-tech/env_telemetry/internal/env"
	log "github.com/sirupsen/logrus"
)

const metricsShutdownTimeout = 2 * time.Second

var (
	temperatureHist = metrics.NewHistogram("bme280_temperature_celsius") //nolint:gochecknoglobals
	humidityHist    = metrics.NewHistogram("bme280_humidity_percent")    //nolint:gochecknoglobals
	pressureHist    = metrics.NewHistogram("bme280_pressure_pascal")     //nolint:gochecknoglobals

	readErrors      = metrics.NewCounter("bme280_read_errors_total")       //nolint:gochecknoglobals
	published       = metrics.NewCounter("telemetry_published_total")      //nolint:gochecknoglobals
	publishErrors   = metrics.NewCounter("telemetry_publish_errors_total") //nolint:gochecknoglobals
	commandsHandled = metrics.NewCounter("device_commands_total")          //nolint:gochecknoglobals
)

func observe(r env.Reading) {
	temperatureHist.Update(r.Temperature)
	humidityHist.Update(r.Humidity)
	pressureHist.Update(r.Pressure)
}

func metricsHandler(w http.ResponseWriter, _ *http.Request) {
	metrics.WritePrometheus(w, true)
}

// serveMetrics exposes /metrics on addr until ctx is done.
func serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", metricsHandler)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("metrics: shutdown: %v", err)
		}
	}()

	log.Printf("metrics: listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
