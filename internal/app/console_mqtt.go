package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/env_telemetry/internal/config"
	"github.com/relabs-tech/env_telemetry/internal/env"
	log "github.com/sirupsen/logrus"
)

func formatTelemetry(m env.Message) string {
	alert := ""
	if m.TemperatureAlert {
		alert = "  ALERT"
	}
	return fmt.Sprintf(
		"[ENV #%d] %s  T=%6.2f°C  H=%6.2f%%  P=%8.2fhPa%s",
		m.MessageID, m.DeviceID, m.Temperature, m.Humidity, m.Reading().PressureHPa(), alert,
	)
}

func formatReply(r env.CommandReply) string {
	return fmt.Sprintf("[CMD] %s -> %d %q", r.Method, r.Status, r.Message)
}

func RunConsoleMQTT() error {
	cfg := config.Get()

	client, err := connectMQTT(cfg, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}

	if err := subscribeJSON(client, cfg.TopicTelemetry, "console", func(m env.Message) {
		fmt.Println(formatTelemetry(m))
	}); err != nil {
		return err
	}

	if cfg.TopicCommandReplies != "" {
		if err := subscribeJSON(client, cfg.TopicCommandReplies, "console", func(r env.CommandReply) {
			fmt.Println(formatReply(r))
		}); err != nil {
			return err
		}
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
