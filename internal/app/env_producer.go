// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/relabs-tech/env_telemetry/internal/config"
	"github.com/relabs-tech/env_telemetry/internal/env"
	"github.com/relabs-tech/env_telemetry/internal/sensors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"periph.io/x/host/v3"
)

// publisher is the part of mqtt.Client the sample loop needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// envProducer reads the sensor and publishes one message per tick while
// sending is enabled.
type envProducer struct {
	cfg     *config.Config
	src     sensors.EnvSource
	pub     publisher
	led     *StatusLED
	now     func() time.Time
	sending atomic.Bool

	// ctx bounds the reply waits of command callbacks.
	ctx context.Context

	messageID int
}

func newEnvProducer(cfg *config.Config, src sensors.EnvSource, pub publisher, led *StatusLED) *envProducer {
	p := &envProducer{cfg: cfg, src: src, pub: pub, led: led, now: time.Now, ctx: context.Background()}
	p.sending.Store(true)
	return p
}

// waitToken blocks until tok completes or ctx is done. A QoS 1 token stays
// open while the broker is unreachable.
func waitToken(ctx context.Context, tok mqtt.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tick runs one sample/publish cycle. The message id advances on every
// attempt, failed reads included.
func (p *envProducer) tick(ctx context.Context) {
	if !p.sending.Load() {
		return
	}
	p.messageID++

	r, err := p.src.Read()
	if err != nil {
		readErrors.Inc()
		log.Printf("Failed to read message: %v", err)
		return
	}
	observe(r)

	msg := env.NewMessage(p.cfg.DeviceID, p.messageID, r, p.cfg.TemperatureAlert, p.now())
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("json marshal error (telemetry): %v", err)
		return
	}

	log.WithFields(log.Fields{
		"messageId":        msg.MessageID,
		"temperature":      fmt.Sprintf("%.2f", msg.Temperature),
		"humidity":         fmt.Sprintf("%.2f", msg.Humidity),
		"pressure":         fmt.Sprintf("%.1f", msg.Pressure),
		"temperatureAlert": msg.TemperatureAlert,
	}).Debug("sending message")

	// The next sample is only taken once the broker has confirmed this one.
	if err := waitToken(ctx, p.pub.Publish(p.cfg.TopicTelemetry, 1, false, payload)); err != nil {
		publishErrors.Inc()
		log.Printf("MQTT publish error (telemetry): %v", err)
		return
	}
	published.Inc()
	if err := p.led.Blink(); err != nil {
		log.Printf("LED blink error: %v", err)
	}
}

// onCommand decodes a device method call and publishes the reply.
func (p *envProducer) onCommand(payload []byte) {
	var cmd env.Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		log.Printf("command unmarshal error: %v", err)
		return
	}
	reply := handleCommand(cmd, &p.sending)
	if p.cfg.TopicCommandReplies == "" {
		return
	}
	b, err := json.Marshal(reply)
	if err != nil {
		log.Printf("json marshal error (command reply): %v", err)
		return
	}
	if err := waitToken(p.ctx, p.pub.Publish(p.cfg.TopicCommandReplies, 1, false, b)); err != nil {
		log.Printf("MQTT publish error (command reply): %v", err)
	}
}

// onInbound logs a cloud-to-device message.
func (p *envProducer) onInbound(topic string, payload []byte) {
	log.WithField("topic", topic).Infof("Receiving message: %s", payload)
}

// run ticks every SAMPLE_INTERVAL until ctx is done.
func (p *envProducer) run(ctx context.Context) error {
	ticker := time.NewTicker(time.Duration(p.cfg.SampleInterval) * time.Millisecond)
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// RunEnvProducer samples the BME280 and publishes telemetry over MQTT until
// ctx is cancelled. It also answers start/stop device methods and serves
// Prometheus metrics.
func RunEnvProducer(ctx context.Context) error {
	log.Println("starting env-telemetry producer (BME280 → MQTT)")

	cfg := config.Get()

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("periph host init: %w", err)
	}

	src, err := sensors.NewEnvSource(cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	led, err := NewStatusLED(cfg.LEDPin)
	if err != nil {
		log.Printf("WARNING: status LED disabled: %v", err)
		led = nil
	}

	client, err := connectMQTT(cfg, cfg.MQTTClientIDProducer)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	p := newEnvProducer(cfg, src, client, led)
	p.ctx = ctx

	if cfg.TopicCommands != "" {
		token := client.Subscribe(cfg.TopicCommands, 1, func(_ mqtt.Client, msg mqtt.Message) {
			p.onCommand(msg.Payload())
		})
		if token.Wait() && token.Error() != nil {
			return fmt.Errorf("subscribe %s: %w", cfg.TopicCommands, token.Error())
		}
		log.Printf("subscribed to device methods on %s", cfg.TopicCommands)
	}
	if cfg.TopicInbound != "" {
		token := client.Subscribe(cfg.TopicInbound, 1, func(_ mqtt.Client, msg mqtt.Message) {
			p.onInbound(msg.Topic(), msg.Payload())
		})
		if token.Wait() && token.Error() != nil {
			return fmt.Errorf("subscribe %s: %w", cfg.TopicInbound, token.Error())
		}
		log.Printf("subscribed to cloud-to-device messages on %s", cfg.TopicInbound)
	}

	g, gCtx := errgroup.WithContext(ctx)
	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(gCtx, cfg.MetricsAddr)
		})
	}
	g.Go(func() error {
		log.Printf("publishing to %s every %dms", cfg.TopicTelemetry, cfg.SampleInterval)
		return p.run(gCtx)
	})
	return g.Wait()
}
