package app

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/relabs-tech/env_telemetry/internal/config"
	log "github.com/sirupsen/logrus"
)

// newMQTTClient builds a client for the configured broker. Connection state
// changes are logged under the given client id.
func newMQTTClient(cfg *config.Config, clientID string) mqtt.Client {
	logger := log.WithFields(log.Fields{"broker": cfg.MQTTBroker, "client_id": clientID})

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(clientID)
	opts.SetUsername(cfg.MQTTUsername)
	opts.SetPassword(cfg.MQTTPassword)
	opts.SetKeepAlive(time.Duration(cfg.MQTTKeepAliveMS) * time.Millisecond)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Debug("MQTT connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.WithError(err).Warn("MQTT connection lost")
	})
	opts.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
		logger.Info("MQTT reconnecting")
	})

	return mqtt.NewClient(opts)
}

// connectMQTT connects a new client and waits for the broker to accept it.
func connectMQTT(cfg *config.Config, clientID string) (mqtt.Client, error) {
	client := newMQTTClient(cfg, clientID)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("MQTT connect (%s): %w", cfg.MQTTBroker, token.Error())
	}
	log.Printf("connected to MQTT broker at %s", cfg.MQTTBroker)
	return client, nil
}

// subscribeJSON subscribes to topic and hands every payload that decodes as
// T to fn. Malformed payloads are logged and dropped.
func subscribeJSON[T any](client mqtt.Client, topic, tag string, fn func(T)) error {
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var v T
		if err := json.Unmarshal(msg.Payload(), &v); err != nil {
			log.Printf("%s: %s unmarshal error: %v", tag, msg.Topic(), err)
			return
		}
		fn(v)
	})
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, token.Error())
	}
	log.Printf("%s: subscribed to %s", tag, topic)
	return nil
}
