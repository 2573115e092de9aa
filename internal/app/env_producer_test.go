package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/relabs-tech/env_telemetry/internal/bme280"
	"github.com/relabs-tech/env_telemetry/internal/config"
	"github.com/relabs-tech/env_telemetry/internal/env"
	"github.com/relabs-tech/env_telemetry/internal/sensors"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type sentMessage struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []sentMessage
	err  error

	// stalled tokens never complete, like QoS 1 publishes during a broker
	// outage.
	stalled bool
}

func (f *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, sentMessage{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	if f.stalled {
		return &fakeToken{done: make(chan struct{})}
	}
	return newFakeToken(f.err)
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

type fakeSource struct {
	readings []env.Reading
	errs     []error
	calls    int
}

func (f *fakeSource) Read() (env.Reading, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return env.Reading{}, f.errs[i]
	}
	return f.readings[i%len(f.readings)], nil
}

func (f *fakeSource) Close() error { return nil }

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.MQTTBroker = "tcp://localhost:1883"
	cfg.DeviceID = "node-1"
	cfg.TemperatureAlert = 30
	return cfg
}

var fixedNow = func() time.Time { return time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC) }

func decodeMessage(t *testing.T, b []byte) env.Message {
	t.Helper()
	var m env.Message
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

func TestProducerTick(t *testing.T) {
	src := &fakeSource{readings: []env.Reading{
		{Temperature: 21.5, Humidity: 40, Pressure: 101000},
		{Temperature: 31.0, Humidity: 41, Pressure: 101010},
	}}
	pub := &fakePublisher{}
	pin := &gpiotest.Pin{N: "GPIO4"}
	p := newEnvProducer(testConfig(), src, pub, newStatusLED(pin))
	p.now = fixedNow

	p.tick(context.Background())
	p.tick(context.Background())

	require.Len(t, pub.msgs, 2)
	for _, m := range pub.msgs {
		assert.Equal(t, "env/telemetry", m.topic)
		assert.Equal(t, byte(1), m.qos)
		assert.False(t, m.retained)
	}

	first := decodeMessage(t, pub.msgs[0].payload)
	assert.Equal(t, 1, first.MessageID)
	assert.Equal(t, "node-1", first.DeviceID)
	assert.Equal(t, 21.5, first.Temperature)
	assert.False(t, first.TemperatureAlert)
	assert.Equal(t, fixedNow(), first.Time)

	second := decodeMessage(t, pub.msgs[1].payload)
	assert.Equal(t, 2, second.MessageID)
	assert.True(t, second.TemperatureAlert)

	assert.Equal(t, gpio.Low, pin.Read())
}

func TestProducerReadFailureAdvancesMessageID(t *testing.T) {
	src := &fakeSource{
		readings: []env.Reading{{Temperature: 20}},
		errs:     []error{bme280.ErrAcquisitionExhausted},
	}
	pub := &fakePublisher{}
	p := newEnvProducer(testConfig(), src, pub, nil)

	p.tick(context.Background())
	assert.Empty(t, pub.msgs)

	p.tick(context.Background())
	require.Len(t, pub.msgs, 1)
	assert.Equal(t, 2, decodeMessage(t, pub.msgs[0].payload).MessageID)
}

func TestProducerPublishError(t *testing.T) {
	src := &fakeSource{readings: []env.Reading{{Temperature: 20}}}
	pub := &fakePublisher{err: errors.New("not connected")}
	p := newEnvProducer(testConfig(), src, pub, nil)

	before := publishErrors.Get()
	p.tick(context.Background())
	assert.Equal(t, before+1, publishErrors.Get())
}

func TestProducerStartStop(t *testing.T) {
	src := &fakeSource{readings: []env.Reading{{Temperature: 20}}}
	pub := &fakePublisher{}
	p := newEnvProducer(testConfig(), src, pub, nil)

	p.onCommand([]byte(`{"method":"stop"}`))
	p.tick(context.Background())
	assert.Equal(t, 0, src.calls)

	p.onCommand([]byte(`{"method":"start"}`))
	p.tick(context.Background())
	assert.Equal(t, 1, src.calls)

	// Two replies and one telemetry message.
	require.Len(t, pub.msgs, 3)
	assert.Equal(t, "env/commands/replies", pub.msgs[0].topic)
	var reply env.CommandReply
	require.NoError(t, json.Unmarshal(pub.msgs[0].payload, &reply))
	assert.Equal(t, env.CommandReply{Method: "stop", Status: 200, Message: "Successfully invoke device method"}, reply)
	assert.Equal(t, "env/telemetry", pub.msgs[2].topic)
}

func TestProducerMalformedCommand(t *testing.T) {
	pub := &fakePublisher{}
	p := newEnvProducer(testConfig(), &fakeSource{}, pub, nil)
	p.onCommand([]byte(`{`))
	assert.Empty(t, pub.msgs)
	assert.True(t, p.sending.Load())
}

func TestProducerWithSimulatedSensor(t *testing.T) {
	cfg := testConfig()
	cfg.SimulatedData = true
	src, err := sensors.NewEnvSource(cfg)
	require.NoError(t, err)
	defer src.Close()

	pub := &fakePublisher{}
	p := newEnvProducer(cfg, src, pub, nil)
	for i := 0; i < 5; i++ {
		p.tick(context.Background())
	}

	require.Len(t, pub.msgs, 5)
	for i, m := range pub.msgs {
		msg := decodeMessage(t, m.payload)
		assert.Equal(t, i+1, msg.MessageID)
		assert.InDelta(t, 25, msg.Temperature, 5.2)
		assert.InDelta(t, 46, msg.Humidity, 10)
	}
}

func TestProducerTickReturnsOnCancel(t *testing.T) {
	src := &fakeSource{readings: []env.Reading{{Temperature: 20}}}
	pub := &fakePublisher{stalled: true}
	pin := &gpiotest.Pin{N: "GPIO4"}
	p := newEnvProducer(testConfig(), src, pub, newStatusLED(pin))

	ctx, cancel := context.WithCancel(context.Background())
	before := published.Get()
	done := make(chan struct{})
	go func() {
		p.tick(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tick still waiting on the publish token after cancel")
	}
	assert.Equal(t, before, published.Get())
	assert.Equal(t, gpio.Low, pin.Read())
}

func TestProducerRunStopsWithStalledBroker(t *testing.T) {
	cfg := testConfig()
	cfg.SampleInterval = 1
	p := newEnvProducer(cfg, &fakeSource{readings: []env.Reading{{Temperature: 20}}}, &fakePublisher{stalled: true}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- p.run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("run did not stop after cancel")
	}
}

func TestProducerCommandReplyReturnsOnCancel(t *testing.T) {
	pub := &fakePublisher{stalled: true}
	p := newEnvProducer(testConfig(), &fakeSource{}, pub, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.ctx = ctx

	p.onCommand([]byte(`{"method":"stop"}`))
	assert.False(t, p.sending.Load())
	assert.Equal(t, 1, pub.count())
}

func TestProducerLogsInboundMessage(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()

	p := newEnvProducer(testConfig(), &fakeSource{}, &fakePublisher{}, nil)
	p.onInbound("env/messages", []byte(`{"note":"hello"}`))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, `Receiving message: {"note":"hello"}`, entry.Message)
	assert.Equal(t, "env/messages", entry.Data["topic"])
}
