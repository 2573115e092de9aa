package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string
	MQTTClientIDProducer string
	MQTTClientIDConsole  string
	MQTTClientIDWeb      string
	MQTTClientIDDisplay  string
	MQTTUsername         string
	MQTTPassword         string
	MQTTKeepAliveMS      int

	// Topics
	TopicTelemetry      string
	TopicCommands       string
	TopicCommandReplies string
	TopicInbound        string // cloud-to-device messages, logged by the producer

	// Identity reported in every message
	DeviceID string

	// BME280 Hardware
	BMEDriver       string // "native" or "periph"
	BMESPIDeviceCE0 string
	BMESPIDeviceCE1 string
	BMEChipEnable   int // 0 or 1
	BMESPISpeedHz   int64

	// BME280 Configuration
	// Oversampling: 0=skipped, 1=x1, 2=x2, 3=x4, 4=x8, 5=x16
	BMETempOSR        byte
	BMEPressureOSR    byte
	BMEHumidityOSR    byte
	BMEMode           byte // 0=sleep, 1|2=forced, 3=normal
	BMEIIRFilter      byte
	BMEStandbyTime    byte
	BMELegacyXLSBMask bool

	// Simulation and alerting
	SimulatedData    bool
	TemperatureAlert float64 // °C

	// Timing
	SampleInterval int // milliseconds

	// Status LED (periph GPIO name, e.g. "GPIO4"); empty disables it
	LEDPin string

	// HTTP
	MetricsAddr       string
	WebServerPort     int
	RegisterDebugPort int

	// Display
	DisplayI2CAddr        uint16
	DisplayUpdateInterval int // milliseconds
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through InitGlobal and Get.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: write lock for initialization, read lock for Get().
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Defaults returns a Config carrying the values used when a key is absent.
func Defaults() *Config {
	return &Config{
		MQTTClientIDProducer: "env-producer",
		MQTTClientIDConsole:  "env-console",
		MQTTClientIDWeb:      "env-web",
		MQTTClientIDDisplay:  "env-display",
		MQTTKeepAliveMS:      30000,

		TopicTelemetry:      "env/telemetry",
		TopicCommands:       "env/commands",
		TopicCommandReplies: "env/commands/replies",
		TopicInbound:        "env/messages",

		DeviceID: "bme280-node",

		BMEDriver:       "native",
		BMESPIDeviceCE0: "/dev/spidev0.0",
		BMESPIDeviceCE1: "/dev/spidev0.1",
		BMESPISpeedHz:   1000000,

		BMETempOSR:     1,
		BMEPressureOSR: 5,
		BMEHumidityOSR: 1,
		BMEMode:        3,

		TemperatureAlert: 30,
		SampleInterval:   2000,

		MetricsAddr:       ":9100",
		WebServerPort:     8080,
		RegisterDebugPort: 8081,

		DisplayI2CAddr:        0x3C,
		DisplayUpdateInterval: 1000,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads KEY=VALUE lines from r on top of Defaults.
func Parse(r io.Reader) (*Config, error) {
	cfg := Defaults()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Validate required fields
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// byteInRange parses a register field value and checks it against [lo, hi].
func byteInRange(key, value string, lo, hi int) (byte, error) {
	val, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if val < lo || val > hi {
		return 0, fmt.Errorf("%s must be %d-%d, got %d", key, lo, hi, val)
	}
	return byte(val), nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value
	case "MQTT_USERNAME":
		c.MQTTUsername = value
	case "MQTT_PASSWORD":
		c.MQTTPassword = value
	case "MQTT_KEEP_ALIVE_MS":
		ms, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid MQTT_KEEP_ALIVE_MS %q: %w", value, err)
		}
		c.MQTTKeepAliveMS = ms

	// Topics
	case "TOPIC_TELEMETRY":
		c.TopicTelemetry = value
	case "TOPIC_COMMANDS":
		c.TopicCommands = value
	case "TOPIC_COMMAND_REPLIES":
		c.TopicCommandReplies = value
	case "TOPIC_INBOUND":
		c.TopicInbound = value

	case "DEVICE_ID":
		c.DeviceID = value

	// BME280 Hardware
	case "BME_DRIVER":
		if value != "native" && value != "periph" {
			return fmt.Errorf("BME_DRIVER must be native or periph, got %q", value)
		}
		c.BMEDriver = value
	case "BME_SPI_DEVICE_CE0":
		c.BMESPIDeviceCE0 = value
	case "BME_SPI_DEVICE_CE1":
		c.BMESPIDeviceCE1 = value
	case "BME_CHIP_ENABLE":
		ce, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid BME_CHIP_ENABLE %q: %w", value, err)
		}
		if ce != 0 && ce != 1 {
			return fmt.Errorf("BME_CHIP_ENABLE must be 0 or 1, got %d", ce)
		}
		c.BMEChipEnable = ce
	case "BME_SPI_SPEED_HZ":
		hz, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid BME_SPI_SPEED_HZ %q: %w", value, err)
		}
		if hz <= 0 || hz > 10000000 {
			return fmt.Errorf("BME_SPI_SPEED_HZ must be 1-10000000, got %d", hz)
		}
		c.BMESPISpeedHz = hz

	// BME280 Configuration
	case "BME_TEMP_OSR":
		c.BMETempOSR, err = byteInRange(key, value, 0, 5)
	case "BME_PRESSURE_OSR":
		c.BMEPressureOSR, err = byteInRange(key, value, 0, 5)
	case "BME_HUMIDITY_OSR":
		c.BMEHumidityOSR, err = byteInRange(key, value, 0, 5)
	case "BME_MODE":
		c.BMEMode, err = byteInRange(key, value, 0, 3)
	case "BME_IIR_FILTER":
		c.BMEIIRFilter, err = byteInRange(key, value, 0, 4)
	case "BME_STANDBY_TIME":
		c.BMEStandbyTime, err = byteInRange(key, value, 0, 7)
	case "BME_LEGACY_XLSB_MASK":
		c.BMELegacyXLSBMask, err = strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid BME_LEGACY_XLSB_MASK %q: %w", value, err)
		}

	// Simulation and alerting
	case "SIMULATED_DATA":
		c.SimulatedData, err = strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid SIMULATED_DATA %q: %w", value, err)
		}
	case "TEMPERATURE_ALERT":
		c.TemperatureAlert, err = strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid TEMPERATURE_ALERT %q: %w", value, err)
		}

	// Timing
	case "SAMPLE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SAMPLE_INTERVAL %q: %w", value, err)
		}
		c.SampleInterval = interval

	case "LED_PIN":
		c.LEDPin = value

	// HTTP
	case "METRICS_ADDR":
		c.MetricsAddr = value
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port
	case "REGISTER_DEBUG_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid REGISTER_DEBUG_PORT %q: %w", value, err)
		}
		c.RegisterDebugPort = port

	// Display
	case "DISPLAY_I2C_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_I2C_ADDR %q: %w", value, err)
		}
		if addr > 0x7F {
			return fmt.Errorf("DISPLAY_I2C_ADDR must be a 7-bit address, got %s", value)
		}
		c.DisplayI2CAddr = uint16(addr)
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.DeviceID == "" {
		return fmt.Errorf("DEVICE_ID is required")
	}
	if c.TopicTelemetry == "" {
		return fmt.Errorf("TOPIC_TELEMETRY is required")
	}
	if c.SampleInterval <= 0 {
		return fmt.Errorf("SAMPLE_INTERVAL must be positive, got %d", c.SampleInterval)
	}
	if !c.SimulatedData && c.BMEDriver == "native" {
		dev := c.BMESPIDeviceCE0
		if c.BMEChipEnable == 1 {
			dev = c.BMESPIDeviceCE1
		}
		if dev == "" {
			return fmt.Errorf("BME_SPI_DEVICE_CE%d is required for chip enable %d", c.BMEChipEnable, c.BMEChipEnable)
		}
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
// This is the only function that can set globalConfig.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
