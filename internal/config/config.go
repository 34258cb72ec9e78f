// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/relabs-tech/sensor_node/internal/telemetry"
)

// Audio channel sources.
const (
	AudioSourceMic  = "mic"
	AudioSourceFlow = "flow"
	AudioSourceMock = "mock"
)

// Config holds all application configuration values.
type Config struct {
	AppEnv   string // dev or prod
	LogLevel slog.Level

	// MQTT
	MQTTEnabled         bool
	MQTTBroker          string
	MQTTClientIDNode    string
	MQTTClientIDConsole string
	MQTTClientIDDisplay string
	TopicPrefix         string

	// Sensors
	SensorMock    bool
	BME280I2CBus  string
	BME280I2CAddr uint16
	AudioSource   string // mic, flow or mock
	MicSerialPort string
	MicBaudRate   int
	SFM3000I2CBus string
	SFM3000Addr   uint16

	// Timing (milliseconds)
	SampleInterval int
	NotifyInterval int
	UsageInterval  int
	NotifyBatch    int

	// Buffers
	MemoryBudgetBytes int64
	Capacities        telemetry.Capacities

	// BLE
	BLEEnabled    bool
	BLEAdapter    string
	BLEDeviceName string

	// Web Server (0 disables)
	WebServerPort int

	// Archive ("" disables)
	ArchivePath string

	// Display
	DisplayI2CBus         string
	DisplayUpdateInterval int // milliseconds
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a Config with every key at its default value.
func Default() *Config {
	return &Config{
		AppEnv:   "dev",
		LogLevel: slog.LevelInfo,

		MQTTEnabled:         true,
		MQTTBroker:          "tcp://localhost:1883",
		MQTTClientIDNode:    "sensor-node",
		MQTTClientIDConsole: "sensor-node-console",
		MQTTClientIDDisplay: "sensor-node-display",
		TopicPrefix:         "sensor_node",

		BME280I2CBus:  "",
		BME280I2CAddr: 0x76,
		AudioSource:   AudioSourceMic,
		MicSerialPort: "/dev/ttyUSB0",
		MicBaudRate:   115200,
		SFM3000I2CBus: "",
		SFM3000Addr:   0x40,

		SampleInterval: 100,
		NotifyInterval: 250,
		UsageInterval:  1000,
		NotifyBatch:    32,

		MemoryBudgetBytes: telemetry.DefaultBudgetBytes,
		Capacities:        telemetry.DefaultCapacities(),

		BLEEnabled:    false,
		BLEAdapter:    "hci0",
		BLEDeviceName: "ID-169",

		WebServerPort: 8080,

		DisplayI2CBus:         "",
		DisplayUpdateInterval: 500,
	}
}

// Load reads the configuration file and returns a Config struct.
// Keys missing from the file keep their defaults.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads KEY=VALUE lines from r. Blank lines and # comments are skipped.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		if err := cfg.setValue(strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseIntRange(key, value string, lo, hi int) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%s must be %d-%d, got %d", key, lo, hi, v)
	}
	return v, nil
}

func parseAddr(key, value string) (uint16, error) {
	addr, err := strconv.ParseUint(value, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if addr > 0x7F {
		return 0, fmt.Errorf("%s must be a 7-bit I2C address, got %#x", key, addr)
	}
	return uint16(addr), nil
}

func parseBool(key, value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return b, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	case "APP_ENV":
		switch value {
		case "dev", "prod":
			c.AppEnv = value
		default:
			return fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", value)
		}
	case "LOG_LEVEL":
		c.LogLevel, err = parseLogLevel(value)

	// MQTT
	case "MQTT_ENABLED":
		c.MQTTEnabled, err = parseBool(key, value)
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_NODE":
		c.MQTTClientIDNode = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value
	case "TOPIC_PREFIX":
		c.TopicPrefix = strings.TrimSuffix(value, "/")

	// Sensors
	case "SENSOR_MOCK":
		c.SensorMock, err = parseBool(key, value)
	case "BME280_I2C_BUS":
		c.BME280I2CBus = value
	case "BME280_I2C_ADDR":
		c.BME280I2CAddr, err = parseAddr(key, value)
	case "AUDIO_SOURCE":
		switch value {
		case AudioSourceMic, AudioSourceFlow, AudioSourceMock:
			c.AudioSource = value
		default:
			return fmt.Errorf("AUDIO_SOURCE must be mic, flow or mock, got %q", value)
		}
	case "MIC_SERIAL_PORT":
		c.MicSerialPort = value
	case "MIC_BAUD_RATE":
		c.MicBaudRate, err = parseIntRange(key, value, 1200, 4_000_000)
	case "SFM3000_I2C_BUS":
		c.SFM3000I2CBus = value
	case "SFM3000_I2C_ADDR":
		c.SFM3000Addr, err = parseAddr(key, value)

	// Timing
	case "SAMPLE_INTERVAL":
		c.SampleInterval, err = parseIntRange(key, value, 1, 3_600_000)
	case "NOTIFY_INTERVAL":
		c.NotifyInterval, err = parseIntRange(key, value, 1, 3_600_000)
	case "USAGE_INTERVAL":
		c.UsageInterval, err = parseIntRange(key, value, 1, 3_600_000)
	case "NOTIFY_BATCH":
		c.NotifyBatch, err = parseIntRange(key, value, 1, 100_000)

	// Buffers
	case "MEMORY_BUDGET_BYTES":
		budget, perr := strconv.ParseInt(value, 0, 64)
		if perr != nil {
			return fmt.Errorf("invalid MEMORY_BUDGET_BYTES %q: %w", value, perr)
		}
		if budget <= 0 {
			return fmt.Errorf("MEMORY_BUDGET_BYTES must be positive, got %d", budget)
		}
		c.MemoryBudgetBytes = budget
	case "CAPACITY_TEMPERATURE":
		c.Capacities[telemetry.Temperature], err = parseIntRange(key, value, 1, 1<<28)
	case "CAPACITY_HUMIDITY":
		c.Capacities[telemetry.Humidity], err = parseIntRange(key, value, 1, 1<<28)
	case "CAPACITY_PRESSURE":
		c.Capacities[telemetry.Pressure], err = parseIntRange(key, value, 1, 1<<28)
	case "CAPACITY_AUDIO":
		c.Capacities[telemetry.Audio], err = parseIntRange(key, value, 1, 1<<28)

	// BLE
	case "BLE_ENABLED":
		c.BLEEnabled, err = parseBool(key, value)
	case "BLE_ADAPTER":
		c.BLEAdapter = value
	case "BLE_DEVICE_NAME":
		c.BLEDeviceName = value

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseIntRange(key, value, 0, 65535)

	// Archive
	case "ARCHIVE_PATH":
		c.ArchivePath = value

	// Display
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_UPDATE_INTERVAL":
		c.DisplayUpdateInterval, err = parseIntRange(key, value, 10, 60_000)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// validate checks cross-key constraints.
func (c *Config) validate() error {
	if c.MQTTEnabled && c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required when MQTT_ENABLED=true")
	}
	if c.TopicPrefix == "" {
		return fmt.Errorf("TOPIC_PREFIX must not be empty")
	}
	if !c.SensorMock && c.AudioSource == AudioSourceMic && c.MicSerialPort == "" {
		return fmt.Errorf("MIC_SERIAL_PORT is required when AUDIO_SOURCE=mic")
	}
	if c.BLEEnabled && c.BLEAdapter == "" {
		return fmt.Errorf("BLE_ADAPTER is required when BLE_ENABLED=true")
	}
	if err := telemetry.ValidateCapacities(c.Capacities, c.MemoryBudgetBytes); err != nil {
		return fmt.Errorf("buffer sizing: %w", err)
	}
	return nil
}

// SampleEvery returns the sampling period.
func (c *Config) SampleEvery() time.Duration {
	return time.Duration(c.SampleInterval) * time.Millisecond
}

// NotifyEvery returns the notification period.
func (c *Config) NotifyEvery() time.Duration {
	return time.Duration(c.NotifyInterval) * time.Millisecond
}

// UsageEvery returns the memory usage reporting period.
func (c *Config) UsageEvery() time.Duration {
	return time.Duration(c.UsageInterval) * time.Millisecond
}

// DisplayEvery returns the OLED redraw period.
func (c *Config) DisplayEvery() time.Duration {
	return time.Duration(c.DisplayUpdateInterval) * time.Millisecond
}

// InitGlobal initializes the global configuration from file.
// Only the first call has any effect.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance, or nil before InitGlobal.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
