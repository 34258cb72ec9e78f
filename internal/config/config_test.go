// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/relabs-tech/sensor_node/internal/telemetry"
)

func TestParse_Defaults(t *testing.T) {
	got, err := Parse(strings.NewReader("# only comments\n\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v, want nil", err)
	}
	if got.AppEnv != "dev" {
		t.Errorf("AppEnv = %q, want %q", got.AppEnv, "dev")
	}
	if got.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", got.LogLevel, slog.LevelInfo)
	}
	if got.MemoryBudgetBytes != 8*1024*1024 {
		t.Errorf("MemoryBudgetBytes = %d, want 8 MiB", got.MemoryBudgetBytes)
	}
	for _, ch := range telemetry.Channels() {
		if got.Capacities[ch] != 2000 {
			t.Errorf("capacity %s = %d, want 2000", ch, got.Capacities[ch])
		}
	}
	if got.SampleEvery() != 100*time.Millisecond {
		t.Errorf("SampleEvery = %v", got.SampleEvery())
	}
}

func TestParse_Values(t *testing.T) {
	in := `
APP_ENV=prod
LOG_LEVEL=debug
MQTT_BROKER = tcp://broker:1883
TOPIC_PREFIX=lab/node1/
BME280_I2C_ADDR=0x77
AUDIO_SOURCE=flow
SFM3000_I2C_ADDR=64
SAMPLE_INTERVAL=20
NOTIFY_BATCH=8
MEMORY_BUDGET_BYTES=1600
CAPACITY_TEMPERATURE=100
CAPACITY_HUMIDITY=100
CAPACITY_PRESSURE=100
CAPACITY_AUDIO=25
BLE_ENABLED=true
WEB_SERVER_PORT=0
ARCHIVE_PATH=/tmp/node.db
`
	got, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got.AppEnv != "prod" || got.LogLevel != slog.LevelDebug {
		t.Errorf("AppEnv/LogLevel = %q/%v", got.AppEnv, got.LogLevel)
	}
	if got.MQTTBroker != "tcp://broker:1883" {
		t.Errorf("MQTTBroker = %q", got.MQTTBroker)
	}
	if got.TopicPrefix != "lab/node1" {
		t.Errorf("TopicPrefix = %q, want trailing slash trimmed", got.TopicPrefix)
	}
	if got.BME280I2CAddr != 0x77 || got.SFM3000Addr != 0x40 {
		t.Errorf("addresses = %#x, %#x", got.BME280I2CAddr, got.SFM3000Addr)
	}
	if got.AudioSource != AudioSourceFlow {
		t.Errorf("AudioSource = %q", got.AudioSource)
	}
	want := telemetry.Capacities{100, 100, 100, 25}
	if got.Capacities != want {
		t.Errorf("Capacities = %v, want %v", got.Capacities, want)
	}
	if !got.BLEEnabled || got.WebServerPort != 0 || got.ArchivePath != "/tmp/node.db" {
		t.Errorf("BLEEnabled=%v WebServerPort=%d ArchivePath=%q", got.BLEEnabled, got.WebServerPort, got.ArchivePath)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
		line string
	}{
		{name: "unknown key", in: "FOO=1", line: "line 1"},
		{name: "missing equals", in: "# c\nMQTT_BROKER", line: "line 2"},
		{name: "bad app env", in: "APP_ENV=staging", line: "line 1"},
		{name: "bad log level", in: "LOG_LEVEL=loud", line: "line 1"},
		{name: "bad bool", in: "BLE_ENABLED=maybe", line: "line 1"},
		{name: "zero interval", in: "SAMPLE_INTERVAL=0", line: "line 1"},
		{name: "port range", in: "WEB_SERVER_PORT=70000", line: "line 1"},
		{name: "address range", in: "BME280_I2C_ADDR=0x1FF", line: "line 1"},
		{name: "audio source", in: "AUDIO_SOURCE=radio", line: "line 1"},
		{name: "negative budget", in: "MEMORY_BUDGET_BYTES=-5", line: "line 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.in))
			if err == nil {
				t.Fatalf("Parse(%q) error = nil, want non-nil", tt.in)
			}
			if !strings.Contains(err.Error(), tt.line) {
				t.Errorf("error %q does not name %s", err, tt.line)
			}
		})
	}
}

func TestParse_BudgetTooSmall(t *testing.T) {
	_, err := Parse(strings.NewReader("MEMORY_BUDGET_BYTES=1000\n"))
	if !errors.Is(err, telemetry.ErrCapacityExceedsBudget) {
		t.Fatalf("Parse() error = %v, want ErrCapacityExceedsBudget", err)
	}
}

func TestParse_CrossKeyValidation(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "mqtt without broker", in: "MQTT_BROKER=\n"},
		{name: "mic without port", in: "MIC_SERIAL_PORT=\n"},
		{name: "ble without adapter", in: "BLE_ENABLED=true\nBLE_ADAPTER=\n"},
		{name: "empty prefix", in: "TOPIC_PREFIX=\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(tt.in)); err == nil {
				t.Fatalf("Parse(%q) error = nil, want non-nil", tt.in)
			}
		})
	}

	// A mock node needs no microphone port.
	if _, err := Parse(strings.NewReader("SENSOR_MOCK=true\nMIC_SERIAL_PORT=\n")); err != nil {
		t.Fatalf("mock config rejected: %v", err)
	}
}

func TestParseLogLevel_Valid(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "info", want: slog.LevelInfo},
		{in: "warn", want: slog.LevelWarn},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "DeBuG", want: slog.LevelDebug},
		{in: "  warn \n", want: slog.LevelWarn},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseLogLevel(tt.in)
			if err != nil {
				t.Fatalf("parseLogLevel(%q) error = %v, want nil", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoadAndGlobal(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Fatal("Load of missing file succeeded")
	}

	path := filepath.Join(t.TempDir(), "sensor_node_config.txt")
	if err := os.WriteFile(path, []byte("SENSOR_MOCK=true\nNOTIFY_BATCH=4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := InitGlobal(path); err != nil {
		t.Fatalf("InitGlobal: %v", err)
	}
	cfg := Get()
	if cfg == nil || !cfg.SensorMock || cfg.NotifyBatch != 4 {
		t.Fatalf("Get() = %+v", cfg)
	}
	// Later calls are ignored.
	if err := InitGlobal(filepath.Join(t.TempDir(), "other.txt")); err != nil {
		t.Fatalf("second InitGlobal: %v", err)
	}
	if Get() != cfg {
		t.Fatal("second InitGlobal replaced the config")
	}
}

func TestLoad_ShippedConfigMatchesDefaults(t *testing.T) {
	got, err := Load(filepath.Join("..", "..", "sensor_node_config.txt"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := Default()
	if *got != *want {
		t.Errorf("shipped config differs from defaults:\n got %+v\nwant %+v", *got, *want)
	}
}
