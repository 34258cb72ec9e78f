// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/relabs-tech/sensor_node/internal/config"
)

func TestNewProdWritesJSON(t *testing.T) {
	cfg := config.Default()
	cfg.AppEnv = "prod"
	cfg.LogLevel = slog.LevelWarn

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, cfg, "1.2.3", "sensor-node")
	logger.Info("dropped")
	logger.Warn("sampler: buffer full", "channel", "audio")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1 (info filtered): %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	for k, want := range map[string]string{
		"msg":     "sampler: buffer full",
		"app":     "sensor-node",
		"version": "1.2.3",
		"env":     "prod",
		"channel": "audio",
	} {
		if rec[k] != want {
			t.Errorf("%s = %v, want %q", k, rec[k], want)
		}
	}
}

func TestNewDevWritesText(t *testing.T) {
	cfg := config.Default()
	var buf bytes.Buffer
	NewWithWriter(&buf, cfg, "dev", "sensor-node").Info("notify: started")
	out := buf.String()
	if !strings.Contains(out, "notify: started") || !strings.Contains(out, "sensor-node") {
		t.Fatalf("unexpected dev output %q", out)
	}
	if json.Valid([]byte(strings.TrimSpace(out))) {
		t.Fatalf("dev output should not be JSON: %q", out)
	}
}
