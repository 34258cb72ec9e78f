// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/relabs-tech/sensor_node/internal/config"
	"github.com/relabs-tech/sensor_node/internal/display"
	"github.com/relabs-tech/sensor_node/internal/transport/mqtt"
)

// RunDisplay shows the node's telemetry, received over MQTT, on the OLED.
func RunDisplay(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	oled, err := display.Open(cfg.DisplayI2CBus)
	if err != nil {
		return err
	}
	defer func() {
		if err := oled.Close(); err != nil {
			logger.Warn("display: close failed", "err", err)
		}
	}()

	if err := display.Show(oled, display.Splash(cfg.BLEDeviceName)); err != nil {
		logger.Warn("display: error showing splash", "err", err)
	}

	var state display.State
	client := mqtt.NewClient(cfg.MQTTBroker, cfg.MQTTClientIDDisplay, logger)
	defer client.Disconnect()
	if err := client.Connect(ctx); err != nil {
		return err
	}
	err = mqtt.SubscribeTelemetry(client, cfg.TopicPrefix, mqtt.Handlers{
		OnReading: state.ApplyReading,
		OnUsage:   state.ApplyUsage,
	})
	if err != nil {
		return fmt.Errorf("display: subscribe: %w", err)
	}

	return display.Run(ctx, oled, &state, cfg.DisplayEvery(), logger)
}
