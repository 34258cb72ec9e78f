// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/relabs-tech/sensor_node/internal/app"
	"github.com/relabs-tech/sensor_node/internal/config"
	"github.com/relabs-tech/sensor_node/internal/logging"
)

var version = "dev"
var appName = "sensor-node"

var (
	flagConfig string
	flagMock   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sensor-node",
		Short: "Sensor node - buffers environment and audio telemetry and publishes it",
		Long: `Sensor node samples a BME280 and an audio source into bounded per-channel
ring buffers and drains them to MQTT, WebSocket, BLE and an optional SQLite archive.

Use --mock to run without sensor hardware.`,
		SilenceUsage: true,
		RunE:         run,
	}

	rootCmd.Flags().StringVar(&flagConfig, "config", "./sensor_node_config.txt", "path to configuration file")
	rootCmd.Flags().BoolVar(&flagMock, "mock", false, "use simulated sensors")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if err := config.InitGlobal(flagConfig); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return err
	}
	cfg := config.Get()
	if flagMock {
		cfg.SensorMock = true
	}

	logger := logging.New(cfg, version, appName)
	slog.SetDefault(logger)

	slog.Info("starting",
		"version", version,
		"env", cfg.AppEnv,
		"log_level", cfg.LogLevel.String(),
		"mock", cfg.SensorMock,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunNode(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run failed", "err", err)
		return err
	}

	slog.Info("shutting down")
	return nil
}
