// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/relabs-tech/sensor_node/internal/config"
	"github.com/relabs-tech/sensor_node/internal/console"
	"github.com/relabs-tech/sensor_node/internal/transport/mqtt"
	"github.com/relabs-tech/sensor_node/internal/wire"
)

// RunConsole runs the terminal dashboard fed by the node's MQTT topics.
func RunConsole(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(
		console.New(cfg.MQTTBroker),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	client := mqtt.NewClient(cfg.MQTTBroker, cfg.MQTTClientIDConsole, logger)
	defer client.Disconnect()

	go func() {
		if err := client.Connect(ctx); err != nil {
			logger.Error("console: mqtt connect failed", "err", err)
			return
		}
		p.Send(console.ConnMsg{Connected: true})
		err := mqtt.SubscribeTelemetry(client, cfg.TopicPrefix, mqtt.Handlers{
			OnReading: func(r wire.Reading) { p.Send(console.ReadingMsg(r)) },
			OnUsage:   func(u wire.Usage) { p.Send(console.UsageMsg(u)) },
		})
		if err != nil {
			logger.Error("console: subscribe failed", "err", err)
			return
		}
		watchLink(ctx, client, p)
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("console: %w", err)
	}
	return nil
}

// watchLink forwards broker link changes to the program.
func watchLink(ctx context.Context, c *mqtt.Client, p *tea.Program) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	last := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if up := c.IsConnected(); up != last {
				last = up
				p.Send(console.ConnMsg{Connected: up})
			}
		}
	}
}
