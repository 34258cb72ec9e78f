// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/sensor_node/internal/config"
	"github.com/relabs-tech/sensor_node/internal/httpapi"
	"github.com/relabs-tech/sensor_node/internal/notify"
	"github.com/relabs-tech/sensor_node/internal/sampler"
	"github.com/relabs-tech/sensor_node/internal/sensors"
	"github.com/relabs-tech/sensor_node/internal/telemetry"
	"github.com/relabs-tech/sensor_node/internal/transport/archive"
	"github.com/relabs-tech/sensor_node/internal/transport/ble"
	"github.com/relabs-tech/sensor_node/internal/transport/mqtt"
	"github.com/relabs-tech/sensor_node/internal/transport/ws"
)

// Node is a fully wired sensor node. Build it with NewNode, then Run it.
type Node struct {
	cfg    *config.Config
	logger *slog.Logger

	store    *telemetry.Store
	sampler  *sampler.Sampler
	notifier *notify.Notifier

	env   sensors.EnvReader
	audio sensors.ScalarReader

	mqtt    *mqtt.Client
	hub     *ws.Hub
	archive *archive.Archive
	ble     *ble.Peripheral
	server  *http.Server

	closers []namedCloser
}

type namedCloser struct {
	name string
	fn   func() error
}

// NewNode sizes the store, claims both roles, opens the sensors and the
// enabled transports. Any failure closes what was opened so far.
func NewNode(cfg *config.Config, logger *slog.Logger) (*Node, error) {
	if logger == nil {
		logger = slog.Default()
	}
	n := &Node{cfg: cfg, logger: logger}
	if err := n.open(); err != nil {
		n.close()
		return nil, err
	}
	return n, nil
}

func (n *Node) open() error {
	cfg, logger := n.cfg, n.logger

	var err error
	n.store, err = telemetry.NewStore(cfg.Capacities, cfg.MemoryBudgetBytes)
	if err != nil {
		return fmt.Errorf("telemetry store: %w", err)
	}
	n.onClose("store", n.store.Close)

	producer, err := n.store.Producer()
	if err != nil {
		return err
	}
	consumer, err := n.store.Consumer()
	if err != nil {
		return err
	}

	if err := n.openSensors(); err != nil {
		return err
	}
	n.sampler = sampler.New(producer, n.env, n.audio, logger)

	pubs, err := n.openTransports()
	if err != nil {
		return err
	}
	n.notifier = notify.New(consumer, n.store, pubs, notify.Options{
		Batch:     cfg.NotifyBatch,
		Overflows: n.sampler.Overflows,
		Logger:    logger,
	})

	if cfg.WebServerPort > 0 {
		deps := httpapi.Deps{
			Store:     n.store,
			Overflows: n.sampler.Overflows,
			Stream:    n.hub,
		}
		if n.archive != nil {
			deps.History = n.archive
		}
		n.server = &http.Server{
			Addr:              ":" + strconv.Itoa(cfg.WebServerPort),
			Handler:           httpapi.NewMux(deps),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	logger.Info("node: ready",
		"budget_bytes", cfg.MemoryBudgetBytes,
		"capacities", cfg.Capacities,
		"publishers", len(pubs),
	)
	return nil
}

func (n *Node) onClose(name string, fn func() error) {
	n.closers = append(n.closers, namedCloser{name: name, fn: fn})
}

// close runs the closers in reverse order of opening.
func (n *Node) close() error {
	var errs []error
	for i := len(n.closers) - 1; i >= 0; i-- {
		c := n.closers[i]
		if err := c.fn(); err != nil {
			n.logger.Warn("node: close failed", "component", c.name, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	n.closers = nil
	return errors.Join(errs...)
}

func (n *Node) openSensors() error {
	cfg := n.cfg

	if cfg.SensorMock {
		n.logger.Info("node: using mock environment sensor")
		n.env = sensors.NewMockEnv()
	} else {
		bme, err := sensors.NewBME280(cfg.BME280I2CBus, cfg.BME280I2CAddr)
		if err != nil {
			return err
		}
		n.env = bme
	}
	n.onClose("env sensor", n.env.Close)

	source := cfg.AudioSource
	if cfg.SensorMock {
		source = config.AudioSourceMock
	}
	switch source {
	case config.AudioSourceMock:
		n.audio = sensors.NewMockScalar(2000, 2*time.Second)
	case config.AudioSourceFlow:
		flow, err := sensors.NewSFM3000(cfg.SFM3000I2CBus, cfg.SFM3000Addr)
		if err != nil {
			return err
		}
		n.audio = flow
	default:
		mic, err := sensors.NewMicrophone(cfg.MicSerialPort, cfg.MicBaudRate)
		if err != nil {
			return err
		}
		n.audio = mic
	}
	n.onClose("audio sensor", n.audio.Close)
	n.logger.Info("node: audio source", "source", source)
	return nil
}

func (n *Node) openTransports() ([]notify.Publisher, error) {
	cfg := n.cfg
	var pubs []notify.Publisher

	if cfg.MQTTEnabled {
		n.mqtt = mqtt.NewClient(cfg.MQTTBroker, cfg.MQTTClientIDNode, n.logger)
		n.onClose("mqtt", func() error {
			n.mqtt.Disconnect()
			return nil
		})
		pubs = append(pubs, mqtt.NewPublisher(n.mqtt, cfg.TopicPrefix))
	}

	if cfg.WebServerPort > 0 {
		n.hub = ws.NewHub(n.logger)
		n.onClose("websocket", n.hub.Close)
		pubs = append(pubs, n.hub)
	}

	if cfg.ArchivePath != "" {
		a, err := archive.Open(cfg.ArchivePath)
		if err != nil {
			return nil, err
		}
		n.archive = a
		n.onClose("archive", a.Close)
		pubs = append(pubs, a)
		n.logger.Info("node: archiving to sqlite", "path", cfg.ArchivePath)
	}

	if cfg.BLEEnabled {
		n.ble = ble.NewPeripheral(cfg.BLEAdapter, cfg.BLEDeviceName, n.logger)
		if err := n.ble.Start(time.Now()); err != nil {
			return nil, err
		}
		n.onClose("ble", n.ble.Close)
		pubs = append(pubs, n.ble)
	}

	return pubs, nil
}

// Run starts the sampler, the notifier and the HTTP server and blocks until
// ctx is done or one of them fails. Everything is closed before returning.
func (n *Node) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if n.mqtt != nil {
		// The broker may come up after the node; publishing fails with
		// ErrNotConnected until then.
		g.Go(func() error {
			if err := n.mqtt.Connect(ctx); err != nil && ctx.Err() == nil {
				n.logger.Error("node: mqtt connect failed", "err", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		return ignoreCanceled(n.sampler.Run(ctx, n.cfg.SampleEvery()))
	})
	g.Go(func() error {
		return ignoreCanceled(n.notifier.Run(ctx, n.cfg.NotifyEvery(), n.cfg.UsageEvery()))
	})
	if n.server != nil {
		g.Go(func() error {
			return httpapi.Serve(ctx, n.server)
		})
	}

	err := g.Wait()
	if cerr := n.close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	n.logger.Info("node: stopped", "err", err)
	return err
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// RunNode builds a node from cfg and runs it until ctx is done.
func RunNode(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	n, err := NewNode(cfg, logger)
	if err != nil {
		return err
	}
	return n.Run(ctx)
}

// Store exposes the node's telemetry store.
func (n *Node) Store() *telemetry.Store { return n.store }
