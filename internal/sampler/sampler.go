// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sampler runs the sampling task: it reads the sensors on a fixed
// cadence and stores one sample per channel. It is the only writer of the
// telemetry store.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/relabs-tech/sensor_node/internal/sensors"
	"github.com/relabs-tech/sensor_node/internal/telemetry"
)

// Producer is the writing side of the store.
type Producer interface {
	Store(ch telemetry.Channel, v telemetry.Sample) error
}

// Cycle counts the outcome of one sampling cycle.
type Cycle struct {
	Stored       int
	Dropped      int
	SensorErrors int
}

// Sampler owns the producer role.
type Sampler struct {
	producer Producer
	env      sensors.EnvReader
	audio    sensors.ScalarReader
	log      *slog.Logger

	overflows [telemetry.NumChannels]atomic.Uint64
	cycles    atomic.Uint64
}

// New returns a sampler. audio may be nil when no fourth sensor is fitted.
func New(p Producer, envReader sensors.EnvReader, audio sensors.ScalarReader, logger *slog.Logger) *Sampler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sampler{producer: p, env: envReader, audio: audio, log: logger}
}

// Overflows returns how many samples ch has dropped because its buffer was full.
func (s *Sampler) Overflows(ch telemetry.Channel) uint64 {
	if !ch.Valid() {
		return 0
	}
	return s.overflows[ch].Load()
}

// Cycles returns the number of completed sampling cycles.
func (s *Sampler) Cycles() uint64 {
	return s.cycles.Load()
}

// Run samples every interval until ctx is done or the store is closed.
func (s *Sampler) Run(ctx context.Context, interval time.Duration) error {
	s.log.Info("sampler: started", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sampler: stopped", "cycles", s.Cycles())
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.SampleOnce(); err != nil {
				return err
			}
		}
	}
}

// SampleOnce reads every sensor once and stores the results. It only
// returns an error when the store can no longer accept samples.
func (s *Sampler) SampleOnce() (Cycle, error) {
	var c Cycle

	if s.env != nil {
		e, err := s.env.Sense()
		if err != nil {
			c.SensorErrors++
			s.log.Warn("sampler: environment read failed", "err", err)
		} else {
			for _, v := range []struct {
				ch  telemetry.Channel
				val float64
			}{
				{telemetry.Temperature, e.Temperature},
				{telemetry.Humidity, e.Humidity},
				{telemetry.Pressure, e.Pressure},
			} {
				if err := s.store(&c, v.ch, telemetry.Sample(v.val)); err != nil {
					return c, err
				}
			}
		}
	}

	if s.audio != nil {
		v, err := s.audio.Read()
		switch {
		case errors.Is(err, sensors.ErrNoSample):
			// bridge not streaming yet
		case err != nil:
			c.SensorErrors++
			s.log.Warn("sampler: audio read failed", "err", err)
		default:
			if err := s.store(&c, telemetry.Audio, v); err != nil {
				return c, err
			}
		}
	}

	s.cycles.Add(1)
	return c, nil
}

func (s *Sampler) store(c *Cycle, ch telemetry.Channel, v telemetry.Sample) error {
	err := s.producer.Store(ch, v)
	switch {
	case err == nil:
		c.Stored++
	case errors.Is(err, telemetry.ErrBufferFull):
		c.Dropped++
		n := s.overflows[ch].Add(1)
		s.log.Debug("sampler: buffer full, sample dropped", "channel", ch.String(), "dropped_total", n)
	default:
		return fmt.Errorf("sampler: store %s: %w", ch, err)
	}
	return nil
}
