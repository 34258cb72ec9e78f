// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package notify runs the notification task: the only reader of the
// telemetry store. It drains each channel in bounded batches and hands the
// samples to every registered publisher. A sample taken from the store is
// delivered at most once; publisher failures are logged, never requeued.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/relabs-tech/sensor_node/internal/telemetry"
	"github.com/relabs-tech/sensor_node/internal/wire"
)

// Publisher is a downstream consumer of readings and usage reports.
type Publisher interface {
	Name() string
	PublishReading(wire.Reading) error
	PublishUsage(wire.Usage) error
}

// Consumer is the reading side of the store.
type Consumer interface {
	TryTake(ch telemetry.Channel) (telemetry.Sample, error)
}

// Snapshotter reports buffer usage.
type Snapshotter interface {
	Snapshot() (telemetry.Usage, error)
}

// Options tune a Notifier.
type Options struct {
	Batch     int                            // max samples taken per channel per tick
	Overflows func(telemetry.Channel) uint64 // optional drop counters
	Logger    *slog.Logger
	Now       func() time.Time
}

// Notifier owns the consumer role.
type Notifier struct {
	consumer   Consumer
	store      Snapshotter
	publishers []Publisher
	batch      int
	overflows  func(telemetry.Channel) uint64
	log        *slog.Logger
	now        func() time.Time

	seq [telemetry.NumChannels]uint64

	// failing marks publishers whose last call failed; repeats log at debug.
	failing map[string]bool
}

// New returns a notifier delivering to pubs.
func New(c Consumer, s Snapshotter, pubs []Publisher, opts Options) *Notifier {
	n := &Notifier{
		consumer:   c,
		store:      s,
		publishers: pubs,
		batch:      opts.Batch,
		overflows:  opts.Overflows,
		log:        opts.Logger,
		now:        opts.Now,
		failing:    make(map[string]bool),
	}
	if n.batch < 1 {
		n.batch = 1
	}
	if n.log == nil {
		n.log = slog.Default()
	}
	if n.now == nil {
		n.now = time.Now
	}
	return n
}

// Run drains every notifyEvery and reports usage every usageEvery until ctx
// is done or the store is closed.
func (n *Notifier) Run(ctx context.Context, notifyEvery, usageEvery time.Duration) error {
	n.log.Info("notify: started",
		"interval", notifyEvery,
		"usage_interval", usageEvery,
		"batch", n.batch,
		"publishers", len(n.publishers),
	)
	drain := time.NewTicker(notifyEvery)
	defer drain.Stop()
	usage := time.NewTicker(usageEvery)
	defer usage.Stop()

	for {
		select {
		case <-ctx.Done():
			n.log.Info("notify: stopped")
			return ctx.Err()
		case <-drain.C:
			if _, err := n.DrainOnce(); err != nil {
				return err
			}
		case <-usage.C:
			if err := n.PublishUsageOnce(); err != nil {
				return err
			}
		}
	}
}

// DrainOnce takes up to the batch size from every channel and publishes each
// sample. It returns the number of samples taken.
func (n *Notifier) DrainOnce() (int, error) {
	taken := 0
	for _, ch := range telemetry.Channels() {
		for i := 0; i < n.batch; i++ {
			v, err := n.consumer.TryTake(ch)
			if errors.Is(err, telemetry.ErrBufferEmpty) {
				break
			}
			if err != nil {
				return taken, fmt.Errorf("notify: take %s: %w", ch, err)
			}
			taken++
			n.seq[ch]++
			n.publishReading(wire.NewReading(ch, v, n.seq[ch], n.now()))
		}
	}
	return taken, nil
}

func (n *Notifier) publishReading(r wire.Reading) {
	for _, p := range n.publishers {
		n.report(p.Name(), p.PublishReading(r), "channel", r.Channel, "seq", r.Seq)
	}
}

// report logs the first failure of a publisher at warn and its recovery at
// info. Failures in between are logged at debug.
func (n *Notifier) report(name string, err error, attrs ...any) {
	was := n.failing[name]
	switch {
	case err == nil && was:
		n.failing[name] = false
		n.log.Info("notify: publisher recovered", "publisher", name)
	case err != nil && !was:
		n.failing[name] = true
		n.log.Warn("notify: publish failed", append([]any{"publisher", name, "err", err}, attrs...)...)
	case err != nil:
		n.log.Debug("notify: publish failed", append([]any{"publisher", name, "err", err}, attrs...)...)
	}
}

// PublishUsageOnce sends the current memory usage to every publisher.
func (n *Notifier) PublishUsageOnce() error {
	snap, err := n.store.Snapshot()
	if err != nil {
		return fmt.Errorf("notify: snapshot: %w", err)
	}
	u := wire.NewUsage(snap, n.overflows, n.now())
	n.log.Debug("notify: memory usage", "percent", u.Percent)
	for _, p := range n.publishers {
		n.report(p.Name(), p.PublishUsage(u), "report", "usage")
	}
	return nil
}

// Seq returns the last sequence number issued for ch.
func (n *Notifier) Seq(ch telemetry.Channel) uint64 {
	if !ch.Valid() {
		return 0
	}
	return n.seq[ch]
}
