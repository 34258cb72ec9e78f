// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/relabs-tech/sensor_node/internal/telemetry"
	"github.com/relabs-tech/sensor_node/internal/wire"
)

type recorder struct {
	name string
	err  error

	mu       sync.Mutex
	readings []wire.Reading
	usages   []wire.Usage
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) PublishReading(rd wire.Reading) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readings = append(r.readings, rd)
	return r.err
}

func (r *recorder) PublishUsage(u wire.Usage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.usages = append(r.usages, u)
	return r.err
}

func (r *recorder) count() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.readings), len(r.usages)
}

func setup(t *testing.T, capacity int) (*telemetry.Store, *telemetry.Producer, *telemetry.Consumer) {
	t.Helper()
	var caps telemetry.Capacities
	for i := range caps {
		caps[i] = capacity
	}
	s, err := telemetry.NewStore(caps, telemetry.DefaultBudgetBytes)
	if err != nil {
		t.Fatal(err)
	}
	p, _ := s.Producer()
	c, _ := s.Consumer()
	return s, p, c
}

func fixedNow() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestDrainOnceDeliversInOrderWithSequence(t *testing.T) {
	s, p, c := setup(t, 8)
	for _, v := range []float32{1, 2, 3} {
		_ = p.Store(telemetry.Temperature, v)
	}
	_ = p.Store(telemetry.Audio, -5)

	rec := &recorder{name: "rec"}
	n := New(c, s, []Publisher{rec}, Options{Batch: 10, Logger: quiet(), Now: fixedNow})

	taken, err := n.DrainOnce()
	if err != nil {
		t.Fatalf("DrainOnce: %v", err)
	}
	if taken != 4 {
		t.Fatalf("taken = %d, want 4", taken)
	}
	want := []wire.Reading{
		{Channel: "temperature", Unit: "°C", Value: 1, Seq: 1, Timestamp: fixedNow()},
		{Channel: "temperature", Unit: "°C", Value: 2, Seq: 2, Timestamp: fixedNow()},
		{Channel: "temperature", Unit: "°C", Value: 3, Seq: 3, Timestamp: fixedNow()},
		{Channel: "audio", Unit: "raw", Value: -5, Seq: 1, Timestamp: fixedNow()},
	}
	if len(rec.readings) != len(want) {
		t.Fatalf("got %d readings, want %d", len(rec.readings), len(want))
	}
	for i := range want {
		if rec.readings[i] != want[i] {
			t.Errorf("reading %d = %+v, want %+v", i, rec.readings[i], want[i])
		}
	}

	// Empty channels are skipped quietly.
	taken, err = n.DrainOnce()
	if err != nil || taken != 0 {
		t.Fatalf("second DrainOnce = %d, %v", taken, err)
	}
}

func TestDrainOnceRespectsBatch(t *testing.T) {
	s, p, c := setup(t, 16)
	for i := 0; i < 10; i++ {
		_ = p.Store(telemetry.Pressure, float32(i))
	}
	n := New(c, s, nil, Options{Batch: 4, Logger: quiet()})

	for _, want := range []int{4, 4, 2, 0} {
		got, err := n.DrainOnce()
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Fatalf("DrainOnce = %d, want %d", got, want)
		}
	}
	if n.Seq(telemetry.Pressure) != 10 {
		t.Fatalf("Seq = %d, want 10", n.Seq(telemetry.Pressure))
	}
}

func TestFailingPublisherDoesNotBlockOthers(t *testing.T) {
	s, p, c := setup(t, 4)
	_ = p.Store(telemetry.Humidity, 40)

	bad := &recorder{name: "bad", err: errors.New("broker down")}
	good := &recorder{name: "good"}
	n := New(c, s, []Publisher{bad, good}, Options{Batch: 4, Logger: quiet()})

	if _, err := n.DrainOnce(); err != nil {
		t.Fatalf("DrainOnce: %v", err)
	}
	if r, _ := good.count(); r != 1 {
		t.Fatalf("good publisher got %d readings", r)
	}
	// The failed delivery is not retried.
	if _, err := n.DrainOnce(); err != nil {
		t.Fatal(err)
	}
	if r, _ := bad.count(); r != 1 {
		t.Fatalf("bad publisher saw %d attempts, want 1", r)
	}
	if occ, _ := s.Occupancy(telemetry.Humidity); occ != 0 {
		t.Fatalf("sample requeued: occupancy %d", occ)
	}
}

func TestPublishUsageOnce(t *testing.T) {
	s, p, c := setup(t, 25)
	for i := 0; i < 25; i++ {
		_ = p.Store(telemetry.Temperature, 20)
	}
	rec := &recorder{name: "rec"}
	n := New(c, s, []Publisher{rec}, Options{
		Logger:    quiet(),
		Now:       fixedNow,
		Overflows: func(ch telemetry.Channel) uint64 { return uint64(ch) },
	})

	if err := n.PublishUsageOnce(); err != nil {
		t.Fatal(err)
	}
	if len(rec.usages) != 1 {
		t.Fatalf("got %d usage reports", len(rec.usages))
	}
	u := rec.usages[0]
	if u.Percent != 25 {
		t.Errorf("Percent = %v, want 25", u.Percent)
	}
	if temp, _ := u.Channel("temperature"); temp.Percent != 100 {
		t.Errorf("temperature = %+v", temp)
	}
	if audio, _ := u.Channel("audio"); audio.Overflows != 3 {
		t.Errorf("audio overflows = %d, want 3", audio.Overflows)
	}
}

func TestRunReturnsWhenStoreCloses(t *testing.T) {
	s, _, c := setup(t, 4)
	n := New(c, s, nil, Options{Logger: quiet()})
	_ = s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := n.Run(ctx, time.Millisecond, time.Hour); !errors.Is(err, telemetry.ErrStoreClosed) {
		t.Fatalf("Run error = %v, want ErrStoreClosed", err)
	}
}

func TestRunDeliversUntilCancelled(t *testing.T) {
	s, p, c := setup(t, 64)
	rec := &recorder{name: "rec"}
	n := New(c, s, []Publisher{rec}, Options{Batch: 8, Logger: quiet()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx, time.Millisecond, 5*time.Millisecond) }()

	for i := 0; i < 20; i++ {
		_ = p.Store(telemetry.Audio, float32(i))
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		r, u := rec.count()
		if r == 20 && u > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("delivered %d readings, %d usage reports", r, u)
		}
		time.Sleep(2 * time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v", err)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	var prev uint64
	for _, r := range rec.readings {
		if r.Seq != prev+1 {
			t.Fatalf("sequence gap: %d after %d", r.Seq, prev)
		}
		prev = r.Seq
	}
}

func TestPublisherFailureLoggedOnce(t *testing.T) {
	_, p, c := setup(t, 16)
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelInfo}))
	down := &recorder{name: "down", err: errors.New("not connected")}
	n := New(c, nil, []Publisher{down}, Options{Batch: 16, Logger: logger, Now: fixedNow})

	for i := range 5 {
		if err := p.Store(telemetry.Audio, float32(i)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := n.DrainOnce(); err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(logs.String(), "level=WARN"); got != 1 {
		t.Fatalf("warnings = %d; want 1\n%s", got, logs.String())
	}

	down.mu.Lock()
	down.err = nil
	down.mu.Unlock()
	if err := p.Store(telemetry.Audio, 9); err != nil {
		t.Fatal(err)
	}
	if _, err := n.DrainOnce(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(logs.String(), "publisher recovered") {
		t.Fatalf("recovery not logged:\n%s", logs.String())
	}
}
