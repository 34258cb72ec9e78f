// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sampler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/relabs-tech/sensor_node/internal/env"
	"github.com/relabs-tech/sensor_node/internal/sensors"
	"github.com/relabs-tech/sensor_node/internal/telemetry"
)

type fakeEnv struct {
	sample env.Sample
	err    error
	calls  int
}

func (f *fakeEnv) Sense() (env.Sample, error) {
	f.calls++
	return f.sample, f.err
}

func (f *fakeEnv) Close() error { return nil }

type fakeScalar struct {
	v   float32
	err error
}

func (f *fakeScalar) Read() (float32, error) { return f.v, f.err }
func (f *fakeScalar) Close() error           { return nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStore(t *testing.T, capacity int) (*telemetry.Store, *telemetry.Producer, *telemetry.Consumer) {
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

func TestSampleOnceStoresEveryChannel(t *testing.T) {
	_, p, c := newStore(t, 4)
	e := &fakeEnv{sample: env.Sample{Temperature: 21.5, Humidity: -1, Pressure: 1013.25}}
	s := New(p, e, &fakeScalar{v: -120}, quietLogger())

	cycle, err := s.SampleOnce()
	if err != nil {
		t.Fatalf("SampleOnce: %v", err)
	}
	if cycle.Stored != 4 || cycle.Dropped != 0 || cycle.SensorErrors != 0 {
		t.Fatalf("cycle = %+v", cycle)
	}

	want := map[telemetry.Channel]float32{
		telemetry.Temperature: 21.5,
		telemetry.Humidity:    -1,
		telemetry.Pressure:    1013.25,
		telemetry.Audio:       -120,
	}
	for ch, w := range want {
		got, err := c.TryTake(ch)
		if err != nil {
			t.Fatalf("%s: %v", ch, err)
		}
		if got != w {
			t.Errorf("%s = %v, want %v", ch, got, w)
		}
	}
}

func TestSensorErrorSkipsOnlyThatSensor(t *testing.T) {
	st, p, _ := newStore(t, 4)
	e := &fakeEnv{err: errors.New("i2c nack")}
	s := New(p, e, &fakeScalar{v: 3}, quietLogger())

	cycle, err := s.SampleOnce()
	if err != nil {
		t.Fatalf("SampleOnce: %v", err)
	}
	if cycle.SensorErrors != 1 || cycle.Stored != 1 {
		t.Fatalf("cycle = %+v", cycle)
	}
	if n, _ := st.Occupancy(telemetry.Temperature); n != 0 {
		t.Errorf("temperature occupancy = %d after failed read", n)
	}
	if n, _ := st.Occupancy(telemetry.Audio); n != 1 {
		t.Errorf("audio occupancy = %d, want 1", n)
	}
}

func TestAudioNotReadyIsNotAnError(t *testing.T) {
	_, p, _ := newStore(t, 4)
	s := New(p, nil, &fakeScalar{err: sensors.ErrNoSample}, quietLogger())
	cycle, err := s.SampleOnce()
	if err != nil || cycle != (Cycle{}) {
		t.Fatalf("cycle = %+v, err = %v", cycle, err)
	}
}

func TestFullBufferDropsAndCounts(t *testing.T) {
	_, p, c := newStore(t, 2)
	e := &fakeEnv{}
	s := New(p, e, nil, quietLogger())

	for i := 0; i < 5; i++ {
		e.sample.Temperature = float64(i)
		if _, err := s.SampleOnce(); err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
	}
	if got := s.Overflows(telemetry.Temperature); got != 3 {
		t.Fatalf("temperature overflows = %d, want 3", got)
	}
	if got := s.Overflows(telemetry.Audio); got != 0 {
		t.Fatalf("audio overflows = %d, want 0", got)
	}
	// Oldest values survive; newer ones were dropped.
	for _, want := range []float32{0, 1} {
		got, err := c.TryTake(telemetry.Temperature)
		if err != nil || got != want {
			t.Fatalf("TryTake = %v, %v; want %v", got, err, want)
		}
	}
	if s.Cycles() != 5 {
		t.Fatalf("Cycles = %d", s.Cycles())
	}
}

func TestRunStopsOnClosedStore(t *testing.T) {
	st, p, _ := newStore(t, 8)
	s := New(p, &fakeEnv{}, nil, quietLogger())
	_ = st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.Run(ctx, time.Millisecond)
	if !errors.Is(err, telemetry.ErrStoreClosed) {
		t.Fatalf("Run error = %v, want ErrStoreClosed", err)
	}
}

func TestRunStopsOnContext(t *testing.T) {
	_, p, _ := newStore(t, 1000)
	e := &fakeEnv{}
	s := New(p, e, nil, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, time.Millisecond) }()

	deadline := time.After(2 * time.Second)
	for s.Cycles() < 3 {
		select {
		case <-deadline:
			t.Fatal("sampler did not tick")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
}
