// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/relabs-tech/sensor_node/internal/env"
)

// MockEnv produces a slowly drifting indoor climate for runs without hardware.
type MockEnv struct {
	mu    sync.Mutex
	start time.Time
	now   func() time.Time
}

// NewMockEnv returns a synthetic BME280.
func NewMockEnv() *MockEnv {
	return &MockEnv{start: time.Now(), now: time.Now}
}

func (m *MockEnv) Sense() (env.Sample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.now().Sub(m.start).Seconds()
	return env.Sample{
		Temperature: 22.5 + 1.5*math.Sin(2*math.Pi*t/300),
		Humidity:    45 + 5*math.Sin(2*math.Pi*t/600+1),
		Pressure:    1013.25 + 2*math.Sin(2*math.Pi*t/900),
	}, nil
}

func (m *MockEnv) Close() error { return nil }

// MockScalar produces a sine of the given amplitude plus a little noise.
type MockScalar struct {
	mu        sync.Mutex
	amplitude float64
	period    time.Duration
	noise     float64
	start     time.Time
	now       func() time.Time
}

// NewMockScalar returns a synthetic scalar source.
func NewMockScalar(amplitude float64, period time.Duration) *MockScalar {
	return &MockScalar{
		amplitude: amplitude,
		period:    period,
		noise:     amplitude * 0.05,
		start:     time.Now(),
		now:       time.Now,
	}
}

func (m *MockScalar) Read() (float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	phase := 2 * math.Pi * m.now().Sub(m.start).Seconds() / m.period.Seconds()
	v := m.amplitude*math.Sin(phase) + (rand.Float64()*2-1)*m.noise
	return float32(v), nil
}

func (m *MockScalar) Close() error { return nil }
