// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package display

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/sensor_node/internal/telemetry"
	"github.com/relabs-tech/sensor_node/internal/wire"
)

type fakePanel struct {
	mu     sync.Mutex
	frames int
}

func (f *fakePanel) Bounds() image.Rectangle { return image.Rect(0, 0, Width, Height) }

func (f *fakePanel) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	f.mu.Lock()
	f.frames++
	f.mu.Unlock()
	return nil
}

func (f *fakePanel) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frames
}

func litPixels(img *image1bit.VerticalLSB, r image.Rectangle) int {
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if img.BitAt(x, y) == image1bit.On {
				n++
			}
		}
	}
	return n
}

func TestStateKeepsLatestPerChannel(t *testing.T) {
	var s State
	s.ApplyReading(wire.Reading{Channel: "temperature", Value: 21, Seq: 1})
	s.ApplyReading(wire.Reading{Channel: "temperature", Value: 22, Seq: 2})
	s.ApplyReading(wire.Reading{Channel: "gps", Value: 1})

	f := s.Frame()
	if !f.Have[telemetry.Temperature] || f.Last[telemetry.Temperature].Seq != 2 {
		t.Errorf("temperature = %+v", f.Last[telemetry.Temperature])
	}
	if f.Have[telemetry.Audio] || f.HaveUsage {
		t.Error("unexpected data in frame")
	}

	s.ApplyUsage(wire.Usage{Percent: 40})
	if f := s.Frame(); !f.HaveUsage || f.Usage.Percent != 40 {
		t.Errorf("usage = %+v", f.Usage)
	}
}

func TestRenderUsageBar(t *testing.T) {
	barInside := image.Rect(1, barTop+1, Width-1, barBottom)
	inner := barInside.Dx() * barInside.Dy()

	tests := []struct {
		name    string
		percent float64
		want    int
	}{
		{"empty", 0, 0},
		{"half", 50, 63 * barInside.Dy()},
		{"full", 100, inner},
		{"clamped", 250, inner},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := Render(Frame{Usage: wire.Usage{Percent: tt.percent}, HaveUsage: true})
			if got := litPixels(img, barInside); got != tt.want {
				t.Errorf("lit pixels = %d; want %d", got, tt.want)
			}
		})
	}
}

func TestRenderWaitingHasNoBar(t *testing.T) {
	img := Render(Frame{})
	if n := litPixels(img, image.Rect(0, barTop, Width, Height)); n != 0 {
		t.Errorf("bar area has %d lit pixels", n)
	}
	if n := litPixels(img, img.Bounds()); n == 0 {
		t.Error("waiting screen is blank")
	}
}

func TestRunRedraws(t *testing.T) {
	var s State
	s.ApplyUsage(wire.Usage{Percent: 10})
	panel := &fakePanel{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, panel, &s, time.Millisecond, nil) }()

	deadline := time.After(2 * time.Second)
	for panel.count() < 3 {
		select {
		case <-deadline:
			t.Fatal("display was not redrawn")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}
