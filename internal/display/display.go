// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package display drives the SSD1306 OLED that shows the node's latest
// values and memory usage.
package display

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/host/v3"
)

// Drawer is the part of the OLED used to show a frame.
type Drawer interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// OLED is an SSD1306 on its own I2C bus handle.
type OLED struct {
	*ssd1306.Dev
	bus i2c.BusCloser
}

// Open initializes periph and the SSD1306 on busName ("" for the first bus).
func Open(busName string) (*OLED, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %q: %w", busName, err)
	}
	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("failed to initialize display: %w", err)
	}
	slog.Info("display: initialized", "bus", busName)
	return &OLED{Dev: dev, bus: bus}, nil
}

// Close blanks the panel and releases the bus.
func (o *OLED) Close() error {
	return errors.Join(o.Dev.Halt(), o.bus.Close())
}

// Show draws a prepared image on d.
func Show(d Drawer, img image.Image) error {
	return d.Draw(d.Bounds(), img, image.Point{})
}

// Run redraws s on d every interval until ctx is done.
func Run(ctx context.Context, d Drawer, s *State, every time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	logger.Info("display: starting update loop", "interval", every)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := Show(d, Render(s.Frame())); err != nil {
				logger.Warn("display: update failed", "err", err)
			}
		}
	}
}
