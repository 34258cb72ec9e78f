// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"

	"github.com/relabs-tech/sensor_node/internal/env"
)

// BME280 is the environmental sensor feeding the temperature, humidity and
// pressure channels.
type BME280 struct {
	bus i2c.BusCloser
	dev *bmxx80.Dev
}

// NewBME280 opens the named I2C bus ("" selects the first one) and
// initializes the sensor at addr.
func NewBME280(busName string, addr uint16) (*BME280, error) {
	if err := initHost(); err != nil {
		return nil, err
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("BME280 I2C open %q: %w", busName, err)
	}
	dev, err := bmxx80.NewI2C(bus, addr, &bmxx80.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("BME280 init at %#x: %w", addr, err)
	}
	slog.Info("sensors: BME280 initialized", "bus", bus.String(), "addr", fmt.Sprintf("%#x", addr))
	return &BME280{bus: bus, dev: dev}, nil
}

// Sense performs one forced measurement.
func (b *BME280) Sense() (env.Sample, error) {
	var e physic.Env
	if err := b.dev.Sense(&e); err != nil {
		return env.Sample{}, fmt.Errorf("BME280 sense: %w", err)
	}
	return env.FromPhysic(e), nil
}

// Close halts the sensor and releases the bus.
func (b *BME280) Close() error {
	return errors.Join(b.dev.Halt(), b.bus.Close())
}
