// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors wraps the node's measurement hardware behind two small
// read contracts. Drivers never retry; a failed read is reported to the
// caller, which decides whether to skip the cycle.
package sensors

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/host/v3"

	"github.com/relabs-tech/sensor_node/internal/env"
)

// ErrNoSample is returned by a reader that has not produced a value yet.
var ErrNoSample = errors.New("sensors: no sample available")

// EnvReader reads temperature, humidity and pressure in one transaction.
type EnvReader interface {
	Sense() (env.Sample, error)
	Close() error
}

// ScalarReader reads one scalar measurement.
type ScalarReader interface {
	Read() (float32, error)
	Close() error
}

var (
	hostOnce    sync.Once
	hostInitErr error
)

// initHost loads the periph host drivers once per process.
func initHost() error {
	hostOnce.Do(func() {
		if _, err := host.Init(); err != nil {
			hostInitErr = fmt.Errorf("periph host init: %w", err)
		}
	})
	return hostInitErr
}
