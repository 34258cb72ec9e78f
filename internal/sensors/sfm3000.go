// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
)

// SFM3000 constants.
const (
	SFM3000DefaultAddr uint16 = 0x40

	sfm3000StartMeasurement = 0x1000
	sfm3000OffsetFlow       = 32000
	sfm3000ScaleFlow        = 142.8
)

// ErrCRC is returned when a frame fails its checksum.
var ErrCRC = errors.New("sensors: CRC mismatch")

// SFM3000 is a Sensirion mass flow meter. Read returns flow in slm.
type SFM3000 struct {
	mu      sync.Mutex
	dev     i2c.Dev
	closer  func() error
	started bool
}

// NewSFM3000 opens the named I2C bus and starts continuous measurement.
func NewSFM3000(busName string, addr uint16) (*SFM3000, error) {
	if err := initHost(); err != nil {
		return nil, err
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("SFM3000 I2C open %q: %w", busName, err)
	}
	s, err := NewSFM3000OnBus(bus, addr)
	if err != nil {
		bus.Close()
		return nil, err
	}
	s.closer = bus.Close
	slog.Info("sensors: SFM3000 initialized", "bus", bus.String(), "addr", fmt.Sprintf("%#x", addr))
	return s, nil
}

// NewSFM3000OnBus uses an already opened bus. The bus is not closed by Close.
func NewSFM3000OnBus(bus i2c.Bus, addr uint16) (*SFM3000, error) {
	s := &SFM3000{dev: i2c.Dev{Bus: bus, Addr: addr}}
	if err := s.start(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SFM3000) start() error {
	cmd := []byte{sfm3000StartMeasurement >> 8, sfm3000StartMeasurement & 0xFF}
	if err := s.dev.Tx(cmd, nil); err != nil {
		return fmt.Errorf("SFM3000 start measurement: %w", err)
	}
	s.started = true
	return nil
}

// Read fetches one flow frame.
func (s *SFM3000) Read() (float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		if err := s.start(); err != nil {
			return 0, err
		}
	}
	var buf [3]byte
	if err := s.dev.Tx(nil, buf[:]); err != nil {
		return 0, fmt.Errorf("SFM3000 read: %w", err)
	}
	if crc8(buf[:2]) != buf[2] {
		return 0, fmt.Errorf("SFM3000 frame % x: %w", buf, ErrCRC)
	}
	raw := uint16(buf[0])<<8 | uint16(buf[1])
	return flowFromRaw(raw), nil
}

func flowFromRaw(raw uint16) float32 {
	return (float32(raw) - sfm3000OffsetFlow) / sfm3000ScaleFlow
}

// crc8 is the Sensirion checksum: polynomial 0x31, init 0x00.
func crc8(data []byte) byte {
	var crc byte
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x31
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// Close releases the bus when NewSFM3000 opened it.
func (s *SFM3000) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
