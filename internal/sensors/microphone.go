// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	serial "github.com/jacobsa/go-serial/serial"
)

// Microphone reads audio magnitudes from an I2S microphone behind a serial
// bridge. The bridge prints one signed 16-bit magnitude per line; Read
// returns the most recent one.
type Microphone struct {
	port io.ReadCloser

	latest atomic.Int32
	seen   atomic.Bool
	lines  atomic.Uint64
	bad    atomic.Uint64

	done      chan struct{}
	closeOnce sync.Once
	readErr   atomic.Value // error
}

// NewMicrophone opens the serial bridge on portName.
func NewMicrophone(portName string, baudRate int) (*Microphone, error) {
	opts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              uint(baudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("microphone serial open %s: %w", portName, err)
	}
	slog.Info("sensors: microphone bridge opened", "port", portName, "baud", baudRate)
	return NewMicrophoneFromReader(port), nil
}

// NewMicrophoneFromReader reads bridge lines from r until it fails or is closed.
func NewMicrophoneFromReader(r io.ReadCloser) *Microphone {
	m := &Microphone{port: r, done: make(chan struct{})}
	go m.readLoop()
	return m
}

func (m *Microphone) readLoop() {
	defer close(m.done)
	scanner := bufio.NewScanner(m.port)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseInt(line, 10, 16)
		if err != nil {
			// partial lines are common right after the port opens
			m.bad.Add(1)
			continue
		}
		m.latest.Store(int32(v))
		m.seen.Store(true)
		m.lines.Add(1)
	}
	if err := scanner.Err(); err != nil {
		m.readErr.Store(err)
		slog.Warn("sensors: microphone bridge read failed", "err", err)
	}
}

// Read returns the latest magnitude. It fails with ErrNoSample until the
// bridge has delivered a valid line, and with the read error once the
// bridge stream has ended.
func (m *Microphone) Read() (float32, error) {
	select {
	case <-m.done:
		if err, ok := m.readErr.Load().(error); ok {
			return 0, fmt.Errorf("microphone: %w", err)
		}
		return 0, fmt.Errorf("microphone: %w", io.EOF)
	default:
	}
	if !m.seen.Load() {
		return 0, ErrNoSample
	}
	return float32(m.latest.Load()), nil
}

// Stats returns the number of parsed and rejected lines.
func (m *Microphone) Stats() (parsed, rejected uint64) {
	return m.lines.Load(), m.bad.Load()
}

// Close closes the port and waits for the reader goroutine.
func (m *Microphone) Close() error {
	var err error
	m.closeOnce.Do(func() {
		err = m.port.Close()
		<-m.done
	})
	return err
}
