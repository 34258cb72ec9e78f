// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package wire defines the payloads the node sends to its consumers: raw
// little-endian floats for BLE characteristics and JSON documents for MQTT,
// WebSocket and the archive.
package wire

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/relabs-tech/sensor_node/internal/telemetry"
)

// SampleSize is the length of an encoded sample.
const SampleSize = 4

// EncodeSample returns v as 4 little-endian IEEE-754 bytes.
func EncodeSample(v float32) []byte {
	b := make([]byte, SampleSize)
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
	return b
}

// DecodeSample is the inverse of EncodeSample.
func DecodeSample(b []byte) (float32, error) {
	if len(b) != SampleSize {
		return 0, fmt.Errorf("wire: sample payload is %d bytes, want %d", len(b), SampleSize)
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
}

// EncodePercent encodes a usage percentage the same way as a sample.
func EncodePercent(p float64) []byte {
	return EncodeSample(float32(p))
}

// Reading is one delivered sample.
type Reading struct {
	Channel   string    `json:"channel"`
	Unit      string    `json:"unit"`
	Value     float32   `json:"value"`
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"ts"`
}

// ChannelUsage describes one channel buffer.
type ChannelUsage struct {
	Channel   string  `json:"channel"`
	Occupancy int     `json:"occupancy"`
	Capacity  int     `json:"capacity"`
	Percent   float64 `json:"percent"`
	Read      int     `json:"read_cursor"`
	Write     int     `json:"write_cursor"`
	Overflows uint64  `json:"overflows"`
}

// Usage is a memory accountant report.
type Usage struct {
	Percent   float64        `json:"percent"`
	Channels  []ChannelUsage `json:"channels"`
	Timestamp time.Time      `json:"ts"`
}

// NewReading stamps a sample taken from ch.
func NewReading(ch telemetry.Channel, v telemetry.Sample, seq uint64, at time.Time) Reading {
	return Reading{
		Channel:   ch.String(),
		Unit:      ch.Unit(),
		Value:     v,
		Seq:       seq,
		Timestamp: at,
	}
}

// NewChannelUsage converts a store view of one channel.
func NewChannelUsage(c telemetry.ChannelUsage, overflows uint64) ChannelUsage {
	return ChannelUsage{
		Channel:   c.Channel.String(),
		Occupancy: c.Occupancy,
		Capacity:  c.Capacity,
		Percent:   c.Percent(),
		Read:      c.Read,
		Write:     c.Write,
		Overflows: overflows,
	}
}

// NewUsage converts a store snapshot. overflows may be nil.
func NewUsage(u telemetry.Usage, overflows func(telemetry.Channel) uint64, at time.Time) Usage {
	out := Usage{
		Percent:   u.Percent(),
		Channels:  make([]ChannelUsage, 0, len(u.Channels)),
		Timestamp: at,
	}
	for _, c := range u.Channels {
		var n uint64
		if overflows != nil {
			n = overflows(c.Channel)
		}
		out.Channels = append(out.Channels, NewChannelUsage(c, n))
	}
	return out
}

// Channel returns the named channel entry.
func (u Usage) Channel(name string) (ChannelUsage, bool) {
	for _, c := range u.Channels {
		if c.Channel == name {
			return c, true
		}
	}
	return ChannelUsage{}, false
}
