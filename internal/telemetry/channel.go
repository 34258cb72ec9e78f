// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

import (
	"fmt"
	"strings"
)

// Sample is one buffered measurement. Audio magnitudes (int16) are stored
// as float32, which represents them exactly.
type Sample = float32

// SampleSize is the number of bytes one Sample occupies in a ring slot.
const SampleSize = 4

// Channel identifies one measurement stream.
type Channel int

const (
	Temperature Channel = iota
	Humidity
	Pressure
	Audio

	// NumChannels is the number of defined channels. Keep it last.
	NumChannels int = iota
)

var channelNames = [NumChannels]string{
	Temperature: "temperature",
	Humidity:    "humidity",
	Pressure:    "pressure",
	Audio:       "audio",
}

// Channels returns every channel in declaration order.
func Channels() []Channel {
	out := make([]Channel, NumChannels)
	for i := range out {
		out[i] = Channel(i)
	}
	return out
}

// Valid reports whether c is a defined channel.
func (c Channel) Valid() bool {
	return c >= 0 && int(c) < NumChannels
}

func (c Channel) String() string {
	if !c.Valid() {
		return fmt.Sprintf("channel(%d)", int(c))
	}
	return channelNames[c]
}

// Unit returns the physical unit stored on the channel.
func (c Channel) Unit() string {
	switch c {
	case Temperature:
		return "°C"
	case Humidity:
		return "%RH"
	case Pressure:
		return "hPa"
	case Audio:
		return "raw"
	}
	return ""
}

// ParseChannel maps a channel name (case-insensitive) to its Channel.
func ParseChannel(s string) (Channel, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range channelNames {
		if n == name {
			return Channel(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownChannel, s)
}
