// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package display

import (
	"sync"

	"github.com/relabs-tech/sensor_node/internal/telemetry"
	"github.com/relabs-tech/sensor_node/internal/wire"
)

// State holds the latest telemetry received for the screen.
type State struct {
	mu sync.RWMutex

	last [telemetry.NumChannels]wire.Reading
	have [telemetry.NumChannels]bool

	usage     wire.Usage
	haveUsage bool
}

// Frame is a copy of State taken for one redraw.
type Frame struct {
	Last      [telemetry.NumChannels]wire.Reading
	Have      [telemetry.NumChannels]bool
	Usage     wire.Usage
	HaveUsage bool
}

// ApplyReading records r as the latest value of its channel.
// Readings of unknown channels are ignored.
func (s *State) ApplyReading(r wire.Reading) {
	ch, err := telemetry.ParseChannel(r.Channel)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.last[ch] = r
	s.have[ch] = true
	s.mu.Unlock()
}

func (s *State) ApplyUsage(u wire.Usage) {
	s.mu.Lock()
	s.usage = u
	s.haveUsage = true
	s.mu.Unlock()
}

func (s *State) Frame() Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Frame{
		Last:      s.last,
		Have:      s.have,
		Usage:     s.usage,
		HaveUsage: s.haveUsage,
	}
}
