// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package telemetry

// ChannelUsage is a point-in-time view of one ring.
type ChannelUsage struct {
	Channel   Channel
	Occupancy int
	Capacity  int
	Read      int
	Write     int
}

// Percent returns occupancy as a percentage of capacity.
func (u ChannelUsage) Percent() float64 {
	if u.Capacity == 0 {
		return 0
	}
	return float64(u.Occupancy) / float64(u.Capacity) * 100
}

// Usage is a snapshot of every channel. Channels are read one after the
// other, so the snapshot may mix instants while the tasks are running.
type Usage struct {
	Channels [NumChannels]ChannelUsage
}

// Percent is the aggregate fill level: total occupancy over total capacity.
func (u Usage) Percent() float64 {
	var used, total int
	for _, c := range u.Channels {
		used += c.Occupancy
		total += c.Capacity
	}
	if total == 0 {
		return 0
	}
	p := float64(used) / float64(total) * 100
	if p > 100 {
		p = 100
	}
	return p
}

// Snapshot reads occupancy, capacity and cursors of every channel.
func (s *Store) Snapshot() (Usage, error) {
	var u Usage
	if s.closed.Load() {
		return u, ErrStoreClosed
	}
	for _, ch := range Channels() {
		r := s.rings[ch]
		rd, wr := r.Cursors()
		u.Channels[ch] = ChannelUsage{
			Channel:   ch,
			Occupancy: r.Occupancy(),
			Capacity:  r.Capacity(),
			Read:      rd,
			Write:     wr,
		}
	}
	return u, nil
}

// UsagePercent returns the aggregate fill level of the store in [0, 100].
// It is recomputed on every call. A closed store reports 0.
func (s *Store) UsagePercent() float64 {
	u, err := s.Snapshot()
	if err != nil {
		return 0
	}
	return u.Percent()
}

// ChannelUsagePercent returns the fill level of a single channel.
func (s *Store) ChannelUsagePercent(ch Channel) (float64, error) {
	r, err := s.ring(ch)
	if err != nil {
		return 0, err
	}
	return ChannelUsage{Occupancy: r.Occupancy(), Capacity: r.Capacity()}.Percent(), nil
}
