// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package telemetry holds the per-channel sample buffers of the node and the
// memory accountant that reports how full they are.
//
// One Store owns one ringbuf.Ring per Channel. Writing is done through the
// Producer handle (the sampling task) and reading through the Consumer handle
// (the notification task); each handle can be claimed once per Store.
package telemetry

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/relabs-tech/sensor_node/internal/ringbuf"
)

// Default sizing: 8 MiB of sample memory shared evenly by the channels.
const (
	DefaultBudgetBytes = 8 * 1024 * 1024
	DefaultCapacity    = 2000
)

var (
	ErrBufferFull            = ringbuf.ErrBufferFull
	ErrBufferEmpty           = ringbuf.ErrBufferEmpty
	ErrInvalidCapacity       = ringbuf.ErrInvalidCapacity
	ErrCapacityExceedsBudget = errors.New("telemetry: capacity exceeds per-channel memory budget")
	ErrStoreClosed           = errors.New("telemetry: store closed")
	ErrRoleClaimed           = errors.New("telemetry: role already claimed")
	ErrUnknownChannel        = errors.New("telemetry: unknown channel")
)

// Capacities maps every channel to its ring capacity in samples.
type Capacities [NumChannels]int

// DefaultCapacities gives every channel DefaultCapacity slots.
func DefaultCapacities() Capacities {
	var c Capacities
	for i := range c {
		c[i] = DefaultCapacity
	}
	return c
}

// ValidateCapacities checks every channel against an even share of budgetBytes.
func ValidateCapacities(caps Capacities, budgetBytes int64) error {
	if budgetBytes <= 0 {
		return fmt.Errorf("telemetry: memory budget must be positive, got %d", budgetBytes)
	}
	share := budgetBytes / int64(NumChannels)
	for _, ch := range Channels() {
		c := caps[ch]
		if c < 1 {
			return fmt.Errorf("%s: %w (got %d)", ch, ErrInvalidCapacity, c)
		}
		if int64(c)*SampleSize > share {
			return fmt.Errorf("%s: %w (%d samples x %d bytes > %d bytes)",
				ch, ErrCapacityExceedsBudget, c, SampleSize, share)
		}
	}
	return nil
}

// Store owns the channel rings.
type Store struct {
	rings [NumChannels]*ringbuf.Ring[Sample]

	closed          atomic.Bool
	mu              sync.Mutex
	producerClaimed bool
	consumerClaimed bool
}

// NewStore validates caps against budgetBytes and allocates every ring.
func NewStore(caps Capacities, budgetBytes int64) (*Store, error) {
	if err := ValidateCapacities(caps, budgetBytes); err != nil {
		return nil, err
	}
	s := &Store{}
	for _, ch := range Channels() {
		r, err := ringbuf.New[Sample](caps[ch])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ch, err)
		}
		s.rings[ch] = r
	}
	return s, nil
}

// Close marks the store closed. Calling it more than once is a no-op.
// The rings are left to the garbage collector once no handle references them.
func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}

// Closed reports whether Close has been called.
func (s *Store) Closed() bool {
	return s.closed.Load()
}

func (s *Store) ring(ch Channel) (*ringbuf.Ring[Sample], error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	if !ch.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownChannel, int(ch))
	}
	return s.rings[ch], nil
}

// Producer claims the writing role.
func (s *Store) Producer() (*Producer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	if s.producerClaimed {
		return nil, fmt.Errorf("producer: %w", ErrRoleClaimed)
	}
	s.producerClaimed = true
	return &Producer{s: s}, nil
}

// Consumer claims the reading role.
func (s *Store) Consumer() (*Consumer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	if s.consumerClaimed {
		return nil, fmt.Errorf("consumer: %w", ErrRoleClaimed)
	}
	s.consumerClaimed = true
	return &Consumer{s: s}, nil
}

// Producer is the single writer of every channel.
type Producer struct {
	s *Store
}

// Store appends v to the channel ring. ErrBufferFull means v was dropped.
func (p *Producer) Store(ch Channel, v Sample) error {
	r, err := p.s.ring(ch)
	if err != nil {
		return err
	}
	return r.Store(v)
}

// Consumer is the single reader of every channel.
type Consumer struct {
	s *Store
}

// TryTake removes the oldest sample of the channel. ErrBufferEmpty is not a
// failure; it means there is nothing to deliver right now.
func (c *Consumer) TryTake(ch Channel) (Sample, error) {
	r, err := c.s.ring(ch)
	if err != nil {
		return 0, err
	}
	return r.TryTake()
}

// Occupancy returns the number of unread samples on ch.
func (s *Store) Occupancy(ch Channel) (int, error) {
	r, err := s.ring(ch)
	if err != nil {
		return 0, err
	}
	return r.Occupancy(), nil
}

// Capacity returns the slot count of ch.
func (s *Store) Capacity(ch Channel) (int, error) {
	r, err := s.ring(ch)
	if err != nil {
		return 0, err
	}
	return r.Capacity(), nil
}
