// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package ringbuf implements a fixed-capacity single-producer/single-consumer
// circular FIFO.
//
// Assumptions:
//   - Exactly one goroutine calls Store and exactly one (possibly different)
//     goroutine calls TryTake. Any goroutine may call the read-only queries.
//   - Capacity is fixed at construction; the backing slice is allocated once.
//   - A full ring rejects new values (ErrBufferFull), it never overwrites unread data.
//
// The producer owns the write counter and the consumer owns the read counter.
// Both are monotonic; slot index = counter % capacity and count = write - read.
// Neither side writes the other's counter, so no mutex is needed.
package ringbuf

import (
	"errors"
	"sync/atomic"
)

var (
	// ErrBufferFull is returned by Store when every slot holds unread data.
	ErrBufferFull = errors.New("ringbuf: buffer full")
	// ErrBufferEmpty is returned by TryTake when no unread data is available.
	ErrBufferEmpty = errors.New("ringbuf: buffer empty")
	// ErrInvalidCapacity is returned by New for capacities below one.
	ErrInvalidCapacity = errors.New("ringbuf: capacity must be >= 1")
)

// Ring is a bounded SPSC queue of T.
type Ring[T any] struct {
	_    [64]byte      // cache-line isolation (consumer cursor)
	read atomic.Uint64 // consumer cursor, total successful takes

	_     [56]byte      // cache-line isolation (producer cursor)
	write atomic.Uint64 // producer cursor, total successful stores

	_ [56]byte

	capacity uint64
	buf      []T
}

// New allocates a ring holding up to capacity values.
func New[T any](capacity int) (*Ring[T], error) {
	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}
	return &Ring[T]{
		capacity: uint64(capacity),
		buf:      make([]T, capacity),
	}, nil
}

// Store appends v. It returns ErrBufferFull, leaving the ring untouched,
// when the ring already holds Capacity() unread values.
// Producer side only.
func (r *Ring[T]) Store(v T) error {
	w := r.write.Load()
	if w-r.read.Load() >= r.capacity {
		return ErrBufferFull
	}
	r.buf[w%r.capacity] = v
	// Publishing the new cursor makes the slot visible to the consumer.
	r.write.Store(w + 1)
	return nil
}

// TryTake removes and returns the oldest unread value. It returns
// ErrBufferEmpty and the zero value, leaving the ring untouched, when
// nothing is buffered.
// Consumer side only.
func (r *Ring[T]) TryTake() (T, error) {
	var zero T
	rd := r.read.Load()
	if r.write.Load() == rd {
		return zero, ErrBufferEmpty
	}
	slot := rd % r.capacity
	v := r.buf[slot]
	r.buf[slot] = zero
	// The slot is handed back to the producer only after it has been copied out.
	r.read.Store(rd + 1)
	return v, nil
}

// Occupancy returns the number of unread values.
//
// The read cursor is loaded before the write cursor so an observer that is
// neither producer nor consumer never sees a negative count; the result is
// clamped to Capacity() in case the read cursor moved in between.
func (r *Ring[T]) Occupancy() int {
	rd := r.read.Load()
	w := r.write.Load()
	n := w - rd
	if n > r.capacity {
		n = r.capacity
	}
	return int(n)
}

// Capacity returns the fixed number of slots.
func (r *Ring[T]) Capacity() int {
	return int(r.capacity)
}

// Cursors returns the read and write slot indices, both in [0, Capacity()).
func (r *Ring[T]) Cursors() (read, write int) {
	return int(r.read.Load() % r.capacity), int(r.write.Load() % r.capacity)
}

// Full reports whether Store would currently fail.
func (r *Ring[T]) Full() bool {
	return r.Occupancy() == int(r.capacity)
}

// Empty reports whether TryTake would currently fail.
func (r *Ring[T]) Empty() bool {
	return r.Occupancy() == 0
}
