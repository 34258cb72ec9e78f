// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package mqtt carries node telemetry over an MQTT broker. Readings go to
// <prefix>/<channel> and memory usage reports to <prefix>/memory.
package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/relabs-tech/sensor_node/internal/wire"
)

const memoryTopic = "memory"

// ReadingTopic returns the topic carrying readings of channel.
func ReadingTopic(prefix, channel string) string {
	return prefix + "/" + channel
}

// MemoryTopic returns the topic carrying usage reports.
func MemoryTopic(prefix string) string {
	return prefix + "/" + memoryTopic
}

// Sender is the publishing half of Client.
type Sender interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// Publisher sends notifier output to the broker.
type Publisher struct {
	sender Sender
	prefix string
}

// NewPublisher returns a publisher writing below prefix.
func NewPublisher(s Sender, prefix string) *Publisher {
	return &Publisher{sender: s, prefix: prefix}
}

func (p *Publisher) Name() string { return "mqtt" }

// PublishReading sends r at QoS 0; readings are frequent and superseded quickly.
func (p *Publisher) PublishReading(r wire.Reading) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal reading: %w", err)
	}
	return p.sender.Publish(ReadingTopic(p.prefix, r.Channel), 0, false, data)
}

// PublishUsage sends u at QoS 1, retained so late subscribers see the last report.
func (p *Publisher) PublishUsage(u wire.Usage) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshal usage: %w", err)
	}
	return p.sender.Publish(MemoryTopic(p.prefix), 1, true, data)
}

// Handlers receive decoded telemetry. Either may be nil.
type Handlers struct {
	OnReading func(wire.Reading)
	OnUsage   func(wire.Usage)
}

// Dispatch decodes one message below prefix and calls the matching handler.
func (h Handlers) Dispatch(prefix, topic string, payload []byte) error {
	leaf, ok := strings.CutPrefix(topic, prefix+"/")
	if !ok || leaf == "" || strings.Contains(leaf, "/") {
		return fmt.Errorf("unexpected topic %q", topic)
	}
	if leaf == memoryTopic {
		var u wire.Usage
		if err := json.Unmarshal(payload, &u); err != nil {
			return fmt.Errorf("usage unmarshal: %w", err)
		}
		if h.OnUsage != nil {
			h.OnUsage(u)
		}
		return nil
	}
	var r wire.Reading
	if err := json.Unmarshal(payload, &r); err != nil {
		return fmt.Errorf("reading unmarshal: %w", err)
	}
	if r.Channel == "" {
		r.Channel = leaf
	}
	if h.OnReading != nil {
		h.OnReading(r)
	}
	return nil
}

// SubscribeTelemetry subscribes c to every node topic below prefix.
func SubscribeTelemetry(c *Client, prefix string, h Handlers) error {
	return c.Subscribe(prefix+"/+", func(topic string, payload []byte) {
		if err := h.Dispatch(prefix, topic, payload); err != nil {
			c.logger.Warn("mqtt: dropped message", "topic", topic, "err", err)
		}
	})
}
