// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package ble exposes the node as a GATT peripheral: Device Information,
// Current Time and one service per measurement channel carrying a sample
// stream and a memory status characteristic.
package ble

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/relabs-tech/sensor_node/internal/telemetry"
	"github.com/relabs-tech/sensor_node/internal/wire"
)

// valueWriter updates a characteristic value and notifies subscribers.
type valueWriter interface {
	Write(p []byte) (int, error)
}

// Peripheral is the node's GATT server.
type Peripheral struct {
	adapter *bluetooth.Adapter
	adv     *bluetooth.Advertisement
	name    string
	logger  *slog.Logger

	mu     sync.Mutex
	stream [telemetry.NumChannels]valueWriter
	memory [telemetry.NumChannels]valueWriter
}

// NewPeripheral prepares a peripheral on the named HCI adapter.
func NewPeripheral(adapterID, deviceName string, logger *slog.Logger) *Peripheral {
	if logger == nil {
		logger = slog.Default()
	}
	return &Peripheral{
		adapter: openAdapter(adapterID),
		name:    deviceName,
		logger:  logger,
	}
}

// Start enables the adapter, registers every service and starts advertising.
// The Current Time characteristic is fixed to now.
func (p *Peripheral) Start(now time.Time) error {
	if err := p.adapter.Enable(); err != nil {
		return fmt.Errorf("ble: enable adapter: %w", err)
	}

	var (
		model, serial, firmware, manufacturer, currentTime bluetooth.Characteristic
	)
	if err := p.adapter.AddService(&bluetooth.Service{
		UUID: serviceDeviceInformation,
		Characteristics: []bluetooth.CharacteristicConfig{
			{Handle: &model, UUID: charModelNumber, Value: []byte(ModelNumber), Flags: bluetooth.CharacteristicReadPermission},
			{Handle: &serial, UUID: charSerialNumber, Value: []byte(SerialNumber), Flags: bluetooth.CharacteristicReadPermission},
			{Handle: &firmware, UUID: charFirmwareRevision, Value: []byte(FirmwareRevision), Flags: bluetooth.CharacteristicReadPermission},
			{Handle: &manufacturer, UUID: charManufacturerName, Value: []byte(Manufacturer), Flags: bluetooth.CharacteristicReadPermission},
		},
	}); err != nil {
		return fmt.Errorf("ble: add device information service: %w", err)
	}

	if err := p.adapter.AddService(&bluetooth.Service{
		UUID: serviceCurrentTime,
		Characteristics: []bluetooth.CharacteristicConfig{
			{
				Handle: &currentTime,
				UUID:   charCurrentTime,
				Value:  wire.EncodeCurrentTime(now),
				Flags:  bluetooth.CharacteristicReadPermission,
			},
		},
	}); err != nil {
		return fmt.Errorf("ble: add current time service: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, cs := range ChannelServices {
		stream := new(bluetooth.Characteristic)
		memory := new(bluetooth.Characteristic)
		err := p.adapter.AddService(&bluetooth.Service{
			UUID: toBluetooth(cs.Service),
			Characteristics: []bluetooth.CharacteristicConfig{
				{
					Handle: stream,
					UUID:   toBluetooth(cs.Stream),
					Value:  wire.EncodeSample(0),
					Flags:  bluetooth.CharacteristicReadPermission | bluetooth.CharacteristicNotifyPermission,
				},
				{
					Handle: memory,
					UUID:   toBluetooth(cs.Memory),
					Value:  wire.EncodePercent(0),
					Flags:  bluetooth.CharacteristicReadPermission | bluetooth.CharacteristicIndicatePermission,
				},
			},
		})
		if err != nil {
			return fmt.Errorf("ble: add %s service: %w", cs.Channel, err)
		}
		p.stream[cs.Channel] = stream
		p.memory[cs.Channel] = memory
	}

	p.adv = p.adapter.DefaultAdvertisement()
	if err := p.adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    p.name,
		ServiceUUIDs: advertisedServices(),
	}); err != nil {
		return fmt.Errorf("ble: configure advertisement: %w", err)
	}
	if err := p.adv.Start(); err != nil {
		return fmt.Errorf("ble: start advertisement: %w", err)
	}
	p.logger.Info("ble: advertising", "name", p.name, "services", len(ChannelServices)+2)
	return nil
}

func (p *Peripheral) Name() string { return "ble" }

// PublishReading updates the stream characteristic of the reading's channel.
func (p *Peripheral) PublishReading(r wire.Reading) error {
	ch, err := telemetry.ParseChannel(r.Channel)
	if err != nil {
		return err
	}
	p.mu.Lock()
	w := p.stream[ch]
	p.mu.Unlock()
	if w == nil {
		return errNotStarted
	}
	if _, err := w.Write(wire.EncodeSample(r.Value)); err != nil {
		return fmt.Errorf("ble: notify %s: %w", r.Channel, err)
	}
	return nil
}

// PublishUsage updates every memory status characteristic.
func (p *Peripheral) PublishUsage(u wire.Usage) error {
	var errs []error
	for _, c := range u.Channels {
		ch, err := telemetry.ParseChannel(c.Channel)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		p.mu.Lock()
		w := p.memory[ch]
		p.mu.Unlock()
		if w == nil {
			return errNotStarted
		}
		if _, err := w.Write(wire.EncodePercent(c.Percent)); err != nil {
			errs = append(errs, fmt.Errorf("ble: indicate %s usage: %w", c.Channel, err))
		}
	}
	return errors.Join(errs...)
}

var errNotStarted = errors.New("ble: peripheral not started")

// Close stops advertising.
func (p *Peripheral) Close() error {
	if p.adv == nil {
		return nil
	}
	if err := p.adv.Stop(); err != nil {
		return fmt.Errorf("ble: stop advertisement: %w", err)
	}
	p.logger.Info("ble: advertising stopped")
	return nil
}
