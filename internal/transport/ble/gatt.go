// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ble

import (
	"github.com/google/uuid"
	"tinygo.org/x/bluetooth"

	"github.com/relabs-tech/sensor_node/internal/telemetry"
)

// Device Information strings.
const (
	ModelNumber      = "ID-169"
	SerialNumber     = "S/N 001"
	FirmwareRevision = "1.0.0"
	Manufacturer     = "Politechnika Gdańska"
)

// ChannelService is the GATT service of one measurement channel.
type ChannelService struct {
	Channel telemetry.Channel
	Service uuid.UUID // primary service
	Stream  uuid.UUID // read + notify, one float32 LE per sample
	Memory  uuid.UUID // indicate, float32 LE channel usage percent
}

// ChannelServices lists the GATT layout per channel.
var ChannelServices = [telemetry.NumChannels]ChannelService{
	telemetry.Temperature: {
		Channel: telemetry.Temperature,
		Service: uuid.MustParse("CBB6067B-1918-44F3-89E4-3043A2D12E27"),
		Stream:  uuid.MustParse("07E5D6F7-6F18-4DCE-BB5B-732CAB4E8474"),
		Memory:  uuid.MustParse("34146E5A-52A7-47AB-BB6B-34CEEC2941EE"),
	},
	telemetry.Humidity: {
		Channel: telemetry.Humidity,
		Service: uuid.MustParse("86AF1E06-D1A5-4A14-A2E9-B49313405EED"),
		Stream:  uuid.MustParse("97DCE133-0916-4D5C-A1E3-217B10B37D58"),
		Memory:  uuid.MustParse("1C8F7EC6-2619-47BF-B01F-6121C1D1FF65"),
	},
	telemetry.Pressure: {
		Channel: telemetry.Pressure,
		Service: uuid.MustParse("8DCF22A9-F7EF-48CD-ADFC-ACB21BF61B4B"),
		Stream:  uuid.MustParse("55FCD9B7-63B3-4820-A26C-73A8A7BB8D6F"),
		Memory:  uuid.MustParse("A956BD16-5028-48D1-93FE-D442E76842FF"),
	},
	telemetry.Audio: {
		Channel: telemetry.Audio,
		Service: uuid.MustParse("FA124461-66EA-4E1B-B1E4-E58CB6DEC6BE"),
		Stream:  uuid.MustParse("B0CE3C07-AA05-4C8C-8E89-6F62ECD7DAC2"),
		Memory:  uuid.MustParse("7DE1416F-CF11-4EF2-86C8-0F40AEB66AAE"),
	},
}

var (
	serviceDeviceInformation = bluetooth.New16BitUUID(0x180A)
	serviceCurrentTime       = bluetooth.New16BitUUID(0x1805)

	charModelNumber      = bluetooth.New16BitUUID(0x2A24)
	charSerialNumber     = bluetooth.New16BitUUID(0x2A25)
	charFirmwareRevision = bluetooth.New16BitUUID(0x2A26)
	charManufacturerName = bluetooth.New16BitUUID(0x2A29)
	charCurrentTime      = bluetooth.New16BitUUID(0x2A2B)
)

func toBluetooth(u uuid.UUID) bluetooth.UUID {
	return bluetooth.NewUUID(u)
}

// advertisedServices returns the service UUIDs put in the advertisement.
func advertisedServices() []bluetooth.UUID {
	out := []bluetooth.UUID{serviceDeviceInformation, serviceCurrentTime}
	for _, s := range ChannelServices {
		out = append(out, toBluetooth(s.Service))
	}
	return out
}
