// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package wire

import (
	"encoding/binary"
	"time"
)

// CurrentTimeSize is the length of the Bluetooth Current Time characteristic.
const CurrentTimeSize = 10

// AdjustReasonManual is the adjust reason reported with every time value.
const AdjustReasonManual = 0xE0

// EncodeCurrentTime encodes t as the Current Time characteristic (0x2A2B):
// year (u16 LE), month, day, hours, minutes, seconds, day of week
// (Monday = 1 .. Sunday = 7), fractions of 1/256 s, adjust reason.
func EncodeCurrentTime(t time.Time) []byte {
	b := make([]byte, CurrentTimeSize)
	binary.LittleEndian.PutUint16(b[0:2], uint16(t.Year()))
	b[2] = byte(t.Month())
	b[3] = byte(t.Day())
	b[4] = byte(t.Hour())
	b[5] = byte(t.Minute())
	b[6] = byte(t.Second())
	wd := t.Weekday()
	if wd == time.Sunday {
		b[7] = 7
	} else {
		b[7] = byte(wd)
	}
	b[8] = byte(t.Nanosecond() * 256 / int(time.Second))
	b[9] = AdjustReasonManual
	return b
}
