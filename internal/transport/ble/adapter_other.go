// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

//go:build !linux

package ble

import "tinygo.org/x/bluetooth"

// Adapter selection by name is a BlueZ feature; elsewhere the default is used.
func openAdapter(string) *bluetooth.Adapter {
	return bluetooth.DefaultAdapter
}
