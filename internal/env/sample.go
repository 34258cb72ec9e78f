// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package env

import "periph.io/x/conn/v3/physic"

// Sample represents a single environmental measurement (BME280).
type Sample struct {
	Temperature float64 `json:"temp_c"`       // °C
	Humidity    float64 `json:"humidity_rh"`  // %RH
	Pressure    float64 `json:"pressure_hpa"` // hPa
}

// FromPhysic converts a periph reading to display units.
func FromPhysic(e physic.Env) Sample {
	return Sample{
		Temperature: e.Temperature.Celsius(),
		Humidity:    float64(e.Humidity) / float64(physic.PercentRH),
		Pressure:    float64(e.Pressure) / float64(physic.Pascal) / 100.0, // 1 hPa = 100 Pa
	}
}
