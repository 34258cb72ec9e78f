// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package console

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent = lipgloss.Color("#00CC88")
	colorDim    = lipgloss.Color("#557766")
	colorWarn   = lipgloss.Color("#FFAA00")
	colorFull   = lipgloss.Color("#FF3300")
)

var (
	styleTitle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true).
			Padding(0, 1)

	stylePanel = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim).
			Padding(0, 1)

	styleLabel = lipgloss.NewStyle().
			Foreground(colorAccent).
			Width(12)

	styleValue = lipgloss.NewStyle().
			Bold(true).
			Width(14).
			Align(lipgloss.Right)

	styleDim = lipgloss.NewStyle().
			Foreground(colorDim)

	styleHelp = lipgloss.NewStyle().
			Foreground(colorDim).
			Padding(0, 1)
)

// barStyle colors a bar by fill level.
func barStyle(percent float64) lipgloss.Style {
	switch {
	case percent >= 90:
		return lipgloss.NewStyle().Foreground(colorFull)
	case percent >= 60:
		return lipgloss.NewStyle().Foreground(colorWarn)
	default:
		return lipgloss.NewStyle().Foreground(colorAccent)
	}
}
