// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package console is a terminal dashboard of the node's telemetry.
package console

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/relabs-tech/sensor_node/internal/telemetry"
	"github.com/relabs-tech/sensor_node/internal/wire"
)

const barWidth = 30

// ReadingMsg carries one reading received from the broker.
type ReadingMsg wire.Reading

// UsageMsg carries one memory report received from the broker.
type UsageMsg wire.Usage

// ConnMsg reports the broker link state.
type ConnMsg struct {
	Connected bool
}

type tickMsg time.Time

// Model is the root Bubble Tea model.
type Model struct {
	broker string
	width  int
	paused bool

	last     [telemetry.NumChannels]wire.Reading
	have     [telemetry.NumChannels]bool
	received [telemetry.NumChannels]uint64

	usage     wire.Usage
	haveUsage bool

	connected bool
	now       time.Time
}

// New creates a Model for the given broker address.
func New(broker string) Model {
	return Model{broker: broker}
}

func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "Q", "ctrl+c":
			return m, tea.Quit
		case "p", "P", " ":
			m.paused = !m.paused
		}
		return m, nil

	case tickMsg:
		m.now = time.Time(msg)
		return m, tickCmd()

	case ConnMsg:
		m.connected = msg.Connected
		return m, nil

	case ReadingMsg:
		ch, err := telemetry.ParseChannel(msg.Channel)
		if err != nil {
			return m, nil
		}
		m.received[ch]++
		if !m.paused {
			m.last[ch] = wire.Reading(msg)
			m.have[ch] = true
		}
		return m, nil

	case UsageMsg:
		if !m.paused {
			m.usage = wire.Usage(msg)
			m.haveUsage = true
		}
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	link := styleDim.Render("disconnected")
	if m.connected {
		link = barStyle(0).Render("connected")
	}
	header := styleTitle.Render("sensor node") + styleDim.Render(m.broker+" ") + link
	if m.paused {
		header += barStyle(100).Render("  [PAUSED]")
	}
	b.WriteString(header + "\n")

	var rows []string
	for _, ch := range telemetry.Channels() {
		rows = append(rows, m.channelRow(ch))
	}
	b.WriteString(stylePanel.Render(strings.Join(rows, "\n")) + "\n")

	if m.haveUsage {
		total := fmt.Sprintf("%-12s%s %5.1f%%", "memory", bar(m.usage.Percent), m.usage.Percent)
		b.WriteString(stylePanel.Render(total) + "\n")
	} else {
		b.WriteString(stylePanel.Render(styleDim.Render("memory      waiting for report...")) + "\n")
	}

	b.WriteString(styleHelp.Render("q quit  p pause"))
	return b.String()
}

func (m Model) channelRow(ch telemetry.Channel) string {
	label := styleLabel.Render(ch.String())
	val := styleDim.Render(fmt.Sprintf("%14s", "--"))
	if m.have[ch] {
		val = styleValue.Render(fmt.Sprintf("%.2f %s", m.last[ch].Value, m.last[ch].Unit))
	}
	row := lipgloss.JoinHorizontal(lipgloss.Top, label, val, "  ")

	if c, ok := m.usage.Channel(ch.String()); ok && m.haveUsage {
		row += fmt.Sprintf("%s %5.1f%%  %d/%d", bar(c.Percent), c.Percent, c.Occupancy, c.Capacity)
		if c.Overflows > 0 {
			row += barStyle(100).Render(fmt.Sprintf("  drop %d", c.Overflows))
		}
	}
	return row
}

// bar renders percent as a fixed width gauge.
func bar(percent float64) string {
	percent = min(max(percent, 0), 100)
	filled := int(percent / 100 * barWidth)
	return barStyle(percent).Render(strings.Repeat("█", filled)) +
		styleDim.Render(strings.Repeat("░", barWidth-filled))
}
