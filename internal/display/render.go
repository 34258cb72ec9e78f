// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package display

import (
	"fmt"
	"image"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/sensor_node/internal/telemetry"
)

const (
	Width  = 128
	Height = 64

	barTop    = 56
	barBottom = Height - 1
)

func newCanvas() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, Width, Height))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

func drawLine(d *font.Drawer, x, y int, s string) {
	d.Dot = fixed.P(x, y)
	d.DrawString(s)
}

// Splash is shown until the first message arrives.
func Splash(name string) *image1bit.VerticalLSB {
	img, d := newCanvas()
	drawLine(d, 10, 26, "Sensor node")
	drawLine(d, 10, 43, name)
	return img
}

// Render draws one frame: environment values, audio level, aggregate
// memory usage and a usage bar along the bottom edge.
func Render(f Frame) *image1bit.VerticalLSB {
	img, d := newCanvas()

	if !f.HaveUsage && !anyReading(f) {
		drawLine(d, 0, 26, "Telemetry")
		drawLine(d, 0, 39, "Waiting...")
		return img
	}

	drawLine(d, 0, 12, fmt.Sprintf("T %s H %s",
		value(f, telemetry.Temperature, "%5.1fC"),
		value(f, telemetry.Humidity, "%4.1f%%")))
	drawLine(d, 0, 25, "P "+value(f, telemetry.Pressure, "%7.1fhPa"))
	drawLine(d, 0, 38, "A "+value(f, telemetry.Audio, "%6.0f"))

	if !f.HaveUsage {
		drawLine(d, 0, 51, "MEM --")
		return img
	}
	drawLine(d, 0, 51, fmt.Sprintf("MEM %5.1f%%", f.Usage.Percent))
	drawBar(img, f.Usage.Percent)
	return img
}

func anyReading(f Frame) bool {
	for _, ok := range f.Have {
		if ok {
			return true
		}
	}
	return false
}

func value(f Frame, ch telemetry.Channel, format string) string {
	if !f.Have[ch] {
		return "--"
	}
	return fmt.Sprintf(format, f.Last[ch].Value)
}

// drawBar outlines the bar and fills it to percent of its width.
func drawBar(img *image1bit.VerticalLSB, percent float64) {
	percent = min(max(percent, 0), 100)
	fill := int(percent / 100 * float64(Width-2))

	for x := 0; x < Width; x++ {
		img.SetBit(x, barTop, image1bit.On)
		img.SetBit(x, barBottom, image1bit.On)
	}
	for y := barTop; y <= barBottom; y++ {
		img.SetBit(0, y, image1bit.On)
		img.SetBit(Width-1, y, image1bit.On)
	}
	for x := 1; x <= fill; x++ {
		for y := barTop + 1; y < barBottom; y++ {
			img.SetBit(x, y, image1bit.On)
		}
	}
}
