// Package export renders particle states and time series as SVG images.
package export

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/san-kum/nbodysim/internal/particles"
	"github.com/san-kum/nbodysim/internal/viz"
)

const background = "#0a0a0a"

func header(sb *strings.Builder, width, height int) {
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
`, width, height, width, height, background))
}

type dot struct {
	x, y, depth, r float64
	fill           string
}

// Particles draws s as seen through cam on a width x height image. Bodies
// without a colour use the theme's primary colour; radius grows with the
// cube root of mass. Farther bodies are drawn first.
func Particles(w io.Writer, s *particles.Store, cam *viz.Camera, width, height int, theme viz.Theme) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid image size %dx%d", width, height)
	}

	var maxMass float64
	for _, m := range s.Masses() {
		maxMass = math.Max(maxMass, m)
	}
	colors := s.Colors()

	dots := make([]dot, 0, s.Len())
	for i, p := range s.Positions() {
		x, y, depth, ok := cam.Project(p, width, height)
		if !ok {
			continue
		}
		r := 1.5
		if maxMass > 0 {
			r = 1 + 3*math.Cbrt(s.Masses()[i]/maxMass)
		}
		fill := string(theme.Primary)
		if colors != nil {
			c := colors[i]
			if c != (particles.Color{}) {
				fill = fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
			}
		}
		dots = append(dots, dot{x: float64(x) + 0.5, y: float64(y) + 0.5, depth: depth, r: r, fill: fill})
	}
	sort.SliceStable(dots, func(i, j int) bool { return dots[i].depth < dots[j].depth })

	var sb strings.Builder
	header(&sb, width, height)
	for _, d := range dots {
		sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="%.1f" fill="%s"/>
`, d.x, d.y, d.r, d.fill))
	}
	sb.WriteString("</svg>\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

// Series draws values against their index as a polyline, padded by a tenth
// of the range on each side. It writes nothing for fewer than two points.
func Series(w io.Writer, values []float64, width, height int, stroke string) error {
	if len(values) < 2 {
		return nil
	}

	minY, maxY := values[0], values[0]
	for _, v := range values {
		minY = math.Min(minY, v)
		maxY = math.Max(maxY, v)
	}
	rangeY := maxY - minY
	if rangeY == 0 {
		rangeY = 1
	}
	minY -= rangeY * 0.1
	rangeY *= 1.2
	stepX := float64(width) / float64(len(values)-1)

	var sb strings.Builder
	header(&sb, width, height)
	sb.WriteString(fmt.Sprintf(`<path fill="none" stroke="%s" stroke-width="1.5" d="M`, stroke))
	for i, v := range values {
		x := float64(i) * stepX
		y := float64(height) - (v-minY)/rangeY*float64(height)
		if i == 0 {
			sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
		} else {
			sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
		}
	}
	sb.WriteString("\"/>\n</svg>\n")

	_, err := io.WriteString(w, sb.String())
	return err
}
