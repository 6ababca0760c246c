package viz

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
)

// Styles are rebuilt from CurrentTheme on every frame so a theme switch
// applies immediately.
type Styles struct {
	Title   lipgloss.Style
	Panel   lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Running lipgloss.Style
	Paused  lipgloss.Style
	Frozen  lipgloss.Style
	Key     lipgloss.Style
	Hint    lipgloss.Style
	Graph   lipgloss.Style
}

func NewStyles(t Theme) Styles {
	return Styles{
		Title: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(t.Muted).
			Padding(0, 2),
		Label:   lipgloss.NewStyle().Foreground(t.Muted).Width(12),
		Value:   lipgloss.NewStyle().Foreground(t.Text),
		Running: lipgloss.NewStyle().Bold(true).Foreground(t.Success),
		Paused:  lipgloss.NewStyle().Bold(true).Foreground(t.Warning),
		Frozen:  lipgloss.NewStyle().Bold(true).Foreground(t.Error),
		Key:     lipgloss.NewStyle().Bold(true).Foreground(t.Accent),
		Hint:    lipgloss.NewStyle().Foreground(t.Muted),
		Graph:   lipgloss.NewStyle().Foreground(t.Primary),
	}
}

// Field renders a label/value line.
func (s Styles) Field(label string, format string, args ...any) string {
	return s.Label.Render(label) + s.Value.Render(fmt.Sprintf(format, args...))
}

// Keys renders "key action" pairs on one line.
func (s Styles) Keys(pairs ...string) string {
	var parts []string
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, s.Key.Render(pairs[i])+" "+s.Hint.Render(pairs[i+1]))
	}
	return strings.Join(parts, "  ")
}

// Plot draws series as an ASCII line chart. Series shorter than two points
// yield an empty string.
func Plot(series []float64, width, height int, caption string) string {
	if len(series) < 2 {
		return ""
	}
	opts := []asciigraph.Option{asciigraph.Height(height), asciigraph.Precision(4)}
	if width > 0 {
		opts = append(opts, asciigraph.Width(width))
	}
	if caption != "" {
		opts = append(opts, asciigraph.Caption(caption))
	}
	return asciigraph.Plot(series, opts...)
}

// Downsample keeps at most n evenly spaced points of series, always
// including the last one.
func Downsample(series []float64, n int) []float64 {
	if n <= 0 || len(series) <= n {
		return series
	}
	if n == 1 {
		return series[len(series)-1:]
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = series[i*(len(series)-1)/(n-1)]
	}
	return out
}
