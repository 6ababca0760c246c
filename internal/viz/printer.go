package viz

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/san-kum/nbodysim/internal/sim"
)

const (
	clearScreen = "\033[2J\033[H"
	hideCursor  = "\033[?25l"
	showCursor  = "\033[?25h"
)

// Printer is a sim.Observer that redraws the particle projection on a plain
// terminal at most frameRate times per second. It needs no raw mode, so it
// works under `run --watch` while the run is logged and saved as usual.
type Printer struct {
	w         io.Writer
	name      string
	frameRate int
	lastFrame time.Time
	canvas    *Canvas
	camera    *Camera
	fitted    bool
}

func NewPrinter(w io.Writer, name string, frameRate int) *Printer {
	if frameRate <= 0 {
		frameRate = 10
	}
	return &Printer{
		w:         w,
		name:      name,
		frameRate: frameRate,
		canvas:    NewCanvas(defaultCols, defaultRows-4),
		camera:    NewCamera(),
	}
}

func (p *Printer) OnStep(snap sim.Snapshot, st sim.Stats) {
	if time.Since(p.lastFrame) < time.Second/time.Duration(p.frameRate) {
		return
	}
	p.lastFrame = time.Now()

	// the camera is fitted once so that expansion or collapse stays visible
	if !p.fitted {
		p.camera.Fit(snap.Store)
		p.fitted = true
	}
	p.canvas.Clear()
	visible := Draw(p.canvas, snap.Store, p.camera)

	var b strings.Builder
	b.WriteString(clearScreen)
	fmt.Fprintf(&b, "  %s  step %d  t=%.4g  n=%d (%d in view)\n", p.name, snap.Step, snap.Time, st.Particles, visible)
	b.WriteString("  " + strings.Repeat("─", p.canvas.Width) + "\n")
	for _, row := range p.canvas.Rows() {
		b.WriteString("  " + row + "\n")
	}
	b.WriteString("  " + strings.Repeat("─", p.canvas.Width) + "\n")
	if st.HasEnergy {
		fmt.Fprintf(&b, "  E=%.6g  ", st.Energy)
	}
	fmt.Fprintf(&b, "tick %s\n", st.Elapsed.Round(time.Microsecond))
	io.WriteString(p.w, b.String())
}

func (p *Printer) Start() { io.WriteString(p.w, hideCursor) }
func (p *Printer) Stop()  { io.WriteString(p.w, showCursor) }
