package viz

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/nbodysim/internal/metrics"
	"github.com/san-kum/nbodysim/internal/particles"
	"github.com/san-kum/nbodysim/internal/sim"
)

const (
	defaultCols     = 60
	defaultRows     = 24
	panelWidth      = 44
	historyCapacity = 600
	frameInterval   = time.Second / 30
)

type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// Model is the live view. It owns no physics: every change goes through the
// simulator, and the picture is drawn from its snapshots.
type Model struct {
	ctx  context.Context
	sim  *sim.Simulator
	name string

	canvas *Canvas
	camera *Camera
	// autoFit re-centres and re-scales the camera on every frame
	autoFit bool

	running       bool
	stepsPerFrame int
	last          sim.Stats
	snap          sim.Snapshot
	energy        []float64
	initialEnergy float64
	err           error
	notice        string

	// cursor in dot coordinates
	cursorX, cursorY int
	showHelp         bool
}

func NewModel(ctx context.Context, s *sim.Simulator, name string) Model {
	m := Model{
		ctx:           ctx,
		sim:           s,
		name:          name,
		canvas:        NewCanvas(defaultCols, defaultRows),
		camera:        NewCamera(),
		autoFit:       true,
		running:       true,
		stepsPerFrame: 1,
		energy:        make([]float64, 0, historyCapacity),
	}
	m.cursorX, m.cursorY = m.canvas.DotsWide()/2, m.canvas.DotsHigh()/2
	m.snap = s.Snapshot()
	m.camera.Fit(m.snap.Store)
	m.initialEnergy = metrics.TotalEnergy(m.snap.Store, s.Config())
	m.draw()
	return m
}

func (m Model) Init() tea.Cmd { return tick() }

// Running reports whether the view advances the simulation on each frame.
func (m Model) Running() bool { return m.running }

// Snapshot is the state currently on screen.
func (m Model) Snapshot() sim.Snapshot { return m.snap }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		cols := msg.Width - panelWidth - 4
		rows := msg.Height - 4
		if cols > 10 && rows > 5 {
			m.canvas = NewCanvas(cols, rows)
			m.cursorX, m.cursorY = m.canvas.DotsWide()/2, m.canvas.DotsHigh()/2
			m.draw()
		}
	case TickMsg:
		if m.running {
			m.advance(m.stepsPerFrame)
		}
		m.draw()
		return m, tick()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	m.notice = ""
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case " ":
		m.running = !m.running
	case "n", "right":
		if !m.running {
			m.advance(1)
		}
	case "a":
		m.addAtCursor()
	case "d":
		m.deleteNearCursor()
	case "r":
		if m.err != nil {
			m.sim.Resume()
			m.err = nil
			m.notice = "resumed from last valid state"
		}
	case "h":
		m.moveCursor(-2, 0)
	case "l":
		m.moveCursor(2, 0)
	case "k", "up":
		m.moveCursor(0, -2)
	case "j", "down":
		m.moveCursor(0, 2)
	case "x":
		m.camera.RotateX(0.1)
	case "X":
		m.camera.RotateX(-0.1)
	case "y":
		m.camera.RotateY(0.1)
	case "Y":
		m.camera.RotateY(-0.1)
	case "z":
		m.camera.RotateZ(0.1)
	case "Z":
		m.camera.RotateZ(-0.1)
	case "+", "=":
		m.camera.ZoomIn()
	case "-", "_":
		m.camera.ZoomOut()
	case "f":
		m.autoFit = !m.autoFit
	case "]":
		m.stepsPerFrame = min(m.stepsPerFrame*2, 256)
	case "[":
		m.stepsPerFrame = max(m.stepsPerFrame/2, 1)
	case "t":
		NextTheme()
	case "?":
		m.showHelp = !m.showHelp
	}
	m.draw()
	return m, nil
}

// advance ticks the simulator n times and stops at the first failure. A
// frozen simulator pauses the view until resumed.
func (m *Model) advance(n int) {
	for i := 0; i < n; i++ {
		st, err := m.sim.Step(m.ctx)
		if err != nil {
			m.err = err
			m.running = false
			break
		}
		m.last = st
		if len(st.MutationErrors) > 0 {
			m.notice = st.MutationErrors[0].Error()
		}
	}
	m.refresh()
}

func (m *Model) refresh() {
	m.snap = m.sim.Snapshot()
	e := metrics.TotalEnergy(m.snap.Store, m.sim.Config())
	if len(m.energy) == historyCapacity {
		copy(m.energy, m.energy[1:])
		m.energy = m.energy[:historyCapacity-1]
	}
	m.energy = append(m.energy, e)
}

func (m *Model) moveCursor(dx, dy int) {
	m.cursorX = max(0, min(m.canvas.DotsWide()-1, m.cursorX+dx))
	m.cursorY = max(0, min(m.canvas.DotsHigh()-1, m.cursorY+dy))
}

// CursorWorld is the world point under the cursor in the view plane.
func (m Model) CursorWorld() r3.Vec {
	return m.camera.Unproject(m.cursorX, m.cursorY, m.canvas.DotsWide(), m.canvas.DotsHigh())
}

// addAtCursor queues a resting body of the mean mass under the cursor.
func (m *Model) addAtCursor() {
	mass := 1.0
	if masses := m.snap.Store.Masses(); len(masses) > 0 {
		var sum float64
		for _, v := range masses {
			sum += v
		}
		mass = sum / float64(len(masses))
	}
	m.sim.RequestAdd(particles.Body{Position: m.CursorWorld(), Mass: mass})
	m.applyWhilePaused()
}

func (m *Model) deleteNearCursor() {
	i := m.snap.Store.Nearest(m.CursorWorld())
	if i < 0 {
		m.notice = "nothing to delete"
		return
	}
	m.sim.RequestRemove(i)
	m.applyWhilePaused()
}

// applyWhilePaused makes queued requests visible without waiting for a tick.
func (m *Model) applyWhilePaused() {
	if m.running {
		return
	}
	if errs := m.sim.ApplyPending(); len(errs) > 0 {
		m.notice = errs[0].Error()
	}
	m.snap = m.sim.Snapshot()
}

func (m *Model) draw() {
	m.canvas.Clear()
	if m.autoFit {
		zoom, rx, ry, rz := m.camera.Zoom, m.camera.RotX, m.camera.RotY, m.camera.RotZ
		m.camera.Fit(m.snap.Store)
		m.camera.Zoom, m.camera.RotX, m.camera.RotY, m.camera.RotZ = zoom, rx, ry, rz
	}
	Draw(m.canvas, m.snap.Store, m.camera)
	if !m.running {
		Crosshair(m.canvas, m.cursorX, m.cursorY)
	}
}

func (m Model) View() string {
	st := NewStyles(CurrentTheme)

	var status string
	switch {
	case m.err != nil:
		status = st.Frozen.Render("FROZEN")
	case m.running:
		status = st.Running.Render("RUNNING")
	default:
		status = st.Paused.Render("PAUSED")
	}

	cfg := m.sim.Config()
	var p strings.Builder
	p.WriteString(st.Title.Render(strings.ToUpper(m.name)) + "  " + status + "\n\n")
	p.WriteString(st.Field("step", "%d", m.snap.Step) + "\n")
	p.WriteString(st.Field("time", "%.4g", m.snap.Time) + "\n")
	p.WriteString(st.Field("particles", "%d", m.snap.Store.Len()) + "\n")
	p.WriteString(st.Field("dt", "%g x%d", cfg.Dt, m.stepsPerFrame) + "\n")
	p.WriteString(st.Field("integrator", "%s", cfg.Integrator) + "\n")
	p.WriteString(st.Field("gravity", "%s", cfg.Interaction) + "\n")
	p.WriteString(st.Field("forces", "%s", strings.Join(cfg.Forces.Enabled(), ",")) + "\n")
	if len(m.energy) > 0 {
		e := m.energy[len(m.energy)-1]
		p.WriteString(st.Field("energy", "%.6g", e) + "\n")
		if m.initialEnergy != 0 {
			p.WriteString(st.Field("drift", "%.3e", math.Abs(e-m.initialEnergy)/math.Abs(m.initialEnergy)) + "\n")
		}
	}
	if m.last.TreeNodes > 0 {
		p.WriteString(st.Field("tree", "%d nodes, depth %d", m.last.TreeNodes, m.last.TreeDepth) + "\n")
	}
	if m.last.DirectFallback {
		p.WriteString(st.Field("tree", "direct fallback") + "\n")
	}
	p.WriteString(st.Field("tick", "%s", m.last.Elapsed.Round(time.Microsecond)) + "\n")
	if !m.running {
		c := m.CursorWorld()
		p.WriteString(st.Field("cursor", "%.3g %.3g %.3g", c.X, c.Y, c.Z) + "\n")
	}
	if graph := Plot(Downsample(m.energy, panelWidth-12), panelWidth-12, 6, "energy"); graph != "" {
		p.WriteString("\n" + st.Graph.Render(graph) + "\n")
	}
	if m.err != nil {
		p.WriteString("\n" + st.Frozen.Width(panelWidth-4).Render(m.err.Error()) + "\n")
	}
	if m.notice != "" {
		p.WriteString("\n" + st.Hint.Width(panelWidth-4).Render(m.notice) + "\n")
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(m.canvas.Rows(), "\n")),
		st.Panel.Width(panelWidth).Render(p.String()),
	)

	help := st.Keys("space", "pause", "n", "step", "a", "add", "d", "delete", "?", "more", "q", "quit")
	if m.showHelp {
		help += "\n" + st.Keys("hjkl", "cursor", "xyz", "rotate", "+/-", "zoom", "f", "fit", "[]", "speed", "t", "theme", "r", "resume")
	}
	return body + "\n" + help + "\n"
}

// Run starts the live view full screen and blocks until it quits.
func Run(ctx context.Context, s *sim.Simulator, name string) error {
	_, err := tea.NewProgram(NewModel(ctx, s, name), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil {
		return fmt.Errorf("live view: %w", err)
	}
	return nil
}
