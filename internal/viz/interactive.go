package viz

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/nbodysim/internal/sim"
)

// MenuItem is one entry of the preset picker.
type MenuItem struct {
	Name        string
	Description string
}

// StartFunc builds the simulator for the chosen preset.
type StartFunc func(name string) (*sim.Simulator, error)

const (
	stateMenu = iota
	stateSim
)

// menu lists presets and hands over to a live Model once one is picked.
type menu struct {
	ctx    context.Context
	state  int
	cursor int
	items  []MenuItem
	start  StartFunc
	err    error
	live   Model
}

func NewMenu(ctx context.Context, items []MenuItem, start StartFunc) tea.Model {
	return menu{ctx: ctx, items: items, start: start}
}

func (m menu) Init() tea.Cmd { return nil }

func (m menu) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.state == stateSim {
		next, cmd := m.live.Update(msg)
		m.live = next.(Model)
		return m, cmd
	}
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case "enter", " ":
		if len(m.items) == 0 {
			return m, nil
		}
		item := m.items[m.cursor]
		s, err := m.start(item.Name)
		if err != nil {
			m.err = err
			return m, nil
		}
		m.err = nil
		m.live = NewModel(m.ctx, s, item.Name)
		m.state = stateSim
		return m, m.live.Init()
	}
	return m, nil
}

func (m menu) View() string {
	if m.state == stateSim {
		return m.live.View()
	}
	st := NewStyles(CurrentTheme)
	var b strings.Builder
	b.WriteString("\n    " + st.Title.Render("NBODYSIM") + "\n    " + st.Hint.Render("pick a preset") + "\n\n")
	for i, it := range m.items {
		name := fmt.Sprintf("%-14s", it.Name)
		if i == m.cursor {
			b.WriteString("  " + st.Key.Render("▸ "+name) + " " + st.Value.Render(it.Description) + "\n")
		} else {
			b.WriteString("    " + st.Hint.Render(name+" "+it.Description) + "\n")
		}
	}
	if m.err != nil {
		b.WriteString("\n    " + st.Frozen.Render(m.err.Error()) + "\n")
	}
	b.WriteString("\n    " + st.Keys("j/k", "navigate", "enter", "start", "q", "quit") + "\n")
	return b.String()
}

// RunInteractive shows the preset picker full screen.
func RunInteractive(ctx context.Context, items []MenuItem, start StartFunc) error {
	_, err := tea.NewProgram(NewMenu(ctx, items, start), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
