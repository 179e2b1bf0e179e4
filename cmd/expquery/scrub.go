package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"gonum.org/v1/gonum/mat"

	"github.com/star/expseries/internal/session"
)

// scrubber is an interactive time cursor over a loaded session.
type scrubber struct {
	sess       *session.Session
	t          float64
	step       float64
	start, end float64
}

func newScrubber(sess *session.Session) scrubber {
	info := sess.Orientation.Info()
	m := scrubber{sess: sess, start: info.Start, end: info.End, step: 1}
	if sess.Coefficients != nil && info.Inertial {
		ci := sess.Coefficients.Info()
		m.start, m.end = ci.Start, ci.End
	}
	if m.end > m.start {
		m.step = (m.end - m.start) / 100
	}
	m.t = m.start
	return m
}

// Init implements tea.Model.
func (m scrubber) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m scrubber) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit
	case tea.KeyRight:
		m.t += m.step
	case tea.KeyLeft:
		m.t -= m.step
	case tea.KeyUp:
		m.step *= 10
	case tea.KeyDown:
		m.step /= 10
	case tea.KeyHome:
		m.t = m.start
	case tea.KeyEnd:
		m.t = m.end
	case tea.KeyRunes:
		switch string(key.Runes) {
		case "q":
			return m, tea.Quit
		case "l":
			m.t += m.step
		case "h":
			m.t -= m.step
		}
	}
	return m, nil
}

// edge labels where the cursor sits relative to the sampled window.
func (m scrubber) edge() string {
	switch {
	case m.sess.Orientation.Inertial() && m.sess.Coefficients == nil:
		return "inertial"
	case m.t < m.start:
		return "before"
	case m.t > m.end:
		return "after"
	default:
		return "inside"
	}
}

// View implements tea.Model.
func (m scrubber) View() string {
	var b strings.Builder

	c, v := m.sess.Orientation.StateAt(m.t)

	fmt.Fprintf(&b, "window [%g, %g]  step %g\n\n", m.start, m.end, m.step)
	fmt.Fprintf(&b, "t        %.9g (%s)\n", m.t, m.edge())
	fmt.Fprintf(&b, "center   %12.6g %12.6g %12.6g\n", c[0], c[1], c[2])
	fmt.Fprintf(&b, "velocity %12.6g %12.6g %12.6g\n", v[0], v[1], v[2])
	if m.sess.Coefficients != nil {
		fmt.Fprintf(&b, "coefs    |C| = %.6g\n", mat.Norm(m.sess.Coefficients.CoefficientsAt(m.t), 2))
	}
	b.WriteString("\n(←/→ move, ↑/↓ step ×10 ÷10, Home/End jump, q to quit)")
	return b.String()
}
