package console

import (
	"fmt"
	"strings"

	"hipcortex/internal/bridge"

	"github.com/charmbracelet/lipgloss"
)

const (
	headerHeight = 1
	footerHeight = 2
	// Border plus title line around every pane.
	paneChrome = 3
	fsmHeight  = 1
	inputLines = 1
)

// layout sizes the viewports for the current window.
func (m *Model) layout() {
	leftW := m.width / 2
	rightW := m.width - leftW
	bodyH := m.height - headerHeight - footerHeight
	if bodyH < 0 {
		bodyH = 0
	}

	m.graphVP.Width = max(leftW-4, 0)
	m.graphVP.Height = max(bodyH-paneChrome, 0)
	m.graph.Resize(m.graphVP.Width)

	// Right column: FSM pane, then perception and CLI panes share the rest.
	logsH := bodyH - (fsmHeight + paneChrome)
	half := logsH / 2
	logH := func(total int) int { return max(total-paneChrome-inputLines, 0) }

	m.perceptionVP.Width = max(rightW-4, 0)
	m.perceptionVP.Height = logH(half)
	m.cliVP.Width = max(rightW-4, 0)
	m.cliVP.Height = logH(logsH - half)

	m.perception.Width = max(rightW-8, 0)
	m.cli.Width = max(rightW-8, 0)
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	leftW := m.width / 2
	rightW := m.width - leftW

	header := m.styles.Header.Width(m.width).Render(m.title)

	graphPane := m.pane("Symbolic graph", m.graphVP.View(), leftW, false)
	fsmPane := m.pane("FSM", m.fsmLine(), rightW, false)
	perceptionPane := m.pane("Perception",
		m.perceptionVP.View()+"\n"+m.perception.View(), rightW, m.focus == FocusPerception)
	cliPane := m.pane("CLI",
		m.cliVP.View()+"\n"+m.cli.View(), rightW, m.focus == FocusCLI)

	right := lipgloss.JoinVertical(lipgloss.Left, fsmPane, perceptionPane, cliPane)
	body := lipgloss.JoinHorizontal(lipgloss.Top, graphPane, right)

	return lipgloss.JoinVertical(lipgloss.Left, header, body, m.statusLine(), m.helpLine())
}

func (m Model) pane(title, content string, width int, focused bool) string {
	style := m.styles.Pane
	if focused {
		style = m.styles.PaneFocus
	}
	inner := m.styles.PaneTitle.Render(title) + "\n" + content
	return style.Width(max(width-2, 0)).Render(inner)
}

func (m Model) fsmLine() string {
	if m.state.FSMState == "" {
		return m.styles.Muted.Render("no reflexion run yet")
	}
	if m.state.ReflexionErr != nil {
		return m.styles.Error.Render(m.state.FSMState)
	}
	return m.styles.Body.Render(m.state.FSMState)
}

// statusLine shows outstanding dispatches and the latest failure per slot.
func (m Model) statusLine() string {
	var parts []string

	if m.state.Busy() {
		var pending []string
		for _, slot := range []bridge.Slot{bridge.SlotGraph, bridge.SlotFSM, bridge.SlotPerception, bridge.SlotCLI} {
			if n := m.state.Pending(slot); n > 0 {
				pending = append(pending, fmt.Sprintf("%s×%d", slot, n))
			}
		}
		parts = append(parts, m.spinner.View()+" "+strings.Join(pending, " "))
	}

	for _, e := range []struct {
		slot bridge.Slot
		err  error
	}{
		{bridge.SlotGraph, m.state.GraphErr},
		{bridge.SlotFSM, m.state.ReflexionErr},
		{bridge.SlotPerception, m.state.PerceptionErr},
		{bridge.SlotCLI, m.state.CLIErr},
	} {
		if e.err != nil {
			parts = append(parts, m.styles.Error.Render(fmt.Sprintf("✗ %s: %v", e.slot, e.err)))
		}
	}

	if len(parts) == 0 {
		return m.styles.Success.Render("ready")
	}
	return strings.Join(parts, "  ")
}

func (m Model) helpLine() string {
	return m.styles.Footer.Render("tab focus • enter send • ctrl+r reflexion • ctrl+g graph • ctrl+u recall • pgup/pgdn scroll • esc quit")
}
