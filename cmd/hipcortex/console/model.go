// Package console is the interactive terminal front end. It renders the four
// display slots held in bridge.State and turns key presses into bridge
// operations.
package console

import (
	"hipcortex/cmd/hipcortex/ui"
	"hipcortex/internal/bridge"
	"hipcortex/internal/logging"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// Focus names the input field receiving keystrokes.
type Focus int

const (
	FocusPerception Focus = iota
	FocusCLI
)

func (f Focus) String() string {
	if f == FocusCLI {
		return "cli"
	}
	return "perception"
}

// bootMsg triggers the one-time initial graph load.
type bootMsg struct{}

// Model is the bubbletea model for the console.
type Model struct {
	bridge *bridge.Bridge
	state  bridge.State

	styles ui.Styles
	graph  *ui.GraphRenderer
	title  string

	perception textinput.Model
	cli        textinput.Model
	focus      Focus

	graphVP      viewport.Model
	perceptionVP viewport.Model
	cliVP        viewport.Model
	spinner      spinner.Model

	width  int
	height int
	ready  bool
	booted bool
}

// New returns a console driving b. title is shown in the header.
func New(b *bridge.Bridge, styles ui.Styles, title string) Model {
	perception := textinput.New()
	perception.Placeholder = "describe what the agent perceives"
	perception.Prompt = "› "
	perception.PromptStyle = styles.Prompt
	perception.Focus()

	cli := textinput.New()
	cli.Placeholder = "trace list"
	cli.Prompt = "$ "
	cli.PromptStyle = styles.Prompt

	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(styles.Spinner),
	)

	return Model{
		bridge:       b,
		state:        bridge.NewState(),
		styles:       styles,
		graph:        ui.NewGraphRenderer(styles.Theme, 80),
		title:        title,
		perception:   perception,
		cli:          cli,
		focus:        FocusPerception,
		graphVP:      viewport.New(0, 0),
		perceptionVP: viewport.New(0, 0),
		cliVP:        viewport.New(0, 0),
		spinner:      sp,
	}
}

// State returns a copy of the display store.
func (m Model) State() bridge.State {
	return m.state
}

// Focused returns the input field that receives keystrokes.
func (m Model) Focused() Focus {
	return m.focus
}

// Init schedules the initial graph load and starts the spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return bootMsg{} },
		m.spinner.Tick,
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case bootMsg:
		if m.booted {
			return m, nil
		}
		m.booted = true
		logging.Get(logging.CategoryUI).Info("console booted, loading graph")
		return m, m.bridge.LoadGraph(&m.state)

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		m.ready = true
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case bridge.GraphLoadedMsg, bridge.ReflexionDoneMsg, bridge.PerceptionDoneMsg, bridge.CLIDoneMsg:
		m.state.Apply(msg)
		m.refresh()
		return m, nil
	}

	return m, nil
}

// handleKey routes one key press. Global bindings come first; everything else
// edits the focused input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit

	case tea.KeyTab:
		m.toggleFocus()
		return m, nil

	case tea.KeyEnter:
		return m.submit()

	case tea.KeyCtrlR:
		return m, m.bridge.RunReflexion(&m.state)

	case tea.KeyCtrlG:
		return m, m.bridge.LoadGraph(&m.state)

	case tea.KeyCtrlU:
		m.recall()
		return m, nil

	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.graphVP, cmd = m.graphVP.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	if m.focus == FocusCLI {
		m.cli, cmd = m.cli.Update(msg)
		m.state.CLIInput = m.cli.Value()
	} else {
		m.perception, cmd = m.perception.Update(msg)
		m.state.PerceptionInput = m.perception.Value()
	}
	return m, cmd
}

func (m *Model) toggleFocus() {
	if m.focus == FocusPerception {
		m.focus = FocusCLI
		m.perception.Blur()
		m.cli.Focus()
	} else {
		m.focus = FocusPerception
		m.cli.Blur()
		m.perception.Focus()
	}
}

// submit dispatches the focused input. The field is cleared before the
// dispatch completes.
func (m Model) submit() (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.focus == FocusCLI {
		m.state.CLIInput = m.cli.Value()
		cmd = m.bridge.RunCLI(&m.state)
		m.cli.SetValue(m.state.CLIInput)
	} else {
		m.state.PerceptionInput = m.perception.Value()
		cmd = m.bridge.SendPerception(&m.state)
		m.perception.SetValue(m.state.PerceptionInput)
	}
	return m, cmd
}

func (m *Model) recall() {
	if m.focus == FocusCLI {
		m.state.CLIInput = m.cli.Value()
		if m.state.RecallCLI() {
			m.cli.SetValue(m.state.CLIInput)
			m.cli.CursorEnd()
		}
		return
	}
	m.state.PerceptionInput = m.perception.Value()
	if m.state.RecallPerception() {
		m.perception.SetValue(m.state.PerceptionInput)
		m.perception.CursorEnd()
	}
}

// refresh pushes the slot contents into the viewports.
func (m *Model) refresh() {
	m.graphVP.SetContent(m.graph.Render(m.state.Graph))
	m.perceptionVP.SetContent(m.state.PerceptionLog.Text())
	m.perceptionVP.GotoBottom()
	m.cliVP.SetContent(m.state.CLILog.Text())
	m.cliVP.GotoBottom()
}
