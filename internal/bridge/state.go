package bridge

import (
	"errors"
	"fmt"
	"strings"

	"hipcortex/internal/logging"

	tea "github.com/charmbracelet/bubbletea"
)

// Slot identifies one display slot owned by one operation.
type Slot int

const (
	SlotGraph Slot = iota
	SlotFSM
	SlotPerception
	SlotCLI

	slotCount
)

func (s Slot) String() string {
	switch s {
	case SlotGraph:
		return "graph"
	case SlotFSM:
		return "fsm"
	case SlotPerception:
		return "perception"
	case SlotCLI:
		return "cli"
	default:
		return fmt.Sprintf("slot(%d)", int(s))
	}
}

// Log is an append-only display log, one entry per line.
type Log []string

// Append adds entry at the end.
func (l *Log) Append(entry string) {
	*l = append(*l, entry)
}

// Text renders every entry followed by a newline.
func (l Log) Text() string {
	var b strings.Builder
	for _, e := range l {
		b.WriteString(e)
		b.WriteByte('\n')
	}
	return b.String()
}

// Tail returns the most recent entry, or "" for an empty log.
func (l Log) Tail() string {
	if len(l) == 0 {
		return ""
	}
	return l[len(l)-1]
}

// State is the console's display store: one field per slot. It is mutated only
// by the capture step of an operation and by Apply.
type State struct {
	Graph    string
	GraphErr error

	FSMState     string
	ReflexionErr error

	PerceptionInput  string
	PerceptionLog    Log
	PerceptionErr    error
	PerceptionRecall string

	CLIInput  string
	CLILog    Log
	CLIErr    error
	CLIRecall string

	// InFlight counts dispatched but unresolved commands per slot.
	InFlight [slotCount]int
}

// NewState returns the state a freshly loaded console starts from.
func NewState() State {
	return State{}
}

// Pending reports how many commands for slot are still outstanding.
func (s *State) Pending(slot Slot) int {
	if slot < 0 || slot >= slotCount {
		return 0
	}
	return s.InFlight[slot]
}

// Busy reports whether any command is outstanding.
func (s *State) Busy() bool {
	for _, n := range s.InFlight {
		if n > 0 {
			return true
		}
	}
	return false
}

func (s *State) begin(slot Slot) {
	s.InFlight[slot]++
}

func (s *State) finish(slot Slot) {
	if s.InFlight[slot] > 0 {
		s.InFlight[slot]--
	}
}

// Apply folds a completion message into the state. It reports whether msg was
// one of the bridge's completion messages.
func (s *State) Apply(msg tea.Msg) bool {
	switch msg := msg.(type) {
	case GraphLoadedMsg:
		s.finish(SlotGraph)
		if msg.Err != nil {
			s.GraphErr = msg.Err
			if errors.Is(msg.Err, ErrMalformedPayload) {
				s.Graph = fmt.Sprintf("<unrenderable graph payload: %v>", msg.Err)
			} else {
				s.Graph = "error: " + msg.Err.Error()
			}
			logging.Get(logging.CategoryBridge).Warn("graph #%d failed: %v", msg.Seq, msg.Err)
			return true
		}
		s.Graph = msg.Text
		s.GraphErr = nil
		logging.BridgeDebug("graph #%d applied (%d bytes)", msg.Seq, len(msg.Text))
		return true

	case ReflexionDoneMsg:
		s.finish(SlotFSM)
		if msg.Err != nil {
			s.ReflexionErr = msg.Err
			s.FSMState = "Reflexion failed: " + msg.Err.Error()
			logging.Get(logging.CategoryBridge).Warn("reflexion #%d failed: %v", msg.Seq, msg.Err)
			return true
		}
		s.ReflexionErr = nil
		s.FSMState = fmt.Sprintf("Loops run: %d", msg.Loops)
		logging.BridgeDebug("reflexion #%d applied: %d loops", msg.Seq, msg.Loops)
		return true

	case PerceptionDoneMsg:
		s.finish(SlotPerception)
		if msg.Err != nil {
			s.PerceptionErr = msg.Err
			s.PerceptionRecall = msg.Input
			logging.Get(logging.CategoryBridge).Warn("perception #%d failed: %v", msg.Seq, msg.Err)
			return true
		}
		s.PerceptionErr = nil
		s.PerceptionLog.Append(msg.Reply)
		logging.BridgeDebug("perception #%d appended", msg.Seq)
		return true

	case CLIDoneMsg:
		s.finish(SlotCLI)
		if msg.Err != nil {
			s.CLIErr = msg.Err
			s.CLIRecall = msg.Input
			logging.Get(logging.CategoryBridge).Warn("cli #%d failed: %v", msg.Seq, msg.Err)
			return true
		}
		s.CLIErr = nil
		s.CLILog.Append(msg.Reply)
		logging.BridgeDebug("cli #%d appended", msg.Seq)
		return true
	}
	return false
}

// RecallPerception puts the last failed perception text back into an empty
// input field.
func (s *State) RecallPerception() bool {
	if s.PerceptionRecall == "" || s.PerceptionInput != "" {
		return false
	}
	s.PerceptionInput = s.PerceptionRecall
	s.PerceptionRecall = ""
	return true
}

// RecallCLI puts the last failed CLI command back into an empty input field.
func (s *State) RecallCLI() bool {
	if s.CLIRecall == "" || s.CLIInput != "" {
		return false
	}
	s.CLIInput = s.CLIRecall
	s.CLIRecall = ""
	return true
}
