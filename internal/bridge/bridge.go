// Package bridge forwards the console's four user actions to the agent runtime
// through a channel.Channel and folds the results back into State.
//
// Every operation captures its input synchronously and returns a tea.Cmd. The
// command performs the single blocking dispatch; its message is applied with
// State.Apply on the event loop. Completions are applied in the order they
// arrive, which may differ from the order they were sent.
package bridge

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"hipcortex/internal/channel"
	"hipcortex/internal/logging"

	tea "github.com/charmbracelet/bubbletea"
)

// Bridge issues the console's commands over one injected channel.
type Bridge struct {
	ch  channel.Channel
	seq atomic.Uint64
}

// New returns a Bridge dispatching over ch. A nil ch is allowed: every
// operation then completes with channel.ErrUnavailable.
func New(ch channel.Channel) *Bridge {
	return &Bridge{ch: ch}
}

func (b *Bridge) next() uint64 {
	return b.seq.Add(1)
}

// Dispatched returns how many commands this bridge has sent.
func (b *Bridge) Dispatched() uint64 {
	return b.seq.Load()
}

func (b *Bridge) invoke(cmd channel.Command, params channel.Params) (json.RawMessage, error) {
	// No deadline: a hung runtime leaves the slot pending.
	return channel.Invoke(context.Background(), b.ch, cmd, params)
}

// LoadGraph fetches the symbolic graph snapshot. The rendered snapshot
// replaces the graph slot.
func (b *Bridge) LoadGraph(s *State) tea.Cmd {
	seq := b.next()
	s.begin(SlotGraph)
	logging.BridgeDebug("graph #%d dispatched", seq)

	return func() tea.Msg {
		payload, err := b.invoke(channel.CmdGetSymbolicGraph, nil)
		if err != nil {
			return GraphLoadedMsg{Seq: seq, Err: err}
		}
		text, err := FormatGraph(payload)
		if err != nil {
			return GraphLoadedMsg{Seq: seq, Err: err}
		}
		return GraphLoadedMsg{Seq: seq, Text: text}
	}
}

// RunReflexion triggers the runtime's reflexion loop and reports the loop
// count into the FSM slot.
func (b *Bridge) RunReflexion(s *State) tea.Cmd {
	seq := b.next()
	s.begin(SlotFSM)
	logging.BridgeDebug("reflexion #%d dispatched", seq)

	return func() tea.Msg {
		payload, err := b.invoke(channel.CmdRunReflexion, nil)
		if err != nil {
			return ReflexionDoneMsg{Seq: seq, Err: err}
		}
		n, err := decodeCount(payload)
		if err != nil {
			return ReflexionDoneMsg{Seq: seq, Err: err}
		}
		return ReflexionDoneMsg{Seq: seq, Loops: n}
	}
}

// SendPerception captures the perception input, clears the field at once and
// returns the dispatch. The reply is appended to the perception log.
func (b *Bridge) SendPerception(s *State) tea.Cmd {
	text := s.PerceptionInput
	s.PerceptionInput = ""
	seq := b.next()
	s.begin(SlotPerception)
	logging.BridgeDebug("perception #%d dispatched (%d chars)", seq, len(text))

	return func() tea.Msg {
		payload, err := b.invoke(channel.CmdSendPerception, channel.TextParams(text))
		if err != nil {
			return PerceptionDoneMsg{Seq: seq, Input: text, Err: err}
		}
		reply, err := decodeText(payload)
		if err != nil {
			return PerceptionDoneMsg{Seq: seq, Input: text, Err: err}
		}
		return PerceptionDoneMsg{Seq: seq, Input: text, Reply: reply}
	}
}

// RunCLI captures the CLI input, clears the field at once and returns the
// dispatch. The output is appended to the CLI log.
func (b *Bridge) RunCLI(s *State) tea.Cmd {
	cmd := s.CLIInput
	s.CLIInput = ""
	seq := b.next()
	s.begin(SlotCLI)
	logging.BridgeDebug("cli #%d dispatched: %q", seq, cmd)

	return func() tea.Msg {
		payload, err := b.invoke(channel.CmdCLI, channel.CmdParams(cmd))
		if err != nil {
			return CLIDoneMsg{Seq: seq, Input: cmd, Err: err}
		}
		out, err := decodeText(payload)
		if err != nil {
			return CLIDoneMsg{Seq: seq, Input: cmd, Err: err}
		}
		return CLIDoneMsg{Seq: seq, Input: cmd, Reply: out}
	}
}

// Await runs cmd on the calling goroutine and applies its message to s. It is
// the headless counterpart of the bubbletea event loop.
func Await(s *State, cmd tea.Cmd) tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	s.Apply(msg)
	return msg
}
