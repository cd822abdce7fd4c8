package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"hipcortex/internal/channel"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// =============================================================================
// FAKES
// =============================================================================

type reply struct {
	payload string
	err     error
}

type call struct {
	cmd    channel.Command
	params channel.Params
}

// fakeChannel answers each command with a scripted reply and records calls.
type fakeChannel struct {
	mu      sync.Mutex
	replies map[channel.Command]reply
	calls   []call
}

func newFake() *fakeChannel {
	return &fakeChannel{replies: make(map[channel.Command]reply)}
}

func (f *fakeChannel) on(cmd channel.Command, payload string) *fakeChannel {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[cmd] = reply{payload: payload}
	return f
}

func (f *fakeChannel) fail(cmd channel.Command, err error) *fakeChannel {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[cmd] = reply{err: err}
	return f
}

func (f *fakeChannel) Invoke(_ context.Context, cmd channel.Command, params channel.Params) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{cmd: cmd, params: params})
	r, ok := f.replies[cmd]
	if !ok {
		return nil, &channel.CommandError{Command: cmd, Message: "not scripted"}
	}
	if r.err != nil {
		return nil, r.err
	}
	return json.RawMessage(r.payload), nil
}

func (f *fakeChannel) lastCall() call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

// gatedChannel holds each perception until the test releases its reply.
type gatedChannel struct {
	gates map[string]chan string
}

func newGated(texts ...string) *gatedChannel {
	g := &gatedChannel{gates: make(map[string]chan string)}
	for _, t := range texts {
		g.gates[t] = make(chan string, 1)
	}
	return g
}

func (g *gatedChannel) release(text, reply string) {
	g.gates[text] <- reply
}

func (g *gatedChannel) Invoke(_ context.Context, _ channel.Command, params channel.Params) (json.RawMessage, error) {
	key := params.String(channel.ParamText)
	if key == "" {
		key = params.String(channel.ParamCmd)
	}
	out := <-g.gates[key]
	return json.Marshal(out)
}

var errorsByIdentity = cmpopts.EquateErrors()

// =============================================================================
// END-TO-END SCENARIO
// =============================================================================

func TestEndToEndScenario(t *testing.T) {
	fake := newFake().
		on(channel.CmdGetSymbolicGraph, `{ "nodes": [], "edges": [] }`).
		on(channel.CmdRunReflexion, `3`).
		on(channel.CmdSendPerception, `"ack:hello"`).
		on(channel.CmdCLI, `"OK"`)
	b := New(fake)
	s := NewState()

	Await(&s, b.LoadGraph(&s))
	assert.Equal(t, "{\n  \"edges\": [],\n  \"nodes\": []\n}", s.Graph)

	Await(&s, b.RunReflexion(&s))
	assert.Equal(t, "Loops run: 3", s.FSMState)

	s.PerceptionInput = "hello"
	cmd := b.SendPerception(&s)
	assert.Empty(t, s.PerceptionInput, "input must clear at dispatch time")
	Await(&s, cmd)
	assert.True(t, strings.HasSuffix(s.PerceptionLog.Text(), "ack:hello\n"))
	assert.Equal(t, "hello", fake.lastCall().params.String(channel.ParamText))

	s.CLIInput = "status"
	cmd = b.RunCLI(&s)
	assert.Empty(t, s.CLIInput)
	Await(&s, cmd)
	assert.True(t, strings.HasSuffix(s.CLILog.Text(), "OK\n"))
	assert.Equal(t, "status", fake.lastCall().params.String(channel.ParamCmd))

	want := State{
		Graph:         "{\n  \"edges\": [],\n  \"nodes\": []\n}",
		FSMState:      "Loops run: 3",
		PerceptionLog: Log{"ack:hello"},
		CLILog:        Log{"OK"},
	}
	if diff := cmp.Diff(want, s, errorsByIdentity); diff != "" {
		t.Errorf("final state mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, uint64(4), b.Dispatched())
}

// =============================================================================
// GRAPH LOADER
// =============================================================================

func TestLoadGraph_ReplacesPriorContent(t *testing.T) {
	fake := newFake().on(channel.CmdGetSymbolicGraph, `{"nodes":[{"id":"a","label":"A"}]}`)
	b := New(fake)
	s := NewState()

	Await(&s, b.LoadGraph(&s))
	first := s.Graph
	require.Contains(t, first, `"label": "A"`)

	fake.on(channel.CmdGetSymbolicGraph, `{"nodes":[]}`)
	Await(&s, b.LoadGraph(&s))
	assert.Equal(t, "{\n  \"nodes\": []\n}", s.Graph)
	assert.NotContains(t, s.Graph, "label")
}

func TestLoadGraph_SendsNoParameters(t *testing.T) {
	fake := newFake().on(channel.CmdGetSymbolicGraph, `[]`)
	s := NewState()
	Await(&s, New(fake).LoadGraph(&s))

	assert.Equal(t, channel.CmdGetSymbolicGraph, fake.lastCall().cmd)
	assert.Nil(t, fake.lastCall().params)
	assert.Equal(t, "[]", s.Graph)
}

func TestLoadGraph_FailureReplacesStaleSuccess(t *testing.T) {
	fake := newFake().on(channel.CmdGetSymbolicGraph, `{"nodes":[]}`)
	b := New(fake)
	s := NewState()
	Await(&s, b.LoadGraph(&s))

	fake.fail(channel.CmdGetSymbolicGraph, &channel.CommandError{Command: channel.CmdGetSymbolicGraph, Message: "store locked"})
	Await(&s, b.LoadGraph(&s))

	require.Error(t, s.GraphErr)
	assert.Equal(t, "error: get_symbolic_graph: store locked", s.Graph)
}

func TestLoadGraph_MalformedPayloadRendersPlaceholder(t *testing.T) {
	fake := newFake().on(channel.CmdGetSymbolicGraph, `{"nodes": [`)
	s := NewState()
	Await(&s, New(fake).LoadGraph(&s))

	assert.ErrorIs(t, s.GraphErr, ErrMalformedPayload)
	assert.True(t, strings.HasPrefix(s.Graph, "<unrenderable graph payload:"), s.Graph)
}

func TestLoadGraph_SuccessClearsError(t *testing.T) {
	fake := newFake().fail(channel.CmdGetSymbolicGraph, errors.New("down"))
	b := New(fake)
	s := NewState()
	Await(&s, b.LoadGraph(&s))
	require.Error(t, s.GraphErr)

	fake.on(channel.CmdGetSymbolicGraph, `{}`)
	Await(&s, b.LoadGraph(&s))
	assert.NoError(t, s.GraphErr)
	assert.Equal(t, "{}", s.Graph)
}

// =============================================================================
// REFLEXION TRIGGER
// =============================================================================

func TestRunReflexion_ReportsCount(t *testing.T) {
	for _, payload := range []string{"0", "1", "7", "1099511627776"} {
		t.Run(payload, func(t *testing.T) {
			fake := newFake().on(channel.CmdRunReflexion, payload)
			s := NewState()
			Await(&s, New(fake).RunReflexion(&s))
			assert.Equal(t, "Loops run: "+payload, s.FSMState)
			assert.NoError(t, s.ReflexionErr)
		})
	}
}

func TestRunReflexion_FailureIsDistinctFromZero(t *testing.T) {
	fake := newFake().on(channel.CmdRunReflexion, `2`)
	b := New(fake)
	s := NewState()
	Await(&s, b.RunReflexion(&s))
	require.Equal(t, "Loops run: 2", s.FSMState)

	fake.fail(channel.CmdRunReflexion, errors.New("fsm stuck"))
	Await(&s, b.RunReflexion(&s))

	assert.Error(t, s.ReflexionErr)
	assert.NotContains(t, s.FSMState, "Loops run")
	assert.Equal(t, "Reflexion failed: fsm stuck", s.FSMState)
}

func TestRunReflexion_MalformedCount(t *testing.T) {
	for _, payload := range []string{`3.5`, `"three"`, `"3"`, `[3]`, `true`, `-1`, `null`, `{}`, ``, `3 4`} {
		t.Run(payload, func(t *testing.T) {
			fake := newFake().on(channel.CmdRunReflexion, payload)
			s := NewState()
			Await(&s, New(fake).RunReflexion(&s))
			assert.ErrorIs(t, s.ReflexionErr, ErrMalformedPayload)
			assert.True(t, strings.HasPrefix(s.FSMState, "Reflexion failed:"))
		})
	}
}

// =============================================================================
// PERCEPTION SENDER / CLI EXECUTOR
// =============================================================================

func TestSendPerception_EmptyInputIsSent(t *testing.T) {
	fake := newFake().on(channel.CmdSendPerception, `"perceived: "`)
	s := NewState()
	Await(&s, New(fake).SendPerception(&s))

	assert.Equal(t, channel.Params{"text": ""}, fake.lastCall().params)
	assert.Equal(t, "perceived: \n", s.PerceptionLog.Text())
}

func TestSendPerception_AppendsNotReplaces(t *testing.T) {
	fake := newFake().on(channel.CmdSendPerception, `"first"`)
	b := New(fake)
	s := NewState()

	s.PerceptionInput = "one"
	Await(&s, b.SendPerception(&s))
	fake.on(channel.CmdSendPerception, `"second"`)
	s.PerceptionInput = "two"
	Await(&s, b.SendPerception(&s))

	assert.Equal(t, "first\nsecond\n", s.PerceptionLog.Text())
	assert.Equal(t, "second", s.PerceptionLog.Tail())
}

func TestSendPerception_FieldClearedBeforeCompletion(t *testing.T) {
	g := newGated("slow")
	b := New(g)
	s := NewState()
	s.PerceptionInput = "slow"

	cmd := b.SendPerception(&s)
	assert.Empty(t, s.PerceptionInput)
	assert.Equal(t, 1, s.Pending(SlotPerception))
	assert.True(t, s.Busy())

	// The user keeps typing while the dispatch is outstanding
	s.PerceptionInput = "next thought"

	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()
	g.release("slow", "ok")
	s.Apply(<-done)

	assert.Equal(t, "next thought", s.PerceptionInput, "completion must not touch the input field")
	assert.Equal(t, Log{"ok"}, s.PerceptionLog)
	assert.Equal(t, 0, s.Pending(SlotPerception))
	assert.False(t, s.Busy())
}

func TestSendPerception_CompletionOrderWins(t *testing.T) {
	g := newGated("A", "B")
	b := New(g)
	s := NewState()

	s.PerceptionInput = "A"
	cmdA := b.SendPerception(&s)
	s.PerceptionInput = "B"
	cmdB := b.SendPerception(&s)
	require.Equal(t, 2, s.Pending(SlotPerception))

	msgs := make(chan tea.Msg, 2)
	go func() { msgs <- cmdA() }()
	go func() { msgs <- cmdB() }()

	g.release("B", "reply-B")
	s.Apply(<-msgs)
	g.release("A", "reply-A")
	s.Apply(<-msgs)

	assert.Equal(t, Log{"reply-B", "reply-A"}, s.PerceptionLog)
}

func TestRunCLI_CompletionOrderWins(t *testing.T) {
	g := newGated("status", "trace list")
	b := New(g)
	s := NewState()

	s.CLIInput = "status"
	first := b.RunCLI(&s)
	s.CLIInput = "trace list"
	second := b.RunCLI(&s)

	msgs := make(chan tea.Msg, 2)
	go func() { msgs <- first() }()
	go func() { msgs <- second() }()

	g.release("trace list", "3 records")
	s.Apply(<-msgs)
	g.release("status", "OK")
	s.Apply(<-msgs)

	assert.Equal(t, "3 records\nOK\n", s.CLILog.Text())
}

func TestSendPerception_FailureAppendsNothingAndKeepsRecall(t *testing.T) {
	fake := newFake().fail(channel.CmdSendPerception, &channel.CommandError{Command: channel.CmdSendPerception, Message: "rejected"})
	b := New(fake)
	s := NewState()
	s.PerceptionLog = Log{"earlier"}

	s.PerceptionInput = "lost thought"
	Await(&s, b.SendPerception(&s))

	assert.Equal(t, Log{"earlier"}, s.PerceptionLog)
	assert.Error(t, s.PerceptionErr)
	assert.Empty(t, s.PerceptionInput)
	assert.Equal(t, "lost thought", s.PerceptionRecall)

	require.True(t, s.RecallPerception())
	assert.Equal(t, "lost thought", s.PerceptionInput)
	assert.Empty(t, s.PerceptionRecall)
}

func TestRecall_DoesNotOverwriteTyping(t *testing.T) {
	s := NewState()
	s.CLIRecall = "trace list"
	s.CLIInput = "help"

	assert.False(t, s.RecallCLI())
	assert.Equal(t, "help", s.CLIInput)

	s.CLIInput = ""
	assert.True(t, s.RecallCLI())
	assert.Equal(t, "trace list", s.CLIInput)
	assert.False(t, s.RecallCLI(), "recall buffer is single-use")
}

func TestRunCLI_MalformedReply(t *testing.T) {
	fake := newFake().on(channel.CmdCLI, `42`)
	s := NewState()
	s.CLIInput = "status"
	Await(&s, New(fake).RunCLI(&s))

	assert.Empty(t, s.CLILog)
	assert.ErrorIs(t, s.CLIErr, ErrMalformedPayload)
	assert.Equal(t, "status", s.CLIRecall)
}

func TestRunCLI_NullReplyIsMalformed(t *testing.T) {
	fake := newFake().on(channel.CmdCLI, `null`)
	s := NewState()
	Await(&s, New(fake).RunCLI(&s))
	assert.ErrorIs(t, s.CLIErr, ErrMalformedPayload)
	assert.Empty(t, s.CLILog)
}

// =============================================================================
// CAPABILITY UNAVAILABLE / ISOLATION
// =============================================================================

func TestNilChannel_EveryOperationFailsSafely(t *testing.T) {
	b := New(nil)
	s := NewState()
	s.PerceptionInput = "hello"
	s.CLIInput = "status"

	Await(&s, b.LoadGraph(&s))
	Await(&s, b.RunReflexion(&s))
	Await(&s, b.SendPerception(&s))
	Await(&s, b.RunCLI(&s))

	for name, err := range map[string]error{
		"graph":      s.GraphErr,
		"reflexion":  s.ReflexionErr,
		"perception": s.PerceptionErr,
		"cli":        s.CLIErr,
	} {
		assert.ErrorIs(t, err, channel.ErrUnavailable, name)
	}
	assert.Empty(t, s.PerceptionLog)
	assert.Empty(t, s.CLILog)
	assert.NotContains(t, s.FSMState, "Loops run")
	assert.True(t, strings.HasPrefix(s.Graph, "error:"))
	assert.False(t, s.Busy())
}

func TestFailureDoesNotBlockLaterCommands(t *testing.T) {
	fake := newFake().fail(channel.CmdCLI, errors.New("parser crashed"))
	b := New(fake)
	s := NewState()

	s.CLIInput = "bad"
	Await(&s, b.RunCLI(&s))
	require.Error(t, s.CLIErr)

	fake.on(channel.CmdCLI, `"fine"`)
	s.CLIInput = "good"
	Await(&s, b.RunCLI(&s))

	assert.NoError(t, s.CLIErr)
	assert.Equal(t, Log{"fine"}, s.CLILog)
}

func TestSlotsAreDisjoint(t *testing.T) {
	fake := newFake().
		on(channel.CmdRunReflexion, `5`).
		fail(channel.CmdGetSymbolicGraph, errors.New("down"))
	b := New(fake)
	s := NewState()
	s.PerceptionLog = Log{"keep"}
	s.CLIInput = "half typed"

	Await(&s, b.LoadGraph(&s))
	Await(&s, b.RunReflexion(&s))

	want := NewState()
	want.PerceptionLog = Log{"keep"}
	want.CLIInput = "half typed"
	want.FSMState = "Loops run: 5"
	got := s
	got.Graph, got.GraphErr = "", nil

	if diff := cmp.Diff(want, got, errorsByIdentity); diff != "" {
		t.Errorf("unrelated slots changed (-want +got):\n%s", diff)
	}
}

func TestApply_IgnoresForeignMessages(t *testing.T) {
	s := NewState()
	assert.False(t, s.Apply(tea.KeyMsg{Type: tea.KeyEnter}))
	assert.Equal(t, NewState(), s)
}

func TestAwait_NilCommand(t *testing.T) {
	s := NewState()
	assert.Nil(t, Await(&s, nil))
}

func TestSlotString(t *testing.T) {
	assert.Equal(t, "graph", SlotGraph.String())
	assert.Equal(t, "cli", SlotCLI.String())
	assert.Equal(t, "slot(9)", Slot(9).String())
	s := NewState()
	assert.Equal(t, 0, s.Pending(Slot(9)))
}
