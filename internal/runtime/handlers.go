package runtime

import (
	"context"
	"fmt"
	"strings"

	"hipcortex/internal/channel"
	"hipcortex/internal/logging"
)

// cliCommands lists the commands understood by cli_command, in help order.
var cliCommands = []string{
	"graph stats",
	"help",
	"reflexion reset",
	"trace last",
	"trace list",
}

// Register binds the four runtime commands on l.
func (r *Runtime) Register(l *channel.Local) {
	l.Handle(channel.CmdGetSymbolicGraph, r.handleGraph)
	l.Handle(channel.CmdRunReflexion, r.handleReflexion)
	l.Handle(channel.CmdSendPerception, r.handlePerception)
	l.Handle(channel.CmdCLI, r.handleCLI)
}

// Channel returns an in-process channel served by r.
func (r *Runtime) Channel() *channel.Local {
	l := channel.NewLocal()
	r.Register(l)
	return l
}

func (r *Runtime) handleGraph(ctx context.Context, _ channel.Params) (any, error) {
	return r.Graph.Snapshot(), nil
}

func (r *Runtime) handleReflexion(ctx context.Context, _ channel.Params) (any, error) {
	n := r.Reflexion.Loop()
	logging.Runtime("reflexion loop %d complete", n)
	r.record(RecordReflexion, "runtime", "reflexion_loop", fmt.Sprintf("loop %d", n), map[string]any{"loops": n})
	return n, nil
}

func (r *Runtime) handlePerception(ctx context.Context, params channel.Params) (any, error) {
	text := params.String(channel.ParamText)
	rec, err := NewRecord(RecordPerception, "user", "input", text, map[string]any{"modality": "text"})
	if err != nil {
		return nil, err
	}
	if err := r.Memory.Add(rec); err != nil {
		return nil, err
	}
	return "perceived: " + text, nil
}

func (r *Runtime) handleCLI(ctx context.Context, params channel.Params) (any, error) {
	raw := params.String(channel.ParamCmd)
	// Runs of whitespace are collapsed, so "  trace   list " matches "trace list".
	cmd := strings.Join(strings.Fields(raw), " ")
	logging.RuntimeDebug("cli: %q", cmd)

	switch cmd {
	case "trace list":
		// Perceptions only; reflexion and temporal bookkeeping is not a trace.
		n, err := r.Memory.CountByType(RecordPerception)
		if err != nil {
			return nil, err
		}
		return fmt.Sprintf("%d records", n), nil

	case "trace last":
		recs, err := r.Memory.Recent(1)
		if err != nil {
			return nil, err
		}
		if len(recs) == 0 {
			return "no records", nil
		}
		rec := recs[0]
		return fmt.Sprintf("%s %s/%s: %s", rec.Type, rec.Actor, rec.Action, rec.Target), nil

	case "graph stats":
		nodes, edges := r.Graph.Stats()
		return fmt.Sprintf("%d nodes, %d edges", nodes, edges), nil

	case "reflexion reset":
		r.Reflexion.Reset()
		r.record(RecordTemporal, "user", "reflexion_reset", "reflexion", nil)
		return "reflexion counter reset", nil

	case "help":
		return "commands: " + strings.Join(cliCommands, ", "), nil
	}
	return "unknown command: " + raw, nil
}

// record stores a bookkeeping record. Failures are logged, not returned: the
// command itself already succeeded.
func (r *Runtime) record(typ RecordType, actor, action, target string, meta map[string]any) {
	rec, err := NewRecord(typ, actor, action, target, meta)
	if err == nil {
		err = r.Memory.Add(rec)
	}
	if err != nil {
		logging.Get(logging.CategoryRuntime).Warn("failed to record %s/%s: %v", typ, action, err)
	}
}
