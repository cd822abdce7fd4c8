package channel

import (
	"fmt"
	"sort"
)

// Command names one capability of the agent runtime.
type Command string

const (
	CmdGetSymbolicGraph Command = "get_symbolic_graph"
	CmdRunReflexion     Command = "run_reflexion"
	CmdSendPerception   Command = "send_perception"
	CmdCLI              Command = "cli_command"
)

// Parameter keys.
const (
	ParamText = "text"
	ParamCmd  = "cmd"
)

// Params is the argument mapping of a command. Nil for commands that take none.
type Params map[string]any

// commandParams lists the single string parameter each command requires, or ""
// for commands that take none.
var commandParams = map[Command]string{
	CmdGetSymbolicGraph: "",
	CmdRunReflexion:     "",
	CmdSendPerception:   ParamText,
	CmdCLI:              ParamCmd,
}

// Commands returns the recognized command set in stable order.
func Commands() []Command {
	out := make([]Command, 0, len(commandParams))
	for c := range commandParams {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Known reports whether c is part of the fixed command set.
func Known(c Command) bool {
	_, ok := commandParams[c]
	return ok
}

// Validate checks the command name and the shape of its parameters.
func Validate(c Command, params Params) error {
	key, ok := commandParams[c]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, c)
	}

	if key == "" {
		if len(params) != 0 {
			return fmt.Errorf("%w: %s takes no parameters", ErrInvalidParams, c)
		}
		return nil
	}

	if len(params) != 1 {
		return fmt.Errorf("%w: %s takes exactly {%s}", ErrInvalidParams, c, key)
	}
	v, present := params[key]
	if !present {
		return fmt.Errorf("%w: %s missing %q", ErrInvalidParams, c, key)
	}
	if _, isString := v.(string); !isString {
		return fmt.Errorf("%w: %s.%s must be a string, got %T", ErrInvalidParams, c, key, v)
	}
	return nil
}

// TextParams builds the parameter mapping for send_perception.
func TextParams(text string) Params {
	return Params{ParamText: text}
}

// CmdParams builds the parameter mapping for cli_command.
func CmdParams(cmd string) Params {
	return Params{ParamCmd: cmd}
}

// String returns the string parameter for key, or "" if absent.
func (p Params) String(key string) string {
	s, _ := p[key].(string)
	return s
}
