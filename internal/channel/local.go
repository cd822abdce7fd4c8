package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"hipcortex/internal/logging"
)

// Handler serves one command inside the process. The returned value is
// serialized to JSON exactly as a remote runtime would send it.
type Handler func(ctx context.Context, params Params) (any, error)

// Local dispatches commands to in-process handlers.
type Local struct {
	mu       sync.RWMutex
	handlers map[Command]Handler
}

// NewLocal returns a Local with no handlers registered.
func NewLocal() *Local {
	return &Local{handlers: make(map[Command]Handler)}
}

// Handle registers h for cmd, replacing any earlier handler.
func (l *Local) Handle(cmd Command, h Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[cmd] = h
}

// Registered returns the commands that currently have a handler.
func (l *Local) Registered() []Command {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Command
	for _, c := range Commands() {
		if _, ok := l.handlers[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Invoke runs the handler for cmd. A panicking handler is reported as a
// command failure for that call only.
func (l *Local) Invoke(ctx context.Context, cmd Command, params Params) (result json.RawMessage, err error) {
	if l == nil {
		return nil, fmt.Errorf("%s: %w", cmd, ErrUnavailable)
	}
	l.mu.RLock()
	h, ok := l.handlers[cmd]
	l.mu.RUnlock()
	if !ok {
		return nil, &CommandError{Command: cmd, Message: "no handler registered", Err: ErrUnknownCommand}
	}

	defer func() {
		if r := recover(); r != nil {
			logging.Get(logging.CategoryChannel).Error("handler %s panicked: %v", cmd, r)
			result = nil
			err = &CommandError{Command: cmd, Message: fmt.Sprintf("handler panic: %v", r)}
		}
	}()

	value, err := h(ctx, params)
	if err != nil {
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) {
			return nil, err
		}
		return nil, &CommandError{Command: cmd, Message: err.Error(), Err: err}
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil, &CommandError{Command: cmd, Message: "unserializable result", Err: err}
	}
	return data, nil
}
