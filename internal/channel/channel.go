// Package channel is the single request/response primitive between the console
// and the agent runtime. Every runtime capability is reached through
// Channel.Invoke; the package also carries the in-process and HTTP transports.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hipcortex/internal/logging"

	"github.com/google/uuid"
)

// Channel issues one command and waits for its single result.
type Channel interface {
	Invoke(ctx context.Context, cmd Command, params Params) (json.RawMessage, error)
}

// Func adapts a plain function to Channel.
type Func func(ctx context.Context, cmd Command, params Params) (json.RawMessage, error)

func (f Func) Invoke(ctx context.Context, cmd Command, params Params) (json.RawMessage, error) {
	if f == nil {
		return nil, fmt.Errorf("%s: %w", cmd, ErrUnavailable)
	}
	return f(ctx, cmd, params)
}

var (
	// ErrUnavailable means the channel itself is missing or unreachable.
	ErrUnavailable = errors.New("command channel unavailable")
	// ErrUnknownCommand means the command is outside the fixed set.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrInvalidParams means the parameters do not match the command contract.
	ErrInvalidParams = errors.New("invalid command parameters")
)

// CommandError is a failure reported for one specific call.
type CommandError struct {
	Command Command
	Message string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Message == "" && e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Command, e.Message)
}

func (e *CommandError) Unwrap() error { return e.Err }

type requestIDKey struct{}

// WithRequestID tags ctx with a correlation id for one dispatch.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the dispatch correlation id carried by ctx, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Invoke validates the request, tags it with a request id and sends it through
// ch. A nil ch fails with ErrUnavailable instead of panicking.
func Invoke(ctx context.Context, ch Channel, cmd Command, params Params) (json.RawMessage, error) {
	if ch == nil {
		return nil, fmt.Errorf("%s: %w", cmd, ErrUnavailable)
	}
	if err := Validate(cmd, params); err != nil {
		return nil, &CommandError{Command: cmd, Err: err}
	}

	reqID := RequestID(ctx)
	if reqID == "" {
		reqID = uuid.NewString()
		ctx = WithRequestID(ctx, reqID)
	}

	logging.ChannelDebug("dispatch %s req=%s", cmd, reqID)
	logging.AuditDispatch(reqID, string(cmd))

	start := time.Now()
	result, err := ch.Invoke(ctx, cmd, params)
	elapsed := time.Since(start)
	logging.AuditResult(reqID, string(cmd), elapsed, err)

	if err != nil {
		logging.Get(logging.CategoryChannel).Warn("%s failed after %v: %v", cmd, elapsed, err)
		return nil, err
	}
	logging.ChannelDebug("%s completed in %v (%d bytes)", cmd, elapsed, len(result))
	return result, nil
}
