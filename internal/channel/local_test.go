package channel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_SerializesHandlerResult(t *testing.T) {
	l := NewLocal()
	l.Handle(CmdGetSymbolicGraph, func(context.Context, Params) (any, error) {
		return map[string]any{"nodes": []string{}, "edges": []string{}}, nil
	})
	l.Handle(CmdSendPerception, func(_ context.Context, p Params) (any, error) {
		return "perceived: " + p.String(ParamText), nil
	})

	out, err := l.Invoke(context.Background(), CmdGetSymbolicGraph, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodes":[],"edges":[]}`, string(out))

	out, err = l.Invoke(context.Background(), CmdSendPerception, TextParams("hi"))
	require.NoError(t, err)
	assert.Equal(t, `"perceived: hi"`, string(out))

	assert.Equal(t, []Command{CmdGetSymbolicGraph, CmdSendPerception}, l.Registered())
}

func TestLocal_MissingHandler(t *testing.T) {
	_, err := NewLocal().Invoke(context.Background(), CmdRunReflexion, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestLocal_WrapsHandlerError(t *testing.T) {
	l := NewLocal()
	cause := errors.New("store offline")
	l.Handle(CmdCLI, func(context.Context, Params) (any, error) { return nil, cause })

	_, err := l.Invoke(context.Background(), CmdCLI, CmdParams("trace list"))
	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, CmdCLI, cmdErr.Command)
	assert.ErrorIs(t, err, cause)
}

func TestLocal_RecoversHandlerPanic(t *testing.T) {
	l := NewLocal()
	l.Handle(CmdRunReflexion, func(context.Context, Params) (any, error) { panic("fsm exploded") })

	_, err := l.Invoke(context.Background(), CmdRunReflexion, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fsm exploded")
}

func TestLocal_UnserializableResult(t *testing.T) {
	l := NewLocal()
	l.Handle(CmdGetSymbolicGraph, func(context.Context, Params) (any, error) {
		return map[string]any{"bad": make(chan int)}, nil
	})

	_, err := l.Invoke(context.Background(), CmdGetSymbolicGraph, nil)
	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, "unserializable result", cmdErr.Message)
}
