package channel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRuntime(t *testing.T, handler http.HandlerFunc) *HTTP {
	t.Helper()
	srv := httptest.NewServer(handler)
	ch := NewHTTP(srv.URL+"/", 2*time.Second)
	t.Cleanup(func() {
		ch.Close()
		srv.Close()
	})
	return ch
}

func TestHTTP_InvokeSuccess(t *testing.T) {
	var got Request
	var gotID string
	ch := newTestRuntime(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, InvokePath, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		gotID = r.Header.Get(RequestIDHeader)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(Response{OK: true, Result: json.RawMessage(`"ack:hello"`)})
	})

	ctx := WithRequestID(context.Background(), "req-42")
	out, err := ch.Invoke(ctx, CmdSendPerception, TextParams("hello"))
	require.NoError(t, err)
	assert.Equal(t, `"ack:hello"`, string(out))
	assert.Equal(t, CmdSendPerception, got.Command)
	assert.Equal(t, "hello", got.Params.String(ParamText))
	assert.Equal(t, "req-42", gotID)
}

func TestHTTP_RuntimeReportedError(t *testing.T) {
	ch := newTestRuntime(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(Response{OK: false, Error: "perception text is empty"})
	})

	_, err := ch.Invoke(context.Background(), CmdSendPerception, TextParams(""))
	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, "perception text is empty", cmdErr.Message)
	assert.False(t, errors.Is(err, ErrUnavailable))
}

func TestHTTP_RemoteRuntimeUnavailable(t *testing.T) {
	ch := newTestRuntime(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(Response{OK: false, Error: "runtime not attached"})
	})

	_, err := ch.Invoke(context.Background(), CmdRunReflexion, nil)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorContains(t, err, "runtime not attached")
}

func TestHTTP_GarbageBody(t *testing.T) {
	ch := newTestRuntime(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>proxy error</html>"))
	})

	_, err := ch.Invoke(context.Background(), CmdRunReflexion, nil)
	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Contains(t, cmdErr.Message, "undecodable")
}

func TestHTTP_StatusWithoutMessage(t *testing.T) {
	ch := newTestRuntime(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"ok":false}`))
	})

	_, err := ch.Invoke(context.Background(), CmdRunReflexion, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Bad Gateway")
}

func TestHTTP_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	ch := NewHTTP(url, time.Second)
	defer ch.Close()

	_, err := ch.Invoke(context.Background(), CmdGetSymbolicGraph, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHTTP_TimeoutIsCommandFailure(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ch := NewHTTP(srv.URL, 50*time.Millisecond)
	defer ch.Close()

	_, err := ch.Invoke(context.Background(), CmdRunReflexion, nil)
	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr), "got %v", err)
	assert.Equal(t, "timed out", cmdErr.Message)
}

func TestHTTP_Health(t *testing.T) {
	ch := newTestRuntime(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, HealthPath, r.URL.Path)
		_ = json.NewEncoder(w).Encode(Health{Status: "ok", Commands: Commands()})
	})

	h, err := ch.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", h.Status)
	assert.Len(t, h.Commands, 4)
}
