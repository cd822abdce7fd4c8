package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const maxResponseBytes = 16 << 20

// HTTP reaches a runtime served by `hipcortex serve`.
type HTTP struct {
	baseURL string
	client  *http.Client
}

// NewHTTP returns a channel posting to baseURL. A zero timeout leaves calls
// unbounded.
func NewHTTP(baseURL string, timeout time.Duration) *HTTP {
	baseURL = strings.TrimSpace(baseURL)
	baseURL = strings.TrimRight(baseURL, "/")
	return &HTTP{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Close releases idle connections.
func (h *HTTP) Close() {
	h.client.CloseIdleConnections()
}

// Invoke posts the command and decodes the response envelope. Transport
// failures surface as ErrUnavailable; timeouts and runtime-reported errors
// surface as *CommandError.
func (h *HTTP) Invoke(ctx context.Context, cmd Command, params Params) (json.RawMessage, error) {
	if h == nil {
		return nil, fmt.Errorf("%s: %w", cmd, ErrUnavailable)
	}
	body, err := json.Marshal(Request{Command: cmd, Params: params})
	if err != nil {
		return nil, &CommandError{Command: cmd, Message: "encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+InvokePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", cmd, ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if id := RequestID(ctx); id != "" {
		req.Header.Set(RequestIDHeader, id)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(cmd, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &CommandError{Command: cmd, Message: "read response", Err: err}
	}

	var envelope Response
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &CommandError{
			Command: cmd,
			Message: fmt.Sprintf("status %d with undecodable body", resp.StatusCode),
			Err:     err,
		}
	}

	if resp.StatusCode != http.StatusOK || !envelope.OK {
		msg := envelope.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		if resp.StatusCode == http.StatusServiceUnavailable {
			return nil, fmt.Errorf("%s: %w: %s", cmd, ErrUnavailable, msg)
		}
		return nil, &CommandError{Command: cmd, Message: msg}
	}
	return envelope.Result, nil
}

// Health queries the runtime's health endpoint.
func (h *HTTP) Health(ctx context.Context) (Health, error) {
	var out Health
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+HealthPath, nil)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return out, fmt.Errorf("health check returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode health: %w", err)
	}
	return out, nil
}

func classifyTransportError(cmd Command, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &CommandError{Command: cmd, Message: "timed out", Err: err}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &CommandError{Command: cmd, Message: "cancelled", Err: err}
	}
	return fmt.Errorf("%s: %w: %v", cmd, ErrUnavailable, err)
}
