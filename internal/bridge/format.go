package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrMalformedPayload marks a success payload whose shape does not match
// what the command promises.
var ErrMalformedPayload = errors.New("malformed payload")

// decodeOne decodes exactly one JSON value from payload.
func decodeOne(payload json.RawMessage, v any) error {
	if len(bytes.TrimSpace(payload)) == 0 {
		return fmt.Errorf("%w: empty", ErrMalformedPayload)
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("%w: trailing data", ErrMalformedPayload)
	}
	return nil
}

// FormatGraph renders an opaque graph payload as indented JSON with object keys
// sorted, so equal payloads always render identically.
func FormatGraph(payload json.RawMessage) (string, error) {
	var v any
	if err := decodeOne(payload, &v); err != nil {
		return "", err
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return string(out), nil
}

// decodeCount reads the reflexion loop count: a non-negative integer.
func decodeCount(payload json.RawMessage) (int64, error) {
	var raw any
	if err := decodeOne(payload, &raw); err != nil {
		return 0, err
	}
	n, ok := raw.(json.Number)
	if !ok {
		return 0, fmt.Errorf("%w: loop count is %T, not a number", ErrMalformedPayload, raw)
	}
	v, err := n.Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: loop count %q is not an integer", ErrMalformedPayload, n.String())
	}
	if v < 0 {
		return 0, fmt.Errorf("%w: negative loop count %d", ErrMalformedPayload, v)
	}
	return v, nil
}

// decodeText reads a string reply.
func decodeText(payload json.RawMessage) (string, error) {
	if bytes.Equal(bytes.TrimSpace(payload), []byte("null")) {
		return "", fmt.Errorf("%w: null reply", ErrMalformedPayload)
	}
	var s string
	if err := decodeOne(payload, &s); err != nil {
		return "", err
	}
	return s, nil
}
