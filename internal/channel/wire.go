package channel

import "encoding/json"

// HTTP paths served by internal/server and used by the HTTP channel.
const (
	InvokePath = "/api/v1/invoke"
	HealthPath = "/api/v1/health"

	RequestIDHeader = "X-Request-ID"
)

// Request is the POST body of InvokePath.
type Request struct {
	Command Command `json:"command"`
	Params  Params  `json:"params,omitempty"`
}

// Response is the body returned by InvokePath, for success and failure alike.
type Response struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Health is the body returned by HealthPath.
type Health struct {
	Status   string    `json:"status"`
	Commands []Command `json:"commands"`
}
