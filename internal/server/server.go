// Package server exposes a channel.Channel over HTTP so a console on another
// process or host can drive the runtime with channel.HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"hipcortex/internal/channel"
	"hipcortex/internal/config"
	"hipcortex/internal/logging"

	"golang.org/x/sync/errgroup"
)

const maxRequestBytes = 1 << 20

// Server serves the invoke and health endpoints for one channel.
type Server struct {
	addr            string
	shutdownTimeout time.Duration
	ch              channel.Channel
	server          *http.Server

	mu      sync.Mutex
	boundTo string
	ready   chan struct{}
}

// New builds a server for ch listening on cfg.Server.Listen.
func New(cfg *config.Config, ch channel.Channel) *Server {
	s := &Server{
		addr:            cfg.Server.Listen,
		shutdownTimeout: cfg.GetShutdownTimeout(),
		ch:              ch,
		ready:           make(chan struct{}),
	}
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(channel.InvokePath, s.handleInvoke)
	mux.HandleFunc(channel.HealthPath, s.handleHealth)
	return mux
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound listen address, or "" before Ready.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boundTo
}

// Run serves until ctx is cancelled or a worker fails. Each extra worker runs
// alongside the listener and receives a context cancelled on shutdown.
func (s *Server) Run(ctx context.Context, extra ...func(ctx context.Context) error) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.boundTo = ln.Addr().String()
	s.mu.Unlock()
	close(s.ready)
	logging.Server("listening on %s", ln.Addr())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		logging.Server("shutting down")
		return s.server.Shutdown(shutdownCtx)
	})

	for _, fn := range extra {
		g.Go(func() error { return fn(gctx) })
	}

	return g.Wait()
}

func (s *Server) handleInvoke(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, channel.Response{Error: "method not allowed"})
		return
	}

	var body channel.Request
	if err := decodeJSON(req, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, channel.Response{Error: fmt.Sprintf("invalid request: %v", err)})
		return
	}

	ctx := req.Context()
	if id := req.Header.Get(channel.RequestIDHeader); id != "" {
		ctx = channel.WithRequestID(ctx, id)
	}

	result, err := channel.Invoke(ctx, s.ch, body.Command, body.Params)
	if err != nil {
		status, msg := classify(err)
		logging.Get(logging.CategoryServer).Warn("%s -> %d: %s", body.Command, status, msg)
		writeJSON(w, status, channel.Response{Error: msg})
		return
	}
	writeJSON(w, http.StatusOK, channel.Response{OK: true, Result: result})
}

func (s *Server) handleHealth(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSON(w, http.StatusMethodNotAllowed, channel.Response{Error: "method not allowed"})
		return
	}
	if s.ch == nil {
		writeJSON(w, http.StatusServiceUnavailable, channel.Health{Status: "unavailable", Commands: []channel.Command{}})
		return
	}

	cmds := channel.Commands()
	if reg, ok := s.ch.(interface{ Registered() []channel.Command }); ok {
		cmds = reg.Registered()
	}
	writeJSON(w, http.StatusOK, channel.Health{Status: "ok", Commands: cmds})
}

// classify maps a dispatch error to an HTTP status and the message the client
// should surface.
func classify(err error) (int, string) {
	var cmdErr *channel.CommandError
	switch {
	case errors.Is(err, channel.ErrUnavailable):
		return http.StatusServiceUnavailable, err.Error()
	case errors.Is(err, channel.ErrUnknownCommand), errors.Is(err, channel.ErrInvalidParams):
		return http.StatusBadRequest, commandMessage(err)
	case errors.As(err, &cmdErr):
		return http.StatusUnprocessableEntity, commandMessage(err)
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func commandMessage(err error) string {
	var cmdErr *channel.CommandError
	if errors.As(err, &cmdErr) {
		if cmdErr.Message != "" {
			return cmdErr.Message
		}
		if cmdErr.Err != nil {
			return cmdErr.Err.Error()
		}
	}
	return err.Error()
}

func decodeJSON(req *http.Request, out any) error {
	if req.Body == nil {
		return fmt.Errorf("request body is required")
	}
	defer req.Body.Close()
	decoder := json.NewDecoder(http.MaxBytesReader(nil, req.Body, maxRequestBytes))
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
