package main

import (
	"fmt"
	"os"
	"path/filepath"

	"hipcortex/internal/channel"
	"hipcortex/internal/config"
	"hipcortex/internal/logging"
	"hipcortex/internal/runtime"

	"go.uber.org/zap"
)

// resolveWorkspace returns the absolute workspace directory.
func resolveWorkspace() (string, error) {
	ws := workspace
	if ws == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to resolve workspace: %w", err)
		}
		ws = cwd
	}
	return filepath.Abs(ws)
}

// loadConfig reads the config file, applies command-line overrides and
// anchors relative runtime paths at the workspace.
func loadConfig(ws string) (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath(ws)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if endpoint != "" {
		cfg.Channel.Mode = config.ChannelHTTP
		cfg.Channel.Endpoint = endpoint
	}
	if verbose {
		cfg.Logging.DebugMode = true
		cfg.Logging.Level = "debug"
	}

	cfg.Runtime.DatabasePath = anchor(ws, cfg.Runtime.DatabasePath)
	cfg.Runtime.GraphSeedPath = anchor(ws, cfg.Runtime.GraphSeedPath)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func anchor(ws, p string) string {
	if p == "" || p == ":memory:" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(ws, p)
}

// initLogging starts the category file loggers and the audit trail.
func initLogging(ws string, cfg *config.Config) error {
	if err := logging.Initialize(ws, logging.Settings{
		DebugMode:  cfg.Logging.DebugMode,
		Level:      cfg.Logging.Level,
		JSONFormat: cfg.Logging.JSONFormat,
		Categories: cfg.Logging.Categories,
	}); err != nil {
		return err
	}
	return logging.InitAudit()
}

func closeLogging() {
	logging.CloseAudit()
	logging.CloseAll()
}

// session is everything one command run needs: the channel plus whatever must
// be closed afterwards.
type session struct {
	cfg     *config.Config
	ch      channel.Channel
	runtime *runtime.Runtime
	http    *channel.HTTP
}

// openSession boots config, logging and the configured channel.
func openSession() (*session, error) {
	ws, err := resolveWorkspace()
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig(ws)
	if err != nil {
		return nil, err
	}
	if err := initLogging(ws, cfg); err != nil {
		return nil, err
	}

	s := &session{cfg: cfg}
	if cfg.IsRemote() {
		s.http = channel.NewHTTP(cfg.Channel.Endpoint, cfg.GetChannelTimeout())
		s.ch = s.http
		logger.Debug("using HTTP channel", zap.String("endpoint", cfg.Channel.Endpoint))
		logging.Get(logging.CategoryBoot).Info("channel: http %s", cfg.Channel.Endpoint)
		return s, nil
	}

	rt, err := runtime.Open(cfg.Runtime)
	if err != nil {
		closeLogging()
		return nil, fmt.Errorf("failed to open runtime: %w", err)
	}
	s.runtime = rt
	s.ch = rt.Channel()
	logger.Debug("using in-process runtime", zap.String("db", cfg.Runtime.DatabasePath))
	logging.Get(logging.CategoryBoot).Info("channel: local runtime db=%s", cfg.Runtime.DatabasePath)
	return s, nil
}

func (s *session) Close() {
	if s.http != nil {
		s.http.Close()
	}
	if s.runtime != nil {
		if err := s.runtime.Close(); err != nil {
			logger.Warn("failed to close runtime", zap.Error(err))
		}
	}
	closeLogging()
}
