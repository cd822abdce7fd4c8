package main

import (
	"context"
	"fmt"

	"hipcortex/cmd/hipcortex/console"
	"hipcortex/cmd/hipcortex/ui"
	"hipcortex/internal/bridge"
	"hipcortex/internal/logging"

	tea "github.com/charmbracelet/bubbletea"
)

// runConsole launches the interactive console on the configured channel.
func runConsole(ctx context.Context) error {
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	logging.Audit(logging.AuditEvent{EventType: logging.AuditSessionStart, Success: true, Message: sess.cfg.Channel.Mode})
	defer logging.Audit(logging.AuditEvent{EventType: logging.AuditSessionEnd, Success: true})

	styles := ui.NewStyles(ui.DetectTheme(sess.cfg.UI.IsDark()))
	title := fmt.Sprintf("%s %s · %s", sess.cfg.Name, sess.cfg.Version, channelLabel(sess))
	model := console.New(bridge.New(sess.ch), styles, title)

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if ctx != nil {
		opts = append(opts, tea.WithContext(ctx))
	}
	if _, err := tea.NewProgram(model, opts...).Run(); err != nil {
		return fmt.Errorf("console: %w", err)
	}
	return nil
}

func channelLabel(s *session) string {
	if s.cfg.IsRemote() {
		return s.cfg.Channel.Endpoint
	}
	return "local runtime"
}
