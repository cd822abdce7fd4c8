package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AuditEventType names one kind of audited command-channel event.
type AuditEventType string

const (
	AuditCommandDispatch AuditEventType = "command_dispatch"
	AuditCommandComplete AuditEventType = "command_complete"
	AuditCommandError    AuditEventType = "command_error"

	AuditSessionStart AuditEventType = "session_start"
	AuditSessionEnd   AuditEventType = "session_end"
)

// AuditEvent is one line of the audit trail (.hipcortex/logs/audit.jsonl).
type AuditEvent struct {
	EventType  AuditEventType
	RequestID  string
	Command    string
	Success    bool
	DurationMs int64
	Error      string
	Message    string
}

var (
	auditMu     sync.Mutex
	auditFile   *os.File
	auditLogger *zap.Logger
)

// InitAudit opens the audit trail. It is a no-op outside debug mode.
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditLogger != nil {
		return nil
	}

	configMu.RLock()
	dir := logsDir
	configMu.RUnlock()
	if dir == "" {
		return fmt.Errorf("logging not initialized")
	}

	f, err := os.OpenFile(filepath.Join(dir, "audit.jsonl"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.EpochMillisTimeEncoder
	encCfg.MessageKey = "msg"
	encCfg.LevelKey = ""
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), zapcore.DebugLevel)

	auditFile = f
	auditLogger = zap.New(core)
	return nil
}

// CloseAudit flushes and closes the audit trail.
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditLogger != nil {
		_ = auditLogger.Sync()
		auditLogger = nil
	}
	if auditFile != nil {
		_ = auditFile.Close()
		auditFile = nil
	}
}

// Audit records an event. Events are dropped when the trail is closed.
func Audit(e AuditEvent) {
	auditMu.Lock()
	l := auditLogger
	auditMu.Unlock()
	if l == nil {
		return
	}

	fields := []zap.Field{
		zap.String("event", string(e.EventType)),
		zap.String("req", e.RequestID),
		zap.String("command", e.Command),
		zap.Bool("success", e.Success),
		zap.Int64("dur_ms", e.DurationMs),
	}
	if e.Error != "" {
		fields = append(fields, zap.String("error", e.Error))
	}
	l.Info(e.Message, fields...)
}

// AuditDispatch records the start of a command dispatch.
func AuditDispatch(requestID, command string) {
	Audit(AuditEvent{
		EventType: AuditCommandDispatch,
		RequestID: requestID,
		Command:   command,
		Success:   true,
		Message:   "dispatched " + command,
	})
}

// AuditResult records how a dispatch finished.
func AuditResult(requestID, command string, elapsed time.Duration, err error) {
	e := AuditEvent{
		EventType:  AuditCommandComplete,
		RequestID:  requestID,
		Command:    command,
		Success:    err == nil,
		DurationMs: elapsed.Milliseconds(),
		Message:    "completed " + command,
	}
	if err != nil {
		e.EventType = AuditCommandError
		e.Error = err.Error()
		e.Message = "failed " + command
	}
	Audit(e)
}
