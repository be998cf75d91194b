package logger

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Audit event types.
const (
	EventCredentialSaved     = "credential_saved"
	EventCredentialDeleted   = "credential_deleted"
	EventCredentialRejected  = "credential_rejected"
	EventRegistrationSent    = "registration_submitted"
	EventRegistrationApprove = "registration_approved"
	EventRegistrationReject  = "registration_rejected"
)

// AuditFileName is the audit log written inside the log directory.
const AuditFileName = "audit.log"

// AuditEvent represents a security-relevant audit log entry.
type AuditEvent struct {
	EventID   string                 `json:"event_id"`
	Timestamp time.Time              `json:"timestamp"`
	EventType string                 `json:"event_type"`
	Actor     string                 `json:"actor,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

var (
	auditLogger *zerolog.Logger
	auditMu     sync.RWMutex
)

// InitAuditLogger configures the global audit logger.
// If writer is nil, audit logging is disabled.
func InitAuditLogger(writer io.Writer) {
	auditMu.Lock()
	defer auditMu.Unlock()

	if writer == nil {
		auditLogger = nil
		return
	}
	l := zerolog.New(writer).With().Str("log", "audit").Logger()
	auditLogger = &l
}

// LogAuditEvent writes a structured audit event if the audit logger is configured.
func LogAuditEvent(eventType, actor string, details map[string]interface{}) {
	auditMu.RLock()
	defer auditMu.RUnlock()

	if auditLogger == nil {
		return
	}

	event := AuditEvent{
		EventID:   uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Actor:     actor,
		Details:   details,
	}

	// NoLevel keeps audit entries above any global level.
	e := auditLogger.WithLevel(zerolog.NoLevel).
		Str("event_id", event.EventID).
		Time("timestamp", event.Timestamp).
		Str("event_type", event.EventType)

	if event.Actor != "" {
		e = e.Str("actor", event.Actor)
	}
	if len(event.Details) > 0 {
		e = e.Fields(event.Details)
	}

	e.Msg("")
}

// NewFileAuditWriter opens the audit log in dir for appending.
// Rotation is expected to be handled by external logrotate where used.
func NewFileAuditWriter(dir string) (io.WriteCloser, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dir, AuditFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
}
