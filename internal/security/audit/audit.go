package audit

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one portal audit event. Distinct from the login_audit
// database table: these are operational events for the log stream.
type Event struct {
	ID        string    `json:"id"`
	At        time.Time `json:"at"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	ClientKey string    `json:"clientKey,omitempty"`
	Outcome   string    `json:"outcome"`
	Detail    string    `json:"detail,omitempty"`
}

// Logger writes audit events to the structured log and fans them out
// to live subscribers (the admin websocket stream).
type Logger struct {
	logger *slog.Logger

	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{
		logger: logger,
		subs:   map[chan Event]struct{}{},
	}
}

// Record logs one audit event and broadcasts it to subscribers. A slow
// subscriber is skipped, never blocked on.
func (al *Logger) Record(actor, action, clientKey, outcome, detail string) {
	e := Event{
		ID:        uuid.NewString(),
		At:        time.Now().UTC(),
		Actor:     actor,
		Action:    action,
		ClientKey: clientKey,
		Outcome:   outcome,
		Detail:    detail,
	}

	al.logger.Info("audit",
		slog.String("audit_id", e.ID),
		slog.String("actor", actor),
		slog.String("action", action),
		slog.String("client_key", clientKey),
		slog.String("outcome", outcome),
		slog.String("detail", detail),
	)

	al.mu.Lock()
	defer al.mu.Unlock()
	for ch := range al.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// LogLogin records a login attempt outcome
func (al *Logger) LogLogin(username, method, outcome string) {
	al.Record(username, "login_"+method, "", outcome, "")
}

// LogEmbedIssued records an issued embed credential
func (al *Logger) LogEmbedIssued(username, clientKey string) {
	al.Record(username, "embed_token", clientKey, "issued", "")
}

// LogDataAccess records a dataset read
func (al *Logger) LogDataAccess(username, clientKey, outcome string) {
	al.Record(username, "data_read", clientKey, outcome, "")
}

// LogDenied records a rejected access attempt
func (al *Logger) LogDenied(username, clientKey, reason string) {
	al.Record(username, "access_denied", clientKey, "denied", reason)
}

// Subscribe returns a channel of future events and a cancel func. The
// channel is buffered; events overflowing the buffer are dropped for
// that subscriber.
func (al *Logger) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)

	al.mu.Lock()
	al.subs[ch] = struct{}{}
	al.mu.Unlock()

	cancel := func() {
		al.mu.Lock()
		delete(al.subs, ch)
		al.mu.Unlock()
	}
	return ch, cancel
}
