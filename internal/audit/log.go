// Package audit provides the in-memory black-box recording of a session.
package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/user/aegisforge/internal/types"
)

// Log is an append-only, in-memory sequence of audit events for one
// session. Insertion order is the only total order in the system; Export
// snapshots preserve it exactly. LogEvent never fails.
type Log struct {
	sessionID   types.SessionID
	candidateID string
	start       time.Time

	mu     sync.Mutex
	events []types.AuditEvent

	now func() time.Time
}

// New creates a Log for the given session.
func New(sessionID types.SessionID, candidateID string) *Log {
	return &Log{
		sessionID:   sessionID,
		candidateID: candidateID,
		start:       time.Now().UTC(),
		now:         time.Now,
	}
}

// SessionID returns the owning session's ID.
func (l *Log) SessionID() types.SessionID { return l.sessionID }

// CandidateID returns the candidate identifier recorded at session start.
func (l *Log) CandidateID() string { return l.candidateID }

// StartTime returns when the log was created.
func (l *Log) StartTime() time.Time { return l.start }

// LogEvent appends an event to the session timeline. Best effort: it never
// returns an error and must not crash the caller.
func (l *Log) LogEvent(actor, kind, details string, metadata map[string]any) {
	event := types.AuditEvent{
		Timestamp: float64(l.now().UTC().UnixNano()) / 1e9,
		Actor:     actor,
		Kind:      kind,
		Details:   details,
		Metadata:  metadata,
	}

	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()
}

// Export returns a stable snapshot of all events in insertion order.
func (l *Log) Export() []types.AuditEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]types.AuditEvent, len(l.events))
	copy(out, l.events)
	return out
}

// WriteJSONL persists the log to sessions/<sessionID>/events.jsonl under
// root, one event per line. Called at teardown; log-time appends do no I/O.
func (l *Log) WriteJSONL(root string) error {
	dir := filepath.Join(root, "sessions", string(l.sessionID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(dir, "events.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open events file: %w", err)
	}
	defer f.Close()

	for _, event := range l.Export() {
		data, err := json.Marshal(event)
		if err != nil {
			slog.Warn("skipping unmarshalable audit event", "kind", event.Kind, "error", err)
			continue
		}
		data = append(data, '\n')
		if _, err := f.Write(data); err != nil {
			return fmt.Errorf("write event: %w", err)
		}
	}
	return nil
}

// ReadJSONL loads a previously persisted event log for a session.
func ReadJSONL(root string, sessionID types.SessionID) ([]types.AuditEvent, error) {
	path := filepath.Join(root, "sessions", string(sessionID), "events.jsonl")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read events file: %w", err)
	}

	var events []types.AuditEvent
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var event types.AuditEvent
		if err := dec.Decode(&event); err != nil {
			return nil, fmt.Errorf("unmarshal event: %w", err)
		}
		events = append(events, event)
	}
	return events, nil
}
