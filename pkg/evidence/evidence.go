package evidence

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types the coordinator emits. Collaborators grep the evidence
// stream for these exact strings; do not rename them.
const (
	TypeIntentRejectedNoArtifact    = "INTENT_REJECTED_NO_ARTIFACT"
	TypeIntentRejectedUnclarified   = "INTENT_REJECTED_UNCLARIFIED"
	TypeIntentRejectedArtifactError = "INTENT_REJECTED_ARTIFACT_ERROR"
)

// Event is one line of the evidence stream
type Event struct {
	EventID   string                 `json:"event_id"`
	Timestamp time.Time              `json:"timestamp"`
	Type      string                 `json:"type"`
	NodeRole  string                 `json:"node_role"`
	Summary   string                 `json:"summary"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Tags      []string               `json:"tags,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
}

// NewEvent builds an evidence event with a fresh ID and timestamp
func NewEvent(eventType, nodeRole, summary string, payload map[string]interface{}, tags []string, sessionID string) Event {
	return Event{
		EventID:   uuid.New().String(),
		Timestamp: time.Now(),
		Type:      eventType,
		NodeRole:  nodeRole,
		Summary:   summary,
		Payload:   payload,
		Tags:      tags,
		SessionID: sessionID,
	}
}

// Recorder appends events to a JSONL file. A nil Recorder drops events,
// so callers that run without an evidence stream need no branching.
type Recorder struct {
	mu   sync.Mutex
	path string
}

// NewRecorder creates a recorder appending to path
func NewRecorder(path string) *Recorder {
	return &Recorder{path: path}
}

// Append writes one event line. The file is opened O_APPEND per call so
// interleaving with other processes stays line-atomic.
func (r *Recorder) Append(ev Event) error {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal evidence event: %w", err)
	}

	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open evidence log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append evidence event: %w", err)
	}
	return nil
}

// ReadAll loads every parseable event from the stream, skipping bad
// lines. Intended for tooling and tests, not the pulse path.
func (r *Recorder) ReadAll() ([]Event, error) {
	if r == nil {
		return nil, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read evidence log: %w", err)
	}

	var events []Event
	start := 0
	for i := 0; i <= len(data); i++ {
		if i == len(data) || data[i] == '\n' {
			line := data[start:i]
			start = i + 1
			if len(line) == 0 {
				continue
			}
			var ev Event
			if err := json.Unmarshal(line, &ev); err != nil {
				continue
			}
			events = append(events, ev)
		}
	}
	return events, nil
}
