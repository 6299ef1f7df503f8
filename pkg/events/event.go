// Package events defines the security event and audit record types
// exchanged between detection and response, and the sink that persists
// them to the external log backend.
package events

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Severity is the ordered event severity: info < warning < critical.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Rank returns the ordering value of a severity; unknown severities rank
// below info.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityWarning:
		return 2
	case SeverityCritical:
		return 3
	default:
		return 0
	}
}

// Event types produced by the detection pipelines.
const (
	TypeDeviceAnomaly = "device_anomaly"
	TypeDomainRisk    = "domain_risk"
)

// SecurityEvent is the classified output of a detection pipeline. Events
// are immutable after creation; re-classification always produces a new
// event with a new ID.
type SecurityEvent struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Subject   string                 `json:"subject"`
	Timestamp time.Time              `json:"timestamp"`
	Severity  Severity               `json:"severity"`
	Score     float64                `json:"score"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewSecurityEvent creates an event with a fresh identifier.
func NewSecurityEvent(eventType, subject string, severity Severity, score float64, metadata map[string]interface{}) SecurityEvent {
	return SecurityEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Subject:   subject,
		Timestamp: time.Now().UTC(),
		Severity:  severity,
		Score:     score,
		Metadata:  metadata,
	}
}

// Field resolves a dot-notation path against the event. The fixed event
// attributes are addressable by name; everything else resolves into the
// metadata mapping, either as "metadata.x.y" or directly as "x.y". The
// second return value is false when the path does not resolve, never an
// error, so a missing field can never satisfy a positive match.
func (e SecurityEvent) Field(path string) (interface{}, bool) {
	switch path {
	case "id":
		return e.ID, true
	case "type", "event_type":
		return e.Type, true
	case "subject":
		return e.Subject, true
	case "timestamp":
		return e.Timestamp, true
	case "severity":
		return string(e.Severity), true
	case "score":
		return e.Score, true
	}

	segments := strings.Split(path, ".")
	if segments[0] == "metadata" {
		segments = segments[1:]
	}
	if len(segments) == 0 {
		return nil, false
	}
	return descend(e.Metadata, segments)
}

func descend(m map[string]interface{}, segments []string) (interface{}, bool) {
	if m == nil {
		return nil, false
	}
	value, ok := m[segments[0]]
	if !ok {
		return nil, false
	}
	if len(segments) == 1 {
		return value, true
	}
	inner, ok := value.(map[string]interface{})
	if !ok {
		return nil, false
	}
	return descend(inner, segments[1:])
}

// Outcome is the result of one attempted playbook action.
type Outcome string

const (
	OutcomeSimulated        Outcome = "simulated"
	OutcomeSucceeded        Outcome = "succeeded"
	OutcomeFailed           Outcome = "failed"
	OutcomeSkippedDuplicate Outcome = "skipped-duplicate"
)

// AuditRecord is the append-only trace of one attempted action, including
// simulated and deduplicated attempts.
type AuditRecord struct {
	ID         string            `json:"id"`
	PlaybookID string            `json:"playbook_id"`
	ActionType string            `json:"action_type"`
	Subject    string            `json:"subject"`
	EventID    string            `json:"event_id"`
	Params     map[string]string `json:"params,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	Outcome    Outcome           `json:"outcome"`
	Detail     string            `json:"detail,omitempty"`
}

// NewAuditRecord creates an audit record with a fresh identifier.
func NewAuditRecord(playbookID, actionType string, ev SecurityEvent, params map[string]string, outcome Outcome, detail string) AuditRecord {
	return AuditRecord{
		ID:         uuid.NewString(),
		PlaybookID: playbookID,
		ActionType: actionType,
		Subject:    ev.Subject,
		EventID:    ev.ID,
		Params:     params,
		Timestamp:  time.Now().UTC(),
		Outcome:    outcome,
		Detail:     detail,
	}
}
