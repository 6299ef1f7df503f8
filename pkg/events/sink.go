package events

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/logstore"
)

// Stream labels used for detection output in the log backend.
const (
	serviceLabel = "orion-ai"

	kindSecurityEvent = "security_event"
	kindAuditRecord   = "audit_record"
)

// Sink serializes security events and audit records into the log backend,
// and reads security events back for the response cycle. Safe for
// concurrent use.
type Sink struct {
	store  *logstore.Client
	logger zerolog.Logger
}

// NewSink creates an event sink over the given log store client.
func NewSink(store *logstore.Client, logger zerolog.Logger) *Sink {
	return &Sink{
		store:  store,
		logger: logger.With().Str("component", "sink").Logger(),
	}
}

// WriteEvents persists a batch of security events. Events for different
// types are pushed under per-type labels so the response cycle can select
// them back.
func (s *Sink) WriteEvents(ctx context.Context, evs []SecurityEvent) error {
	byType := make(map[string][]string)
	for _, ev := range evs {
		line, err := json.Marshal(ev)
		if err != nil {
			s.logger.Error().Err(err).Str("event", ev.ID).Msg("Failed to encode event, dropping")
			continue
		}
		byType[ev.Type] = append(byType[ev.Type], string(line))
	}

	for eventType, lines := range byType {
		labels := map[string]string{
			"service":    serviceLabel,
			"kind":       kindSecurityEvent,
			"event_type": eventType,
		}
		if err := s.store.Push(ctx, labels, lines); err != nil {
			return fmt.Errorf("writing %s events: %w", eventType, err)
		}
	}
	return nil
}

// WriteAudit persists one audit record. Audit writes are best-effort from
// the dispatcher's point of view but the error is still surfaced for
// logging.
func (s *Sink) WriteAudit(ctx context.Context, rec AuditRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding audit record: %w", err)
	}
	labels := map[string]string{
		"service": serviceLabel,
		"kind":    kindAuditRecord,
		"action":  rec.ActionType,
		"outcome": string(rec.Outcome),
	}
	return s.store.Push(ctx, labels, []string{string(line)})
}

// ReadEvents pulls security events written between start and end. Lines
// that fail to decode are skipped with a warning; an empty window is not
// an error.
func (s *Sink) ReadEvents(ctx context.Context, start, end time.Time) ([]SecurityEvent, error) {
	selector := logstore.Selector(map[string]string{
		"service": serviceLabel,
		"kind":    kindSecurityEvent,
	})
	records, err := s.store.QueryRange(ctx, selector, start, end)
	if err != nil {
		return nil, fmt.Errorf("reading security events: %w", err)
	}

	evs := make([]SecurityEvent, 0, len(records))
	for _, rec := range records {
		var ev SecurityEvent
		if err := json.Unmarshal([]byte(rec.Line), &ev); err != nil {
			s.logger.Warn().Err(err).Msg("Skipping undecodable security event")
			continue
		}
		evs = append(evs, ev)
	}
	return evs, nil
}
