// Package policy maps model scores onto severity-tagged security events
// using per-pipeline thresholds.
package policy

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/events"
	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/metrics"
	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/model"
)

// Thresholds carries the two per-pipeline cut points. Comparisons are
// inclusive: a score exactly on a threshold meets it.
type Thresholds struct {
	Report   float64
	Critical float64
}

// Validate rejects threshold configurations the classifier cannot honor.
func (t Thresholds) Validate() error {
	if t.Report < 0 || t.Report > 1 || t.Critical < 0 || t.Critical > 1 {
		return fmt.Errorf("thresholds must lie in [0,1], got report=%v critical=%v", t.Report, t.Critical)
	}
	if t.Critical < t.Report {
		return fmt.Errorf("critical threshold %v below report threshold %v", t.Critical, t.Report)
	}
	return nil
}

// Classifier produces SecurityEvents for one detection pipeline.
type Classifier struct {
	pipeline   string
	eventType  string
	thresholds Thresholds
	logger     zerolog.Logger
}

// NewClassifier creates a classifier for a pipeline. eventType tags the
// produced events (e.g. "domain_risk").
func NewClassifier(pipeline, eventType string, thresholds Thresholds, logger zerolog.Logger) *Classifier {
	return &Classifier{
		pipeline:   pipeline,
		eventType:  eventType,
		thresholds: thresholds,
		logger:     logger.With().Str("component", "policy").Str("pipeline", pipeline).Logger(),
	}
}

// Classify turns one score into a security event, or nil when no event is
// warranted: unavailable scores never classify, and scores below the
// report threshold emit nothing at all to bound log volume.
func (c *Classifier) Classify(score model.Score, metadata map[string]interface{}) *events.SecurityEvent {
	if !score.Available {
		return nil
	}
	if score.Value < c.thresholds.Report {
		return nil
	}

	severity := events.SeverityWarning
	if score.Value >= c.thresholds.Critical {
		severity = events.SeverityCritical
	}

	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	metadata["pipeline"] = c.pipeline
	metadata["report_threshold"] = c.thresholds.Report
	metadata["critical_threshold"] = c.thresholds.Critical
	if len(score.Contributions) > 0 {
		metadata["contributions"] = contributionsToMetadata(score.Contributions)
	}
	if severity == events.SeverityCritical {
		metadata["recommendation"] = "enforce"
	}

	ev := events.NewSecurityEvent(c.eventType, score.Subject, severity, score.Value, metadata)

	metrics.EventsEmitted.WithLabelValues(c.pipeline, string(severity)).Inc()
	c.logger.Info().Str("subject", ev.Subject).Str("severity", string(severity)).
		Float64("score", score.Value).Msg("Security event emitted")

	return &ev
}

func contributionsToMetadata(contributions map[string]float64) map[string]interface{} {
	m := make(map[string]interface{}, len(contributions))
	for name, value := range contributions {
		m[name] = value
	}
	return m
}
