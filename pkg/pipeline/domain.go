package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/events"
	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/features"
	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/intel"
	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/model"
	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/policy"
)

// DomainTaskName identifies the domain risk pipeline in config, metrics
// and the scheduler.
const DomainTaskName = "domain_risk"

// DomainTask runs one domain risk detection cycle per tick: it pulls the
// window's DNS queries, computes lexical features per queried domain,
// scores them and writes the resulting security events. When an IOC
// store is configured, matched domains are flagged in event metadata.
type DomainTask struct {
	telemetry  *Telemetry
	extractor  *features.Extractor
	registry   *model.Registry
	classifier *policy.Classifier
	sink       *events.Sink
	iocs       intel.Store
	window     time.Duration
	guard      cycleGuard
	logger     zerolog.Logger
}

// NewDomainTask assembles the domain risk pipeline. iocs may be nil.
func NewDomainTask(telemetry *Telemetry, extractor *features.Extractor, registry *model.Registry, classifier *policy.Classifier, sink *events.Sink, iocs intel.Store, window time.Duration, logger zerolog.Logger) *DomainTask {
	return &DomainTask{
		telemetry:  telemetry,
		extractor:  extractor,
		registry:   registry,
		classifier: classifier,
		sink:       sink,
		iocs:       iocs,
		window:     window,
		logger:     logger.With().Str("component", "pipeline").Str("pipeline", DomainTaskName).Logger(),
	}
}

// Name implements scheduler.Task.
func (t *DomainTask) Name() string { return DomainTaskName }

// Run implements scheduler.Task.
func (t *DomainTask) Run(ctx context.Context) {
	if !t.guard.tryStart(DomainTaskName, t.logger) {
		return
	}
	defer t.guard.finish()

	started := time.Now()
	defer observeCycle(DomainTaskName, started)

	end := time.Now().UTC()
	start := end.Add(-t.window)

	dns, err := t.telemetry.DNS(ctx, start, end)
	if err != nil {
		t.logger.Error().Err(err).Msg("Failed to fetch DNS records, skipping cycle")
		return
	}

	counts := features.DomainCounts(dns)
	if len(counts) == 0 {
		t.logger.Debug().Msg("No domains queried in window")
		return
	}

	featureSets := make([]*features.DomainFeatures, 0, len(counts))
	vectors := make([]features.FeatureVector, 0, len(counts))
	for domain, count := range counts {
		fs := t.extractor.DomainFeatures(domain, count)
		featureSets = append(featureSets, fs)
		vectors = append(vectors, fs.Vector())
	}

	scores := t.registry.ScoreBatch(DomainTaskName, vectors)

	var emitted []events.SecurityEvent
	for i, score := range scores {
		fs := featureSets[i]
		metadata := map[string]interface{}{
			"features": fs.Map(),
		}
		if reasons := fs.Reasons(); len(reasons) > 0 {
			metadata["reasons"] = reasons
		}
		t.enrich(ctx, fs.Domain, metadata)

		if ev := t.classifier.Classify(score, metadata); ev != nil {
			emitted = append(emitted, *ev)
		}
	}

	if len(emitted) > 0 {
		if err := t.sink.WriteEvents(ctx, emitted); err != nil {
			t.logger.Error().Err(err).Msg("Failed to persist security events")
			return
		}
	}

	t.logger.Info().Int("domains", len(counts)).Int("events", len(emitted)).
		Dur("took", time.Since(started)).Msg("Domain risk cycle complete")
}

// enrich flags the domain when it appears in the IOC store. Store errors
// only cost the enrichment, never the event.
func (t *DomainTask) enrich(ctx context.Context, domain string, metadata map[string]interface{}) {
	if t.iocs == nil {
		return
	}
	matched, err := t.iocs.MatchDomain(ctx, domain)
	if err != nil {
		t.logger.Warn().Err(err).Str("domain", domain).Msg("IOC lookup failed")
		return
	}
	if matched {
		metadata["ioc_match"] = true
	}
}
