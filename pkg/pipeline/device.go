package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/events"
	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/features"
	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/model"
	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/policy"
)

// DeviceTaskName identifies the device anomaly pipeline in config,
// metrics and the scheduler.
const DeviceTaskName = "device_anomaly"

// DeviceTask runs one device anomaly detection cycle per tick: it pulls
// the window's telemetry, aggregates per-device features, scores them
// and writes the resulting security events.
type DeviceTask struct {
	telemetry  *Telemetry
	extractor  *features.Extractor
	registry   *model.Registry
	classifier *policy.Classifier
	sink       *events.Sink
	window     time.Duration
	guard      cycleGuard
	logger     zerolog.Logger
}

// NewDeviceTask assembles the device anomaly pipeline.
func NewDeviceTask(telemetry *Telemetry, extractor *features.Extractor, registry *model.Registry, classifier *policy.Classifier, sink *events.Sink, window time.Duration, logger zerolog.Logger) *DeviceTask {
	return &DeviceTask{
		telemetry:  telemetry,
		extractor:  extractor,
		registry:   registry,
		classifier: classifier,
		sink:       sink,
		window:     window,
		logger:     logger.With().Str("component", "pipeline").Str("pipeline", DeviceTaskName).Logger(),
	}
}

// Name implements scheduler.Task.
func (t *DeviceTask) Name() string { return DeviceTaskName }

// Run implements scheduler.Task.
func (t *DeviceTask) Run(ctx context.Context) {
	if !t.guard.tryStart(DeviceTaskName, t.logger) {
		return
	}
	defer t.guard.finish()

	started := time.Now()
	defer observeCycle(DeviceTaskName, started)

	end := time.Now().UTC()
	start := end.Add(-t.window)

	flows, err := t.telemetry.Flows(ctx, start, end)
	if err != nil {
		t.logger.Error().Err(err).Msg("Failed to fetch flow records, skipping cycle")
		return
	}
	dns, err := t.telemetry.DNS(ctx, start, end)
	if err != nil {
		t.logger.Error().Err(err).Msg("Failed to fetch DNS records, skipping cycle")
		return
	}
	alerts, err := t.telemetry.Alerts(ctx, start, end)
	if err != nil {
		t.logger.Error().Err(err).Msg("Failed to fetch alert records, skipping cycle")
		return
	}

	devices := features.Devices(flows)
	if len(devices) == 0 {
		t.logger.Debug().Msg("No devices observed in window")
		return
	}

	featureSets := make([]*features.DeviceFeatures, 0, len(devices))
	vectors := make([]features.FeatureVector, 0, len(devices))
	for _, device := range devices {
		fs := t.extractor.DeviceFeatures(
			device,
			flows,
			features.FilterBySubject(dns, "src_ip", device),
			features.FilterBySubject(alerts, "src_ip", device),
			start, end,
		)
		featureSets = append(featureSets, fs)
		vectors = append(vectors, fs.Vector())
	}

	scores := t.registry.ScoreBatch(DeviceTaskName, vectors)

	var emitted []events.SecurityEvent
	for i, score := range scores {
		fs := featureSets[i]
		metadata := map[string]interface{}{
			"features":     fs.Map(),
			"window_start": fs.WindowStart.Format(time.RFC3339),
			"window_end":   fs.WindowEnd.Format(time.RFC3339),
		}
		if anomalies := fs.Anomalies(); len(anomalies) > 0 {
			metadata["reasons"] = anomalies
		}
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

	t.logger.Info().Int("devices", len(devices)).Int("events", len(emitted)).
		Dur("took", time.Since(started)).Msg("Device anomaly cycle complete")
}
