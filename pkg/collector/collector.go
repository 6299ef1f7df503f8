// Package collector periodically snapshots extracted feature vectors to
// compressed JSONL files, producing training data for future model
// versions.
package collector

import (
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/features"
	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/logstore"
	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/metrics"
	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/pipeline"
)

// TaskName identifies the collector in metrics and the scheduler.
const TaskName = "collector"

// Collector implements scheduler.Task. Each cycle writes one gzipped
// JSONL file per feature family under the output directory; a cycle that
// observes nothing writes nothing.
type Collector struct {
	telemetry *pipeline.Telemetry
	extractor *features.Extractor
	outputDir string
	window    time.Duration
	running   atomic.Bool
	logger    zerolog.Logger
}

// New creates the training-data collector.
func New(telemetry *pipeline.Telemetry, extractor *features.Extractor, outputDir string, window time.Duration, logger zerolog.Logger) *Collector {
	return &Collector{
		telemetry: telemetry,
		extractor: extractor,
		outputDir: outputDir,
		window:    window,
		logger:    logger.With().Str("component", TaskName).Logger(),
	}
}

// Name implements scheduler.Task.
func (c *Collector) Name() string { return TaskName }

// Run implements scheduler.Task.
func (c *Collector) Run(ctx context.Context) {
	if !c.running.CompareAndSwap(false, true) {
		metrics.CyclesSkipped.WithLabelValues(TaskName).Inc()
		c.logger.Warn().Msg("Previous collection still running, skipping")
		return
	}
	defer c.running.Store(false)

	started := time.Now()
	defer func() {
		metrics.CycleDuration.WithLabelValues(TaskName).Observe(time.Since(started).Seconds())
	}()

	end := time.Now().UTC()
	start := end.Add(-c.window)

	flows, err := c.telemetry.Flows(ctx, start, end)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to fetch flow records, skipping collection")
		return
	}
	dns, err := c.telemetry.DNS(ctx, start, end)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to fetch DNS records, skipping collection")
		return
	}
	alerts, err := c.telemetry.Alerts(ctx, start, end)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to fetch alert records, skipping collection")
		return
	}

	deviceRows := c.deviceRows(flows, dns, alerts, start, end)
	domainRows := c.domainRows(dns)

	stamp := end.Format("20060102T150405Z")
	if err := c.writeRows(fmt.Sprintf("device_features_%s.jsonl.gz", stamp), deviceRows); err != nil {
		c.logger.Error().Err(err).Msg("Failed to write device feature snapshot")
	}
	if err := c.writeRows(fmt.Sprintf("domain_features_%s.jsonl.gz", stamp), domainRows); err != nil {
		c.logger.Error().Err(err).Msg("Failed to write domain feature snapshot")
	}

	c.logger.Info().Int("devices", len(deviceRows)).Int("domains", len(domainRows)).
		Dur("took", time.Since(started)).Msg("Feature snapshot complete")
}

func (c *Collector) deviceRows(flows, dns, alerts []logstore.RawRecord, start, end time.Time) []map[string]interface{} {
	devices := features.Devices(flows)
	rows := make([]map[string]interface{}, 0, len(devices))
	for _, device := range devices {
		fs := c.extractor.DeviceFeatures(
			device,
			flows,
			features.FilterBySubject(dns, "src_ip", device),
			features.FilterBySubject(alerts, "src_ip", device),
			start, end,
		)
		row := fs.Map()
		row["device_ip"] = device
		row["window_start"] = start.Format(time.RFC3339)
		row["window_end"] = end.Format(time.RFC3339)
		rows = append(rows, row)
	}
	return rows
}

func (c *Collector) domainRows(dns []logstore.RawRecord) []map[string]interface{} {
	counts := features.DomainCounts(dns)
	rows := make([]map[string]interface{}, 0, len(counts))
	for domain, count := range counts {
		row := c.extractor.DomainFeatures(domain, count).Map()
		row["domain"] = domain
		rows = append(rows, row)
	}
	return rows
}

// writeRows writes the rows as one gzipped JSONL file, atomically via a
// temp file rename so readers never see a partial snapshot.
func (c *Collector) writeRows(name string, rows []map[string]interface{}) error {
	if len(rows) == 0 {
		return nil
	}
	if err := os.MkdirAll(c.outputDir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	path := filepath.Join(c.outputDir, name)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	gz := gzip.NewWriter(f)
	enc := json.NewEncoder(gz)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			gz.Close()
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("encoding row: %w", err)
		}
	}
	if err := gz.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
