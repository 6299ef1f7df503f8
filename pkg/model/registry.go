package model

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/features"
	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/metrics"
)

const defaultBatchSize = 256

// Registry holds zero or more loaded models keyed by pipeline name and is
// safe for concurrent use by the pipeline tasks.
type Registry struct {
	mu        sync.RWMutex
	models    map[string]*Model
	batchSize int
	logger    zerolog.Logger
}

// NewRegistry creates an empty model registry. batchSize <= 0 selects the
// default; batching is a throughput tunable, not a correctness property.
func NewRegistry(batchSize int, logger zerolog.Logger) *Registry {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Registry{
		models:    make(map[string]*Model),
		batchSize: batchSize,
		logger:    logger.With().Str("component", "model").Logger(),
	}
}

// Load attempts to load the artifact at path for the given pipeline. A
// missing or corrupt artifact leaves the pipeline without a model and is
// logged once per load attempt; other pipelines are unaffected.
func (r *Registry) Load(pipeline, path string) {
	if path == "" {
		r.logger.Warn().Str("pipeline", pipeline).Msg("No model path configured, pipeline will not classify")
		return
	}

	m, err := LoadArtifact(path)
	if err != nil {
		r.logger.Error().Err(err).Str("pipeline", pipeline).Str("path", path).
			Msg("Failed to load model, pipeline will not classify")
		return
	}

	r.mu.Lock()
	r.models[pipeline] = m
	r.mu.Unlock()

	r.logger.Info().Str("pipeline", pipeline).Str("model", m.Name()).
		Str("version", m.Version()).Int("inputs", m.InputLen()).Msg("Model loaded")
}

// Loaded reports whether a model is available for the pipeline.
func (r *Registry) Loaded(pipeline string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.models[pipeline]
	return ok
}

// ScoreBatch scores the vectors, aligned by index. If the pipeline has no
// loaded model every result is unavailable; the caller must then neither
// classify nor enforce.
func (r *Registry) ScoreBatch(pipeline string, vectors []features.FeatureVector) []Score {
	scores := make([]Score, len(vectors))

	r.mu.RLock()
	m, ok := r.models[pipeline]
	r.mu.RUnlock()

	if !ok {
		for i, vec := range vectors {
			scores[i] = Unavailable(vec.Subject)
			metrics.ScoresUnavailable.WithLabelValues(pipeline).Inc()
		}
		return scores
	}

	for offset := 0; offset < len(vectors); offset += r.batchSize {
		end := offset + r.batchSize
		if end > len(vectors) {
			end = len(vectors)
		}
		for i, vec := range vectors[offset:end] {
			scores[offset+i] = m.score(vec.Subject, vec.Values)
			if !scores[offset+i].Available {
				metrics.ScoresUnavailable.WithLabelValues(pipeline).Inc()
			}
		}
	}
	return scores
}
