// Package model loads scoring artifacts and runs them over batches of
// feature vectors. A pipeline without a loadable model degrades to
// "unavailable" scores rather than failing its caller.
package model

import (
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/goccy/go-json"
)

// Artifact kinds supported by the scorer.
const (
	KindLinear   = "linear"
	KindLogistic = "logistic"
)

// Score is the scoring result for one subject. When Available is false the
// Value is meaningless and the subject must be neither classified nor
// enforced against.
type Score struct {
	Subject       string
	Value         float64
	Available     bool
	Contributions map[string]float64
}

// Unavailable returns the sentinel score for a subject that could not be
// scored.
func Unavailable(subject string) Score {
	return Score{Subject: subject}
}

// Artifact is the on-disk model format: a named, versioned weight vector
// with an optional logistic link. The feature list pins the expected input
// order and length.
type Artifact struct {
	Name     string    `json:"name"`
	Version  string    `json:"version"`
	Kind     string    `json:"kind"`
	Features []string  `json:"features"`
	Weights  []float64 `json:"weights"`
	Bias     float64   `json:"bias"`
}

// Model is a loaded, validated scoring artifact.
type Model struct {
	artifact Artifact
}

// LoadArtifact reads and validates a model artifact from a file path.
func LoadArtifact(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model artifact: %w", err)
	}

	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("decoding model artifact: %w", err)
	}

	if artifact.Name == "" {
		return nil, fmt.Errorf("model artifact %s has no name", path)
	}
	if artifact.Kind != KindLinear && artifact.Kind != KindLogistic {
		return nil, fmt.Errorf("unsupported model kind %q", artifact.Kind)
	}
	if len(artifact.Weights) == 0 {
		return nil, fmt.Errorf("model %s has no weights", artifact.Name)
	}
	if len(artifact.Features) != len(artifact.Weights) {
		return nil, fmt.Errorf("model %s: %d feature names for %d weights",
			artifact.Name, len(artifact.Features), len(artifact.Weights))
	}

	return &Model{artifact: artifact}, nil
}

// Name returns the artifact name.
func (m *Model) Name() string { return m.artifact.Name }

// Version returns the artifact version.
func (m *Model) Version() string { return m.artifact.Version }

// InputLen returns the expected feature vector length.
func (m *Model) InputLen() int { return len(m.artifact.Weights) }

// score evaluates one vector. A vector of the wrong shape, or a raw output
// outside [0,1], yields an unavailable score: out-of-range output means
// the artifact does not match its calibration contract and must not be
// trusted, silently clamped or otherwise.
func (m *Model) score(subject string, values []float64) Score {
	if len(values) != len(m.artifact.Weights) {
		return Unavailable(subject)
	}

	raw := m.artifact.Bias
	contributions := make(map[string]float64, len(values))
	for i, w := range m.artifact.Weights {
		raw += w * values[i]
		contributions[m.artifact.Features[i]] = w * values[i]
	}

	value := raw
	if m.artifact.Kind == KindLogistic {
		value = 1.0 / (1.0 + math.Exp(-raw))
	}

	if math.IsNaN(value) || value < 0 || value > 1 {
		return Unavailable(subject)
	}

	return Score{
		Subject:       subject,
		Value:         value,
		Available:     true,
		Contributions: topContributions(contributions, 5),
	}
}

// topContributions keeps the n largest-magnitude per-feature terms as
// explanation hints.
func topContributions(all map[string]float64, n int) map[string]float64 {
	if len(all) <= n {
		return all
	}

	type term struct {
		name  string
		value float64
	}
	terms := make([]term, 0, len(all))
	for name, value := range all {
		terms = append(terms, term{name, value})
	}
	sort.Slice(terms, func(i, j int) bool {
		return math.Abs(terms[i].value) > math.Abs(terms[j].value)
	})

	top := make(map[string]float64, n)
	for _, t := range terms[:n] {
		top[t.name] = t.value
	}
	return top
}
