// Package features converts raw telemetry records into fixed-shape numeric
// feature vectors, one per subject (device IP or domain name), for model
// scoring.
package features

// FeatureVector is an ordered list of named numeric features for one
// subject over one time window. Order and length are fixed per pipeline;
// missing features are zero-filled so positional alignment with the model
// input is always preserved.
type FeatureVector struct {
	Subject string
	Names   []string
	Values  []float64
}

// Len returns the number of features in the vector.
func (v FeatureVector) Len() int {
	return len(v.Values)
}
