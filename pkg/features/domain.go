package features

// DomainFeatureNames is the fixed feature order for the domain risk
// pipeline.
var DomainFeatureNames = []string{
	"domain_length",
	"subdomain_count",
	"tld_length",
	"char_entropy",
	"vowel_ratio",
	"consonant_ratio",
	"digit_ratio",
	"special_char_count",
	"has_ip_pattern",
	"max_consonant_streak",
	"hex_ratio",
	"tld_category",
	"query_count",
}

// TLD rarity buckets, encoded numerically in the feature vector.
const (
	tldCommon     = 0.0
	tldRare       = 1.0
	tldSuspicious = 2.0
)

// DomainFeatures holds the lexical and statistical characteristics of a
// single queried domain name.
type DomainFeatures struct {
	Domain string `json:"domain"`

	DomainLength   int `json:"domain_length"`
	SubdomainCount int `json:"subdomain_count"`
	TLDLength      int `json:"tld_length"`

	CharEntropy      float64 `json:"char_entropy"`
	VowelRatio       float64 `json:"vowel_ratio"`
	ConsonantRatio   float64 `json:"consonant_ratio"`
	DigitRatio       float64 `json:"digit_ratio"`
	SpecialCharCount int     `json:"special_char_count"`

	HasIPPattern       bool    `json:"has_ip_pattern"`
	MaxConsonantStreak int     `json:"max_consonant_streak"`
	HexRatio           float64 `json:"hex_ratio"`

	TLD         string `json:"tld"`
	TLDCategory string `json:"tld_category"`

	QueryCount int `json:"query_count"`
}

// Vector returns the domain features in the fixed pipeline order.
func (f *DomainFeatures) Vector() FeatureVector {
	hasIP := 0.0
	if f.HasIPPattern {
		hasIP = 1.0
	}

	category := tldRare
	switch f.TLDCategory {
	case "common":
		category = tldCommon
	case "suspicious":
		category = tldSuspicious
	}

	return FeatureVector{
		Subject: f.Domain,
		Names:   DomainFeatureNames,
		Values: []float64{
			float64(f.DomainLength),
			float64(f.SubdomainCount),
			float64(f.TLDLength),
			f.CharEntropy,
			f.VowelRatio,
			f.ConsonantRatio,
			f.DigitRatio,
			float64(f.SpecialCharCount),
			hasIP,
			float64(f.MaxConsonantStreak),
			f.HexRatio,
			category,
			float64(f.QueryCount),
		},
	}
}

// Map returns the features keyed by name.
func (f *DomainFeatures) Map() map[string]interface{} {
	vec := f.Vector()
	m := make(map[string]interface{}, len(vec.Names)+2)
	for i, name := range vec.Names {
		m[name] = vec.Values[i]
	}
	m["tld"] = f.TLD
	m["tld_category"] = f.TLDCategory
	return m
}

// Reasons returns human-readable explanations for a risky-looking domain.
// An empty slice means the score came from the model alone.
func (f *DomainFeatures) Reasons() []string {
	var reasons []string
	if f.CharEntropy > 3.5 {
		reasons = append(reasons, "high entropy")
	}
	if f.TLDCategory == "suspicious" {
		reasons = append(reasons, "suspicious TLD")
	}
	if f.MaxConsonantStreak > 7 {
		reasons = append(reasons, "DGA-like pattern")
	}
	if f.DigitRatio > 0.3 {
		reasons = append(reasons, "high digit ratio")
	}
	return reasons
}
