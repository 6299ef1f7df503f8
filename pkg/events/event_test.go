package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityRank(t *testing.T) {
	assert.Greater(t, SeverityCritical.Rank(), SeverityWarning.Rank())
	assert.Greater(t, SeverityWarning.Rank(), SeverityInfo.Rank())
	assert.Greater(t, SeverityInfo.Rank(), Severity("bogus").Rank())
}

func TestNewSecurityEvent(t *testing.T) {
	ev := NewSecurityEvent(TypeDomainRisk, "ab3f91x.tk", SeverityCritical, 0.93, nil)

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, TypeDomainRisk, ev.Type)
	assert.Equal(t, "ab3f91x.tk", ev.Subject)
	assert.Equal(t, 0.93, ev.Score)
	assert.False(t, ev.Timestamp.IsZero())

	other := NewSecurityEvent(TypeDomainRisk, "ab3f91x.tk", SeverityCritical, 0.93, nil)
	assert.NotEqual(t, ev.ID, other.ID)
}

func TestEventField(t *testing.T) {
	ev := SecurityEvent{
		ID:       "ev-1",
		Type:     TypeDeviceAnomaly,
		Subject:  "10.0.0.1",
		Severity: SeverityWarning,
		Score:    0.8,
		Metadata: map[string]interface{}{
			"pipeline": "device_anomaly",
			"features": map[string]interface{}{
				"unique_dest_ips": 40.0,
			},
		},
	}

	tests := []struct {
		path     string
		expected interface{}
	}{
		{"id", "ev-1"},
		{"type", TypeDeviceAnomaly},
		{"event_type", TypeDeviceAnomaly},
		{"subject", "10.0.0.1"},
		{"severity", "warning"},
		{"score", 0.8},
		{"pipeline", "device_anomaly"},
		{"metadata.pipeline", "device_anomaly"},
		{"features.unique_dest_ips", 40.0},
		{"metadata.features.unique_dest_ips", 40.0},
	}

	for _, tt := range tests {
		value, ok := ev.Field(tt.path)
		require.True(t, ok, "path %s should resolve", tt.path)
		assert.Equal(t, tt.expected, value, "path %s", tt.path)
	}
}

func TestEventFieldUnresolved(t *testing.T) {
	ev := SecurityEvent{
		Metadata: map[string]interface{}{
			"features": map[string]interface{}{"a": 1.0},
		},
	}

	for _, path := range []string{
		"nope",
		"metadata.nope",
		"features.missing",
		"features.a.too_deep",
		"metadata",
	} {
		_, ok := ev.Field(path)
		assert.False(t, ok, "path %s should not resolve", path)
	}

	// Nil metadata resolves nothing beyond the fixed attributes.
	_, ok := SecurityEvent{}.Field("anything")
	assert.False(t, ok)
}

func TestNewAuditRecord(t *testing.T) {
	ev := NewSecurityEvent(TypeDomainRisk, "evil.tk", SeverityCritical, 0.95, nil)
	rec := NewAuditRecord("pb-block", "block_domain", ev,
		map[string]string{"domain": "evil.tk"}, OutcomeSucceeded, "added to blocklist")

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "pb-block", rec.PlaybookID)
	assert.Equal(t, "block_domain", rec.ActionType)
	assert.Equal(t, ev.ID, rec.EventID)
	assert.Equal(t, "evil.tk", rec.Subject)
	assert.Equal(t, OutcomeSucceeded, rec.Outcome)
	assert.False(t, rec.Timestamp.IsZero())
}
