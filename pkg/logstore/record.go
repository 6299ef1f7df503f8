package logstore

import (
	"time"

	"github.com/goccy/go-json"
)

// RawRecord is one telemetry item as returned by the log backend: the
// stream labels it was stored under plus the raw log line. Records are
// immutable once fetched.
type RawRecord struct {
	Timestamp time.Time
	Labels    map[string]string
	Line      string
}

// Kind returns the record kind from its labels (e.g. "flow", "dns",
// "alert"), or "" when the label is absent.
func (r RawRecord) Kind() string {
	return r.Labels["event_type"]
}

// Fields decodes the record's log line as a JSON object. A line that is
// not valid JSON yields nil; callers treat missing fields as absent
// rather than failing the record.
func (r RawRecord) Fields() map[string]interface{} {
	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(r.Line), &fields); err != nil {
		return nil
	}
	return fields
}

// StringField returns a top-level string field from the decoded line.
func StringField(fields map[string]interface{}, key string) string {
	if fields == nil {
		return ""
	}
	if s, ok := fields[key].(string); ok {
		return s
	}
	return ""
}

// NumberField returns a top-level numeric field from the decoded line.
// JSON numbers decode as float64; anything else counts as absent.
func NumberField(fields map[string]interface{}, key string) float64 {
	if fields == nil {
		return 0
	}
	if f, ok := fields[key].(float64); ok {
		return f
	}
	return 0
}

// NestedField descends one level into an embedded JSON object.
func NestedField(fields map[string]interface{}, object, key string) interface{} {
	if fields == nil {
		return nil
	}
	inner, ok := fields[object].(map[string]interface{})
	if !ok {
		return nil
	}
	return inner[key]
}
