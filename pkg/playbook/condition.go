package playbook

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/events"
)

// Condition operators.
const (
	OpEq          = "=="
	OpNe          = "!="
	OpLt          = "<"
	OpLe          = "<="
	OpGt          = ">"
	OpGe          = ">="
	OpContains    = "contains"
	OpNotContains = "not_contains"
	OpIn          = "in"
	OpNotIn       = "not_in"
)

var validOps = map[string]bool{
	OpEq: true, OpNe: true, OpLt: true, OpLe: true, OpGt: true, OpGe: true,
	OpContains: true, OpNotContains: true, OpIn: true, OpNotIn: true,
}

// Condition compares one event field against a fixed value. The field is
// a dot-notation path into the event and its metadata.
type Condition struct {
	Field string      `yaml:"field" json:"field"`
	Op    string      `yaml:"op" json:"op"`
	Value interface{} `yaml:"value" json:"value"`
}

// Eval evaluates the condition against the event. An unresolvable field
// path evaluates to false for every operator, never an error, so a
// missing field can never satisfy a match, positive or negated.
func (c Condition) Eval(ev events.SecurityEvent) bool {
	fieldValue, ok := ev.Field(c.Field)
	if !ok {
		return false
	}

	switch c.Op {
	case OpEq:
		return looseEqual(fieldValue, c.Value)
	case OpNe:
		return !looseEqual(fieldValue, c.Value)
	case OpLt, OpLe, OpGt, OpGe:
		return compareNumeric(fieldValue, c.Value, c.Op)
	case OpContains:
		return contains(fieldValue, c.Value)
	case OpNotContains:
		return !contains(fieldValue, c.Value)
	case OpIn:
		return within(fieldValue, c.Value)
	case OpNotIn:
		return !within(fieldValue, c.Value)
	default:
		return false
	}
}

// looseEqual compares two values numerically when both coerce to numbers,
// otherwise by their string forms. YAML hands us untyped scalars, so
// 0.85 must equal float64(0.85) and "critical" must equal
// Severity("critical").
func looseEqual(a, b interface{}) bool {
	fa, aok := toFloat(a)
	fb, bok := toFloat(b)
	if aok && bok {
		return fa == fb
	}
	return asString(a) == asString(b)
}

func compareNumeric(a, b interface{}, op string) bool {
	fa, aok := toFloat(a)
	fb, bok := toFloat(b)
	if !aok || !bok {
		return false
	}
	switch op {
	case OpLt:
		return fa < fb
	case OpLe:
		return fa <= fb
	case OpGt:
		return fa > fb
	case OpGe:
		return fa >= fb
	}
	return false
}

// contains: a string field contains a substring, or a list field contains
// an equal element.
func contains(field, value interface{}) bool {
	switch f := field.(type) {
	case string:
		return strings.Contains(f, asString(value))
	case []interface{}:
		for _, item := range f {
			if looseEqual(item, value) {
				return true
			}
		}
		return false
	case []string:
		for _, item := range f {
			if item == asString(value) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// within: the field value equals one element of the comparison list.
func within(field, value interface{}) bool {
	switch list := value.(type) {
	case []interface{}:
		for _, item := range list {
			if looseEqual(field, item) {
				return true
			}
		}
	case []string:
		for _, item := range list {
			if looseEqual(field, item) {
				return true
			}
		}
	}
	return false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
