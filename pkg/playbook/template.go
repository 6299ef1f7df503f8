package playbook

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/events"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// Resolve substitutes {{field.path}} placeholders in a template with the
// corresponding event field values. A placeholder whose path does not
// resolve degrades to its literal unsubstituted form; substitution never
// aborts the action.
func Resolve(template string, ev events.SecurityEvent) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		path := placeholderPattern.FindStringSubmatch(match)[1]
		value, ok := ev.Field(path)
		if !ok {
			return match
		}
		return stringify(value)
	})
}

// ResolveParams resolves every parameter value of an action against the
// triggering event.
func ResolveParams(params map[string]string, ev events.SecurityEvent) map[string]string {
	resolved := make(map[string]string, len(params))
	for key, value := range params {
		resolved[key] = Resolve(value, ev)
	}
	return resolved
}

func stringify(v interface{}) string {
	switch value := v.(type) {
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", value)
	}
}
