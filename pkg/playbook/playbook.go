// Package playbook implements the declarative response rules: loading
// them from a YAML document, matching them against security events in a
// deterministic order, and resolving action parameter templates.
package playbook

import (
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/events"
)

// MatchAny is the wildcard match type: the playbook applies to every
// event type.
const MatchAny = "*"

// Action is one response step: an action type plus its parameters.
// Parameter values may reference event fields with {{path}} placeholders.
type Action struct {
	Type   string            `yaml:"type" json:"type"`
	Params map[string]string `yaml:"params" json:"params"`
}

// Playbook is a named, orderable response rule. Rules are immutable
// during an evaluation cycle and stateless across events.
type Playbook struct {
	ID         string      `yaml:"id" json:"id"`
	Name       string      `yaml:"name" json:"name"`
	Enabled    bool        `yaml:"enabled" json:"enabled"`
	Match      string      `yaml:"match" json:"match"`
	Conditions []Condition `yaml:"conditions" json:"conditions"`
	Actions    []Action    `yaml:"actions" json:"actions"`
	Priority   int         `yaml:"priority" json:"priority"`
	DryRun     bool        `yaml:"dry_run" json:"dry_run"`
}

// Matches reports whether the playbook applies to the event: it must be
// enabled, its match type must equal the event type or be the wildcard,
// and every condition must hold (implicit AND).
func (p Playbook) Matches(ev events.SecurityEvent) bool {
	if !p.Enabled {
		return false
	}
	if p.Match != MatchAny && p.Match != ev.Type {
		return false
	}
	for _, cond := range p.Conditions {
		if !cond.Eval(ev) {
			return false
		}
	}
	return true
}

// Set is an immutable collection of playbooks loaded from one document.
type Set struct {
	rules []Playbook
}

// NewSet builds a set from already-parsed rules, used by tests and the
// API layer.
func NewSet(rules []Playbook) *Set {
	return &Set{rules: rules}
}

// Rules returns the rules in document order.
func (s *Set) Rules() []Playbook {
	out := make([]Playbook, len(s.rules))
	copy(out, s.rules)
	return out
}

// Len returns the number of loaded rules.
func (s *Set) Len() int { return len(s.rules) }

// Match returns the playbooks applying to the event, sorted by
// (priority descending, id ascending) for deterministic dispatch order.
func (s *Set) Match(ev events.SecurityEvent) []Playbook {
	var matched []Playbook
	for _, rule := range s.rules {
		if rule.Matches(ev) {
			matched = append(matched, rule)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Priority != matched[j].Priority {
			return matched[i].Priority > matched[j].Priority
		}
		return matched[i].ID < matched[j].ID
	})
	return matched
}

// Encode renders the set back to its YAML document form.
func (s *Set) Encode() ([]byte, error) {
	doc := struct {
		Playbooks []Playbook `yaml:"playbooks"`
	}{Playbooks: s.rules}
	return yaml.Marshal(doc)
}

// document is the raw on-disk form. Individual rules are kept as yaml
// nodes so one malformed rule can be skipped without rejecting the rest.
type document struct {
	Playbooks []yaml.Node `yaml:"playbooks"`
}

// Parse decodes a playbook document. A document that does not parse at
// all is an error (the caller decides whether that is fatal); a single
// rule that fails to decode or validate is skipped with a warning.
func Parse(data []byte, logger zerolog.Logger) (*Set, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing playbook document: %w", err)
	}

	seen := make(map[string]bool)
	var rules []Playbook
	for i, node := range doc.Playbooks {
		var rule Playbook
		if err := node.Decode(&rule); err != nil {
			logger.Warn().Err(err).Int("index", i).Msg("Skipping malformed playbook")
			continue
		}
		if rule.ID == "" {
			logger.Warn().Int("index", i).Msg("Skipping playbook without id")
			continue
		}
		if seen[rule.ID] {
			logger.Warn().Str("id", rule.ID).Msg("Skipping playbook with duplicate id")
			continue
		}
		if err := validateConditions(rule.Conditions); err != nil {
			logger.Warn().Err(err).Str("id", rule.ID).Msg("Skipping playbook with invalid condition")
			continue
		}
		seen[rule.ID] = true
		if rule.Match == "" {
			rule.Match = MatchAny
		}
		rules = append(rules, rule)
	}

	return &Set{rules: rules}, nil
}

// LoadFile reads and parses the playbook document at path. An unreadable
// or unparsable document is an error; with allowEmpty false an empty
// resulting rule set is also an error, so the process never silently runs
// without its safety rules.
func LoadFile(path string, allowEmpty bool, logger zerolog.Logger) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading playbook document: %w", err)
	}

	set, err := Parse(data, logger)
	if err != nil {
		return nil, err
	}
	if set.Len() == 0 && !allowEmpty {
		return nil, fmt.Errorf("playbook document %s yielded no usable rules", path)
	}

	logger.Info().Int("rules", set.Len()).Str("path", path).Msg("Playbooks loaded")
	return set, nil
}

func validateConditions(conds []Condition) error {
	for _, c := range conds {
		if c.Field == "" {
			return fmt.Errorf("condition has no field")
		}
		if !validOps[c.Op] {
			return fmt.Errorf("condition on %q has unknown operator %q", c.Field, c.Op)
		}
	}
	return nil
}
