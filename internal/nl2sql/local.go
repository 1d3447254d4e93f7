package nl2sql

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Rule maps a keyword predicate to a SQL template.
type Rule struct {
	Name string     `yaml:"name"`
	When [][]string `yaml:"when"`
	SQL  string     `yaml:"sql"`
}

// Matches expects an already lowercased question.
func (r Rule) Matches(question string) bool {
	for _, group := range r.When {
		if !containsAny(question, group) {
			return false
		}
	}
	return true
}

func containsAny(question string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(question, keyword) {
			return true
		}
	}
	return false
}

// ParseRules decodes and validates a rule catalog.
func ParseRules(data []byte) ([]Rule, error) {
	var doc struct {
		Rules []Rule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	if len(doc.Rules) == 0 {
		return nil, fmt.Errorf("rule catalog is empty")
	}

	seen := map[string]struct{}{}
	for i, rule := range doc.Rules {
		if strings.TrimSpace(rule.Name) == "" {
			return nil, fmt.Errorf("rule %d has no name", i)
		}
		if _, ok := seen[rule.Name]; ok {
			return nil, fmt.Errorf("duplicate rule %q", rule.Name)
		}
		seen[rule.Name] = struct{}{}

		doc.Rules[i].SQL = strings.TrimSpace(rule.SQL)
		if !IsSelect(doc.Rules[i].SQL) {
			return nil, fmt.Errorf("rule %q template must start with SELECT", rule.Name)
		}
		if !limitToken.MatchString(doc.Rules[i].SQL) {
			return nil, fmt.Errorf("rule %q template has no LIMIT", rule.Name)
		}
		for g, group := range rule.When {
			if len(group) == 0 {
				return nil, fmt.Errorf("rule %q keyword group %d is empty", rule.Name, g)
			}
			for k, keyword := range group {
				doc.Rules[i].When[g][k] = strings.ToLower(strings.TrimSpace(keyword))
			}
		}
		last := i == len(doc.Rules)-1
		if len(rule.When) == 0 && !last {
			return nil, fmt.Errorf("catch-all rule %q must be last", rule.Name)
		}
		if last && len(rule.When) != 0 {
			return nil, fmt.Errorf("last rule %q must be a catch-all", rule.Name)
		}
	}
	return doc.Rules, nil
}

// LocalGenerator picks a SQL template by keyword rules. It never fails.
type LocalGenerator struct {
	rules []Rule
}

func NewLocalGenerator(rules []Rule) (*LocalGenerator, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("rules are required")
	}
	return &LocalGenerator{rules: rules}, nil
}

// NewDefaultLocalGenerator uses the embedded rule catalog.
func NewDefaultLocalGenerator() (*LocalGenerator, error) {
	rules, err := ParseRules(defaultRulesYAML)
	if err != nil {
		return nil, err
	}
	return NewLocalGenerator(rules)
}

func (g *LocalGenerator) Rules() []Rule {
	out := make([]Rule, len(g.rules))
	copy(out, g.rules)
	return out
}

func (g *LocalGenerator) Generate(question string) Result {
	normalized := strings.ToLower(question)
	rule := g.rules[len(g.rules)-1]
	for _, candidate := range g.rules {
		if candidate.Matches(normalized) {
			rule = candidate
			break
		}
	}
	return Result{
		SQL:      rule.SQL,
		Source:   SourceLocal,
		Provider: "local",
		Model:    "keyword-rules",
		Rule:     rule.Name,
	}
}

func (g *LocalGenerator) Translate(_ context.Context, req Request) (Result, error) {
	return g.Generate(req.Question), nil
}
