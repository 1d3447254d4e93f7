package nl2sql

import (
	"strings"
	"testing"
)

func defaultLocal(t *testing.T) *LocalGenerator {
	t.Helper()
	local, err := NewDefaultLocalGenerator()
	if err != nil {
		t.Fatalf("NewDefaultLocalGenerator() error = %v", err)
	}
	return local
}

func TestDefaultRuleCatalogOrder(t *testing.T) {
	var names []string
	for _, rule := range defaultLocal(t).Rules() {
		names = append(names, rule.Name)
	}
	want := "fuel_by_capacity,route_risk,order_status,disruption_by_class,traffic_eta,warehouse_performance,fatigue_delay,recent_operations"
	if got := strings.Join(names, ","); got != want {
		t.Fatalf("rule order = %s", got)
	}
}

func TestLocalGeneratorSelectsRule(t *testing.T) {
	local := defaultLocal(t)
	tests := []struct {
		question string
		rule     string
	}{
		{question: "Show fuel rate for vehicles with low capacity", rule: "fuel_by_capacity"},
		{question: "FUEL by CAPACITY", rule: "fuel_by_capacity"},
		{question: "fuel usage overall", rule: "recent_operations"},
		{question: "Analyze route risk scores", rule: "route_risk"},
		{question: "Count operations by order status", rule: "order_status"},
		{question: "Average disruption score by risk class", rule: "route_risk"},
		{question: "disruption per class", rule: "disruption_by_class"},
		{question: "ETA variation by traffic level", rule: "traffic_eta"},
		{question: "Warehouse delivery rates comparison", rule: "warehouse_performance"},
		{question: "Driver fatigue vs delay probability", rule: "fatigue_delay"},
		{question: "hello", rule: "recent_operations"},
		{question: "", rule: "recent_operations"},
	}
	for _, tt := range tests {
		result := local.Generate(tt.question)
		if result.Rule != tt.rule {
			t.Fatalf("Generate(%q).Rule = %q, want %q", tt.question, result.Rule, tt.rule)
		}
		if result.Source != SourceLocal {
			t.Fatalf("Generate(%q).Source = %q", tt.question, result.Source)
		}
	}
}

func TestEveryTemplateIsLimitedSelect(t *testing.T) {
	for _, rule := range defaultLocal(t).Rules() {
		if !IsSelect(rule.SQL) {
			t.Fatalf("rule %q does not start with SELECT: %q", rule.Name, rule.SQL)
		}
		if !strings.Contains(rule.SQL, "LIMIT 100") {
			t.Fatalf("rule %q has no LIMIT 100: %q", rule.Name, rule.SQL)
		}
		if strings.Contains(rule.SQL, "\n") {
			t.Fatalf("rule %q template was not folded: %q", rule.Name, rule.SQL)
		}
	}
}

func TestParseRulesValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{name: "empty", yaml: "rules: []", wantErr: "empty"},
		{name: "non select", yaml: "rules:\n  - name: a\n    sql: DELETE FROM t LIMIT 1", wantErr: "SELECT"},
		{name: "no limit", yaml: "rules:\n  - name: a\n    sql: SELECT 1", wantErr: "LIMIT"},
		{name: "catch-all first", yaml: "rules:\n  - name: a\n    sql: SELECT 1 LIMIT 100\n  - name: b\n    when: [[x]]\n    sql: SELECT 2 LIMIT 100", wantErr: "must be last"},
		{name: "no catch-all", yaml: "rules:\n  - name: a\n    when: [[x]]\n    sql: SELECT 1 LIMIT 100", wantErr: "catch-all"},
		{name: "duplicate", yaml: "rules:\n  - name: a\n    when: [[x]]\n    sql: SELECT 1 LIMIT 100\n  - name: a\n    sql: SELECT 2 LIMIT 100", wantErr: "duplicate"},
		{name: "bad yaml", yaml: "rules: [", wantErr: "decode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRules([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("ParseRules() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseRulesLowercasesKeywords(t *testing.T) {
	rules, err := ParseRules([]byte("rules:\n  - name: a\n    when: [[Fuel]]\n    sql: SELECT 1 LIMIT 100\n  - name: b\n    sql: SELECT 2 LIMIT 100"))
	if err != nil {
		t.Fatalf("ParseRules() error = %v", err)
	}
	if !rules[0].Matches("fuel please") {
		t.Fatal("expected lowercased keyword to match")
	}
}
