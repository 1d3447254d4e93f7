package nl2sql

import (
	"regexp"
	"strings"
)

// DefaultRowLimit is appended to generated SQL that carries no LIMIT.
const DefaultRowLimit = 100

var (
	codeFencePattern = regexp.MustCompile("(?i)```(?:sql)?")
	selectPrefix     = regexp.MustCompile(`(?i)^select\b`)
	limitToken       = regexp.MustCompile(`(?i)\blimit\b`)
)

func stripMarkdownSQL(value string) string {
	return strings.TrimSpace(codeFencePattern.ReplaceAllString(value, ""))
}

// IsSelect reports whether the first token of sql is SELECT.
func IsSelect(sql string) bool {
	return selectPrefix.MatchString(strings.TrimSpace(sql))
}

// EnsureLimit appends LIMIT 100 when the statement has no LIMIT token.
// Trailing terminators and a trailing line comment are dropped first so the
// clause is never swallowed by the comment. Applying it twice changes nothing.
func EnsureLimit(sql string) string {
	body := statementBody(sql)
	if limitToken.MatchString(body) {
		return sql
	}
	return body + " LIMIT 100;"
}

// statementBody strips trailing whitespace, semicolons and -- comments until
// none remain.
func statementBody(sql string) string {
	for {
		trimmed := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(sql), ";"))
		trimmed = strings.TrimSpace(stripTrailingComment(trimmed))
		if trimmed == sql {
			return trimmed
		}
		sql = trimmed
	}
}

// stripTrailingComment cuts a -- comment on the last line. Dashes inside a
// quoted literal are kept.
func stripTrailingComment(sql string) string {
	lineStart := strings.LastIndex(sql, "\n") + 1
	for i := lineStart; i+1 < len(sql); i++ {
		if sql[i] == '-' && sql[i+1] == '-' && strings.Count(sql[:i], "'")%2 == 0 {
			return sql[:i]
		}
	}
	return sql
}

// Sanitize turns a raw completion into an executable SELECT statement.
func Sanitize(completion string) (string, error) {
	sql := stripMarkdownSQL(completion)
	if sql == "" {
		return "", newError(KindEmptyCompletion, 0, nil)
	}
	if !IsSelect(sql) {
		return "", newError(KindNonSelectBlocked, 0, nil)
	}
	return EnsureLimit(sql), nil
}
