package analyst

import (
	"errors"
	"fmt"

	"github.com/kdl-rgb/bytells/internal/nl2sql"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type Status struct {
	Level Level  `json:"level"`
	Text  string `json:"text"`
}

const (
	msgGenerating  = "Generating SQL..."
	msgExecuting   = "Executing query..."
	msgRemoteOK    = "✓ SQL generated via Groq"
	msgNoKey       = "⚠ No API key — showing mock SQL"
	msgNoRemote    = "⚠ Remote translation disabled — showing mock SQL"
	msgLocalRules  = "SQL generated from local rules"
	msgRowsPattern = "✓ %d rows returned"
)

// Message is the user-facing text for a generation failure that aborts a run.
func Message(err error) string {
	kind, ok := nl2sql.KindOf(err)
	if !ok {
		if errors.Is(err, nl2sql.ErrRemoteDisabled) {
			return "Error: remote SQL generation is not configured"
		}
		return "Error: " + err.Error()
	}
	switch kind {
	case nl2sql.KindMissingCredentials:
		return "Please enter your Groq API key above."
	case nl2sql.KindInvalidCredentials:
		return "Invalid API key. Get one free at console.groq.com"
	case nl2sql.KindRateLimited:
		return "Rate limited. Wait a moment and try again."
	case nl2sql.KindNonSelectBlocked:
		return "Security: Only SELECT queries are permitted."
	case nl2sql.KindAPIError:
		return fmt.Sprintf("Error: API error (status %d)", nl2sql.StatusOf(err))
	default:
		return "Error: " + err.Error()
	}
}

// FallbackMessage is the warning shown when a recoverable failure is answered
// with locally generated SQL.
func FallbackMessage(kind nl2sql.Kind) string {
	switch kind {
	case nl2sql.KindCrossOriginBlocked:
		return "⚠ CORS blocked — showing mock SQL (route through the API server in production)"
	case nl2sql.KindEmptyCompletion:
		return "⚠ Empty completion — showing mock SQL"
	default:
		return "⚠ API error — showing mock SQL"
	}
}

func rowsReturned(n int) string {
	return fmt.Sprintf(msgRowsPattern, n)
}
