package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/kdl-rgb/bytells/internal/charts"
	"github.com/kdl-rgb/bytells/internal/nl2sql"
	"github.com/kdl-rgb/bytells/internal/query"
	"github.com/kdl-rgb/bytells/internal/query/duckdb"
	"github.com/kdl-rgb/bytells/internal/snapshot"
)

type queryRequest struct {
	SQL      string `json:"sql"`
	RowLimit int    `json:"row_limit"`
}

type queryResponse struct {
	Columns []string       `json:"columns"`
	Rows    [][]any        `json:"rows"`
	Route   string         `json:"route"`
	Chart   charts.Chart   `json:"chart"`
	Stats   map[string]any `json:"stats"`
}

func newQueryResponse(result query.Result) queryResponse {
	rows := result.Rows
	if rows == nil {
		rows = [][]any{}
	}
	return queryResponse{
		Columns: result.Columns,
		Rows:    rows,
		Route:   result.Route,
		Chart:   charts.FromResult(charts.ResultChartID, result),
		Stats: map[string]any{
			"row_count":     result.RowCount(),
			"duration_ms":   result.Duration.Milliseconds(),
			"scanned_files": result.ScannedFiles,
			"scanned_bytes": result.ScannedBytes,
		},
	}
}

func handleQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.QueryEngine == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_NOT_CONFIGURED", "query engine is not configured", false, nil)
		return
	}

	var request queryRequest
	if err := decodeJSON(w, r, &request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}
	if !isAllowedSQL(request.SQL) {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_NOT_ALLOWED", "only read-only SELECT/WITH queries are allowed", false, nil)
		return
	}
	if request.RowLimit < 0 {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_ROW_LIMIT", "row_limit must be >= 0", false, nil)
		return
	}

	started := time.Now()
	result, err := deps.QueryEngine.Execute(r.Context(), query.Request{SQL: request.SQL, RowLimit: request.RowLimit})
	if err != nil {
		switch {
		case errors.Is(err, snapshot.ErrNoSnapshot):
			writeError(r.Context(), w, http.StatusNotFound, "SNAPSHOT_NOT_FOUND", "no snapshot has been published", false, nil)
		case errors.Is(err, duckdb.ErrReadOnly):
			writeError(r.Context(), w, http.StatusBadRequest, "SQL_NOT_ALLOWED", err.Error(), false, nil)
		default:
			writeError(r.Context(), w, http.StatusBadRequest, "QUERY_EXECUTION_FAILED", "query execution failed", false, map[string]any{"details": err.Error()})
		}
		return
	}
	if result.Duration == 0 {
		result.Duration = time.Since(started)
	}
	writeJSON(w, http.StatusOK, newQueryResponse(result))
}

func handleSamples(_ Dependencies, w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"prompts": nl2sql.SamplePrompts})
}

func isAllowedSQL(sqlText string) bool {
	normalized := strings.ToLower(strings.TrimLeft(strings.TrimSpace(sqlText), "("))
	if normalized == "" {
		return false
	}
	return nl2sql.IsSelect(normalized) || strings.HasPrefix(normalized, "with")
}
