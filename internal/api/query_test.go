package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kdl-rgb/bytells/internal/query"
	"github.com/kdl-rgb/bytells/internal/query/duckdb"
	"github.com/kdl-rgb/bytells/internal/query/mock"
	"github.com/kdl-rgb/bytells/internal/snapshot"
)

type fakeQueryEngine struct {
	result   query.Result
	err      error
	requests []query.Request
}

func (f *fakeQueryEngine) Execute(_ context.Context, request query.Request) (query.Result, error) {
	f.requests = append(f.requests, request)
	if f.err != nil {
		return query.Result{}, f.err
	}
	return f.result, nil
}

func postQuery(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestQueryEndpointReturnsResults(t *testing.T) {
	engine := &fakeQueryEngine{result: query.Result{
		Columns:      []string{"Order_Status", "Count"},
		Rows:         [][]any{{"Delivered", int64(2)}},
		Duration:     20 * time.Millisecond,
		ScannedFiles: 1,
		ScannedBytes: 10,
	}}
	h := NewHandler(testConfig(t, nil), Dependencies{QueryEngine: engine})

	rr := postQuery(t, h, `{"sql":"SELECT Order_Status, COUNT(*) FROM fact_operations GROUP BY 1","row_limit":10}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	body := decodeBody(t, rr)
	stats := body["stats"].(map[string]any)
	if stats["row_count"] != float64(1) || stats["duration_ms"] != float64(20) || stats["scanned_files"] != float64(1) {
		t.Fatalf("stats = %v", stats)
	}
	chart := body["chart"].(map[string]any)
	if chart["id"] != "nl-result" {
		t.Fatalf("chart = %v", chart)
	}
	if len(engine.requests) != 1 || engine.requests[0].RowLimit != 10 {
		t.Fatalf("engine requests = %+v", engine.requests)
	}
}

func TestQueryEndpointAgainstMockEngine(t *testing.T) {
	h := NewHandler(testConfig(t, nil), Dependencies{QueryEngine: mock.NewEngine(testDataset())})

	rr := postQuery(t, h, `{"sql":"SELECT Traffic_Level, AVG(ETA_Variation) FROM fact_operations GROUP BY 1"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["route"] != "traffic_eta" {
		t.Fatalf("route = %v", body["route"])
	}
	if rows := body["rows"].([]any); len(rows) != 4 {
		t.Fatalf("rows = %d", len(rows))
	}
}

func TestQueryEndpointRejectsBadRequests(t *testing.T) {
	h := NewHandler(testConfig(t, nil), Dependencies{QueryEngine: &fakeQueryEngine{}})
	tests := []struct {
		name string
		body string
		code string
	}{
		{"invalid json", `{"sql":`, "INVALID_JSON"},
		{"unknown field", `{"sql":"SELECT 1","tenant":"x"}`, "INVALID_JSON"},
		{"empty sql", `{"sql":"   "}`, "SQL_REQUIRED"},
		{"write", `{"sql":"DELETE FROM fact_operations"}`, "SQL_NOT_ALLOWED"},
		{"negative limit", `{"sql":"SELECT 1","row_limit":-1}`, "INVALID_ROW_LIMIT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postQuery(t, h, tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", rr.Code)
			}
			if body := decodeBody(t, rr); body["error_code"] != tt.code {
				t.Fatalf("error_code = %v, want %s", body["error_code"], tt.code)
			}
		})
	}
}

func TestQueryEndpointMapsEngineErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"no snapshot", snapshot.ErrNoSnapshot, http.StatusNotFound, "SNAPSHOT_NOT_FOUND"},
		{"read only", duckdb.ErrReadOnly, http.StatusBadRequest, "SQL_NOT_ALLOWED"},
		{"binder", errors.New("Binder Error: column not found"), http.StatusBadRequest, "QUERY_EXECUTION_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(testConfig(t, nil), Dependencies{QueryEngine: &fakeQueryEngine{err: tt.err}})
			rr := postQuery(t, h, `{"sql":"SELECT 1"}`)
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			if body := decodeBody(t, rr); body["error_code"] != tt.code {
				t.Fatalf("error_code = %v, want %s", body["error_code"], tt.code)
			}
		})
	}
}

func TestQueryEndpointWithoutEngine(t *testing.T) {
	h := NewHandler(testConfig(t, nil), Dependencies{})
	rr := postQuery(t, h, `{"sql":"SELECT 1"}`)
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestSamplesEndpoint(t *testing.T) {
	h := NewHandler(testConfig(t, nil), Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/query/samples", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	prompts := decodeBody(t, rr)["prompts"].([]any)
	if len(prompts) == 0 {
		t.Fatal("expected sample prompts")
	}
}

func TestIsAllowedSQL(t *testing.T) {
	tests := map[string]bool{
		"SELECT 1":                             true,
		"  select * from dim_vehicles":         true,
		"WITH x AS (SELECT 1) SELECT * FROM x": true,
		"(SELECT 1)":                           true,
		"INSERT INTO t VALUES (1)":             false,
		"":                                     false,
	}
	for sqlText, want := range tests {
		if got := isAllowedSQL(sqlText); got != want {
			t.Fatalf("isAllowedSQL(%q) = %v, want %v", sqlText, got, want)
		}
	}
}
