package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kdl-rgb/bytells/internal/analyst"
	"github.com/kdl-rgb/bytells/internal/config"
	"github.com/kdl-rgb/bytells/internal/nl2sql"
	"github.com/kdl-rgb/bytells/internal/query"
	"github.com/kdl-rgb/bytells/internal/reveal"
)

// NewAnalyst builds the orchestrator behind /v1/query/ask and the HTML
// analyst. Both render finished runs, so generated SQL is emitted in one
// piece instead of being revealed character by character.
func NewAnalyst(cfg config.Config, generator analyst.SQLGenerator, engine query.Engine, logger *slog.Logger) *analyst.Orchestrator {
	orchestrator := analyst.NewOrchestrator(generator, engine, string(cfg.Query.Engine), logger)
	orchestrator.Revealer = reveal.Revealer{}
	orchestrator.ExecutionDelay = cfg.Query.ExecutionDelay
	return orchestrator
}

type translateRequest struct {
	Prompt string `json:"prompt"`
	APIKey string `json:"api_key"`
	Mode   string `json:"mode"`
}

type askResponse struct {
	analyst.Outcome
	Statuses []analyst.Status `json:"statuses"`
	Columns  []string         `json:"columns"`
	Rows     [][]any          `json:"rows"`
	Route    string           `json:"route"`
	Stats    map[string]any   `json:"stats"`
}

type kindStatus struct {
	status    int
	retryable bool
}

var kindStatuses = map[nl2sql.Kind]kindStatus{
	nl2sql.KindMissingCredentials: {http.StatusBadRequest, false},
	nl2sql.KindInvalidCredentials: {http.StatusUnauthorized, false},
	nl2sql.KindRateLimited:        {http.StatusTooManyRequests, true},
	nl2sql.KindNetworkFailure:     {http.StatusBadGateway, true},
	nl2sql.KindCrossOriginBlocked: {http.StatusBadGateway, false},
	nl2sql.KindEmptyCompletion:    {http.StatusBadGateway, true},
	nl2sql.KindNonSelectBlocked:   {http.StatusUnprocessableEntity, false},
	nl2sql.KindAPIError:           {http.StatusBadGateway, true},
}

func parseTranslateRequest(w http.ResponseWriter, r *http.Request) (nl2sql.Request, bool) {
	var req translateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid translation request body", false, map[string]any{"details": err.Error()})
		return nl2sql.Request{}, false
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "PROMPT_REQUIRED", "prompt is required", false, nil)
		return nl2sql.Request{}, false
	}
	mode, err := nl2sql.ParseMode(req.Mode)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_MODE", err.Error(), false, map[string]any{"mode": req.Mode})
		return nl2sql.Request{}, false
	}
	return nl2sql.Request{Question: req.Prompt, APIKey: req.APIKey, Mode: mode}, true
}

func handleTranslate(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Generator == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "TRANSLATE_NOT_CONFIGURED", "query translation is not configured", false, nil)
		return
	}
	req, ok := parseTranslateRequest(w, r)
	if !ok {
		return
	}

	result, err := deps.Generator.Generate(r.Context(), req)
	if err != nil {
		writeGenerationError(r.Context(), w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Analyst == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ANALYST_NOT_CONFIGURED", "analyst is not configured", false, nil)
		return
	}
	req, ok := parseTranslateRequest(w, r)
	if !ok {
		return
	}

	sink := &analyst.Recorder{}
	outcome, err := deps.Analyst.Run(r.Context(), req, sink)
	if err != nil {
		if _, isKind := nl2sql.KindOf(err); isKind || errors.Is(err, nl2sql.ErrRemoteDisabled) {
			writeGenerationError(r.Context(), w, err, outcome.Status.Text)
			return
		}
		if ctxErr := r.Context().Err(); ctxErr != nil {
			writeError(r.Context(), w, http.StatusGatewayTimeout, "REQUEST_CANCELLED", ctxErr.Error(), true, nil)
			return
		}
		writeError(r.Context(), w, http.StatusBadRequest, "QUERY_EXECUTION_FAILED", outcome.Status.Text, false, map[string]any{
			"details": err.Error(),
			"sql":     outcome.SQL,
		})
		return
	}

	table := newQueryResponse(outcome.Result)
	writeJSON(w, http.StatusOK, askResponse{
		Outcome:  outcome,
		Statuses: sink.Statuses(),
		Columns:  table.Columns,
		Rows:     table.Rows,
		Route:    table.Route,
		Stats:    table.Stats,
	})
}

// writeGenerationError maps generation failures to HTTP statuses. message
// overrides the default error text when set.
func writeGenerationError(ctx context.Context, w http.ResponseWriter, err error, message string) {
	if errors.Is(err, nl2sql.ErrRemoteDisabled) {
		writeError(ctx, w, http.StatusNotImplemented, "TRANSLATE_NOT_CONFIGURED", err.Error(), false, nil)
		return
	}
	kind, ok := nl2sql.KindOf(err)
	if !ok {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			writeError(ctx, w, http.StatusGatewayTimeout, "REQUEST_CANCELLED", err.Error(), true, nil)
			return
		}
		writeError(ctx, w, http.StatusInternalServerError, "TRANSLATE_FAILED", "failed to translate query", true, map[string]any{"details": err.Error()})
		return
	}
	if message == "" {
		message = analyst.Message(err)
	}
	mapping := kindStatuses[kind]
	extra := map[string]any{"kind": string(kind)}
	if status := nl2sql.StatusOf(err); status != 0 {
		extra["upstream_status"] = status
	}
	writeError(ctx, w, mapping.status, strings.ToUpper(string(kind)), message, mapping.retryable, extra)
}
