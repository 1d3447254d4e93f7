// Package ui renders the dashboard and the analyst console as server-side
// HTML.
package ui

import (
	"context"
	"embed"
	"io"
	"io/fs"
	"log/slog"
	"net/http"

	gomponents "maragu.dev/gomponents"

	"github.com/kdl-rgb/bytells/internal/analyst"
	"github.com/kdl-rgb/bytells/internal/fleet"
	"github.com/kdl-rgb/bytells/internal/nl2sql"
)

//go:embed static
var staticFiles embed.FS

const maxFormBytes = 64 << 10

// Runner is satisfied by *analyst.Orchestrator.
type Runner interface {
	Run(ctx context.Context, req nl2sql.Request, sink analyst.Sink) (analyst.Outcome, error)
}

type Handler struct {
	Dataset *fleet.Dataset
	// Analyst is nil when the console is disabled.
	Analyst   Runner
	Readiness func(ctx context.Context) error
	Logger    *slog.Logger
}

func NewHandler(ds *fleet.Dataset, runner Runner, readiness func(ctx context.Context) error, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{Dataset: ds, Analyst: runner, Readiness: readiness, Logger: logger}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.Dashboard)
	mux.HandleFunc("GET /vehicles/{vehicle}", h.Vehicle)
	mux.HandleFunc("GET /analyst", h.AnalystPage)
	mux.HandleFunc("POST /analyst/run", h.AnalystRun)

	if static, err := fs.Sub(staticFiles, "static"); err == nil {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		renderHTML(w, http.StatusNotFound, errorPage("Not Found", "The page you asked for does not exist."))
	})
	return mux
}

func renderHTML(w http.ResponseWriter, status int, node gomponents.Node) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = node.Render(w)
}
