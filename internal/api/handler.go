package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kdl-rgb/bytells/internal/analyst"
	"github.com/kdl-rgb/bytells/internal/auth"
	"github.com/kdl-rgb/bytells/internal/config"
	"github.com/kdl-rgb/bytells/internal/fleet"
	"github.com/kdl-rgb/bytells/internal/nl2sql"
	"github.com/kdl-rgb/bytells/internal/observability"
	"github.com/kdl-rgb/bytells/internal/query"
	"github.com/kdl-rgb/bytells/internal/snapshot"
)

type ReadinessCheck func(ctx context.Context) error

// SQLGenerator is satisfied by *nl2sql.Generator.
type SQLGenerator interface {
	Generate(ctx context.Context, req nl2sql.Request) (nl2sql.Result, error)
}

type SnapshotPublisher interface {
	Publish(ctx context.Context, dataset *fleet.Dataset) (snapshot.Manifest, error)
	Latest(ctx context.Context) (snapshot.Manifest, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Dataset           *fleet.Dataset
	QueryEngine       query.Engine
	Generator         SQLGenerator
	Analyst           *analyst.Orchestrator
	Snapshots         SnapshotPublisher
	UI                http.Handler
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	limited := RateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	protect := protector(cfg, deps)

	routes := []struct {
		pattern string
		role    string
		limit   bool
		handler func(Dependencies, http.ResponseWriter, *http.Request)
	}{
		{"GET /v1/kpis", auth.RoleViewer, false, handleKPIs},
		{"GET /v1/aggregates/{name}", auth.RoleViewer, false, handleAggregate},
		{"GET /v1/charts/{name}", auth.RoleViewer, false, handleChart},
		{"GET /v1/operations", auth.RoleViewer, false, handleOperations},
		{"GET /v1/vehicles/{vehicle}/routes", auth.RoleViewer, false, handleVehicleRoutes},
		{"POST /v1/query", auth.RoleAnalyst, false, handleQuery},
		{"GET /v1/query/samples", auth.RoleViewer, false, handleSamples},
		{"POST /v1/query/translate", auth.RoleAnalyst, true, handleTranslate},
		{"POST /v1/query/ask", auth.RoleAnalyst, true, handleAsk},
		{"GET /v1/snapshots/latest", auth.RoleViewer, false, handleLatestSnapshot},
		{"POST /v1/snapshots", auth.RoleAdmin, false, handlePublishSnapshot},
	}
	for _, route := range routes {
		handle := route.handler
		var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handle(deps, w, r)
		})
		if route.limit {
			h = limited(h)
		}
		mux.Handle(route.pattern, protect(route.role, h))
	}

	if deps.UI != nil {
		mux.Handle("/", deps.UI)
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		corsMiddleware(cfg.CORS),
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

// protector wraps protected routes with authentication and a role check when
// auth is required.
func protector(cfg config.Config, deps Dependencies) func(role string, next http.Handler) http.Handler {
	if !cfg.Auth.Required {
		return func(_ string, next http.Handler) http.Handler { return next }
	}
	if deps.AuthMiddleware == nil {
		if deps.Logger != nil {
			deps.Logger.Error("auth required but auth middleware missing")
		}
		return func(string, http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		}
	}
	return func(role string, next http.Handler) http.Handler {
		return deps.AuthMiddleware(auth.RequireRole(role)(next))
	}
}

func corsMiddleware(cfg config.CORSConfig) func(http.Handler) http.Handler {
	if len(cfg.AllowedOrigins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		ExposedHeaders:   []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: false,
		MaxAge:           cfg.MaxAge,
	})
}

func CheckDataset(ds *fleet.Dataset) ReadinessCheck {
	return func(_ context.Context) error {
		if ds == nil {
			return errors.New("dataset is not loaded")
		}
		if ds.Len() == 0 {
			return errors.New("dataset is empty")
		}
		return nil
	}
}

func CheckObjectStoreConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if !cfg.ObjectStore.Enabled {
			return nil
		}
		if cfg.ObjectStore.Endpoint == "" {
			return errors.New("object store endpoint is not configured")
		}
		if cfg.ObjectStore.Bucket == "" {
			return errors.New("object store bucket is not configured")
		}
		return nil
	}
}

// CheckPing adapts a dependency ping, such as (*sql.DB).PingContext.
func CheckPing(name string, ping func(ctx context.Context) error) ReadinessCheck {
	return func(ctx context.Context) error {
		if err := ping(ctx); err != nil {
			return errors.New(name + " unavailable: " + err.Error())
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}
