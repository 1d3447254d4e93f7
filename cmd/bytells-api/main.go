package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kdl-rgb/bytells/internal/api"
	"github.com/kdl-rgb/bytells/internal/auth"
	"github.com/kdl-rgb/bytells/internal/config"
	"github.com/kdl-rgb/bytells/internal/fleet"
	fleetpostgres "github.com/kdl-rgb/bytells/internal/fleet/postgres"
	"github.com/kdl-rgb/bytells/internal/nl2sql"
	"github.com/kdl-rgb/bytells/internal/observability"
	"github.com/kdl-rgb/bytells/internal/query"
	duckdbengine "github.com/kdl-rgb/bytells/internal/query/duckdb"
	"github.com/kdl-rgb/bytells/internal/query/mock"
	"github.com/kdl-rgb/bytells/internal/snapshot"
	"github.com/kdl-rgb/bytells/internal/storage"
	s3store "github.com/kdl-rgb/bytells/internal/storage/s3"
	"github.com/kdl-rgb/bytells/internal/ui"
)

func main() {
	cfg, err := config.LoadFromEnv("bytells-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("api server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	ds, db, err := loadDataset(ctx, cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer func() { _ = db.Close() }()
	}
	observability.SetDatasetRecords(ds.Len())
	logger.Info("dataset loaded",
		slog.String("source", string(cfg.Dataset.Source)),
		slog.Int("records", ds.Len()),
	)

	objectStore, err := openObjectStore(ctx, cfg)
	if err != nil {
		return err
	}
	publisher := snapshot.NewPublisher(objectStore, cfg.Snapshot.CreatedBy, logger)

	engine, err := newQueryEngine(ctx, cfg, ds, objectStore, publisher)
	if err != nil {
		return err
	}
	generator, err := newGenerator(cfg)
	if err != nil {
		return err
	}
	orchestrator := api.NewAnalyst(cfg, generator, engine, logger)

	readiness := []api.ReadinessCheck{api.CheckDataset(ds), api.CheckObjectStoreConfig(cfg)}
	if db != nil {
		readiness = append(readiness, api.CheckPing("dataset db", db.PingContext))
	}
	deps := api.Dependencies{
		Logger:            logger,
		Readiness:         api.CombineReadinessChecks(readiness...),
		DependencyTimeout: time.Second,
		Dataset:           ds,
		QueryEngine:       engine,
		Generator:         generator,
		Analyst:           orchestrator,
		Snapshots:         publisher,
	}
	var uiHandler http.Handler = ui.NewHandler(ds, orchestrator, deps.Readiness, logger).Routes()
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			return fmt.Errorf("parse static auth keys: %w", err)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
		uiHandler = deps.AuthMiddleware(auth.RequireRole(auth.RoleViewer)(uiHandler))
	}
	deps.UI = uiHandler

	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      api.NewHandler(cfg, deps),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}
	scheduler := snapshot.NewScheduler(publisher, func() *fleet.Dataset { return ds }, logger)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		if err := scheduler.Start(groupCtx, cfg.Snapshot.Schedule); err != nil {
			return err
		}
		<-groupCtx.Done()
		scheduler.Stop()
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down api server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})
	return group.Wait()
}

// loadDataset returns the db handle when the dataset is read from Postgres.
func loadDataset(ctx context.Context, cfg config.Config) (*fleet.Dataset, *sql.DB, error) {
	asOf := time.Now().UTC()
	switch cfg.Dataset.Source {
	case config.DatasetPostgres:
		db, err := fleetpostgres.Open(ctx, fleetpostgres.ConfigFrom(cfg.Dataset))
		if err != nil {
			return nil, nil, err
		}
		ds, err := fleetpostgres.NewStore(db).Load(ctx, asOf, cfg.Dataset.Size)
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("load dataset: %w", err)
		}
		return ds, db, nil
	default:
		return fleet.Generate(cfg.Dataset.Seed, cfg.Dataset.Size, asOf), nil, nil
	}
}

func openObjectStore(ctx context.Context, cfg config.Config) (storage.ObjectStore, error) {
	if !cfg.ObjectStore.Enabled {
		return storage.NewMemoryStore(), nil
	}
	store, err := s3store.New(ctx, s3store.ConfigFrom(cfg.ObjectStore))
	if err != nil {
		return nil, fmt.Errorf("initialize object store: %w", err)
	}
	return store, nil
}

// newQueryEngine publishes a first snapshot for the duckdb engine when the
// store has none yet.
func newQueryEngine(ctx context.Context, cfg config.Config, ds *fleet.Dataset, store storage.ObjectStore, publisher *snapshot.Publisher) (query.Engine, error) {
	if cfg.Query.Engine != config.QueryEngineDuckDB {
		return mock.NewEngine(ds), nil
	}
	if _, err := publisher.Latest(ctx); errors.Is(err, snapshot.ErrNoSnapshot) {
		if _, err := publisher.Publish(ctx, ds); err != nil {
			return nil, fmt.Errorf("publish initial snapshot: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("lookup latest snapshot: %w", err)
	}
	return duckdbengine.NewEngine(store, publisher), nil
}

func newGenerator(cfg config.Config) (*nl2sql.Generator, error) {
	local, err := nl2sql.NewDefaultLocalGenerator()
	if err != nil {
		return nil, fmt.Errorf("load local rules: %w", err)
	}
	var remote nl2sql.Translator
	if cfg.AI.TranslateEnabled {
		remote, err = nl2sql.NewRemoteTranslator(nl2sql.RemoteConfig{
			BaseURL:        cfg.AI.BaseURL,
			Path:           cfg.AI.Path,
			Model:          cfg.AI.Model,
			Temperature:    cfg.AI.Temperature,
			MaxTokens:      cfg.AI.MaxTokens,
			Timeout:        cfg.AI.Timeout,
			AllowedOrigins: cfg.AI.AllowedOrigins,
			RequestsPerSec: cfg.AI.RequestsPerSec,
			Burst:          cfg.AI.Burst,
		})
		if err != nil {
			return nil, fmt.Errorf("initialize remote translator: %w", err)
		}
	}
	return nl2sql.NewGenerator(remote, local, cfg.AI.APIKey)
}
