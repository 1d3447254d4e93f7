// Package analyst runs a question end to end: SQL generation, progressive
// reveal, execution and display.
package analyst

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kdl-rgb/bytells/internal/charts"
	"github.com/kdl-rgb/bytells/internal/nl2sql"
	"github.com/kdl-rgb/bytells/internal/observability"
	"github.com/kdl-rgb/bytells/internal/query"
	"github.com/kdl-rgb/bytells/internal/reveal"
)

// DefaultExecutionDelay is the pause between revealing SQL and running it.
const DefaultExecutionDelay = 400 * time.Millisecond

// SQLGenerator is satisfied by *nl2sql.Generator.
type SQLGenerator interface {
	UsesRemote(req nl2sql.Request) bool
	Generate(ctx context.Context, req nl2sql.Request) (nl2sql.Result, error)
	GenerateLocal(question string) nl2sql.Result
}

type Orchestrator struct {
	Generator SQLGenerator
	Engine    query.Engine
	// EngineName labels query metrics.
	EngineName     string
	Revealer       reveal.Revealer
	ExecutionDelay time.Duration
	RowLimit       int
	Logger         *slog.Logger

	newID func() string
}

type Outcome struct {
	RunID    string        `json:"run_id"`
	Question string        `json:"question"`
	SQL      string        `json:"sql"`
	Source   nl2sql.Source `json:"source"`
	Rule     string        `json:"rule,omitempty"`
	Fallback bool          `json:"fallback"`
	// FallbackKind is set when Fallback is true.
	FallbackKind nl2sql.Kind  `json:"fallback_kind,omitempty"`
	Notice       Status       `json:"notice"`
	Result       query.Result `json:"-"`
	Chart        charts.Chart `json:"chart"`
	Status       Status       `json:"status"`
}

func NewOrchestrator(generator SQLGenerator, engine query.Engine, engineName string, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Orchestrator{
		Generator:      generator,
		Engine:         engine,
		EngineName:     engineName,
		ExecutionDelay: DefaultExecutionDelay,
		Logger:         logger,
		newID:          uuid.NewString,
	}
}

// Run answers one question, reporting progress to sink. Failures that cannot
// fall back to local SQL set an error status and are returned unchanged.
func (o *Orchestrator) Run(ctx context.Context, req nl2sql.Request, sink Sink) (Outcome, error) {
	outcome := Outcome{RunID: o.runID(), Question: req.Question}
	logger := o.logger().With(slog.String("run_id", outcome.RunID))

	o.setStatus(sink, &outcome, Status{Level: LevelInfo, Text: msgGenerating})

	remote := o.Generator.UsesRemote(req)
	generated, err := o.Generator.Generate(ctx, req)
	switch {
	case err == nil && remote:
		outcome.Notice = Status{Level: LevelSuccess, Text: msgRemoteOK}
	case err == nil && req.Mode == nl2sql.ModeLocal:
		outcome.Notice = Status{Level: LevelInfo, Text: msgLocalRules}
	case err == nil && strings.TrimSpace(req.APIKey) != "":
		outcome.Notice = Status{Level: LevelWarning, Text: msgNoRemote}
	case err == nil:
		outcome.Notice = Status{Level: LevelWarning, Text: msgNoKey}
	case ctx.Err() != nil:
		observability.ObserveAnalystRun("cancelled")
		return outcome, ctx.Err()
	default:
		kind, ok := nl2sql.KindOf(err)
		if !ok || !kind.Recoverable() {
			o.setStatus(sink, &outcome, Status{Level: LevelError, Text: Message(err)})
			observability.ObserveAnalystRun("aborted")
			logger.Warn("sql generation failed", slog.Any("error", err))
			return outcome, err
		}
		observability.IncrementFallback(string(kind))
		logger.Warn("remote sql generation failed, using local rules", slog.String("kind", string(kind)), slog.Any("error", err))
		generated = o.Generator.GenerateLocal(req.Question)
		outcome.Fallback = true
		outcome.FallbackKind = kind
		outcome.Notice = Status{Level: LevelWarning, Text: FallbackMessage(kind)}
	}
	outcome.SQL = generated.SQL
	outcome.Source = generated.Source
	outcome.Rule = generated.Rule
	o.setStatus(sink, &outcome, outcome.Notice)

	if err := o.Revealer.Reveal(ctx, generated.SQL, sink.ShowSQL); err != nil {
		observability.ObserveAnalystRun("cancelled")
		return outcome, err
	}

	o.setStatus(sink, &outcome, Status{Level: LevelInfo, Text: msgExecuting})
	if err := sleep(ctx, o.ExecutionDelay); err != nil {
		observability.ObserveAnalystRun("cancelled")
		return outcome, err
	}

	started := time.Now()
	result, err := o.Engine.Execute(ctx, query.Request{SQL: generated.SQL, RowLimit: o.RowLimit})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			observability.ObserveAnalystRun("cancelled")
			return outcome, err
		}
		o.setStatus(sink, &outcome, Status{Level: LevelError, Text: "Error: " + firstLine(err.Error())})
		observability.ObserveAnalystRun("failed")
		logger.Error("query execution failed", slog.Any("error", err))
		return outcome, fmt.Errorf("execute query: %w", err)
	}
	observability.ObserveQuery(o.EngineName, result.Route, time.Since(started))

	outcome.Result = result
	outcome.Chart = charts.FromResult(charts.ResultChartID, result)
	sink.ShowChart(charts.ResultChartID, result)
	sink.ShowTable(result)
	o.setStatus(sink, &outcome, Status{Level: LevelSuccess, Text: rowsReturned(result.RowCount())})

	observability.ObserveAnalystRun("ok")
	logger.Info("analyst run completed",
		slog.String("source", string(outcome.Source)),
		slog.Bool("fallback", outcome.Fallback),
		slog.String("route", result.Route),
		slog.Int("rows", result.RowCount()),
	)
	return outcome, nil
}

func (o *Orchestrator) setStatus(sink Sink, outcome *Outcome, status Status) {
	outcome.Status = status
	sink.SetStatus(status)
}

func (o *Orchestrator) runID() string {
	if o.newID != nil {
		return o.newID()
	}
	return uuid.NewString()
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func firstLine(value string) string {
	if idx := strings.IndexByte(value, '\n'); idx >= 0 {
		return value[:idx]
	}
	return value
}
