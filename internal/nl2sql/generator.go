package nl2sql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kdl-rgb/bytells/internal/observability"
)

// Generator chooses between the remote translator and local rules.
type Generator struct {
	// Remote is nil when remote translation is disabled.
	Remote Translator
	Local  *LocalGenerator
	// DefaultAPIKey is used when a request carries no key of its own.
	DefaultAPIKey string
}

func NewGenerator(remote Translator, local *LocalGenerator, defaultAPIKey string) (*Generator, error) {
	if local == nil {
		return nil, fmt.Errorf("local generator is required")
	}
	return &Generator{Remote: remote, Local: local, DefaultAPIKey: strings.TrimSpace(defaultAPIKey)}, nil
}

// UsesRemote reports whether req would be sent to the remote translator.
func (g *Generator) UsesRemote(req Request) bool {
	switch req.Mode {
	case ModeLocal:
		return false
	case ModeRemote:
		return true
	default:
		return g.Remote != nil && g.apiKey(req) != ""
	}
}

func (g *Generator) Generate(ctx context.Context, req Request) (Result, error) {
	if !g.UsesRemote(req) {
		return g.GenerateLocal(req.Question), nil
	}
	if g.apiKey(req) == "" {
		observability.ObserveGeneration(string(SourceRemote), string(KindMissingCredentials))
		return Result{}, newError(KindMissingCredentials, 0, nil)
	}
	if g.Remote == nil {
		observability.ObserveGeneration(string(SourceRemote), "disabled")
		return Result{}, ErrRemoteDisabled
	}

	req.APIKey = g.apiKey(req)
	result, err := g.Remote.Translate(ctx, req)
	if err != nil {
		outcome := "error"
		if kind, ok := KindOf(err); ok {
			outcome = string(kind)
		} else if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			outcome = "cancelled"
		}
		observability.ObserveGeneration(string(SourceRemote), outcome)
		return Result{}, err
	}
	observability.ObserveGeneration(string(SourceRemote), "ok")
	return result, nil
}

// GenerateLocal always succeeds.
func (g *Generator) GenerateLocal(question string) Result {
	observability.ObserveGeneration(string(SourceLocal), "ok")
	return g.Local.Generate(question)
}

func (g *Generator) apiKey(req Request) string {
	if key := strings.TrimSpace(req.APIKey); key != "" {
		return key
	}
	return g.DefaultAPIKey
}
