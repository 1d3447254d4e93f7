package nl2sql

import (
	"context"
	"fmt"
	"strings"
)

type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

// Mode selects how a Generator picks between the remote and local paths.
type Mode string

const (
	// ModeAuto asks the remote service when a key is available and falls
	// back to local rules otherwise.
	ModeAuto   Mode = "auto"
	ModeRemote Mode = "remote"
	ModeLocal  Mode = "local"
)

func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeRemote:
		return ModeRemote, nil
	case ModeLocal:
		return ModeLocal, nil
	default:
		return "", fmt.Errorf("unknown generation mode %q", value)
	}
}

type Request struct {
	Question string `json:"question"`
	APIKey   string `json:"-"`
	Mode     Mode   `json:"mode,omitempty"`
}

type Result struct {
	SQL      string `json:"sql"`
	Source   Source `json:"source"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Rule     string `json:"rule,omitempty"`
}

type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}
