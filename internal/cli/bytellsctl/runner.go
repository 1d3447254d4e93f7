// Package bytellsctl implements the bytellsctl command line client.
package bytellsctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type Options struct {
	BaseURL string
	APIKey  string
	// GroqKey is forwarded to the translate and ask endpoints.
	GroqKey    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

// exitError carries a specific exit status out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// Run executes one bytellsctl invocation and returns the process exit code.
func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	root := newRootCmd(defaults)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(stderr, "%v\n", err)
		var exit *exitError
		if errors.As(err, &exit) {
			return exit.code
		}
		if strings.HasPrefix(err.Error(), "unknown command") {
			return 2
		}
		return 1
	}
	return 0
}

type globalFlags struct {
	baseURL string
	apiKey  string
	groqKey string
	timeout time.Duration
	noColor bool
}

func newRootCmd(defaults Options) *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "bytellsctl",
		Short:         "Command line client for the Bytells logistics API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &exitError{code: 2, err: err}
	})
	root.PersistentFlags().StringVar(&flags.baseURL, "base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "Bytells API base URL")
	root.PersistentFlags().StringVar(&flags.apiKey, "api-key", defaults.APIKey, "API key for authenticated requests")
	root.PersistentFlags().StringVar(&flags.groqKey, "groq-key", defaults.GroqKey, "Groq API key forwarded for SQL generation")
	root.PersistentFlags().DurationVar(&flags.timeout, "timeout", durationOr(defaults.Timeout, 30*time.Second), "HTTP timeout (e.g. 10s)")
	root.PersistentFlags().BoolVar(&flags.noColor, "no-color", false, "Disable colored output")

	client := func() *apiClient {
		httpClient := defaults.HTTPClient
		if httpClient == nil {
			httpClient = &http.Client{Timeout: flags.timeout}
		}
		return &apiClient{baseURL: strings.TrimRight(flags.baseURL, "/"), apiKey: strings.TrimSpace(flags.apiKey), http: httpClient}
	}

	root.AddCommand(
		newGetCmd("health", "Check API liveness", "/v1/health", client),
		newGetCmd("ready", "Check API readiness", "/v1/ready", client),
		newGetCmd("kpis", "Show fleet KPIs", "/v1/kpis", client),
		newGetCmd("samples", "List sample analyst questions", "/v1/query/samples", client),
		newAggregateCmd(client),
		newChartCmd(client),
		newOperationsCmd(client),
		newVehicleCmd(client),
		newQueryCmd(client, flags),
		newTranslateCmd(client, flags),
		newAskCmd(client, flags),
		newSnapshotCmd(client),
	)
	return root
}

// usageArgs turns argument count errors into exit status 2.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return &exitError{code: 2, err: err}
		}
		return nil
	}
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
