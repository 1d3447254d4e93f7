package bytellsctl

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kdl-rgb/bytells/internal/analyst"
	"github.com/kdl-rgb/bytells/internal/charts"
	"github.com/kdl-rgb/bytells/internal/fleet"
	"github.com/kdl-rgb/bytells/internal/nl2sql"
	"github.com/kdl-rgb/bytells/internal/query"
	"github.com/kdl-rgb/bytells/internal/query/mock"
	"github.com/kdl-rgb/bytells/internal/reveal"
)

type clientFunc func() *apiClient

func newGetCmd(use, short, path string, client clientFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd, client(), path)
		},
	}
}

func printJSON(cmd *cobra.Command, c *apiClient, path string) error {
	raw, err := c.do(cmd.Context(), http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if pretty, ok := prettyJSON(raw); ok {
		cmd.Println(pretty)
		return nil
	}
	cmd.Println(strings.TrimSpace(string(raw)))
	return nil
}

func newAggregateCmd(client clientFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "aggregate <name>",
		Short: "Show a dashboard aggregate (risk, fuel-capacity, traffic-eta, order-status, disruption-series, warehouses)",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd, client(), "/v1/aggregates/"+url.PathEscape(args[0]))
		},
	}
}

func newChartCmd(client clientFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "chart <name>",
		Short: "Draw a dashboard chart in the terminal",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			var chart charts.Chart
			if err := client().decode(cmd.Context(), http.MethodGet, "/v1/charts/"+url.PathEscape(args[0]), nil, &chart); err != nil {
				return err
			}
			writeChart(cmd.OutOrStdout(), chart)
			return nil
		},
	}
}

func newOperationsCmd(client clientFunc) *cobra.Command {
	var filter string
	var limit int
	cmd := &cobra.Command{
		Use:   "operations",
		Short: "List recent operations",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			params := url.Values{}
			if filter != "" {
				params.Set("filter", filter)
			}
			if limit > 0 {
				params.Set("limit", strconv.Itoa(limit))
			}
			path := "/v1/operations"
			if encoded := params.Encode(); encoded != "" {
				path += "?" + encoded
			}
			var resp struct {
				Operations []fleet.Operation `json:"operations"`
			}
			if err := client().decode(cmd.Context(), http.MethodGet, path, nil, &resp); err != nil {
				return err
			}
			writeOperations(cmd, resp.Operations)
			return nil
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "Case-insensitive match on vehicle, route, status or risk class")
	cmd.Flags().IntVar(&limit, "limit", 0, "Number of newest operations to search (default 50)")
	return cmd
}

func newVehicleCmd(client clientFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "vehicle <vehicle-id>",
		Short: "Show the route history and risk profile of a vehicle",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Routes    []fleet.Operation `json:"routes"`
				RiskChart charts.Chart      `json:"risk_chart"`
			}
			if err := client().decode(cmd.Context(), http.MethodGet, "/v1/vehicles/"+url.PathEscape(args[0])+"/routes", nil, &resp); err != nil {
				return err
			}
			writeOperations(cmd, resp.Routes)
			cmd.Println()
			writeChart(cmd.OutOrStdout(), resp.RiskChart)
			return nil
		},
	}
}

func writeOperations(cmd *cobra.Command, operations []fleet.Operation) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TIME\tVEHICLE\tROUTE\tWAREHOUSE\tSTATUS\tRISK\tDISRUPTION")
	for _, op := range operations {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			op.Timestamp.UTC().Format("2006-01-02 15:04"), op.VehicleID, op.RouteID, op.WarehouseName, op.OrderStatus, op.RiskClass, op.DisruptionScore)
	}
	_ = tw.Flush()
}

type tableResponse struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
	Route   string   `json:"route"`
}

func (t tableResponse) result() query.Result {
	return query.Result{Columns: t.Columns, Rows: t.Rows, Route: t.Route}
}

func newQueryCmd(client clientFunc, flags *globalFlags) *cobra.Command {
	var rowLimit int
	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Run a read-only SQL statement",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp tableResponse
			payload := map[string]any{"sql": strings.Join(args, " "), "row_limit": rowLimit}
			if err := client().decode(cmd.Context(), http.MethodPost, "/v1/query", payload, &resp); err != nil {
				return err
			}
			sink := newTerminalSink(cmd.OutOrStdout(), flags.noColor)
			sink.ShowTable(resp.result())
			sink.SetStatus(analyst.Status{Level: analyst.LevelSuccess, Text: fmt.Sprintf("✓ %d rows returned", len(resp.Rows))})
			return nil
		},
	}
	cmd.Flags().IntVar(&rowLimit, "row-limit", 0, "Maximum rows to return (0 for engine default)")
	return cmd
}

type askPayload struct {
	Prompt string `json:"prompt"`
	APIKey string `json:"api_key,omitempty"`
	Mode   string `json:"mode,omitempty"`
}

func newTranslateCmd(client clientFunc, flags *globalFlags) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "translate <question>",
		Short: "Generate SQL for a question without running it",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result nl2sql.Result
			payload := askPayload{Prompt: strings.Join(args, " "), APIKey: flags.groqKey, Mode: mode}
			if err := client().decode(cmd.Context(), http.MethodPost, "/v1/query/translate", payload, &result); err != nil {
				return err
			}
			cmd.Println(result.SQL)
			origin := string(result.Source)
			if result.Rule != "" {
				origin += " rule " + result.Rule
			}
			if result.Provider != "" {
				origin += " via " + result.Provider + " " + result.Model
			}
			cmd.PrintErrln("-- " + origin)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "Generation mode: auto, remote or local")
	return cmd
}

type askResponse struct {
	SQL      string           `json:"sql"`
	Statuses []analyst.Status `json:"statuses"`
	tableResponse
}

func newAskCmd(client clientFunc, flags *globalFlags) *cobra.Command {
	var (
		mode        string
		offline     bool
		seed        int64
		size        int
		revealDelay time.Duration
		execDelay   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the AI analyst a question and show the generated SQL and results",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsedMode, err := nl2sql.ParseMode(mode)
			if err != nil {
				return &exitError{code: 2, err: err}
			}
			question := strings.Join(args, " ")
			sink := newTerminalSink(cmd.OutOrStdout(), flags.noColor)
			revealer := reveal.Revealer{Delay: revealDelay}

			if offline {
				orchestrator, err := offlineAnalyst(seed, size, flags.groqKey != "")
				if err != nil {
					return err
				}
				orchestrator.Revealer = revealer
				orchestrator.ExecutionDelay = execDelay
				_, err = orchestrator.Run(cmd.Context(), nl2sql.Request{Question: question, APIKey: flags.groqKey, Mode: parsedMode}, sink)
				return err
			}

			var resp askResponse
			payload := askPayload{Prompt: question, APIKey: flags.groqKey, Mode: string(parsedMode)}
			if err := client().decode(cmd.Context(), http.MethodPost, "/v1/query/ask", payload, &resp); err != nil {
				var apiErr *apiError
				if errors.As(err, &apiErr) {
					sink.SetStatus(analyst.Status{Level: analyst.LevelError, Text: apiErr.Message})
				}
				return err
			}
			return replay(cmd.Context(), resp, sink, revealer)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "Generation mode: auto, remote or local")
	cmd.Flags().BoolVar(&offline, "offline", false, "Run against an in-process synthetic dataset instead of the API")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Synthetic dataset seed for --offline")
	cmd.Flags().IntVar(&size, "size", 200, "Synthetic dataset size for --offline")
	cmd.Flags().DurationVar(&revealDelay, "reveal-delay", reveal.DefaultDelay, "Delay between revealed SQL characters")
	cmd.Flags().DurationVar(&execDelay, "exec-delay", analyst.DefaultExecutionDelay, "Pause before running the query with --offline")
	return cmd
}

// replay shows a finished API run in the order the analyst produced it:
// generation statuses, the SQL reveal, execution statuses, then the result.
func replay(ctx context.Context, resp askResponse, sink analyst.Sink, revealer reveal.Revealer) error {
	statuses := resp.Statuses
	revealAt := min(2, len(statuses))
	for _, status := range statuses[:revealAt] {
		sink.SetStatus(status)
	}
	if err := revealer.Reveal(ctx, resp.SQL, sink.ShowSQL); err != nil {
		return err
	}
	var final []analyst.Status
	if len(statuses) > revealAt {
		for _, status := range statuses[revealAt : len(statuses)-1] {
			sink.SetStatus(status)
		}
		final = statuses[len(statuses)-1:]
	}
	result := resp.result()
	sink.ShowChart(charts.ResultChartID, result)
	sink.ShowTable(result)
	for _, status := range final {
		sink.SetStatus(status)
	}
	return nil
}

func offlineAnalyst(seed int64, size int, remote bool) (*analyst.Orchestrator, error) {
	if size <= 0 {
		return nil, &exitError{code: 2, err: fmt.Errorf("--size must be > 0")}
	}
	local, err := nl2sql.NewDefaultLocalGenerator()
	if err != nil {
		return nil, err
	}
	var translator nl2sql.Translator
	if remote {
		translator, err = nl2sql.NewRemoteTranslator(nl2sql.RemoteConfig{Temperature: 0.1})
		if err != nil {
			return nil, err
		}
	}
	generator, err := nl2sql.NewGenerator(translator, local, "")
	if err != nil {
		return nil, err
	}
	ds := fleet.Generate(seed, size, time.Now().UTC())
	return analyst.NewOrchestrator(generator, mock.NewEngine(ds), "mock", nil), nil
}

func newSnapshotCmd(client clientFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Publish or inspect Parquet snapshots",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "publish",
			Short: "Publish the current dataset as a Parquet snapshot",
			Args:  usageArgs(cobra.NoArgs),
			RunE: func(cmd *cobra.Command, _ []string) error {
				raw, err := client().do(cmd.Context(), http.MethodPost, "/v1/snapshots", nil)
				if err != nil {
					return err
				}
				if pretty, ok := prettyJSON(raw); ok {
					cmd.Println(pretty)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "latest",
			Short: "Show the latest snapshot manifest",
			Args:  usageArgs(cobra.NoArgs),
			RunE: func(cmd *cobra.Command, _ []string) error {
				return printJSON(cmd, client(), "/v1/snapshots/latest")
			},
		},
	)
	return cmd
}
