package bytellsctl

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/kdl-rgb/bytells/internal/analyst"
	"github.com/kdl-rgb/bytells/internal/charts"
	"github.com/kdl-rgb/bytells/internal/query"
)

const (
	tableMaxRows = 50
	chartWidth   = 30
)

// terminalSink prints analyst progress to a terminal. Revealed SQL is written
// incrementally so it types out in place.
type terminalSink struct {
	mu      sync.Mutex
	out     io.Writer
	printed string
	open    bool
	palette map[analyst.Level]*color.Color
	sql     *color.Color
}

func newTerminalSink(out io.Writer, noColor bool) *terminalSink {
	palette := map[analyst.Level]*color.Color{
		analyst.LevelInfo:    color.New(color.FgCyan),
		analyst.LevelSuccess: color.New(color.FgGreen),
		analyst.LevelWarning: color.New(color.FgYellow),
		analyst.LevelError:   color.New(color.FgRed, color.Bold),
	}
	sql := color.New(color.FgHiWhite)
	if noColor {
		for _, c := range palette {
			c.DisableColor()
		}
		sql.DisableColor()
	}
	return &terminalSink{out: out, palette: palette, sql: sql}
}

func (t *terminalSink) ShowSQL(partial string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !strings.HasPrefix(partial, t.printed) {
		t.closeLine()
		t.printed = ""
	}
	if delta := partial[len(t.printed):]; delta != "" {
		_, _ = t.sql.Fprint(t.out, delta)
		t.open = true
	}
	t.printed = partial
}

func (t *terminalSink) SetStatus(status analyst.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeLine()
	c, ok := t.palette[status.Level]
	if !ok {
		c = t.palette[analyst.LevelInfo]
	}
	_, _ = c.Fprintln(t.out, status.Text)
}

func (t *terminalSink) ShowTable(result query.Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeLine()
	writeTable(t.out, result)
}

func (t *terminalSink) ShowChart(id string, result query.Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeLine()
	writeChart(t.out, charts.FromResult(id, result))
}

func (t *terminalSink) closeLine() {
	if t.open {
		_, _ = fmt.Fprintln(t.out)
		t.open = false
	}
}

func writeTable(out io.Writer, result query.Result) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, strings.Join(result.Columns, "\t"))
	rows := result.Rows
	if len(rows) > tableMaxRows {
		rows = rows[:tableMaxRows]
	}
	for _, row := range rows {
		cells := make([]string, 0, len(row))
		for _, cell := range row {
			cells = append(cells, fmt.Sprint(cell))
		}
		_, _ = fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	_ = tw.Flush()
	if len(rows) < len(result.Rows) {
		_, _ = fmt.Fprintf(out, "... %d more row(s)\n", len(result.Rows)-len(rows))
	}
}

// writeChart draws the first series as horizontal bars.
func writeChart(out io.Writer, chart charts.Chart) {
	if chart.Empty() || len(chart.Series) == 0 {
		return
	}
	series := chart.Series[0]
	peak := 0.0
	labelWidth := 0
	for i, label := range chart.Labels {
		labelWidth = max(labelWidth, len(label))
		if i < len(series.Data) {
			peak = math.Max(peak, math.Abs(series.Data[i]))
		}
	}
	_, _ = fmt.Fprintf(out, "%s (%s)\n", chart.Title, series.Label)
	for i, label := range chart.Labels {
		value := 0.0
		if i < len(series.Data) {
			value = series.Data[i]
		}
		width := 0
		if peak > 0 {
			width = int(math.Round(math.Abs(value) / peak * chartWidth))
		}
		_, _ = fmt.Fprintf(out, "%-*s %s %g\n", labelWidth, label, strings.Repeat("█", width), value)
	}
}
