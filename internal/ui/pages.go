package ui

import (
	"fmt"
	"math"
	"strconv"
	"time"

	gomponents "maragu.dev/gomponents"
	html "maragu.dev/gomponents/html"

	"github.com/kdl-rgb/bytells/internal/charts"
	"github.com/kdl-rgb/bytells/internal/query"
)

const resultMaxRows = 200

type navItem struct {
	Key   string
	Label string
	Href  string
}

var navItems = []navItem{
	{Key: "dashboard", Label: "Dashboard", Href: "/"},
	{Key: "analyst", Label: "AI Analyst", Href: "/analyst"},
}

func appPage(title, active string, body ...gomponents.Node) gomponents.Node {
	nav := make([]gomponents.Node, 0, len(navItems))
	for _, item := range navItems {
		className := ""
		if item.Key == active {
			className = "active"
		}
		nav = append(nav, html.A(html.Href(item.Href), html.Class(className), gomponents.Text(item.Label)))
	}

	return html.Doctype(html.HTML(
		html.Lang("en"),
		html.Head(
			html.Meta(html.Charset("utf-8")),
			html.Meta(html.Name("viewport"), html.Content("width=device-width, initial-scale=1")),
			html.TitleEl(gomponents.Text(title+" | Bytells")),
			html.Link(html.Rel("stylesheet"), html.Href("/static/app.css")),
		),
		html.Body(
			html.Main(
				html.Class("layout"),
				html.Div(
					html.Class("topbar"),
					html.Strong(gomponents.Text("Bytells Logistics Intelligence")),
					html.P(html.Class("muted"), gomponents.Text("Fleet operations across Botswana")),
				),
				html.Nav(html.Class("nav"), gomponents.Group(nav)),
				html.H1(html.Class("page-title"), gomponents.Text(title)),
				gomponents.Group(body),
			),
		),
	))
}

func errorPage(title, message string) gomponents.Node {
	return appPage(title, "",
		html.P(gomponents.Text(message)),
		html.P(html.A(html.Href("/"), gomponents.Text("Back to dashboard"))),
	)
}

func card(title string, body ...gomponents.Node) gomponents.Node {
	return html.Section(
		html.Class("card"),
		html.H2(gomponents.Text(title)),
		gomponents.Group(body),
	)
}

// chartNode draws a chart as horizontal CSS bars, one row per label and one
// bar per series.
func chartNode(chart charts.Chart) gomponents.Node {
	if chart.Empty() {
		return html.Div(html.Class("chart"), html.P(html.Class("muted"), gomponents.Text("No data to chart.")))
	}
	peak := 0.0
	for _, series := range chart.Series {
		for _, value := range series.Data {
			peak = math.Max(peak, math.Abs(value))
		}
	}

	legend := make([]gomponents.Node, 0, len(chart.Series))
	for i, series := range chart.Series {
		legend = append(legend, html.Span(html.Class(fmt.Sprintf("legend series-%d", i)), gomponents.Text(series.Label)))
	}

	rows := make([]gomponents.Node, 0, len(chart.Labels))
	for i, label := range chart.Labels {
		bars := make([]gomponents.Node, 0, len(chart.Series))
		for j, series := range chart.Series {
			value := 0.0
			if i < len(series.Data) {
				value = series.Data[i]
			}
			bars = append(bars, html.Div(
				html.Class("bar-track"),
				html.Div(
					html.Class(fmt.Sprintf("bar series-%d", j)),
					html.Style(fmt.Sprintf("width: %.1f%%", barWidth(value, peak))),
				),
				html.Span(html.Class("bar-value"), gomponents.Text(formatNumber(value))),
			))
		}
		rows = append(rows, html.Div(
			html.Class("bar-row"),
			html.Span(html.Class("bar-label"), gomponents.Text(label)),
			html.Div(html.Class("bars"), gomponents.Group(bars)),
		))
	}

	return html.Div(
		html.Class("chart chart-"+string(chart.Kind)),
		html.ID("chart-"+chart.ID),
		html.H3(gomponents.Text(chart.Title)),
		html.Div(html.Class("legend-row"), gomponents.Group(legend)),
		gomponents.Group(rows),
	)
}

func barWidth(value, peak float64) float64 {
	if peak <= 0 {
		return 0
	}
	return math.Abs(value) / peak * 100
}

// resultTable renders a query result as an HTML table, capped at
// resultMaxRows rows.
func resultTable(result query.Result) gomponents.Node {
	header := make([]gomponents.Node, 0, len(result.Columns))
	for _, column := range result.Columns {
		header = append(header, html.Th(gomponents.Text(column)))
	}

	display := result.Rows
	if len(display) > resultMaxRows {
		display = display[:resultMaxRows]
	}
	rows := make([]gomponents.Node, 0, len(display))
	for _, row := range display {
		cells := make([]gomponents.Node, 0, len(row))
		for _, cell := range row {
			cells = append(cells, html.Td(gomponents.Text(cellString(cell))))
		}
		rows = append(rows, html.Tr(gomponents.Group(cells)))
	}

	meta := fmt.Sprintf("%d row(s)", result.RowCount())
	if len(display) < result.RowCount() {
		meta = fmt.Sprintf("%d row(s), showing first %d", result.RowCount(), len(display))
	}
	return html.Div(
		html.Class("table-wrap"),
		html.P(html.Class("muted"), gomponents.Text(meta)),
		html.Table(
			html.THead(html.Tr(gomponents.Group(header))),
			html.TBody(gomponents.Group(rows)),
		),
	)
}

func cellString(cell any) string {
	switch v := cell.(type) {
	case nil:
		return "NULL"
	case string:
		return v
	case float64:
		return formatNumber(v)
	case float32:
		return formatNumber(float64(v))
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.UTC().Format("2006-01-02 15:04")
}
