package ui

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	gomponents "maragu.dev/gomponents"
	html "maragu.dev/gomponents/html"

	"github.com/kdl-rgb/bytells/internal/charts"
	"github.com/kdl-rgb/bytells/internal/fleet"
)

// dashboardCharts fixes the order charts appear in.
var dashboardCharts = []string{"risk", "fuel-capacity", "traffic-eta", "order-status", "disruption-series", "warehouses"}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	if h.Dataset == nil {
		renderHTML(w, http.StatusServiceUnavailable, errorPage("Dashboard Unavailable", "The fleet dataset is not loaded."))
		return
	}
	filter := strings.TrimSpace(r.URL.Query().Get("filter"))
	health := "ok"
	if h.Readiness != nil {
		if err := h.Readiness(r.Context()); err != nil {
			health = err.Error()
		}
	}
	renderHTML(w, http.StatusOK, dashboardPage(h.Dataset, filter, health))
}

func dashboardPage(ds *fleet.Dataset, filter, health string) gomponents.Node {
	chartNodes := make([]gomponents.Node, 0, len(dashboardCharts))
	for _, name := range dashboardCharts {
		if chart, ok := charts.Dashboard(name, ds); ok {
			chartNodes = append(chartNodes, chartNode(chart))
		}
	}

	return appPage("Operations Dashboard", "dashboard",
		html.P(html.Class("muted"), gomponents.Textf("Data as of %s · %d operations · health: %s", formatTime(ds.AsOf()), ds.Len(), health)),
		kpiCards(ds.KPIs()),
		card("Fleet Analytics", html.Div(html.Class("chart-grid"), gomponents.Group(chartNodes))),
		operationsCard(ds, filter),
		warehouseCard(ds),
	)
}

func kpiCards(k fleet.KPIs) gomponents.Node {
	items := []struct {
		label string
		value string
	}{
		{"Total Operations", fmt.Sprintf("%d", k.TotalOperations)},
		{"Delivery Rate", fmt.Sprintf("%.1f%%", k.DeliveryRate)},
		{"Active Vehicles", fmt.Sprintf("%d", k.ActiveVehicles)},
		{"Avg Fuel Rate", fmt.Sprintf("%.2f L/100km", k.AvgFuelRate)},
		{"High Risk Ops", fmt.Sprintf("%d", k.HighRiskCount)},
		{"Avg Disruption", fmt.Sprintf("%.2f", k.AvgDisruption)},
	}
	nodes := make([]gomponents.Node, 0, len(items))
	for _, item := range items {
		nodes = append(nodes, html.Div(
			html.Class("kpi"),
			html.Span(html.Class("kpi-label"), gomponents.Text(item.label)),
			html.Strong(html.Class("kpi-value"), gomponents.Text(item.value)),
		))
	}
	return html.Div(html.Class("kpi-grid"), gomponents.Group(nodes))
}

func operationsCard(ds *fleet.Dataset, filter string) gomponents.Node {
	operations := ds.FilterOperations(filter, fleet.FilterWindow)
	rows := make([]gomponents.Node, 0, len(operations))
	for _, op := range operations {
		rows = append(rows, html.Tr(
			html.Td(gomponents.Text(formatTime(op.Timestamp))),
			html.Td(html.A(html.Href("/vehicles/"+url.PathEscape(op.VehicleID)), gomponents.Text(op.VehicleID))),
			html.Td(gomponents.Text(op.RouteID)),
			html.Td(gomponents.Text(op.WarehouseName)),
			html.Td(gomponents.Text(op.OrderStatus)),
			html.Td(html.Span(html.Class("risk risk-"+strings.ToLower(op.RiskClass)), gomponents.Text(op.RiskClass))),
			html.Td(gomponents.Textf("%d", op.DisruptionScore)),
			html.Td(gomponents.Textf("%d min", op.ETAVariation)),
		))
	}

	summary := fmt.Sprintf("%d of the %d newest operations", len(operations), fleet.FilterWindow)
	if filter != "" {
		summary += fmt.Sprintf(" match %q", filter)
	}
	return card("Recent Operations",
		html.Form(
			html.Method("get"),
			html.Action("/"),
			html.Class("inline-form"),
			html.Input(html.Type("search"), html.Name("filter"), html.Value(filter), html.Placeholder("Filter by vehicle, route, status or risk")),
			html.Button(html.Type("submit"), gomponents.Text("Filter")),
		),
		html.P(html.Class("muted"), gomponents.Text(summary)),
		html.Div(
			html.Class("table-wrap"),
			html.Table(
				html.THead(html.Tr(
					html.Th(gomponents.Text("Time")),
					html.Th(gomponents.Text("Vehicle")),
					html.Th(gomponents.Text("Route")),
					html.Th(gomponents.Text("Warehouse")),
					html.Th(gomponents.Text("Status")),
					html.Th(gomponents.Text("Risk")),
					html.Th(gomponents.Text("Disruption")),
					html.Th(gomponents.Text("ETA Var")),
				)),
				html.TBody(gomponents.Group(rows)),
			),
		),
	)
}

func warehouseCard(ds *fleet.Dataset) gomponents.Node {
	perf := map[string]fleet.WarehousePerf{}
	for _, p := range ds.WarehousePerformance() {
		perf[p.ID] = p
	}
	rows := make([]gomponents.Node, 0, len(ds.Warehouses()))
	for _, wh := range ds.Warehouses() {
		p := perf[wh.ID]
		rows = append(rows, html.Tr(
			html.Td(gomponents.Text(wh.ID)),
			html.Td(gomponents.Text(wh.Name)),
			html.Td(gomponents.Textf("%.3f, %.3f", wh.Lat, wh.Lon)),
			html.Td(gomponents.Textf("%d", p.Operations)),
			html.Td(gomponents.Textf("%.1f min", p.AvgLoading)),
			html.Td(gomponents.Textf("%.1f%%", p.DeliveryRate)),
		))
	}
	return card("Warehouse Directory",
		html.Div(
			html.Class("table-wrap"),
			html.Table(
				html.THead(html.Tr(
					html.Th(gomponents.Text("ID")),
					html.Th(gomponents.Text("Name")),
					html.Th(gomponents.Text("Location")),
					html.Th(gomponents.Text("Operations")),
					html.Th(gomponents.Text("Avg Loading")),
					html.Th(gomponents.Text("Delivery Rate")),
				)),
				html.TBody(gomponents.Group(rows)),
			),
		),
	)
}
