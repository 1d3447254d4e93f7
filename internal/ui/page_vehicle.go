package ui

import (
	"net/http"
	"strings"

	gomponents "maragu.dev/gomponents"
	html "maragu.dev/gomponents/html"

	"github.com/kdl-rgb/bytells/internal/charts"
	"github.com/kdl-rgb/bytells/internal/fleet"
)

func (h *Handler) Vehicle(w http.ResponseWriter, r *http.Request) {
	if h.Dataset == nil {
		renderHTML(w, http.StatusServiceUnavailable, errorPage("Vehicle Unavailable", "The fleet dataset is not loaded."))
		return
	}
	vehicle := strings.ToUpper(strings.TrimSpace(r.PathValue("vehicle")))
	routes := h.Dataset.VehicleRoutes(vehicle)
	if len(routes) == 0 {
		renderHTML(w, http.StatusNotFound, errorPage("Vehicle Not Found", "No operations recorded for "+vehicle+"."))
		return
	}
	renderHTML(w, http.StatusOK, vehiclePage(vehicle, routes))
}

func vehiclePage(vehicle string, routes []fleet.Operation) gomponents.Node {
	latest := routes[0]
	rows := make([]gomponents.Node, 0, len(routes))
	for _, op := range routes {
		rows = append(rows, html.Tr(
			html.Td(gomponents.Text(formatTime(op.Timestamp))),
			html.Td(gomponents.Text(op.RouteID)),
			html.Td(gomponents.Text(op.WarehouseName)),
			html.Td(gomponents.Text(op.TrafficLevel)),
			html.Td(gomponents.Text(op.WeatherSeverity)),
			html.Td(gomponents.Text(op.OrderStatus)),
			html.Td(gomponents.Text(op.CargoCondition)),
			html.Td(gomponents.Textf("%d", op.DisruptionScore)),
		))
	}

	return appPage("Vehicle "+vehicle, "dashboard",
		card("Latest Route",
			html.P(gomponents.Textf("%s from %s, %dT capacity, fuel %.2f L/100km, delay probability %.0f%%",
				latest.RouteID, latest.WarehouseName, latest.VehicleCapacity, latest.FuelRate, latest.DelayProbability*100)),
			chartNode(charts.RouteRisk(latest)),
		),
		card("Route History",
			html.Div(
				html.Class("table-wrap"),
				html.Table(
					html.THead(html.Tr(
						html.Th(gomponents.Text("Time")),
						html.Th(gomponents.Text("Route")),
						html.Th(gomponents.Text("Warehouse")),
						html.Th(gomponents.Text("Traffic")),
						html.Th(gomponents.Text("Weather")),
						html.Th(gomponents.Text("Status")),
						html.Th(gomponents.Text("Cargo")),
						html.Th(gomponents.Text("Disruption")),
					)),
					html.TBody(gomponents.Group(rows)),
				),
			),
		),
	)
}
