package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/kdl-rgb/bytells/internal/charts"
	"github.com/kdl-rgb/bytells/internal/fleet"
)

const maxOperationsLimit = 500

var aggregates = map[string]func(ds *fleet.Dataset) any{
	"risk":              func(ds *fleet.Dataset) any { return ds.RiskDistribution() },
	"fuel-capacity":     func(ds *fleet.Dataset) any { return ds.FuelByCapacity() },
	"traffic-eta":       func(ds *fleet.Dataset) any { return ds.TrafficVsETA() },
	"order-status":      func(ds *fleet.Dataset) any { return ds.OrderStatusBreakdown() },
	"disruption-series": func(ds *fleet.Dataset) any { return ds.DisruptionTimeSeries() },
	"warehouses":        func(ds *fleet.Dataset) any { return ds.WarehousePerformance() },
}

func requireDataset(deps Dependencies, w http.ResponseWriter, r *http.Request) (*fleet.Dataset, bool) {
	if deps.Dataset == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "DATASET_NOT_CONFIGURED", "dataset is not loaded", false, nil)
		return nil, false
	}
	return deps.Dataset, true
}

func handleKPIs(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	ds, ok := requireDataset(deps, w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"as_of": ds.AsOf(),
		"kpis":  ds.KPIs(),
	})
}

func handleAggregate(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	ds, ok := requireDataset(deps, w, r)
	if !ok {
		return
	}
	name := r.PathValue("name")
	build, found := aggregates[name]
	if !found {
		writeError(r.Context(), w, http.StatusNotFound, "AGGREGATE_NOT_FOUND", "unknown aggregate", false, map[string]any{
			"name":      name,
			"available": charts.Names(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":  name,
		"as_of": ds.AsOf(),
		"data":  build(ds),
	})
}

func handleChart(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	ds, ok := requireDataset(deps, w, r)
	if !ok {
		return
	}
	name := r.PathValue("name")
	chart, found := charts.Dashboard(name, ds)
	if !found {
		writeError(r.Context(), w, http.StatusNotFound, "CHART_NOT_FOUND", "unknown chart", false, map[string]any{
			"name":      name,
			"available": charts.Names(),
		})
		return
	}
	writeJSON(w, http.StatusOK, chart)
}

func handleOperations(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	ds, ok := requireDataset(deps, w, r)
	if !ok {
		return
	}
	limit := fleet.FilterWindow
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > maxOperationsLimit {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be between 1 and 500", false, map[string]any{"limit": raw})
			return
		}
		limit = parsed
	}
	filter := r.URL.Query().Get("filter")
	operations := ds.FilterOperations(filter, limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"filter":     filter,
		"count":      len(operations),
		"operations": operations,
	})
}

func handleVehicleRoutes(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	ds, ok := requireDataset(deps, w, r)
	if !ok {
		return
	}
	vehicle := strings.ToUpper(strings.TrimSpace(r.PathValue("vehicle")))
	routes := ds.VehicleRoutes(vehicle)
	if len(routes) == 0 {
		writeError(r.Context(), w, http.StatusNotFound, "VEHICLE_NOT_FOUND", "no operations for vehicle", false, map[string]any{"vehicle": vehicle})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"vehicle":    vehicle,
		"routes":     routes,
		"risk_chart": charts.RouteRisk(routes[0]),
	})
}
