// Package mock answers SQL text with canned dataset aggregates. It does not
// parse SQL: the lowercased text is matched against an ordered route table
// and the first matching route wins.
package mock

import (
	"context"
	"strings"
	"time"

	"github.com/kdl-rgb/bytells/internal/fleet"
	"github.com/kdl-rgb/bytells/internal/query"
)

const recentRowCount = 8

type Route struct {
	Name    string
	Columns []string
	match   func(sql string) bool
	rows    func(ds *fleet.Dataset) [][]any
}

func (r Route) Matches(sql string) bool {
	return r.match(strings.ToLower(strings.TrimSpace(sql)))
}

var routes = []Route{
	{
		Name:    "fuel_by_capacity",
		Columns: []string{"Vehicle_Capacity", "Avg_Fuel_Rate", "Count"},
		match:   allOf("fuel_rate", "vehicle_capacity"),
		rows: func(ds *fleet.Dataset) [][]any {
			var rows [][]any
			for _, r := range ds.FuelByCapacity() {
				rows = append(rows, []any{r.Capacity, r.AvgFuel, r.Count})
			}
			return rows
		},
	},
	{
		Name:    "risk_distribution",
		Columns: []string{"Risk_Class", "Count", "Avg_Disruption"},
		match:   anyOf("risk_class", "disruption_score"),
		rows:    riskRows,
	},
	{
		Name:    "traffic_eta",
		Columns: []string{"Traffic_Level", "Avg_ETA_Var", "Avg_Delay_Prob"},
		match:   anyOf("traffic", "eta"),
		rows: func(ds *fleet.Dataset) [][]any {
			var rows [][]any
			for _, r := range ds.TrafficVsETA() {
				rows = append(rows, []any{r.Traffic, r.AvgETAVar, r.AvgDelayProb})
			}
			return rows
		},
	},
	{
		Name:    "order_status",
		Columns: []string{"Order_Status", "Count"},
		match:   anyOf("order_status", "delivered"),
		rows: func(ds *fleet.Dataset) [][]any {
			var rows [][]any
			for _, r := range ds.OrderStatusBreakdown() {
				rows = append(rows, []any{r.Status, r.Count})
			}
			return rows
		},
	},
	{
		Name:    "warehouse_performance",
		Columns: []string{"Warehouse", "Operations", "Avg_Loading_Time", "Delivery_Rate%"},
		match:   anyOf("warehouse", "loading_time"),
		rows: func(ds *fleet.Dataset) [][]any {
			var rows [][]any
			for _, r := range ds.WarehousePerformance() {
				rows = append(rows, []any{r.Warehouse, r.Operations, r.AvgLoading, r.DeliveryRate})
			}
			return rows
		},
	},
	{
		Name:    "fatigue_risk",
		Columns: []string{"Risk_Class", "Count", "Avg_Disruption_Score"},
		match:   anyOf("driver_fatigue", "route_risk"),
		rows:    riskRows,
	},
	{
		Name:    "recent_operations",
		Columns: []string{"Vehicle_ID", "Route_ID", "Order_Status", "Risk_Class", "Disruption_Score"},
		match:   func(string) bool { return true },
		rows: func(ds *fleet.Dataset) [][]any {
			var rows [][]any
			for _, r := range ds.RecentOperations(recentRowCount) {
				rows = append(rows, []any{r.VehicleID, r.RouteID, r.OrderStatus, r.RiskClass, r.DisruptionScore})
			}
			return rows
		},
	},
}

// Routes lists the route table in evaluation order. The last route matches
// everything.
func Routes() []Route {
	out := make([]Route, len(routes))
	copy(out, routes)
	return out
}

// Match returns the first route whose keywords appear in sql.
func Match(sql string) Route {
	normalized := strings.ToLower(strings.TrimSpace(sql))
	for _, route := range routes {
		if route.match(normalized) {
			return route
		}
	}
	return routes[len(routes)-1]
}

type Engine struct {
	Dataset *fleet.Dataset
}

func NewEngine(dataset *fleet.Dataset) *Engine {
	return &Engine{Dataset: dataset}
}

// Run is total: any text, including the empty string, yields a result.
func (e *Engine) Run(sql string) query.Result {
	start := time.Now()
	route := Match(sql)
	rows := [][]any{}
	if e.Dataset != nil {
		if built := route.rows(e.Dataset); built != nil {
			rows = built
		}
	}
	columns := make([]string, len(route.Columns))
	copy(columns, route.Columns)
	return query.Result{
		Columns:  columns,
		Rows:     rows,
		Route:    route.Name,
		Duration: time.Since(start),
	}
}

// Execute adapts Run to query.Engine. It never returns an error.
func (e *Engine) Execute(_ context.Context, request query.Request) (query.Result, error) {
	result := e.Run(request.SQL)
	if request.RowLimit > 0 && len(result.Rows) > request.RowLimit {
		result.Rows = result.Rows[:request.RowLimit]
	}
	return result, nil
}

func riskRows(ds *fleet.Dataset) [][]any {
	var rows [][]any
	for _, r := range ds.RiskDistribution() {
		rows = append(rows, []any{r.Label, r.Count, r.AvgDisruption})
	}
	return rows
}

func allOf(keywords ...string) func(string) bool {
	return func(sql string) bool {
		for _, keyword := range keywords {
			if !strings.Contains(sql, keyword) {
				return false
			}
		}
		return true
	}
}

func anyOf(keywords ...string) func(string) bool {
	return func(sql string) bool {
		for _, keyword := range keywords {
			if strings.Contains(sql, keyword) {
				return true
			}
		}
		return false
	}
}
