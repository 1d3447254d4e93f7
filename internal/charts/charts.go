// Package charts shapes query results and dashboard aggregates into chart
// payloads a browser charting library can render directly.
package charts

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/kdl-rgb/bytells/internal/fleet"
	"github.com/kdl-rgb/bytells/internal/query"
)

type Kind string

const (
	KindBar      Kind = "bar"
	KindLine     Kind = "line"
	KindDoughnut Kind = "doughnut"
	KindRadar    Kind = "radar"
)

// ResultChartID is the chart id the analyst uses for query results.
const ResultChartID = "nl-result"

type Series struct {
	Label string    `json:"label"`
	Data  []float64 `json:"data"`
}

type Chart struct {
	ID     string   `json:"id"`
	Kind   Kind     `json:"kind"`
	Title  string   `json:"title"`
	Labels []string `json:"labels"`
	Series []Series `json:"series"`
}

// Empty reports whether the chart has nothing to draw.
func (c Chart) Empty() bool {
	return len(c.Labels) == 0
}

var leadingNumber = regexp.MustCompile(`^\s*[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?`)

// FromResult plots column 0 as labels against column 1 as values. Values
// that do not start with a number plot as 0.
func FromResult(id string, result query.Result) Chart {
	chart := Chart{ID: id, Kind: KindBar, Title: "Query result"}
	if len(result.Rows) == 0 {
		return chart
	}
	label := "Value"
	if len(result.Columns) > 1 && result.Columns[1] != "" {
		label = result.Columns[1]
	}
	values := make([]float64, 0, len(result.Rows))
	chart.Labels = make([]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		var first, second any
		if len(row) > 0 {
			first = row[0]
		}
		if len(row) > 1 {
			second = row[1]
		}
		chart.Labels = append(chart.Labels, cellLabel(first))
		values = append(values, cellNumber(second))
	}
	chart.Series = []Series{{Label: label, Data: values}}
	return chart
}

func cellLabel(cell any) string {
	if cell == nil {
		return ""
	}
	return fmt.Sprint(cell)
}

func cellNumber(cell any) float64 {
	var value float64
	switch v := cell.(type) {
	case nil:
		return 0
	case int:
		value = float64(v)
	case int32:
		value = float64(v)
	case int64:
		value = float64(v)
	case float32:
		value = float64(v)
	case float64:
		value = v
	default:
		match := leadingNumber.FindString(fmt.Sprint(v))
		if match == "" {
			return 0
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(match), 64)
		if err != nil {
			return 0
		}
		value = parsed
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return value
}

type builder struct {
	title string
	build func(ds *fleet.Dataset) Chart
}

var dashboard = map[string]builder{
	"risk":              {title: "Risk class distribution", build: riskDoughnut},
	"fuel-capacity":     {title: "Fuel rate by vehicle capacity", build: fuelByCapacity},
	"traffic-eta":       {title: "Traffic vs ETA variation", build: trafficETA},
	"order-status":      {title: "Order status", build: orderStatus},
	"disruption-series": {title: "Disruption trend (14 days)", build: disruptionSeries},
	"warehouses":        {title: "Warehouse performance", build: warehouseBars},
}

// Names lists the dashboard chart names in stable order.
func Names() []string {
	names := make([]string, 0, len(dashboard))
	for name := range dashboard {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dashboard builds the named dashboard chart from ds.
func Dashboard(name string, ds *fleet.Dataset) (Chart, bool) {
	b, ok := dashboard[name]
	if !ok {
		return Chart{}, false
	}
	chart := b.build(ds)
	chart.ID = name
	chart.Title = b.title
	return chart, true
}

func riskDoughnut(ds *fleet.Dataset) Chart {
	chart := Chart{Kind: KindDoughnut}
	counts := Series{Label: "Operations"}
	for _, bucket := range ds.RiskDistribution() {
		chart.Labels = append(chart.Labels, bucket.Label)
		counts.Data = append(counts.Data, float64(bucket.Count))
	}
	chart.Series = []Series{counts}
	return chart
}

func fuelByCapacity(ds *fleet.Dataset) Chart {
	chart := Chart{Kind: KindBar}
	fuel := Series{Label: "Avg Fuel Rate (L/100km)"}
	for _, row := range ds.FuelByCapacity() {
		chart.Labels = append(chart.Labels, row.Capacity)
		fuel.Data = append(fuel.Data, row.AvgFuel)
	}
	chart.Series = []Series{fuel}
	return chart
}

func trafficETA(ds *fleet.Dataset) Chart {
	chart := Chart{Kind: KindBar}
	eta := Series{Label: "Avg ETA Variation (min)"}
	for _, row := range ds.TrafficVsETA() {
		chart.Labels = append(chart.Labels, row.Traffic)
		eta.Data = append(eta.Data, row.AvgETAVar)
	}
	chart.Series = []Series{eta}
	return chart
}

func orderStatus(ds *fleet.Dataset) Chart {
	chart := Chart{Kind: KindDoughnut}
	counts := Series{Label: "Orders"}
	for _, row := range ds.OrderStatusBreakdown() {
		chart.Labels = append(chart.Labels, row.Status)
		counts.Data = append(counts.Data, float64(row.Count))
	}
	chart.Series = []Series{counts}
	return chart
}

func disruptionSeries(ds *fleet.Dataset) Chart {
	chart := Chart{Kind: KindLine}
	disruption := Series{Label: "Disruption Score"}
	fuel := Series{Label: "Avg Fuel Rate"}
	for _, day := range ds.DisruptionTimeSeries() {
		chart.Labels = append(chart.Labels, day.Date)
		disruption.Data = append(disruption.Data, day.AvgDisruption)
		fuel.Data = append(fuel.Data, day.AvgFuel)
	}
	chart.Series = []Series{disruption, fuel}
	return chart
}

func warehouseBars(ds *fleet.Dataset) Chart {
	chart := Chart{Kind: KindBar}
	rate := Series{Label: "Delivery Rate %"}
	disruption := Series{Label: "Avg Disruption"}
	for _, row := range ds.WarehousePerformance() {
		chart.Labels = append(chart.Labels, shortName(row.Warehouse))
		rate.Data = append(rate.Data, row.DeliveryRate)
		disruption.Data = append(disruption.Data, row.AvgDisruption)
	}
	chart.Series = []Series{rate, disruption}
	return chart
}

// RouteRisk profiles one operation on a 0-100 scale per axis.
func RouteRisk(op fleet.Operation) Chart {
	weather := 0
	for i, level := range fleet.WeatherSeverity {
		if level == op.WeatherSeverity {
			weather = i
			break
		}
	}
	return Chart{
		ID:     "route-risk",
		Kind:   KindRadar,
		Title:  "Route risk profile",
		Labels: []string{"Driver Fatigue", "Route Risk", "Disruption", "Delay Prob", "ETA Var", "Weather"},
		Series: []Series{{
			Label: op.VehicleID,
			Data: []float64{
				float64(op.DriverFatigue) * 10,
				op.RouteRisk * 10,
				float64(op.DisruptionScore),
				op.DelayProbability * 100,
				math.Min(math.Abs(float64(op.ETAVariation)), 100),
				float64(weather) * 25,
			},
		}},
	}
}

func shortName(name string) string {
	if fields := strings.Fields(name); len(fields) > 0 {
		return fields[0]
	}
	return name
}
