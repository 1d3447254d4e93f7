package fleet

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	activeVehicleWindow = 50
	vehicleRouteLimit   = 10
	timeSeriesDays      = 14
	// FilterWindow is how many of the newest records the operations filter scans.
	FilterWindow = 50
)

// Dataset is an immutable snapshot of operation records, newest first. It is
// safe for concurrent readers.
type Dataset struct {
	records []Operation
	asOf    time.Time
}

type KPIs struct {
	TotalOperations int     `json:"total_operations"`
	DeliveryRate    float64 `json:"delivery_rate"`
	ActiveVehicles  int     `json:"active_vehicles"`
	AvgFuelRate     float64 `json:"avg_fuel_rate"`
	HighRiskCount   int     `json:"high_risk_count"`
	AvgDisruption   float64 `json:"avg_disruption"`
}

type RiskBucket struct {
	Label         string  `json:"label"`
	Count         int     `json:"count"`
	AvgDisruption float64 `json:"avg_disruption"`
}

type CapacityFuel struct {
	Capacity string  `json:"capacity"`
	AvgFuel  float64 `json:"avg_fuel"`
	Count    int     `json:"count"`
}

type TrafficETA struct {
	Traffic      string  `json:"traffic"`
	AvgETAVar    float64 `json:"avg_eta_var"`
	AvgDelayProb float64 `json:"avg_delay_prob"`
	Count        int     `json:"count"`
}

type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

type DailyDisruption struct {
	Date          string  `json:"date"`
	AvgDisruption float64 `json:"avg_disruption"`
	AvgFuel       float64 `json:"avg_fuel"`
	Count         int     `json:"count"`
}

type WarehousePerf struct {
	Warehouse     string  `json:"warehouse"`
	ID            string  `json:"id"`
	Operations    int     `json:"operations"`
	AvgLoading    float64 `json:"avg_loading"`
	AvgDisruption float64 `json:"avg_disruption"`
	DeliveryRate  float64 `json:"delivery_rate"`
}

// NewDataset copies records and orders them newest first. asOf anchors the
// daily time series.
func NewDataset(records []Operation, asOf time.Time) *Dataset {
	copied := make([]Operation, len(records))
	copy(copied, records)
	sortNewestFirst(copied)
	return &Dataset{records: copied, asOf: asOf}
}

// Generate builds a synthetic dataset of size records from seed.
func Generate(seed int64, size int, now time.Time) *Dataset {
	g := NewGenerator(seed, func() time.Time { return now })
	return &Dataset{records: g.Generate(size), asOf: now}
}

func (d *Dataset) Len() int {
	return len(d.records)
}

func (d *Dataset) AsOf() time.Time {
	return d.asOf
}

// Records returns a copy of every record, newest first.
func (d *Dataset) Records() []Operation {
	out := make([]Operation, len(d.records))
	copy(out, d.records)
	return out
}

func (d *Dataset) Warehouses() []Warehouse {
	out := make([]Warehouse, len(Warehouses))
	copy(out, Warehouses)
	return out
}

func (d *Dataset) KPIs() KPIs {
	total := len(d.records)
	delivered, highRisk := 0, 0
	for _, r := range d.records {
		if r.OrderStatus == StatusDelivered {
			delivered++
		}
		if r.RiskClass == RiskHigh || r.RiskClass == RiskCritical {
			highRisk++
		}
	}
	return KPIs{
		TotalOperations: total,
		DeliveryRate:    percent(delivered, total),
		ActiveVehicles:  d.activeVehicles(),
		AvgFuelRate:     average(d.records, func(r Operation) float64 { return r.FuelRate }),
		HighRiskCount:   highRisk,
		AvgDisruption:   average(d.records, disruption),
	}
}

func (d *Dataset) activeVehicles() int {
	seen := map[string]struct{}{}
	for _, r := range d.newest(activeVehicleWindow) {
		seen[r.VehicleID] = struct{}{}
	}
	return len(seen)
}

// RiskDistribution reports every risk class in canonical order, including
// empty ones.
func (d *Dataset) RiskDistribution() []RiskBucket {
	groups := groupBy(d.records, func(r Operation) string { return r.RiskClass })
	out := make([]RiskBucket, 0, len(RiskClasses))
	for _, class := range RiskClasses {
		rows := groups[class]
		out = append(out, RiskBucket{
			Label:         class,
			Count:         len(rows),
			AvgDisruption: average(rows, disruption),
		})
	}
	return out
}

// FuelByCapacity covers only capacities present in the data, ascending.
func (d *Dataset) FuelByCapacity() []CapacityFuel {
	groups := map[int][]Operation{}
	for _, r := range d.records {
		groups[r.VehicleCapacity] = append(groups[r.VehicleCapacity], r)
	}
	capacities := make([]int, 0, len(groups))
	for capacity := range groups {
		capacities = append(capacities, capacity)
	}
	sort.Ints(capacities)

	out := make([]CapacityFuel, 0, len(capacities))
	for _, capacity := range capacities {
		rows := groups[capacity]
		out = append(out, CapacityFuel{
			Capacity: strconv.Itoa(capacity) + "T",
			AvgFuel:  average(rows, func(r Operation) float64 { return r.FuelRate }),
			Count:    len(rows),
		})
	}
	return out
}

func (d *Dataset) TrafficVsETA() []TrafficETA {
	groups := groupBy(d.records, func(r Operation) string { return r.TrafficLevel })
	out := make([]TrafficETA, 0, len(TrafficLevels))
	for _, level := range TrafficLevels {
		rows := groups[level]
		out = append(out, TrafficETA{
			Traffic:      level,
			AvgETAVar:    average(rows, func(r Operation) float64 { return float64(r.ETAVariation) }),
			AvgDelayProb: average(rows, func(r Operation) float64 { return r.DelayProbability }),
			Count:        len(rows),
		})
	}
	return out
}

func (d *Dataset) OrderStatusBreakdown() []StatusCount {
	groups := groupBy(d.records, func(r Operation) string { return r.OrderStatus })
	out := make([]StatusCount, 0, len(OrderStatuses))
	for _, status := range OrderStatuses {
		out = append(out, StatusCount{Status: status, Count: len(groups[status])})
	}
	return out
}

// DisruptionTimeSeries buckets the trailing 14 days ending at the dataset's
// as-of time, oldest first. Labels are M/D of each bucket's end day.
func (d *Dataset) DisruptionTimeSeries() []DailyDisruption {
	const day = 24 * time.Hour
	out := make([]DailyDisruption, 0, timeSeriesDays)
	for i := timeSeriesDays - 1; i >= 0; i-- {
		end := d.asOf.Add(-time.Duration(i) * day)
		start := end.Add(-day)
		var rows []Operation
		for _, r := range d.records {
			if !r.Timestamp.Before(start) && r.Timestamp.Before(end) {
				rows = append(rows, r)
			}
		}
		out = append(out, DailyDisruption{
			Date:          fmt.Sprintf("%d/%d", int(end.Month()), end.Day()),
			AvgDisruption: average(rows, disruption),
			AvgFuel:       average(rows, func(r Operation) float64 { return r.FuelRate }),
			Count:         len(rows),
		})
	}
	return out
}

// WarehousePerformance reports every directory warehouse, including ones
// without operations.
func (d *Dataset) WarehousePerformance() []WarehousePerf {
	groups := groupBy(d.records, func(r Operation) string { return r.WarehouseID })
	out := make([]WarehousePerf, 0, len(Warehouses))
	for _, wh := range Warehouses {
		rows := groups[wh.ID]
		delivered := 0
		for _, r := range rows {
			if r.OrderStatus == StatusDelivered {
				delivered++
			}
		}
		out = append(out, WarehousePerf{
			Warehouse:     wh.Name,
			ID:            wh.ID,
			Operations:    len(rows),
			AvgLoading:    average(rows, func(r Operation) float64 { return float64(r.LoadingTime) }),
			AvgDisruption: average(rows, disruption),
			DeliveryRate:  percent(delivered, len(rows)),
		})
	}
	return out
}

// RecentOperations returns up to n newest records.
func (d *Dataset) RecentOperations(n int) []Operation {
	recent := d.newest(n)
	out := make([]Operation, len(recent))
	copy(out, recent)
	return out
}

// VehicleRoutes returns the ten newest records for a vehicle.
func (d *Dataset) VehicleRoutes(vehicleID string) []Operation {
	out := make([]Operation, 0, vehicleRouteLimit)
	for _, r := range d.records {
		if r.VehicleID != vehicleID {
			continue
		}
		out = append(out, r)
		if len(out) == vehicleRouteLimit {
			break
		}
	}
	return out
}

// FilterOperations matches term case-insensitively against vehicle, route,
// status and risk class among the newest window records. An empty term
// returns the whole window.
func (d *Dataset) FilterOperations(term string, window int) []Operation {
	term = strings.ToLower(strings.TrimSpace(term))
	candidates := d.newest(window)
	out := make([]Operation, 0, len(candidates))
	for _, r := range candidates {
		if term == "" || matchesTerm(r, term) {
			out = append(out, r)
		}
	}
	return out
}

func matchesTerm(r Operation, term string) bool {
	for _, field := range []string{r.VehicleID, r.RouteID, r.OrderStatus, r.RiskClass} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

func (d *Dataset) newest(n int) []Operation {
	if n < 0 {
		n = 0
	}
	if n > len(d.records) {
		n = len(d.records)
	}
	return d.records[:n]
}

func groupBy(records []Operation, key func(Operation) string) map[string][]Operation {
	groups := map[string][]Operation{}
	for _, r := range records {
		k := key(r)
		groups[k] = append(groups[k], r)
	}
	return groups
}

func average(records []Operation, value func(Operation) float64) float64 {
	if len(records) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range records {
		sum += value(r)
	}
	return round2(sum / float64(len(records)))
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round(float64(part)/float64(total)*100, 1)
}

func disruption(r Operation) float64 {
	return float64(r.DisruptionScore)
}

func sortNewestFirst(records []Operation) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
}
