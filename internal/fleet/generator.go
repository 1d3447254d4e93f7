package fleet

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Generator produces synthetic operation records. The same seed and clock
// always yield the same sequence.
type Generator struct {
	rnd    *rand.Rand
	now    func() time.Time
	routes []string
}

func NewGenerator(seed int64, now func() time.Time) *Generator {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Generator{
		rnd:    rand.New(rand.NewSource(seed)),
		now:    now,
		routes: RouteIDs(),
	}
}

func (g *Generator) NextOperation() Operation {
	now := g.now()
	wh := Warehouses[g.rnd.Intn(len(Warehouses))]
	riskClass := pickOne(g.rnd, RiskClasses)
	low, high, _ := DisruptionBand(riskClass)
	score := g.intBetween(low, high)

	return Operation{
		Timestamp:             now.Add(-time.Duration(g.rnd.Int63n(int64(HistoryWindow)))).Truncate(time.Millisecond),
		VehicleID:             fmt.Sprintf("VH-%03d", g.intBetween(1, VehicleCount)),
		RouteID:               pickOne(g.rnd, g.routes),
		WarehouseID:           wh.ID,
		WarehouseName:         wh.Name,
		VehicleCapacity:       VehicleCapacities[g.rnd.Intn(len(VehicleCapacities))],
		GPSLatitude:           round(wh.Lat+g.floatBetween(-2, 2, 3), 4),
		GPSLongitude:          round(wh.Lon+g.floatBetween(-2, 2, 3), 4),
		TrafficLevel:          pickOne(g.rnd, TrafficLevels),
		ETAVariation:          g.intBetween(-45, 120),
		FuelRate:              g.floatBetween(8.5, 28.0, 1),
		WeatherSeverity:       pickOne(g.rnd, WeatherSeverity),
		LoadingTime:           g.intBetween(15, 180),
		OrderStatus:           pickOne(g.rnd, OrderStatuses),
		CargoCondition:        pickOne(g.rnd, CargoConditions),
		DriverFatigue:         g.intBetween(1, 10),
		RouteRisk:             g.floatBetween(1, 10, 1),
		DeliveryTimeDeviation: g.intBetween(-30, 180),
		DisruptionScore:       score,
		DelayProbability:      g.delayProbability(score),
		RiskClass:             riskClass,
	}
}

// Generate returns n records sorted newest first.
func (g *Generator) Generate(n int) []Operation {
	if n < 0 {
		n = 0
	}
	records := make([]Operation, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, g.NextOperation())
	}
	sortNewestFirst(records)
	return records
}

func (g *Generator) delayProbability(score int) float64 {
	factor := g.floatBetween(70, 110, 2) / 100
	return math.Min(1, round2(float64(score)/100*factor))
}

func (g *Generator) intBetween(min, max int) int {
	return min + g.rnd.Intn(max-min+1)
}

func (g *Generator) floatBetween(min, max float64, dp int) float64 {
	return round(min+g.rnd.Float64()*(max-min), dp)
}

func round(value float64, dp int) float64 {
	scale := math.Pow(10, float64(dp))
	return math.Round(value*scale) / scale
}

func round2(value float64) float64 {
	return round(value, 2)
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}
