package fleet

import (
	"fmt"
	"time"
)

const (
	StatusDelivered = "Delivered"
	StatusInTransit = "In Transit"
	StatusDelayed   = "Delayed"
	StatusLoading   = "Loading"
	StatusCancelled = "Cancelled"
)

const (
	RiskLow      = "Low"
	RiskMedium   = "Medium"
	RiskHigh     = "High"
	RiskCritical = "Critical"
)

var (
	OrderStatuses     = []string{StatusDelivered, StatusInTransit, StatusDelayed, StatusLoading, StatusCancelled}
	RiskClasses       = []string{RiskLow, RiskMedium, RiskHigh, RiskCritical}
	TrafficLevels     = []string{"Light", "Moderate", "Heavy", "Severe"}
	WeatherSeverity   = []string{"Clear", "Light Rain", "Heavy Rain", "Storm", "Fog"}
	CargoConditions   = []string{"Excellent", "Good", "Fair", "Damaged"}
	VehicleCapacities = []int{10, 20, 30, 40, 50}
)

const (
	VehicleCount = 50
	RouteCount   = 12
	// HistoryWindow bounds how far back generated timestamps reach.
	HistoryWindow = 30 * 24 * time.Hour
)

type Warehouse struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

var Warehouses = []Warehouse{
	{ID: "WH-001", Name: "Gaborone Central", Lat: -24.653, Lon: 25.908},
	{ID: "WH-002", Name: "Francistown Depot", Lat: -21.170, Lon: 27.500},
	{ID: "WH-003", Name: "Palapye Hub", Lat: -22.550, Lon: 27.132},
	{ID: "WH-004", Name: "Maun Gateway", Lat: -19.983, Lon: 23.416},
	{ID: "WH-005", Name: "Lobatse Port", Lat: -25.226, Lon: 25.678},
}

// Operation is one synthetic logistics event.
type Operation struct {
	Timestamp             time.Time `json:"timestamp"`
	VehicleID             string    `json:"vehicle_id"`
	RouteID               string    `json:"route_id"`
	WarehouseID           string    `json:"warehouse_id"`
	WarehouseName         string    `json:"warehouse_name"`
	VehicleCapacity       int       `json:"vehicle_capacity"`
	GPSLatitude           float64   `json:"gps_latitude"`
	GPSLongitude          float64   `json:"gps_longitude"`
	TrafficLevel          string    `json:"traffic_level"`
	ETAVariation          int       `json:"eta_variation"`
	FuelRate              float64   `json:"fuel_rate"`
	WeatherSeverity       string    `json:"weather_severity"`
	LoadingTime           int       `json:"loading_time"`
	OrderStatus           string    `json:"order_status"`
	CargoCondition        string    `json:"cargo_condition"`
	DriverFatigue         int       `json:"driver_fatigue"`
	RouteRisk             float64   `json:"route_risk"`
	DeliveryTimeDeviation int       `json:"delivery_time_deviation"`
	DisruptionScore       int       `json:"disruption_score"`
	DelayProbability      float64   `json:"delay_probability"`
	RiskClass             string    `json:"risk_class"`
}

// DisruptionBand returns the inclusive disruption score range tied to a risk
// class.
func DisruptionBand(riskClass string) (int, int, bool) {
	switch riskClass {
	case RiskCritical:
		return 80, 100, true
	case RiskHigh:
		return 55, 79, true
	case RiskMedium:
		return 30, 54, true
	case RiskLow:
		return 5, 29, true
	default:
		return 0, 0, false
	}
}

// Validate checks the value ranges and the risk class / disruption score
// correlation of a record.
func (o Operation) Validate() error {
	low, high, ok := DisruptionBand(o.RiskClass)
	if !ok {
		return fmt.Errorf("unknown risk class %q", o.RiskClass)
	}
	if o.DisruptionScore < low || o.DisruptionScore > high {
		return fmt.Errorf("disruption score %d outside %s band [%d,%d]", o.DisruptionScore, o.RiskClass, low, high)
	}
	if o.DelayProbability < 0 || o.DelayProbability > 1 {
		return fmt.Errorf("delay probability %v outside [0,1]", o.DelayProbability)
	}
	if o.DriverFatigue < 1 || o.DriverFatigue > 10 {
		return fmt.Errorf("driver fatigue %d outside [1,10]", o.DriverFatigue)
	}
	if o.RouteRisk < 1 || o.RouteRisk > 10 {
		return fmt.Errorf("route risk %v outside [1,10]", o.RouteRisk)
	}
	if o.LoadingTime < 0 {
		return fmt.Errorf("loading time %d is negative", o.LoadingTime)
	}
	if o.FuelRate <= 0 {
		return fmt.Errorf("fuel rate %v must be positive", o.FuelRate)
	}
	return nil
}

func WarehouseByID(id string) (Warehouse, bool) {
	for _, wh := range Warehouses {
		if wh.ID == id {
			return wh, true
		}
	}
	return Warehouse{}, false
}

func RouteIDs() []string {
	ids := make([]string, 0, RouteCount)
	for i := 1; i <= RouteCount; i++ {
		ids = append(ids, fmt.Sprintf("RT-%03d", i))
	}
	return ids
}
