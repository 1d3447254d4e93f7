package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/kdl-rgb/bytells/internal/fleet"
)

// TableName is the table the snapshot file is registered as in the query
// engine.
const TableName = "fact_operations"

type EncodeResult struct {
	Data         []byte
	RecordCount  int64
	MinTimestamp *time.Time
	MaxTimestamp *time.Time
}

type parquetOperation struct {
	Timestamp             time.Time `parquet:"timestamp"`
	VehicleID             string    `parquet:"vehicle_id"`
	RouteID               string    `parquet:"route_id"`
	WarehouseID           string    `parquet:"warehouse_id"`
	WarehouseName         string    `parquet:"warehouse_name"`
	VehicleCapacity       int64     `parquet:"vehicle_capacity"`
	GPSLatitude           float64   `parquet:"gps_latitude"`
	GPSLongitude          float64   `parquet:"gps_longitude"`
	TrafficLevel          string    `parquet:"traffic_level"`
	ETAVariation          int64     `parquet:"eta_variation"`
	FuelRate              float64   `parquet:"fuel_rate"`
	WeatherSeverity       string    `parquet:"weather_severity"`
	LoadingTime           int64     `parquet:"loading_time"`
	OrderStatus           string    `parquet:"order_status"`
	CargoCondition        string    `parquet:"cargo_condition"`
	DriverFatigue         int64     `parquet:"driver_fatigue"`
	RouteRisk             float64   `parquet:"route_risk"`
	DeliveryTimeDeviation int64     `parquet:"delivery_time_deviation"`
	DisruptionScore       int64     `parquet:"disruption_score"`
	DelayProbability      float64   `parquet:"delay_probability"`
	RiskClass             string    `parquet:"risk_class"`
}

func Encode(records []fleet.Operation) (EncodeResult, error) {
	if len(records) == 0 {
		return EncodeResult{}, fmt.Errorf("records are required")
	}

	rows := make([]parquetOperation, 0, len(records))
	var minTime *time.Time
	var maxTime *time.Time

	for _, r := range records {
		rows = append(rows, toParquet(r))

		ts := r.Timestamp.UTC()
		if minTime == nil || ts.Before(*minTime) {
			copy := ts
			minTime = &copy
		}
		if maxTime == nil || ts.After(*maxTime) {
			copy := ts
			maxTime = &copy
		}
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[parquetOperation](buf)
	if _, err := writer.Write(rows); err != nil {
		return EncodeResult{}, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return EncodeResult{}, fmt.Errorf("close parquet writer: %w", err)
	}

	return EncodeResult{
		Data:         buf.Bytes(),
		RecordCount:  int64(len(rows)),
		MinTimestamp: minTime,
		MaxTimestamp: maxTime,
	}, nil
}

func Decode(data []byte) ([]fleet.Operation, error) {
	reader := parquet.NewGenericReader[parquetOperation](bytes.NewReader(data))
	defer func() { _ = reader.Close() }()

	rows := make([]parquetOperation, reader.NumRows())
	count, err := reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read parquet rows: %w", err)
	}

	out := make([]fleet.Operation, 0, count)
	for _, row := range rows[:count] {
		out = append(out, fromParquet(row))
	}
	return out, nil
}

func toParquet(r fleet.Operation) parquetOperation {
	return parquetOperation{
		Timestamp:             r.Timestamp.UTC(),
		VehicleID:             r.VehicleID,
		RouteID:               r.RouteID,
		WarehouseID:           r.WarehouseID,
		WarehouseName:         r.WarehouseName,
		VehicleCapacity:       int64(r.VehicleCapacity),
		GPSLatitude:           r.GPSLatitude,
		GPSLongitude:          r.GPSLongitude,
		TrafficLevel:          r.TrafficLevel,
		ETAVariation:          int64(r.ETAVariation),
		FuelRate:              r.FuelRate,
		WeatherSeverity:       r.WeatherSeverity,
		LoadingTime:           int64(r.LoadingTime),
		OrderStatus:           r.OrderStatus,
		CargoCondition:        r.CargoCondition,
		DriverFatigue:         int64(r.DriverFatigue),
		RouteRisk:             r.RouteRisk,
		DeliveryTimeDeviation: int64(r.DeliveryTimeDeviation),
		DisruptionScore:       int64(r.DisruptionScore),
		DelayProbability:      r.DelayProbability,
		RiskClass:             r.RiskClass,
	}
}

func fromParquet(row parquetOperation) fleet.Operation {
	return fleet.Operation{
		Timestamp:             row.Timestamp.UTC(),
		VehicleID:             row.VehicleID,
		RouteID:               row.RouteID,
		WarehouseID:           row.WarehouseID,
		WarehouseName:         row.WarehouseName,
		VehicleCapacity:       int(row.VehicleCapacity),
		GPSLatitude:           row.GPSLatitude,
		GPSLongitude:          row.GPSLongitude,
		TrafficLevel:          row.TrafficLevel,
		ETAVariation:          int(row.ETAVariation),
		FuelRate:              row.FuelRate,
		WeatherSeverity:       row.WeatherSeverity,
		LoadingTime:           int(row.LoadingTime),
		OrderStatus:           row.OrderStatus,
		CargoCondition:        row.CargoCondition,
		DriverFatigue:         int(row.DriverFatigue),
		RouteRisk:             row.RouteRisk,
		DeliveryTimeDeviation: int(row.DeliveryTimeDeviation),
		DisruptionScore:       int(row.DisruptionScore),
		DelayProbability:      row.DelayProbability,
		RiskClass:             row.RiskClass,
	}
}
