// Package postgres loads and seeds the operations star schema.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/kdl-rgb/bytells/internal/fleet"
)

// insertBatchSize keeps each INSERT well under the 65535 bind parameter cap.
const insertBatchSize = 500

var operationColumns = []string{
	`"timestamp"`,
	"vehicle_id",
	"route_id",
	"warehouse_id",
	"warehouse_name",
	"vehicle_capacity",
	"gps_latitude",
	"gps_longitude",
	"traffic_level",
	"eta_variation",
	"fuel_rate",
	"weather_severity",
	"loading_time",
	"order_status",
	"cargo_condition",
	"driver_fatigue",
	"route_risk",
	"delivery_time_deviation",
	"disruption_score",
	"delay_probability",
	"risk_class",
}

type Store struct {
	db *sql.DB
	qb squirrel.StatementBuilderType
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db: db,
		qb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Load reads the newest limit operations (all when limit <= 0) into a
// Dataset stamped with asOf.
func (s *Store) Load(ctx context.Context, asOf time.Time, limit int) (*fleet.Dataset, error) {
	builder := s.qb.Select(operationColumns...).From("fact_operations").OrderBy(`"timestamp" DESC`)
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build load query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []fleet.Operation
	for rows.Next() {
		var op fleet.Operation
		if err := rows.Scan(
			&op.Timestamp,
			&op.VehicleID,
			&op.RouteID,
			&op.WarehouseID,
			&op.WarehouseName,
			&op.VehicleCapacity,
			&op.GPSLatitude,
			&op.GPSLongitude,
			&op.TrafficLevel,
			&op.ETAVariation,
			&op.FuelRate,
			&op.WeatherSeverity,
			&op.LoadingTime,
			&op.OrderStatus,
			&op.CargoCondition,
			&op.DriverFatigue,
			&op.RouteRisk,
			&op.DeliveryTimeDeviation,
			&op.DisruptionScore,
			&op.DelayProbability,
			&op.RiskClass,
		); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		op.Timestamp = op.Timestamp.UTC()
		records = append(records, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return fleet.NewDataset(records, asOf), nil
}

type SeedOptions struct {
	// Replace deletes existing operations before inserting.
	Replace bool
}

// Seed writes the warehouse directory and every record of ds in one
// transaction and returns the number of operations inserted.
func (s *Store) Seed(ctx context.Context, ds *fleet.Dataset, opts SeedOptions) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if opts.Replace {
		if _, err := tx.ExecContext(ctx, `DELETE FROM fact_operations`); err != nil {
			return 0, fmt.Errorf("clear operations: %w", err)
		}
	}

	warehouses := s.qb.Insert("dim_warehouses").
		Columns("warehouse_id", "name", "latitude", "longitude").
		Suffix("ON CONFLICT (warehouse_id) DO UPDATE SET name = EXCLUDED.name, latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude")
	for _, wh := range ds.Warehouses() {
		warehouses = warehouses.Values(wh.ID, wh.Name, wh.Lat, wh.Lon)
	}
	if err := execBuilder(ctx, tx, warehouses); err != nil {
		return 0, fmt.Errorf("upsert warehouses: %w", err)
	}

	records := ds.Records()
	inserted := 0
	for start := 0; start < len(records); start += insertBatchSize {
		end := min(start+insertBatchSize, len(records))
		batch := s.qb.Insert("fact_operations").Columns(operationColumns...)
		for _, op := range records[start:end] {
			batch = batch.Values(
				op.Timestamp.UTC(),
				op.VehicleID,
				op.RouteID,
				op.WarehouseID,
				op.WarehouseName,
				op.VehicleCapacity,
				op.GPSLatitude,
				op.GPSLongitude,
				op.TrafficLevel,
				op.ETAVariation,
				op.FuelRate,
				op.WeatherSeverity,
				op.LoadingTime,
				op.OrderStatus,
				op.CargoCondition,
				op.DriverFatigue,
				op.RouteRisk,
				op.DeliveryTimeDeviation,
				op.DisruptionScore,
				op.DelayProbability,
				op.RiskClass,
			)
		}
		if err := execBuilder(ctx, tx, batch); err != nil {
			return inserted, fmt.Errorf("insert operations %d-%d: %w", start, end, err)
		}
		inserted += end - start
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit seed: %w", err)
	}
	return inserted, nil
}

// Count returns the number of stored operations.
func (s *Store) Count(ctx context.Context) (int, error) {
	query, args, err := s.qb.Select("COUNT(*)").From("fact_operations").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}
	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count operations: %w", err)
	}
	return count, nil
}

func execBuilder(ctx context.Context, tx *sql.Tx, builder squirrel.InsertBuilder) error {
	query, args, err := builder.ToSql()
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}
