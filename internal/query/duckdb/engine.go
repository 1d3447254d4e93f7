package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/kdl-rgb/bytells/internal/query"
	"github.com/kdl-rgb/bytells/internal/storage"
)

// RouteName tags results produced by this engine.
const RouteName = "duckdb"

const factTable = "fact_operations"

// The star schema dimensions are projected from the wide fact table, keeping
// the newest record per key.
var dimensionViews = []string{
	`CREATE OR REPLACE VIEW dim_vehicles AS
SELECT DISTINCT ON (vehicle_id) vehicle_id, vehicle_capacity, cargo_condition, risk_class
FROM fact_operations ORDER BY vehicle_id, "timestamp" DESC`,
	`CREATE OR REPLACE VIEW dim_risk AS
SELECT DISTINCT ON (route_id) route_id, driver_fatigue, route_risk, delivery_time_deviation, disruption_score, delay_probability
FROM fact_operations ORDER BY route_id, "timestamp" DESC`,
}

var ErrReadOnly = errors.New("only SELECT queries are permitted")

// SnapshotSource resolves the files of the newest published snapshot.
type SnapshotSource interface {
	LatestFiles(ctx context.Context) ([]query.TableFile, error)
}

type Engine struct {
	Store     storage.ObjectStore
	Snapshots SnapshotSource
}

func NewEngine(store storage.ObjectStore, snapshots SnapshotSource) *Engine {
	return &Engine{Store: store, Snapshots: snapshots}
}

func (e *Engine) Execute(ctx context.Context, request query.Request) (query.Result, error) {
	if strings.TrimSpace(request.SQL) == "" {
		return query.Result{}, fmt.Errorf("sql is required")
	}
	if !isReadOnly(request.SQL) {
		return query.Result{}, ErrReadOnly
	}
	if len(request.Files) == 0 && e.Snapshots != nil {
		files, err := e.Snapshots.LatestFiles(ctx)
		if err != nil {
			return query.Result{}, fmt.Errorf("resolve snapshot files: %w", err)
		}
		request.Files = files
	}
	if len(request.Files) == 0 {
		return query.Result{}, fmt.Errorf("no files available for snapshot")
	}
	if e.Store == nil {
		return query.Result{}, fmt.Errorf("object store is required")
	}

	start := time.Now()
	workDir, err := os.MkdirTemp("", "bytells-query-")
	if err != nil {
		return query.Result{}, fmt.Errorf("create query temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	groupedPaths := map[string][]string{}
	var scannedBytes int64

	for index, file := range request.Files {
		reader, err := e.Store.Get(ctx, file.ObjectPath)
		if err != nil {
			return query.Result{}, fmt.Errorf("get object %q: %w", file.ObjectPath, err)
		}

		localPath := filepath.Join(workDir, fmt.Sprintf("%s_%d.parquet", sanitizeFileComponent(file.TableName), index))
		if err := copyObject(localPath, reader); err != nil {
			return query.Result{}, fmt.Errorf("download snapshot file %q: %w", file.ObjectPath, err)
		}

		groupedPaths[file.TableName] = append(groupedPaths[file.TableName], localPath)
		scannedBytes += file.FileSizeBytes
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return query.Result{}, fmt.Errorf("open duckdb: %w", err)
	}
	defer func() { _ = db.Close() }()

	for tableName, localPaths := range groupedPaths {
		viewSQL := fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS SELECT * FROM read_parquet(%s)`, quoteIdent(tableName), quoteStringArray(localPaths))
		if _, err := db.ExecContext(ctx, viewSQL); err != nil {
			return query.Result{}, fmt.Errorf("create view for table %q: %w", tableName, err)
		}
	}
	if _, ok := groupedPaths[factTable]; ok {
		for _, viewSQL := range dimensionViews {
			if _, err := db.ExecContext(ctx, viewSQL); err != nil {
				return query.Result{}, fmt.Errorf("create dimension view: %w", err)
			}
		}
	}

	sqlText := stripTrailingSemicolons(request.SQL)
	if sqlText == "" {
		return query.Result{}, fmt.Errorf("sql is required")
	}
	if request.RowLimit > 0 {
		sqlText = fmt.Sprintf("SELECT * FROM (%s) AS q LIMIT %d", sqlText, request.RowLimit)
	}

	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return query.Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.Result{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return query.Result{}, fmt.Errorf("iterate rows: %w", err)
	}

	return query.Result{
		Columns:      columns,
		Rows:         resultRows,
		Route:        RouteName,
		ScannedFiles: len(request.Files),
		ScannedBytes: scannedBytes,
		Duration:     time.Since(start),
	}, nil
}

// normalizeValues keeps cells to strings and numbers.
// copyObject writes body to path and closes body.
func copyObject(path string, body io.ReadCloser) (err error) {
	defer func() {
		if closeErr := body.Close(); err == nil {
			err = closeErr
		}
	}()
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(file, body); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		case time.Time:
			normalized[i] = typed.UTC().Format(time.RFC3339)
		case *big.Int:
			normalized[i] = typed.String()
		case nil:
			normalized[i] = ""
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteStringArray(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, value := range values {
		quoted = append(quoted, `'`+strings.ReplaceAll(value, `'`, `''`)+`'`)
	}
	return "[" + strings.Join(quoted, ",") + "]"
}

func sanitizeFileComponent(value string) string {
	value = strings.ReplaceAll(value, "/", "_")
	value = strings.ReplaceAll(value, "..", "_")
	if value == "" {
		return "table"
	}
	return value
}

func isReadOnly(sqlText string) bool {
	fields := strings.Fields(strings.TrimSpace(sqlText))
	if len(fields) == 0 {
		return false
	}
	switch strings.ToUpper(strings.TrimLeft(fields[0], "(")) {
	case "SELECT", "WITH":
		return true
	default:
		return false
	}
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
