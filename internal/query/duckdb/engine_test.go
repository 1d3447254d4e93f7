package duckdb

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kdl-rgb/bytells/internal/fleet"
	"github.com/kdl-rgb/bytells/internal/query"
	"github.com/kdl-rgb/bytells/internal/snapshot"
	"github.com/kdl-rgb/bytells/internal/storage"
)

var asOf = time.Date(2026, 2, 19, 7, 30, 0, 0, time.UTC)

func publishTestSnapshot(t *testing.T, size int) (*storage.MemoryStore, *snapshot.Publisher) {
	t.Helper()
	store := storage.NewMemoryStore()
	publisher := snapshot.NewPublisher(store, "test", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if _, err := publisher.Publish(context.Background(), fleet.Generate(42, size, asOf)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	return store, publisher
}

func TestExecuteReadsParquetThroughObjectStore(t *testing.T) {
	encoded, err := snapshot.Encode(fleet.Generate(42, 2, asOf).Records())
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	store := &memoryStore{objects: map[string][]byte{"snapshots/fact_operations/file1.parquet": encoded.Data}}
	engine := NewEngine(store, nil)

	result, err := engine.Execute(context.Background(), query.Request{
		SQL: "SELECT COUNT(*) AS c FROM fact_operations",
		Files: []query.TableFile{{
			TableName:     "fact_operations",
			ObjectPath:    "snapshots/fact_operations/file1.parquet",
			FileSizeBytes: int64(len(encoded.Data)),
		}},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("rows = %d", len(result.Rows))
	}
	if result.Rows[0][0] != int64(2) {
		t.Fatalf("count = %#v", result.Rows[0][0])
	}
	if result.ScannedFiles != 1 || result.Route != RouteName {
		t.Fatalf("ScannedFiles/Route = %d/%q", result.ScannedFiles, result.Route)
	}
}

func TestExecuteResolvesLatestSnapshotAndDimensionViews(t *testing.T) {
	store, publisher := publishTestSnapshot(t, 120)
	engine := NewEngine(store, publisher)

	result, err := engine.Execute(context.Background(), query.Request{
		SQL: "SELECT fo.Vehicle_ID, dv.Vehicle_Capacity, fo.Fuel_Rate FROM fact_operations fo JOIN dim_vehicles dv ON fo.Vehicle_ID = dv.Vehicle_ID LIMIT 100;",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 100 || len(result.Columns) != 3 {
		t.Fatalf("result shape = %d rows x %d columns", len(result.Rows), len(result.Columns))
	}
	if err := result.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	routes, err := engine.Execute(context.Background(), query.Request{SQL: "SELECT COUNT(*) FROM dim_risk"})
	if err != nil {
		t.Fatalf("Execute(dim_risk) error = %v", err)
	}
	count, ok := routes.Rows[0][0].(int64)
	if !ok || count < 1 || count > fleet.RouteCount {
		t.Fatalf("dim_risk count = %#v", routes.Rows[0][0])
	}
}

func TestExecuteSupportsTrailingSemicolonWithRowLimit(t *testing.T) {
	store, publisher := publishTestSnapshot(t, 30)
	engine := NewEngine(store, publisher)

	result, err := engine.Execute(context.Background(), query.Request{
		SQL:      "SELECT vehicle_id FROM fact_operations;",
		RowLimit: 5,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 5 {
		t.Fatalf("rows = %d", len(result.Rows))
	}
}

func TestExecuteRejectsWrites(t *testing.T) {
	store, publisher := publishTestSnapshot(t, 5)
	engine := NewEngine(store, publisher)

	_, err := engine.Execute(context.Background(), query.Request{SQL: "DROP VIEW fact_operations"})
	if !errors.Is(err, ErrReadOnly) {
		t.Fatalf("Execute() error = %v, want ErrReadOnly", err)
	}
}

func TestExecuteWithoutSnapshot(t *testing.T) {
	store := storage.NewMemoryStore()
	publisher := snapshot.NewPublisher(store, "test", nil)
	engine := NewEngine(store, publisher)

	_, err := engine.Execute(context.Background(), query.Request{SQL: "SELECT 1"})
	if !errors.Is(err, snapshot.ErrNoSnapshot) {
		t.Fatalf("Execute() error = %v, want ErrNoSnapshot", err)
	}
}

func TestIsReadOnly(t *testing.T) {
	tests := map[string]bool{
		"SELECT 1":                             true,
		"  select * from fact_operations":      true,
		"WITH x AS (SELECT 1) SELECT * FROM x": true,
		"(SELECT 1)":                           true,
		"INSERT INTO t VALUES (1)":             false,
		"":                                     false,
	}
	for sqlText, want := range tests {
		if got := isReadOnly(sqlText); got != want {
			t.Fatalf("isReadOnly(%q) = %v, want %v", sqlText, got, want)
		}
	}
}

type memoryStore struct {
	objects map[string][]byte
}

func (m *memoryStore) Put(context.Context, string, io.Reader, int64, storage.PutOptions) (storage.ObjectInfo, error) {
	return storage.ObjectInfo{}, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(m.objects[key])), nil
}

func (m *memoryStore) Stat(context.Context, string) (storage.ObjectInfo, error) {
	return storage.ObjectInfo{}, nil
}

func (m *memoryStore) Delete(context.Context, string) error {
	return nil
}

func (m *memoryStore) List(context.Context, string) ([]storage.ObjectInfo, error) {
	return nil, nil
}

type trackingBody struct {
	io.Reader
	closed bool
}

func (b *trackingBody) Close() error {
	b.closed = true
	return nil
}

func TestCopyObjectWritesAndClosesBody(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ops.parquet")
	body := &trackingBody{Reader: strings.NewReader("PAR1")}
	if err := copyObject(path, body); err != nil {
		t.Fatalf("copyObject() error = %v", err)
	}
	if !body.closed {
		t.Fatal("body was not closed")
	}
	got, err := os.ReadFile(path)
	if err != nil || string(got) != "PAR1" {
		t.Fatalf("file = %q, err = %v", got, err)
	}

	missing := &trackingBody{Reader: strings.NewReader("x")}
	if err := copyObject(filepath.Join(t.TempDir(), "no", "such", "dir"), missing); err == nil {
		t.Fatal("expected error for missing directory")
	}
	if !missing.closed {
		t.Fatal("body was not closed after a create failure")
	}
}
