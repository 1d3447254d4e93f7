package query

import (
	"context"
	"fmt"
	"time"
)

type TableFile struct {
	TableName     string
	ObjectPath    string
	FileSizeBytes int64
}

type Request struct {
	SQL      string
	RowLimit int
	Files    []TableFile
}

// Result is a tabular answer. Every row has one cell per column; cells are
// strings or numbers.
type Result struct {
	Columns      []string
	Rows         [][]any
	Route        string
	ScannedFiles int
	ScannedBytes int64
	Duration     time.Duration
}

type Engine interface {
	Execute(ctx context.Context, request Request) (Result, error)
}

func (r Result) RowCount() int {
	return len(r.Rows)
}

// Validate checks that column names are unique and rows match the column
// count.
func (r Result) Validate() error {
	seen := make(map[string]struct{}, len(r.Columns))
	for _, column := range r.Columns {
		if _, ok := seen[column]; ok {
			return fmt.Errorf("duplicate column %q", column)
		}
		seen[column] = struct{}{}
	}
	for i, row := range r.Rows {
		if len(row) != len(r.Columns) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(r.Columns))
		}
	}
	return nil
}
