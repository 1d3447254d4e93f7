package storage

import (
	"fmt"
	"path"
	"regexp"
	"time"
)

// ManifestKey points at the document describing the newest published
// snapshot.
const ManifestKey = "manifests/latest.json"

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildSnapshotPath lays out snapshot files as
// snapshots/<table>/date=YYYY-MM-DD/<table>-<snapshot id>.parquet.
func BuildSnapshotPath(tableName string, asOf time.Time, snapshotID string) (string, error) {
	if err := validatePathComponent(tableName, "table name"); err != nil {
		return "", err
	}
	if err := validatePathComponent(snapshotID, "snapshot id"); err != nil {
		return "", err
	}

	ts := asOf.UTC()
	return path.Join(
		SnapshotPrefix(tableName),
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		fmt.Sprintf("%s-%s.parquet", tableName, snapshotID),
	), nil
}

// SnapshotPrefix is the key prefix shared by every snapshot of a table.
func SnapshotPrefix(tableName string) string {
	return path.Join("snapshots", tableName) + "/"
}

func validatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}
