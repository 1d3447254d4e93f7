package snapshot

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kdl-rgb/bytells/internal/fleet"
)

var asOf = time.Date(2026, 2, 19, 7, 30, 0, 0, time.UTC)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	records := fleet.Generate(42, 25, asOf).Records()

	result, err := Encode(records)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if result.RecordCount != 25 {
		t.Fatalf("RecordCount = %d", result.RecordCount)
	}
	if result.MaxTimestamp == nil || !result.MaxTimestamp.Equal(records[0].Timestamp) {
		t.Fatalf("MaxTimestamp = %v, want %v", result.MaxTimestamp, records[0].Timestamp)
	}
	if result.MinTimestamp == nil || !result.MinTimestamp.Equal(records[len(records)-1].Timestamp) {
		t.Fatalf("MinTimestamp = %v", result.MinTimestamp)
	}

	decoded, err := Decode(result.Data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if diff := cmp.Diff(records, decoded); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeRejectsEmptyInput(t *testing.T) {
	if _, err := Encode(nil); err == nil {
		t.Fatal("expected error for empty records")
	}
}
