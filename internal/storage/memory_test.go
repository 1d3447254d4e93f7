package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	info, err := store.Put(ctx, "snapshots/a/1.parquet", strings.NewReader("abc"), 3, PutOptions{})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if info.Size != 3 || info.ETag == "" {
		t.Fatalf("Put() info = %+v", info)
	}

	reader, err := store.Get(ctx, "snapshots/a/1.parquet")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	body, _ := io.ReadAll(reader)
	if string(body) != "abc" {
		t.Fatalf("body = %q", body)
	}

	if _, err := store.Put(ctx, "snapshots/a/0.parquet", strings.NewReader("x"), 1, PutOptions{}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, err := store.Put(ctx, "manifests/latest.json", strings.NewReader("{}"), 2, PutOptions{}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	listed, err := store.List(ctx, "snapshots/")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(listed) != 2 || listed[0].Key != "snapshots/a/0.parquet" {
		t.Fatalf("List() = %+v", listed)
	}

	if err := store.Delete(ctx, "snapshots/a/1.parquet"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Stat(ctx, "snapshots/a/1.parquet"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("Stat() after delete error = %v", err)
	}
	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("Get(missing) error = %v", err)
	}
}

func TestMemoryStoreHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMemoryStore().Put(ctx, "k", strings.NewReader("v"), 1, PutOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Put() error = %v", err)
	}
}
