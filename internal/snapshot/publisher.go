package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kdl-rgb/bytells/internal/fleet"
	"github.com/kdl-rgb/bytells/internal/observability"
	"github.com/kdl-rgb/bytells/internal/query"
	"github.com/kdl-rgb/bytells/internal/storage"
)

const defaultRetain = 3

var ErrNoSnapshot = errors.New("no snapshot published")

// Manifest describes one published snapshot file.
type Manifest struct {
	SnapshotID   string     `json:"snapshot_id"`
	Table        string     `json:"table"`
	ObjectPath   string     `json:"object_path"`
	RecordCount  int64      `json:"record_count"`
	SizeBytes    int64      `json:"size_bytes"`
	ETag         string     `json:"etag,omitempty"`
	AsOf         time.Time  `json:"as_of"`
	MinTimestamp *time.Time `json:"min_timestamp,omitempty"`
	MaxTimestamp *time.Time `json:"max_timestamp,omitempty"`
	PublishedAt  time.Time  `json:"published_at"`
	CreatedBy    string     `json:"created_by"`
}

type Publisher struct {
	Store     storage.ObjectStore
	CreatedBy string
	// Retain is how many snapshot files survive pruning, the newest
	// included.
	Retain int
	Logger *slog.Logger

	now   func() time.Time
	newID func() (string, error)
}

func NewPublisher(store storage.ObjectStore, createdBy string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Publisher{
		Store:     store,
		CreatedBy: createdBy,
		Retain:    defaultRetain,
		Logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		newID: func() (string, error) {
			id, err := uuid.NewV7()
			if err != nil {
				return "", err
			}
			return id.String(), nil
		},
	}
}

// Publish writes the dataset as a Parquet file, then swaps the manifest to
// point at it and prunes older files.
func (p *Publisher) Publish(ctx context.Context, dataset *fleet.Dataset) (manifest Manifest, err error) {
	defer func() { observability.ObserveSnapshotPublish(err, int(manifest.RecordCount)) }()

	if p.Store == nil {
		return Manifest{}, fmt.Errorf("object store is required")
	}
	if dataset == nil {
		return Manifest{}, fmt.Errorf("dataset is required")
	}

	encoded, err := Encode(dataset.Records())
	if err != nil {
		return Manifest{}, fmt.Errorf("encode snapshot: %w", err)
	}
	snapshotID, err := p.newID()
	if err != nil {
		return Manifest{}, fmt.Errorf("generate snapshot id: %w", err)
	}
	objectPath, err := storage.BuildSnapshotPath(TableName, dataset.AsOf(), snapshotID)
	if err != nil {
		return Manifest{}, err
	}

	info, err := p.Store.Put(ctx, objectPath, bytes.NewReader(encoded.Data), int64(len(encoded.Data)), storage.PutOptions{ContentType: "application/vnd.apache.parquet"})
	if err != nil {
		return Manifest{}, fmt.Errorf("upload snapshot: %w", err)
	}

	manifest = Manifest{
		SnapshotID:   snapshotID,
		Table:        TableName,
		ObjectPath:   objectPath,
		RecordCount:  encoded.RecordCount,
		SizeBytes:    int64(len(encoded.Data)),
		ETag:         info.ETag,
		AsOf:         dataset.AsOf().UTC(),
		MinTimestamp: encoded.MinTimestamp,
		MaxTimestamp: encoded.MaxTimestamp,
		PublishedAt:  p.now(),
		CreatedBy:    p.CreatedBy,
	}
	body, err := json.Marshal(manifest)
	if err != nil {
		return Manifest{}, fmt.Errorf("encode manifest: %w", err)
	}
	if _, err := p.Store.Put(ctx, storage.ManifestKey, bytes.NewReader(body), int64(len(body)), storage.PutOptions{ContentType: "application/json"}); err != nil {
		return Manifest{}, fmt.Errorf("upload manifest: %w", err)
	}

	p.Logger.InfoContext(ctx, "snapshot published",
		slog.String("snapshot_id", snapshotID),
		slog.String("object_path", objectPath),
		slog.Int64("records", encoded.RecordCount),
		slog.Int64("bytes", manifest.SizeBytes),
	)

	if err := p.prune(ctx); err != nil {
		p.Logger.WarnContext(ctx, "snapshot prune failed", slog.Any("error", err))
	}
	return manifest, nil
}

func (p *Publisher) Latest(ctx context.Context) (Manifest, error) {
	if p.Store == nil {
		return Manifest{}, ErrNoSnapshot
	}
	reader, err := p.Store.Get(ctx, storage.ManifestKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return Manifest{}, ErrNoSnapshot
		}
		return Manifest{}, fmt.Errorf("get manifest: %w", err)
	}
	defer func() { _ = reader.Close() }()

	var manifest Manifest
	if err := json.NewDecoder(reader).Decode(&manifest); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	return manifest, nil
}

// LatestFiles lists the files of the newest snapshot for the query engine.
func (p *Publisher) LatestFiles(ctx context.Context) ([]query.TableFile, error) {
	manifest, err := p.Latest(ctx)
	if err != nil {
		return nil, err
	}
	return []query.TableFile{{
		TableName:     manifest.Table,
		ObjectPath:    manifest.ObjectPath,
		FileSizeBytes: manifest.SizeBytes,
	}}, nil
}

func (p *Publisher) prune(ctx context.Context) error {
	retain := p.Retain
	if retain <= 0 {
		retain = defaultRetain
	}
	objects, err := p.Store.List(ctx, storage.SnapshotPrefix(TableName))
	if err != nil {
		return err
	}
	parquetObjects := objects[:0]
	for _, obj := range objects {
		if strings.HasSuffix(obj.Key, ".parquet") {
			parquetObjects = append(parquetObjects, obj)
		}
	}
	if len(parquetObjects) <= retain {
		return nil
	}
	for _, obj := range parquetObjects[:len(parquetObjects)-retain] {
		if err := p.Store.Delete(ctx, obj.Key); err != nil {
			return fmt.Errorf("delete %q: %w", obj.Key, err)
		}
	}
	return nil
}
