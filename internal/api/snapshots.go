package api

import (
	"errors"
	"net/http"

	"github.com/kdl-rgb/bytells/internal/snapshot"
)

func handlePublishSnapshot(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Snapshots == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SNAPSHOTS_NOT_CONFIGURED", "snapshot publishing is not configured", false, nil)
		return
	}
	ds, ok := requireDataset(deps, w, r)
	if !ok {
		return
	}
	manifest, err := deps.Snapshots.Publish(r.Context(), ds)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "SNAPSHOT_PUBLISH_FAILED", "failed to publish snapshot", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, manifest)
}

func handleLatestSnapshot(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Snapshots == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SNAPSHOTS_NOT_CONFIGURED", "snapshot publishing is not configured", false, nil)
		return
	}
	manifest, err := deps.Snapshots.Latest(r.Context())
	if err != nil {
		if errors.Is(err, snapshot.ErrNoSnapshot) {
			writeError(r.Context(), w, http.StatusNotFound, "SNAPSHOT_NOT_FOUND", "no snapshot has been published", false, nil)
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "SNAPSHOT_LOOKUP_FAILED", "failed to read snapshot manifest", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, manifest)
}
