package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/okian/scout/internal/adapters/repository"
	service "github.com/okian/scout/internal/app"
	"github.com/okian/scout/internal/domain/snapshot"
)

// SnapshotHandler serves the snapshot lifecycle endpoints.
type SnapshotHandler struct {
	deps Dependencies
}

// NewSnapshotHandler creates a new snapshot handler.
func NewSnapshotHandler(deps Dependencies) *SnapshotHandler {
	return &SnapshotHandler{deps: deps}
}

// snapshotSummary is the list-view shape. The content hash is truncated;
// the detail endpoint exposes it in full.
type snapshotSummary struct {
	SnapshotID   string   `json:"snapshot_id"`
	TimestampUTC string   `json:"timestamp_utc"`
	ContentHash  string   `json:"content_hash"`
	ModelCount   int      `json:"model_count"`
	Models       []string `json:"models"`
}

// HandleSnapshots handles GET (list) and POST (create) on /api/v2/snapshots.
func (h *SnapshotHandler) HandleSnapshots(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *SnapshotHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10)
	snaps, err := h.deps.ListSnapshots(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error", err.Error())
		return
	}
	summaries := make([]snapshotSummary, 0, len(snaps))
	for _, s := range snaps {
		summaries = append(summaries, snapshotSummary{
			SnapshotID:   s.SnapshotID,
			TimestampUTC: s.TimestampUTC,
			ContentHash:  truncateHash(s.ContentHash),
			ModelCount:   len(s.ModelIDs),
			Models:       s.ModelIDs,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"snapshots": summaries,
		"total":     len(summaries),
	})
}

func (h *SnapshotHandler) create(w http.ResponseWriter, r *http.Request) {
	snap, err := h.deps.CreateSnapshot(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, map[string]any{"snapshot": snap})
	case errors.Is(err, repository.ErrDuplicateHash):
		writeError(w, http.StatusConflict, "duplicate snapshot", "Stored scores are unchanged since the last snapshot")
	case errors.Is(err, snapshot.ErrEmpty):
		writeError(w, http.StatusBadRequest, "no results available", "Please run an extraction first")
	default:
		writeError(w, http.StatusInternalServerError, "internal error", err.Error())
	}
}

// HandleSnapshotByID handles GET /api/v2/snapshots/{id} and
// GET /api/v2/snapshots/{id}/verify.
func (h *SnapshotHandler) HandleSnapshotByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	tail := strings.TrimPrefix(r.URL.Path, "/api/v2/snapshots/")
	if id, ok := strings.CutSuffix(tail, "/verify"); ok {
		h.verify(w, r, id)
		return
	}
	id, err := validateSnapshotID(tail)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad request", err.Error())
		return
	}
	snap, err := h.deps.GetSnapshot(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Snapshot not found", "")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"snapshot": snap,
		"integrity_check": map[string]any{
			"stored_hash": snap.ContentHash,
			"note":        "Use /api/v2/snapshots/{id}/verify for full verification",
		},
	})
}

func (h *SnapshotHandler) verify(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := validateSnapshotID(rawID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad request", err.Error())
		return
	}
	snap, err := h.deps.GetSnapshot(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Snapshot not found", "")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error", err.Error())
		return
	}
	valid, message, err := h.deps.VerifySnapshot(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"snapshot_id":     id,
		"integrity_valid": valid,
		"message":         message,
		"stored_hash":     snap.ContentHash,
	})
}

// HandleDiff handles GET /api/v2/snapshots/diff requests comparing the
// two newest snapshots.
func (h *SnapshotHandler) HandleDiff(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	diff, err := h.deps.DiffLatest(r.Context())
	if err != nil {
		if errors.Is(err, service.ErrNoSnapshots) {
			writeError(w, http.StatusNotFound, "No snapshots available", "")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, diff)
}

func truncateHash(hash string) string {
	if len(hash) <= 16 {
		return hash
	}
	return hash[:16] + "..."
}
