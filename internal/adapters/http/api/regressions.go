package api

import (
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/okian/scout/internal/app"
	"github.com/okian/scout/internal/domain/regression"
	"github.com/okian/scout/internal/domain/result"
)

// RegressionHandler serves the regression detection endpoints.
type RegressionHandler struct {
	deps Dependencies
}

// NewRegressionHandler creates a new regression handler.
func NewRegressionHandler(deps Dependencies) *RegressionHandler {
	return &RegressionHandler{deps: deps}
}

// detectRequest carries optional threshold overrides for one detection
// run. Absent fields keep the category-aware defaults.
type detectRequest struct {
	Thresholds struct {
		MinorThresholdPct *float64 `json:"minor_threshold_pct"`
		MajorThresholdPct *float64 `json:"major_threshold_pct"`
	} `json:"thresholds"`
}

// HandleDetect handles POST /api/v2/regressions/detect/{model} requests.
func (h *RegressionHandler) HandleDetect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	modelID, err := validateModelName(pathTail(r.URL.Path, "/api/v2/regressions/detect/"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad request", err.Error())
		return
	}

	var req detectRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	thresholds := regression.DefaultThresholds()
	if req.Thresholds.MinorThresholdPct != nil {
		thresholds.DefaultMinorPct = *req.Thresholds.MinorThresholdPct
	}
	if req.Thresholds.MajorThresholdPct != nil {
		thresholds.DefaultMajorPct = *req.Thresholds.MajorThresholdPct
	}

	report, err := h.deps.DetectRegressions(r.Context(), result.CanonicalModelID(modelID), thresholds)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, report)
	case errors.Is(err, service.ErrInsufficientSnapshots):
		writeError(w, http.StatusBadRequest, "Insufficient snapshots for regression detection",
			"Need at least 2 snapshots to detect regressions")
	case errors.Is(err, service.ErrModelNotInSnapshot):
		writeError(w, http.StatusNotFound, "Model not found in snapshot", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error", err.Error())
	}
}

// HandleHistory handles GET /api/v2/regressions/history requests.
// Query params: model_id (optional filter), limit.
func (h *RegressionHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	modelID := r.URL.Query().Get("model_id")
	if modelID != "" {
		valid, err := validateModelName(modelID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad request", err.Error())
			return
		}
		modelID = valid
	}
	limit := queryInt(r, "limit", 50)

	history, err := h.deps.RegressionHistory(r.Context(), modelID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"regressions": history,
		"total":       len(history),
		"filters": map[string]any{
			"model_id": modelID,
		},
	})
}
