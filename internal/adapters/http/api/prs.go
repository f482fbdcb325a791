package api

import (
	"errors"
	"fmt"
	"math"
	"net/http"

	service "github.com/okian/scout/internal/app"
	"github.com/okian/scout/internal/domain/reliability"
	"github.com/okian/scout/internal/domain/result"
)

// PRSHandler serves the reliability score endpoint.
type PRSHandler struct {
	deps Dependencies
}

// NewPRSHandler creates a new PRS handler.
func NewPRSHandler(deps Dependencies) *PRSHandler {
	return &PRSHandler{deps: deps}
}

// HandlePRS handles GET /api/v2/prs/{model} requests. The breakdown
// exposes every component, its weight, and its weighted contribution so
// the composite can be audited from the response alone.
func (h *PRSHandler) HandlePRS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	modelID, err := validateModelName(pathTail(r.URL.Path, "/api/v2/prs/"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad request", err.Error())
		return
	}
	canonical := result.CanonicalModelID(modelID)

	comps, snapshotID, err := h.deps.ComputePRS(r.Context(), canonical)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrNoSnapshots):
		writeError(w, http.StatusNotFound, "No snapshot available", "Please run an extraction first")
		return
	case errors.Is(err, service.ErrModelNotInSnapshot):
		writeError(w, http.StatusNotFound, "Model not found in snapshot", err.Error())
		return
	default:
		writeError(w, http.StatusInternalServerError, "internal error", err.Error())
		return
	}

	var rawScores map[string]float64
	if snap, err := h.deps.GetSnapshot(r.Context(), snapshotID); err == nil {
		rawScores = snap.ModelScores[canonical]
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"model_id":    canonical,
		"snapshot_id": snapshotID,
		"prs":         prsBreakdown(comps),
		"raw_scores":  rawScores,
		"_meta": map[string]any{
			"note": "PRS is a NON-RANKING stability metric",
		},
	})
}

func prsBreakdown(c reliability.Components) map[string]any {
	return map[string]any{
		"final_prs": round2(c.FinalPRS),
		"components": map[string]any{
			"capability_consistency": component(c.CapabilityConsistency,
				reliability.WeightCapabilityConsistency,
				"Normalized mean benchmark score across all included benchmarks (snapshot-local normalization)"),
			"benchmark_stability": component(c.BenchmarkStability,
				reliability.WeightBenchmarkStability,
				fmt.Sprintf("Inverse normalized variance over last %d extractions", reliability.StabilityWindow)),
			"temporal_reliability": component(c.TemporalReliability,
				reliability.WeightTemporalReliability,
				"Penalizes sudden score volatility and benchmark appearance/disappearance"),
		},
		"audit": map[string]any{
			"benchmarks_included":   c.BenchmarksIncluded,
			"extraction_count":      c.ExtractionCount,
			"missing_benchmarks":    c.MissingBenchmarks,
			"computation_timestamp": c.ComputationTimestamp,
			"formula":               reliability.Formula,
		},
		"disclaimer": reliability.Disclaimer,
	}
}

func component(value, weight float64, definition string) map[string]any {
	return map[string]any{
		"value":                 round2(value),
		"weight":                weight,
		"weighted_contribution": round2(value * weight),
		"definition":            definition,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
