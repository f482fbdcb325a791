// Package result contains the extraction result model and the
// normalization rules applied before persistence.
package result

import "time"

// Result is one model's extraction from one benchmark source.
// Metrics hold normalized 0-100 values where higher is better.
type Result struct {
	ModelID      string             `json:"model_id"`
	ModelName    string             `json:"model_name"`
	SourceID     string             `json:"source_id"`
	Rank         *int               `json:"rank,omitempty"`
	AverageScore *float64           `json:"average_score,omitempty"`
	Metrics      map[string]float64 `json:"benchmark_metrics"`
	RawPayload   map[string]any     `json:"raw_payload,omitempty"`
	ScrapedAt    time.Time          `json:"scraped_at"`
	FromCache    bool               `json:"from_cache,omitempty"`
}

// Clone returns a deep copy so callers can mutate independently.
func (r Result) Clone() Result {
	out := r
	if r.Rank != nil {
		v := *r.Rank
		out.Rank = &v
	}
	if r.AverageScore != nil {
		v := *r.AverageScore
		out.AverageScore = &v
	}
	if r.Metrics != nil {
		out.Metrics = make(map[string]float64, len(r.Metrics))
		for k, v := range r.Metrics {
			out.Metrics[k] = v
		}
	}
	if r.RawPayload != nil {
		out.RawPayload = make(map[string]any, len(r.RawPayload))
		for k, v := range r.RawPayload {
			out.RawPayload[k] = v
		}
	}
	return out
}
