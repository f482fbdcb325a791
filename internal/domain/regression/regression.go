// Package regression implements deterministic capability-drop detection
// between two benchmark snapshots.
//
// A regression is a score decrease whose percentage exceeds a threshold.
// Thresholds are category-aware and caller-overridable, and every
// detection carries its inputs so the flag is explainable.
package regression

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Severity grades a detected drop.
type Severity string

const (
	None  Severity = "none"
	Minor Severity = "minor"
	Major Severity = "major"
)

// CategoryThresholds holds the minor and major cut-offs in percent.
type CategoryThresholds struct {
	Minor float64 `json:"minor"`
	Major float64 `json:"major"`
}

// Thresholds configures detection. Category overrides win over the
// defaults when a benchmark's category has one.
type Thresholds struct {
	DefaultMinorPct   float64                       `json:"default_minor_threshold_pct"`
	DefaultMajorPct   float64                       `json:"default_major_threshold_pct"`
	CategoryOverrides map[string]CategoryThresholds `json:"category_overrides"`
}

// DefaultThresholds returns the standard detection configuration.
// Reasoning benchmarks drift little, coding ones swing, safety drops
// matter at small magnitudes, economics fluctuates with pricing.
func DefaultThresholds() Thresholds {
	return Thresholds{
		DefaultMinorPct: 5.0,
		DefaultMajorPct: 10.0,
		CategoryOverrides: map[string]CategoryThresholds{
			"reasoning": {Minor: 3.0, Major: 7.0},
			"coding":    {Minor: 7.0, Major: 15.0},
			"safety":    {Minor: 2.0, Major: 5.0},
			"economics": {Minor: 10.0, Major: 20.0},
		},
	}
}

// For resolves the (minor, major) pair for a category.
func (t Thresholds) For(category string) (minor, major float64) {
	if ct, ok := t.CategoryOverrides[strings.ToLower(category)]; ok {
		return ct.Minor, ct.Major
	}
	return t.DefaultMinorPct, t.DefaultMajorPct
}

// benchmarkCategories maps benchmark metric ids to categories.
var benchmarkCategories = map[string]string{
	"mmlu":          "reasoning",
	"arc_challenge": "reasoning",
	"hellaswag":     "reasoning",
	"truthfulqa":    "reasoning",
	"winogrande":    "reasoning",
	"gsm8k":         "reasoning",
	"arena_elo":     "reasoning",

	"humaneval": "coding",
	"mbpp":      "coding",
	"pass_at_1": "coding",

	"hallucination_rate": "safety",
	"lying_rate":         "safety",
	"manipulation_score": "safety",
	"deception_score":    "safety",

	"input_price":    "economics",
	"output_price":   "economics",
	"speed_tps":      "economics",
	"latency_ms":     "economics",
	"context_window": "economics",
}

// CategoryOf returns the category for a benchmark id, "general" when
// unknown.
func CategoryOf(benchmarkID string) string {
	if c, ok := benchmarkCategories[strings.ToLower(benchmarkID)]; ok {
		return c
	}
	return "general"
}

// Event is one benchmark's comparison with its full audit trail.
type Event struct {
	ModelID           string             `json:"model_id"`
	BenchmarkID       string             `json:"benchmark_id"`
	BenchmarkCategory string             `json:"benchmark_category"`
	CurrentScore      float64            `json:"current_score"`
	PreviousScore     float64            `json:"previous_score"`
	DeltaAbsolute     float64            `json:"delta_absolute"`
	DeltaPercentage   float64            `json:"delta_percentage"`
	Severity          Severity           `json:"severity"`
	ThresholdsUsed    CategoryThresholds `json:"thresholds_used"`

	CurrentSnapshotID  string `json:"current_snapshot_id"`
	PreviousSnapshotID string `json:"previous_snapshot_id"`
	DetectedAt         string `json:"detected_at"`
}

// IsRegression reports whether the event crossed a threshold.
func (e Event) IsRegression() bool { return e.Severity != None }

// Explanation renders the audit sentence shown with the flag.
func (e Event) Explanation() string {
	if e.Severity == None {
		if e.DeltaPercentage > 0 {
			return fmt.Sprintf("Score improved by %.1f%%", e.DeltaPercentage)
		}
		return fmt.Sprintf("Score stable (change: %.1f%%)", e.DeltaPercentage)
	}
	word := "Minor"
	threshold := e.ThresholdsUsed.Minor
	if e.Severity == Major {
		word = "MAJOR"
		threshold = e.ThresholdsUsed.Major
	}
	return fmt.Sprintf("%s regression detected: %s dropped %.1f%% (from %.1f to %.1f). Threshold: %.1f%%",
		word, e.BenchmarkID, -e.DeltaPercentage, e.PreviousScore, e.CurrentScore, threshold)
}

// Report summarizes one model's detection run.
type Report struct {
	ModelID            string     `json:"model_id"`
	BenchmarksAnalyzed int        `json:"benchmarks_analyzed"`
	RegressionsFound   int        `json:"regressions_found"`
	MinorRegressions   int        `json:"minor_regressions"`
	MajorRegressions   int        `json:"major_regressions"`
	Events             []Event    `json:"events"`
	Thresholds         Thresholds `json:"thresholds_config"`

	CurrentSnapshotID  string `json:"current_snapshot_id"`
	PreviousSnapshotID string `json:"previous_snapshot_id"`
}

// HasMajor reports whether any major regression was found.
func (r Report) HasMajor() bool { return r.MajorRegressions > 0 }

// Detect compares two score sets for one model. Only decreases count;
// benchmarks with a previous score of zero are skipped rather than
// divided by.
func Detect(modelID string, current, previous map[string]float64, currentSnapshotID, previousSnapshotID string, thresholds Thresholds) Report {
	detectedAt := time.Now().UTC().Format(time.RFC3339)

	var common []string
	for id := range current {
		if _, ok := previous[id]; ok {
			common = append(common, id)
		}
	}
	sort.Strings(common)

	events := make([]Event, 0, len(common))
	var minorCount, majorCount int

	for _, benchmarkID := range common {
		curr := current[benchmarkID]
		prev := previous[benchmarkID]
		if prev == 0 {
			continue
		}

		deltaAbs := curr - prev
		deltaPct := deltaAbs / prev * 100

		category := CategoryOf(benchmarkID)
		minor, major := thresholds.For(category)

		severity := None
		switch {
		case deltaPct <= -major:
			severity = Major
			majorCount++
		case deltaPct <= -minor:
			severity = Minor
			minorCount++
		}

		events = append(events, Event{
			ModelID:            modelID,
			BenchmarkID:        benchmarkID,
			BenchmarkCategory:  category,
			CurrentScore:       curr,
			PreviousScore:      prev,
			DeltaAbsolute:      deltaAbs,
			DeltaPercentage:    deltaPct,
			Severity:           severity,
			ThresholdsUsed:     CategoryThresholds{Minor: minor, Major: major},
			CurrentSnapshotID:  currentSnapshotID,
			PreviousSnapshotID: previousSnapshotID,
			DetectedAt:         detectedAt,
		})
	}

	return Report{
		ModelID:            modelID,
		BenchmarksAnalyzed: len(common),
		RegressionsFound:   minorCount + majorCount,
		MinorRegressions:   minorCount,
		MajorRegressions:   majorCount,
		Events:             events,
		Thresholds:         thresholds,
		CurrentSnapshotID:  currentSnapshotID,
		PreviousSnapshotID: previousSnapshotID,
	}
}
