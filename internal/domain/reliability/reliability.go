// Package reliability computes the Performance Reliability Score (PRS),
// a weighted composite in [0, 100] built from capability consistency,
// benchmark stability, and temporal reliability.
//
// PRS is a trust signal, not a ranking. It never reorders models and
// every computation carries its full component breakdown.
package reliability

import (
	"math"
	"sort"
	"time"
)

// Fixed component weights.
const (
	WeightCapabilityConsistency = 0.40
	WeightBenchmarkStability    = 0.35
	WeightTemporalReliability   = 0.25

	// StabilityWindow is how many recent extractions feed stability.
	StabilityWindow = 3

	// missingDataPenalty is applied per absent benchmark, multiplicatively.
	missingDataPenalty = 0.85

	// maxVariance is the largest possible variance on a 0-100 scale.
	maxVariance = 2500.0
)

// Formula documents the composite for API transparency.
const Formula = "PRS = (0.40 × CapabilityConsistency) + (0.35 × BenchmarkStability) + (0.25 × TemporalReliability)"

// Disclaimer accompanies every PRS response.
const Disclaimer = "PRS is a NON-RANKING stability metric. It does not imply model preference or quality ordering."

// Components is the full breakdown of one PRS computation.
type Components struct {
	CapabilityConsistency float64 `json:"capability_consistency"`
	BenchmarkStability    float64 `json:"benchmark_stability"`
	TemporalReliability   float64 `json:"temporal_reliability"`
	FinalPRS              float64 `json:"final_prs"`

	BenchmarksIncluded   []string `json:"benchmarks_included"`
	ExtractionCount      int      `json:"extraction_count"`
	MissingBenchmarks    []string `json:"missing_benchmarks"`
	ComputationTimestamp string   `json:"computation_timestamp"`
}

// Input carries everything a PRS computation needs.
type Input struct {
	ModelID string

	// CurrentScores is benchmark -> score for the target model.
	CurrentScores map[string]float64
	// AllModelScores is model -> benchmark -> score for the whole
	// snapshot; consistency normalizes against it.
	AllModelScores map[string]map[string]float64
	// ExtractionHistory is newest-first; only the stability window is used.
	ExtractionHistory []map[string]float64
	// ExpectedBenchmarks is what a complete extraction would contain.
	ExpectedBenchmarks []string

	// PreviousScores and PreviousBenchmarks come from the extraction
	// before the current one. Nil means no history.
	PreviousScores     map[string]float64
	PreviousBenchmarks []string
}

// CapabilityConsistency is the snapshot-local normalized mean score.
// Each benchmark is min-max normalized against every model in the
// snapshot that reports it; ties collapse to 1 for the max holder.
func CapabilityConsistency(currentScores map[string]float64, allModelScores map[string]map[string]float64) (float64, []string) {
	if len(currentScores) == 0 {
		return 0, nil
	}

	included := make([]string, 0, len(currentScores))
	for b := range currentScores {
		included = append(included, b)
	}
	sort.Strings(included)

	var normalized []float64
	for _, benchmark := range included {
		score := currentScores[benchmark]

		lo, hi := math.Inf(1), math.Inf(-1)
		seen := false
		for _, scores := range allModelScores {
			v, ok := scores[benchmark]
			if !ok {
				continue
			}
			seen = true
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if !seen {
			continue
		}

		switch {
		case hi == lo && score == hi:
			normalized = append(normalized, 1)
		case hi == lo:
			normalized = append(normalized, 0)
		default:
			normalized = append(normalized, (score-lo)/(hi-lo))
		}
	}

	if len(normalized) == 0 {
		return 0, included
	}

	var sum float64
	for _, n := range normalized {
		sum += n
	}
	return sum / float64(len(normalized)) * 100, included
}

// BenchmarkStability is the inverse normalized variance of scores over
// the last StabilityWindow extractions. Missing benchmarks and short
// histories both shrink the result.
func BenchmarkStability(history []map[string]float64, expected []string) (float64, int, []string) {
	if len(history) == 0 {
		return 0, 0, append([]string(nil), expected...)
	}

	if len(history) > StabilityWindow {
		history = history[:StabilityWindow]
	}
	count := len(history)

	missing := make(map[string]struct{}, len(expected))
	for _, b := range expected {
		missing[b] = struct{}{}
	}

	var variances []float64
	for _, benchmark := range expected {
		var scores []float64
		for _, extraction := range history {
			if v, ok := extraction[benchmark]; ok {
				scores = append(scores, v)
				delete(missing, benchmark)
			}
		}

		switch {
		case len(scores) >= 2:
			var mean float64
			for _, s := range scores {
				mean += s
			}
			mean /= float64(len(scores))

			var variance float64
			for _, s := range scores {
				variance += (s - mean) * (s - mean)
			}
			variance /= float64(len(scores))
			variances = append(variances, variance/maxVariance)
		case len(scores) == 1:
			variances = append(variances, 0)
		}
	}

	missingList := make([]string, 0, len(missing))
	for b := range missing {
		missingList = append(missingList, b)
	}
	sort.Strings(missingList)

	if len(variances) == 0 {
		return 0, count, missingList
	}

	var aggregate float64
	for _, v := range variances {
		aggregate += v
	}
	aggregate /= float64(len(variances))

	stability := 1 - math.Min(1, aggregate)
	stability *= math.Pow(missingDataPenalty, float64(len(missingList)))
	stability *= float64(count) / StabilityWindow

	return stability * 100, count, missingList
}

// TemporalReliability penalizes score volatility between consecutive
// extractions and benchmark appearance or disappearance. A model with
// no history gets a fixed midpoint of 50.
func TemporalReliability(currentScores, previousScores map[string]float64, currentBenchmarks, previousBenchmarks []string) float64 {
	if previousScores == nil || previousBenchmarks == nil {
		return 50.0
	}

	var penalties []float64
	for benchmark, curr := range currentScores {
		prev, ok := previousScores[benchmark]
		if !ok || prev <= 0 {
			continue
		}

		pctChange := math.Abs(curr-prev) / prev * 100
		switch {
		case pctChange <= 5:
			penalties = append(penalties, 0)
		case pctChange <= 20:
			penalties = append(penalties, (pctChange-5)/15*0.3)
		default:
			penalties = append(penalties, 0.3+(math.Min(pctChange, 50)-20)/30*0.4)
		}
	}

	currSet := toSet(currentBenchmarks)
	prevSet := toSet(previousBenchmarks)
	churn := 0
	for b := range currSet {
		if _, ok := prevSet[b]; !ok {
			churn++
		}
	}
	for b := range prevSet {
		if _, ok := currSet[b]; !ok {
			churn++
		}
	}
	structurePenalty := math.Min(float64(churn)*0.10, 0.5)

	var volatilityPenalty float64
	if len(penalties) > 0 {
		for _, p := range penalties {
			volatilityPenalty += p
		}
		volatilityPenalty /= float64(len(penalties))
	}

	total := math.Min(volatilityPenalty+structurePenalty, 1)
	return math.Max(0, (1-total)*100)
}

// Compute evaluates the full PRS composite for one model.
func Compute(in Input) Components {
	consistency, included := CapabilityConsistency(in.CurrentScores, in.AllModelScores)
	stability, count, missing := BenchmarkStability(in.ExtractionHistory, in.ExpectedBenchmarks)

	currentBenchmarks := make([]string, 0, len(in.CurrentScores))
	for b := range in.CurrentScores {
		currentBenchmarks = append(currentBenchmarks, b)
	}
	temporal := TemporalReliability(in.CurrentScores, in.PreviousScores, currentBenchmarks, in.PreviousBenchmarks)

	final := WeightCapabilityConsistency*consistency +
		WeightBenchmarkStability*stability +
		WeightTemporalReliability*temporal
	final = math.Max(0, math.Min(100, final))

	return Components{
		CapabilityConsistency: consistency,
		BenchmarkStability:    stability,
		TemporalReliability:   temporal,
		FinalPRS:              final,
		BenchmarksIncluded:    included,
		ExtractionCount:       count,
		MissingBenchmarks:     missing,
		ComputationTimestamp:  time.Now().UTC().Format(time.RFC3339),
	}
}

func toSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, s := range items {
		out[s] = struct{}{}
	}
	return out
}
