package snapshot

import (
	"fmt"
	"sort"
)

// DiffStatus labels the outcome of a temporal comparison.
type DiffStatus string

const (
	Comparable                    DiffStatus = "comparable"
	IncomparableVersionMismatch   DiffStatus = "incomparable_version_mismatch"
	IncomparableBenchmarkMismatch DiffStatus = "incomparable_benchmark_mismatch"
	NoPreviousSnapshot            DiffStatus = "no_previous_snapshot"
)

// VersionMismatch records one benchmark whose version changed between
// snapshots.
type VersionMismatch struct {
	BenchmarkID     string `json:"benchmark_id"`
	CurrentVersion  string `json:"current_version"`
	PreviousVersion string `json:"previous_version"`
}

// Diff is the result of comparing two snapshots. Deltas are present
// only when Status is Comparable.
type Diff struct {
	Status             DiffStatus                    `json:"status"`
	CurrentSnapshotID  string                        `json:"current_snapshot_id"`
	PreviousSnapshotID string                        `json:"previous_snapshot_id,omitempty"`
	ScoreDeltas        map[string]map[string]float64 `json:"score_deltas,omitempty"`
	Explanation        string                        `json:"explanation"`
	VersionMismatches  []VersionMismatch             `json:"version_mismatches,omitempty"`
}

// Comparable reports whether deltas were computed.
func (d Diff) Comparable() bool { return d.Status == Comparable }

// DiffSnapshots compares current against previous. Comparisons are
// refused when any shared benchmark changed version or the benchmark
// sets differ; scores never cross version boundaries.
func DiffSnapshots(current, previous *Snapshot) Diff {
	if previous == nil {
		return Diff{
			Status:            NoPreviousSnapshot,
			CurrentSnapshotID: current.SnapshotID,
			Explanation:       "No previous snapshot available for comparison.",
		}
	}

	currVersions := versionIndex(current.Versions)
	prevVersions := versionIndex(previous.Versions)

	var mismatches []VersionMismatch
	var common []string
	for id, cv := range currVersions {
		pv, ok := prevVersions[id]
		if !ok {
			continue
		}
		common = append(common, id)
		if cv.Version != pv.Version {
			mismatches = append(mismatches, VersionMismatch{
				BenchmarkID:     id,
				CurrentVersion:  cv.Version,
				PreviousVersion: pv.Version,
			})
		}
	}
	sort.Strings(common)
	sort.Slice(mismatches, func(i, j int) bool { return mismatches[i].BenchmarkID < mismatches[j].BenchmarkID })

	if len(mismatches) > 0 {
		return Diff{
			Status:             IncomparableVersionMismatch,
			CurrentSnapshotID:  current.SnapshotID,
			PreviousSnapshotID: previous.SnapshotID,
			Explanation:        fmt.Sprintf("Cannot compare: %d benchmark(s) have different versions. Cross-version comparison is prohibited.", len(mismatches)),
			VersionMismatches:  mismatches,
		}
	}

	if !sameKeys(currVersions, prevVersions) {
		added, removed := keyDiff(currVersions, prevVersions)
		return Diff{
			Status:             IncomparableBenchmarkMismatch,
			CurrentSnapshotID:  current.SnapshotID,
			PreviousSnapshotID: previous.SnapshotID,
			Explanation:        fmt.Sprintf("Benchmark set changed. Added: %v, Removed: %v. Comparison disabled.", added, removed),
		}
	}

	deltas := make(map[string]map[string]float64)
	commonModels := 0
	prevModels := make(map[string]struct{}, len(previous.ModelIDs))
	for _, id := range previous.ModelIDs {
		prevModels[id] = struct{}{}
	}
	for _, modelID := range current.ModelIDs {
		if _, ok := prevModels[modelID]; !ok {
			continue
		}
		commonModels++
		currScores := current.ModelScores[modelID]
		prevScores := previous.ModelScores[modelID]

		modelDeltas := make(map[string]float64)
		for metric, cs := range currScores {
			ps, ok := prevScores[metric]
			if !ok {
				continue
			}
			modelDeltas[metric] = cs - ps
		}
		if len(modelDeltas) > 0 {
			deltas[modelID] = modelDeltas
		}
	}

	return Diff{
		Status:             Comparable,
		CurrentSnapshotID:  current.SnapshotID,
		PreviousSnapshotID: previous.SnapshotID,
		ScoreDeltas:        deltas,
		Explanation:        fmt.Sprintf("Compared %d models across %d benchmarks.", commonModels, len(common)),
	}
}

func versionIndex(versions []BenchmarkVersion) map[string]BenchmarkVersion {
	out := make(map[string]BenchmarkVersion, len(versions))
	for _, v := range versions {
		out[v.BenchmarkID] = v
	}
	return out
}

func sameKeys(a, b map[string]BenchmarkVersion) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func keyDiff(curr, prev map[string]BenchmarkVersion) (added, removed []string) {
	for k := range curr {
		if _, ok := prev[k]; !ok {
			added = append(added, k)
		}
	}
	for k := range prev {
		if _, ok := curr[k]; !ok {
			removed = append(removed, k)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}
