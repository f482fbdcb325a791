// Package snapshot implements immutable, hash-verified captures of
// aggregated benchmark data and the temporal diff between them.
//
// A snapshot records model ids, per-model scores, benchmark versions,
// and the weights in effect, sealed by a SHA-256 content hash. Sealed
// snapshots are never mutated; comparisons across differing benchmark
// versions are refused rather than fudged.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BenchmarkVersion pins one source's version for comparability checks.
type BenchmarkVersion struct {
	BenchmarkID string `json:"benchmark_id"`
	SourceURL   string `json:"source_url"`
	Version     string `json:"version"`
}

// Snapshot is an immutable capture of aggregated scores.
type Snapshot struct {
	SnapshotID   string                        `json:"snapshot_id"`
	TimestampUTC string                        `json:"timestamp_utc"`
	ModelIDs     []string                      `json:"model_ids"`
	ModelScores  map[string]map[string]float64 `json:"model_scores"`
	Versions     []BenchmarkVersion            `json:"benchmark_versions"`
	WeightsUsed  map[string]float64            `json:"weights_used"`
	ContentHash  string                        `json:"content_hash"`

	ExtractionSource string `json:"extraction_source"`
	Phase            string `json:"phase"`
}

// hashable is the canonical form fed to SHA-256. Field order is fixed
// and collections are sorted before marshalling, so the same content
// always produces the same bytes.
type hashable struct {
	Versions     []BenchmarkVersion            `json:"benchmark_versions"`
	ModelIDs     []string                      `json:"model_ids"`
	ModelScores  map[string]map[string]float64 `json:"model_scores"`
	SnapshotID   string                        `json:"snapshot_id"`
	TimestampUTC string                        `json:"timestamp_utc"`
	WeightsUsed  map[string]float64            `json:"weights_used"`
}

// New builds a sealed snapshot with a computed content hash.
func New(modelScores map[string]map[string]float64, versions []BenchmarkVersion, weights map[string]float64) (*Snapshot, error) {
	now := time.Now().UTC()
	ts := now.Format("2006-01-02T15:04:05.000000") + "Z"

	ids := make([]string, 0, len(modelScores))
	for id := range modelScores {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	if weights == nil {
		weights = map[string]float64{}
	}

	s := &Snapshot{
		SnapshotID:       newSnapshotID(now),
		TimestampUTC:     ts,
		ModelIDs:         ids,
		ModelScores:      modelScores,
		Versions:         versions,
		WeightsUsed:      weights,
		ExtractionSource: "mino",
		Phase:            "phase-2",
	}

	hash, err := s.computeHash()
	if err != nil {
		return nil, err
	}
	s.ContentHash = hash
	return s, nil
}

// newSnapshotID derives a sortable, collision-free snapshot id.
func newSnapshotID(ts time.Time) string {
	short := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("snap_%s_%s", ts.Format("20060102T150405"), short)
}

func (s *Snapshot) computeHash() (string, error) {
	sortedIDs := append([]string(nil), s.ModelIDs...)
	sort.Strings(sortedIDs)

	sortedVersions := append([]BenchmarkVersion(nil), s.Versions...)
	sort.Slice(sortedVersions, func(i, j int) bool {
		return sortedVersions[i].BenchmarkID < sortedVersions[j].BenchmarkID
	})

	raw, err := json.Marshal(hashable{
		Versions:     sortedVersions,
		ModelIDs:     sortedIDs,
		ModelScores:  s.ModelScores,
		SnapshotID:   s.SnapshotID,
		TimestampUTC: s.TimestampUTC,
		WeightsUsed:  s.WeightsUsed,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrHashFailed, err)
	}

	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Verify recomputes the content hash and reports whether the snapshot
// still matches it.
func (s *Snapshot) Verify() (bool, error) {
	expected, err := s.computeHash()
	if err != nil {
		return false, err
	}
	return s.ContentHash == expected, nil
}

// VerifyMessage is Verify plus a human-readable summary for audit logs.
func (s *Snapshot) VerifyMessage() (bool, string) {
	expected, err := s.computeHash()
	if err != nil {
		return false, fmt.Sprintf("hash computation failed: %v", err)
	}
	if s.ContentHash == expected {
		return true, fmt.Sprintf("snapshot %s integrity verified, hash %s...", s.SnapshotID, s.ContentHash[:16])
	}
	return false, fmt.Sprintf("integrity violation: expected %s..., got %s...", expected[:16], s.ContentHash[:16])
}
