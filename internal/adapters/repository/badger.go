package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/okian/scout/internal/domain/regression"
	"github.com/okian/scout/internal/domain/result"
	"github.com/okian/scout/internal/domain/snapshot"
	"github.com/okian/scout/pkg/logger"
	"github.com/okian/scout/pkg/metrics"
)

// Key prefixes. History keys embed a fixed-width UTC timestamp so
// lexicographic order is chronological and reverse iteration yields
// newest first.
const (
	prefixLatest   = "latest/"
	prefixHistory  = "hist/"
	prefixSnapshot = "snap/"
	prefixSnapHash = "snaphash/"
	prefixSnapIdx  = "snapidx/"
	prefixRegress  = "reg/"

	tsLayout = "20060102T150405.000000000"
)

// BadgerStore implements Store on an embedded Badger database.
type BadgerStore struct {
	db         *badger.DB
	path       string
	inMemory   bool
	syncWrites bool
	log        logger.Logger
}

// NewBadgerStore opens the database and returns a ready Store.
func NewBadgerStore(opts ...Option) (*BadgerStore, error) {
	s := &BadgerStore{
		inMemory: true,
		log:      logger.Named("repository"),
	}
	for _, opt := range opts {
		opt(s)
	}

	var bopts badger.Options
	if s.inMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(s.path, 0o750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", s.path, err)
		}
		bopts = badger.DefaultOptions(s.path)
	}
	bopts = bopts.WithSyncWrites(s.syncWrites).WithLogger(nil)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	s.db = db
	return s, nil
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) setJSON(key string, v any) error {
	start := time.Now()
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), raw)
	})
	metrics.RecordStoreWriteLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordStoreError()
	}
	return err
}

func (s *BadgerStore) getJSON(key string, v any) error {
	start := time.Now()
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(raw []byte) error {
			return json.Unmarshal(raw, v)
		})
	})
	metrics.RecordStoreReadLatency(float64(time.Since(start).Milliseconds()))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		metrics.RecordStoreError()
	}
	return err
}

// PutResult is idempotent for identical (model, source, scraped_at)
// triples: the history key is derived from the scrape time.
func (s *BadgerStore) PutResult(ctx context.Context, r result.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.ScrapedAt.IsZero() {
		r.ScrapedAt = time.Now().UTC()
	}

	latestKey := prefixLatest + r.ModelID + "/" + r.SourceID
	histKey := prefixHistory + r.ModelID + "/" + r.ScrapedAt.UTC().Format(tsLayout) + "/" + r.SourceID

	if err := s.setJSON(latestKey, r); err != nil {
		return fmt.Errorf("store latest result: %w", err)
	}
	if err := s.setJSON(histKey, r); err != nil {
		return fmt.Errorf("store result history: %w", err)
	}
	return nil
}

// CachedResult applies the recency window; stale entries read as
// misses, not errors.
func (s *BadgerStore) CachedResult(ctx context.Context, modelID, sourceID string, maxAge time.Duration) (*result.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var r result.Result
	err := s.getJSON(prefixLatest+modelID+"/"+sourceID, &r)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if maxAge > 0 && time.Since(r.ScrapedAt) > maxAge {
		return nil, nil
	}
	return &r, nil
}

func (s *BadgerStore) LatestResults(ctx context.Context, modelID string) ([]result.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []result.Result
	err := s.scan(prefixLatest+modelID+"/", false, 0, func(_ string, raw []byte) error {
		var r result.Result
		if err := json.Unmarshal(raw, &r); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	return out, err
}

func (s *BadgerStore) LatestByModel(ctx context.Context) (map[string][]result.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make(map[string][]result.Result)
	err := s.scan(prefixLatest, false, 0, func(_ string, raw []byte) error {
		var r result.Result
		if err := json.Unmarshal(raw, &r); err != nil {
			return err
		}
		out[r.ModelID] = append(out[r.ModelID], r)
		return nil
	})
	return out, err
}

func (s *BadgerStore) History(ctx context.Context, modelID string, limit int) ([]result.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, ErrInvalidLimit
	}

	var out []result.Result
	err := s.scan(prefixHistory+modelID+"/", true, limit, func(_ string, raw []byte) error {
		var r result.Result
		if err := json.Unmarshal(raw, &r); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	return out, err
}

func (s *BadgerStore) PutSnapshot(ctx context.Context, snap *snapshot.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	start := time.Now()
	err = s.db.Update(func(txn *badger.Txn) error {
		hashKey := []byte(prefixSnapHash + snap.ContentHash)
		if _, err := txn.Get(hashKey); err == nil {
			return ErrDuplicateHash
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if err := txn.Set([]byte(prefixSnapshot+snap.SnapshotID), raw); err != nil {
			return err
		}
		if err := txn.Set(hashKey, []byte(snap.SnapshotID)); err != nil {
			return err
		}
		idxKey := prefixSnapIdx + time.Now().UTC().Format(tsLayout)
		return txn.Set([]byte(idxKey), []byte(snap.SnapshotID))
	})
	metrics.RecordStoreWriteLatency(float64(time.Since(start).Milliseconds()))
	if err != nil && !errors.Is(err, ErrDuplicateHash) {
		metrics.RecordStoreError()
	}
	return err
}

func (s *BadgerStore) Snapshot(ctx context.Context, id string) (*snapshot.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var snap snapshot.Snapshot
	if err := s.getJSON(prefixSnapshot+id, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *BadgerStore) ListSnapshots(ctx context.Context, limit int) ([]*snapshot.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, ErrInvalidLimit
	}

	var ids []string
	err := s.scan(prefixSnapIdx, true, limit, func(_ string, raw []byte) error {
		ids = append(ids, string(raw))
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]*snapshot.Snapshot, 0, len(ids))
	for _, id := range ids {
		snap, err := s.Snapshot(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

func (s *BadgerStore) AppendRegressionReport(ctx context.Context, r regression.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := prefixRegress + r.ModelID + "/" + time.Now().UTC().Format(tsLayout)
	return s.setJSON(key, r)
}

func (s *BadgerStore) RegressionHistory(ctx context.Context, modelID string, limit int) ([]regression.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, ErrInvalidLimit
	}

	prefix := prefixRegress
	if modelID != "" {
		prefix += modelID + "/"
	}

	var out []regression.Report
	err := s.scan(prefix, true, limit, func(_ string, raw []byte) error {
		var r regression.Report
		if err := json.Unmarshal(raw, &r); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	return out, err
}

func (s *BadgerStore) Stats(ctx context.Context) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}

	var st Stats
	models := make(map[string]struct{})

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			switch {
			case strings.HasPrefix(key, prefixLatest):
				rest := strings.TrimPrefix(key, prefixLatest)
				if i := strings.LastIndex(rest, "/"); i > 0 {
					models[rest[:i]] = struct{}{}
				}
			case strings.HasPrefix(key, prefixHistory):
				st.Results++
			case strings.HasPrefix(key, prefixSnapshot):
				st.Snapshots++
			case strings.HasPrefix(key, prefixRegress):
				st.Regressions++
			}
		}
		return nil
	})
	st.Models = len(models)
	return st, err
}

// scan iterates keys under prefix, newest first when reverse is set.
// A zero limit means unbounded.
func (s *BadgerStore) scan(prefix string, reverse bool, limit int, fn func(key string, raw []byte) error) error {
	start := time.Now()
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		opts.Reverse = reverse
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := []byte(prefix)
		if reverse {
			// Seek past the last possible key under the prefix.
			seek = append(append([]byte{}, prefix...), 0xFF)
		}

		n := 0
		for it.Seek(seek); it.ValidForPrefix([]byte(prefix)); it.Next() {
			if limit > 0 && n >= limit {
				break
			}
			item := it.Item()
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(string(item.Key()), raw); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	metrics.RecordStoreReadLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordStoreError()
	}
	return err
}

// ModelIDs lists every model with at least one stored result, sorted.
func (s *BadgerStore) ModelIDs(ctx context.Context) ([]string, error) {
	byModel, err := s.LatestByModel(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(byModel))
	for id := range byModel {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

var _ Store = (*BadgerStore)(nil)
