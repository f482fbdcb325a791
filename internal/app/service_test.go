package service

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/scout/internal/adapters/agent"
	"github.com/okian/scout/internal/adapters/repository"
	"github.com/okian/scout/internal/config"
	"github.com/okian/scout/internal/domain/event"
	"github.com/okian/scout/internal/domain/regression"
	"github.com/okian/scout/internal/domain/result"
	"github.com/okian/scout/internal/domain/snapshot"
	"github.com/okian/scout/pkg/logger"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type scriptedAgent struct {
	scores map[string]float64 // source -> score, missing means failure
}

func (a *scriptedAgent) Extract(_ context.Context, src config.Source, modelName string, _ func(event.Event)) (agent.Outcome, error) {
	score, ok := a.scores[src.Key]
	if !ok {
		return agent.Failure{Code: agent.CodeSiteBlocked, Message: "scripted failure"}, nil
	}
	return agent.Success{Result: result.Result{
		ModelID:      result.CanonicalModelID(modelName),
		ModelName:    modelName,
		SourceID:     src.Key,
		AverageScore: &score,
		Metrics:      map[string]float64{"mmlu": score},
		ScrapedAt:    time.Now().UTC(),
	}}, nil
}

func newTestService(t *testing.T, ag *scriptedAgent) *Service {
	t.Helper()
	store, err := repository.NewBadgerStore(repository.WithInMemory())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	cfg := config.New()
	cfg.DataDir = ""
	cfg.MaxConcurrentStreams = 2

	svc := New(cfg, WithStore(store), WithAgent(ag))
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(svc.Stop)
	return svc
}

func drain(ch <-chan event.Event) []event.Event {
	var out []event.Event
	for e := range ch {
		out = append(out, e)
	}
	return out
}

func putScore(t *testing.T, svc *Service, modelID, sourceID string, metrics map[string]float64, age time.Duration) {
	t.Helper()
	avg := 0.0
	for _, v := range metrics {
		avg = v
	}
	err := svc.store.PutResult(context.Background(), result.Result{
		ModelID:      modelID,
		ModelName:    modelID,
		SourceID:     sourceID,
		AverageScore: &avg,
		Metrics:      metrics,
		ScrapedAt:    time.Now().UTC().Add(-age),
	})
	if err != nil {
		t.Fatalf("put result: %v", err)
	}
}

func TestServiceSearchEndToEnd(t *testing.T) {
	Convey("Given a service with a scripted agent", t, func() {
		svc := newTestService(t, &scriptedAgent{scores: map[string]float64{
			"huggingface": 88, "vellum": 90,
		}})

		events := drain(svc.Search(context.Background(), "gpt-4o", []string{"huggingface", "vellum", "mask"}))

		Convey("Then results and errors arrive on one stream", func() {
			var results, failures int
			for _, e := range events {
				switch e.Kind {
				case event.KindResult:
					results++
				case event.KindError:
					failures++
				}
			}
			So(results, ShouldEqual, 2)
			So(failures, ShouldEqual, 1)
			So(events[len(events)-1].Kind, ShouldEqual, event.KindDone)
		})

		Convey("Then successful extractions were persisted", func() {
			cached, err := svc.CachedResults(context.Background(), "openai/gpt-4o")
			So(err, ShouldBeNil)
			So(cached, ShouldHaveLength, 2)
		})
	})
}

func TestServiceStreamGate(t *testing.T) {
	Convey("Given a service with capacity two", t, func() {
		svc := newTestService(t, &scriptedAgent{})

		Convey("Then the third stream is rejected", func() {
			So(svc.AcquireStream(), ShouldBeTrue)
			So(svc.AcquireStream(), ShouldBeTrue)
			So(svc.AcquireStream(), ShouldBeFalse)

			svc.ReleaseStream()
			So(svc.AcquireStream(), ShouldBeTrue)
			svc.ReleaseStream()
			svc.ReleaseStream()
		})
	})
}

func TestServiceSnapshotLifecycle(t *testing.T) {
	Convey("Given stored results for two models", t, func() {
		svc := newTestService(t, &scriptedAgent{})
		ctx := context.Background()

		putScore(t, svc, "openai/gpt-4o", "huggingface", map[string]float64{"mmlu": 88}, time.Hour)
		putScore(t, svc, "anthropic/claude-3-opus", "huggingface", map[string]float64{"mmlu": 86}, time.Hour)

		Convey("When a snapshot is created", func() {
			snap, err := svc.CreateSnapshot(ctx)
			So(err, ShouldBeNil)
			So(snap.ModelIDs, ShouldHaveLength, 2)
			So(snap.WeightsUsed, ShouldNotBeEmpty)

			Convey("Then it is listed and verifiable", func() {
				listed, err := svc.ListSnapshots(ctx, 10)
				So(err, ShouldBeNil)
				So(listed, ShouldHaveLength, 1)

				ok, msg, err := svc.VerifySnapshot(ctx, snap.SnapshotID)
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(msg, ShouldContainSubstring, "verified")
			})

			Convey("Then an unchanged store yields a fresh zero-delta snapshot", func() {
				next, err := svc.CreateSnapshot(ctx)
				So(err, ShouldBeNil)
				So(next.SnapshotID, ShouldNotEqual, snap.SnapshotID)
				So(next.ContentHash, ShouldNotEqual, snap.ContentHash)

				d, err := svc.DiffLatest(ctx)
				So(err, ShouldBeNil)
				So(d.Comparable(), ShouldBeTrue)
				So(d.ScoreDeltas["openai/gpt-4o"]["mmlu"], ShouldAlmostEqual, 0, 0.0001)
			})

			Convey("Then a single snapshot diffs as no_previous_snapshot", func() {
				d, err := svc.DiffLatest(ctx)
				So(err, ShouldBeNil)
				So(d.Status, ShouldEqual, snapshot.NoPreviousSnapshot)
			})

			Convey("And the scores change, the next snapshot diffs comparable", func() {
				putScore(t, svc, "openai/gpt-4o", "huggingface", map[string]float64{"mmlu": 91}, 0)
				_, err := svc.CreateSnapshot(ctx)
				So(err, ShouldBeNil)

				d, err := svc.DiffLatest(ctx)
				So(err, ShouldBeNil)
				So(d.Comparable(), ShouldBeTrue)
				So(d.ScoreDeltas["openai/gpt-4o"]["mmlu"], ShouldAlmostEqual, 3.0, 0.0001)
			})
		})

		Convey("When the store is empty, snapshot creation fails", func() {
			empty := newTestService(t, &scriptedAgent{})
			_, err := empty.CreateSnapshot(ctx)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestServiceRegressionDetection(t *testing.T) {
	Convey("Given two snapshots with a capability drop", t, func() {
		svc := newTestService(t, &scriptedAgent{})
		ctx := context.Background()

		putScore(t, svc, "m", "huggingface", map[string]float64{"mmlu": 80}, 2*time.Hour)
		_, err := svc.CreateSnapshot(ctx)
		So(err, ShouldBeNil)

		putScore(t, svc, "m", "huggingface", map[string]float64{"mmlu": 70}, 0)
		_, err = svc.CreateSnapshot(ctx)
		So(err, ShouldBeNil)

		Convey("When regressions are detected", func() {
			report, err := svc.DetectRegressions(ctx, "m", regression.DefaultThresholds())
			So(err, ShouldBeNil)

			Convey("Then the 12.5 percent reasoning drop is major", func() {
				So(report.MajorRegressions, ShouldEqual, 1)
				So(report.HasMajor(), ShouldBeTrue)
			})

			Convey("Then the run landed in the audit trail", func() {
				hist, err := svc.RegressionHistory(ctx, "m", 0)
				So(err, ShouldBeNil)
				So(hist, ShouldHaveLength, 1)
			})
		})

		Convey("When the model is missing from a snapshot", func() {
			_, err := svc.DetectRegressions(ctx, "ghost", regression.DefaultThresholds())
			So(errors.Is(err, ErrModelNotInSnapshot), ShouldBeTrue)
		})
	})

	Convey("Given fewer than two snapshots", t, func() {
		svc := newTestService(t, &scriptedAgent{})
		_, err := svc.DetectRegressions(context.Background(), "m", regression.DefaultThresholds())
		So(errors.Is(err, ErrInsufficientSnapshots), ShouldBeTrue)
	})
}

func TestServiceComputePRS(t *testing.T) {
	Convey("Given two snapshots and extraction history", t, func() {
		svc := newTestService(t, &scriptedAgent{})
		ctx := context.Background()

		putScore(t, svc, "m", "huggingface", map[string]float64{"mmlu": 80}, 3*time.Hour)
		_, err := svc.CreateSnapshot(ctx)
		So(err, ShouldBeNil)

		putScore(t, svc, "m", "huggingface", map[string]float64{"mmlu": 82}, 0)
		_, err = svc.CreateSnapshot(ctx)
		So(err, ShouldBeNil)

		Convey("When PRS is computed", func() {
			comps, snapID, err := svc.ComputePRS(ctx, "m")
			So(err, ShouldBeNil)
			So(snapID, ShouldStartWith, "snap_")

			Convey("Then the composite sits in range with full audit", func() {
				So(comps.FinalPRS, ShouldBeBetweenOrEqual, 0, 100)
				So(comps.BenchmarksIncluded, ShouldResemble, []string{"mmlu"})
				So(comps.ExtractionCount, ShouldBeGreaterThan, 0)
			})

			Convey("Then the small delta keeps temporal reliability high", func() {
				So(comps.TemporalReliability, ShouldEqual, 100)
			})
		})

		Convey("When the model is unknown", func() {
			_, _, err := svc.ComputePRS(ctx, "ghost")
			So(errors.Is(err, ErrModelNotInSnapshot), ShouldBeTrue)
		})
	})

	Convey("Given no snapshots", t, func() {
		svc := newTestService(t, &scriptedAgent{})
		_, _, err := svc.ComputePRS(context.Background(), "m")
		So(errors.Is(err, ErrNoSnapshots), ShouldBeTrue)
	})
}

func TestServiceStats(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := newTestService(t, &scriptedAgent{})
		putScore(t, svc, "m", "huggingface", map[string]float64{"mmlu": 80}, time.Hour)

		stats := svc.GetStats(context.Background())
		So(stats["started"], ShouldEqual, true)
		So(stats["models"], ShouldEqual, 1)
		So(stats["active_streams"], ShouldEqual, int64(0))
	})
}
