package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/scout/internal/adapters/repository"
	"github.com/okian/scout/internal/adapters/stream"
	service "github.com/okian/scout/internal/app"
	"github.com/okian/scout/internal/config"
	"github.com/okian/scout/internal/domain/event"
	"github.com/okian/scout/internal/domain/regression"
	"github.com/okian/scout/internal/domain/reliability"
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

// fakeDeps implements Dependencies with scripted state.
type fakeDeps struct {
	capacity  int
	active    int
	events    []event.Event
	history   []result.Result
	cached    []result.Result
	models    []string
	snapshots []*snapshot.Snapshot
	report    regression.Report
	reportErr error
	prs       reliability.Components
	prsErr    error
}

func (f *fakeDeps) AcquireStream() bool {
	if f.active >= f.capacity {
		return false
	}
	f.active++
	return true
}

func (f *fakeDeps) ReleaseStream() { f.active-- }

func (f *fakeDeps) Search(_ context.Context, _ string, _ []string) <-chan event.Event {
	return f.stream()
}

func (f *fakeDeps) Compare(_ context.Context, _, _ []string) <-chan event.Event {
	return f.stream()
}

func (f *fakeDeps) stream() <-chan event.Event {
	out := make(chan event.Event, len(f.events)+1)
	for _, e := range f.events {
		out <- e
	}
	out <- event.Done()
	close(out)
	return out
}

func (f *fakeDeps) StreamTo(_ context.Context, events <-chan event.Event, sink stream.Sink) error {
	for e := range events {
		if err := sink.WriteEvent(e); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeDeps) Sources() []config.Source { return config.Sources() }

func (f *fakeDeps) History(_ context.Context, _ string, limit int) ([]result.Result, error) {
	if limit < len(f.history) {
		return f.history[:limit], nil
	}
	return f.history, nil
}

func (f *fakeDeps) CachedResults(_ context.Context, _ string) ([]result.Result, error) {
	return f.cached, nil
}

func (f *fakeDeps) Models(_ context.Context) ([]string, error) { return f.models, nil }

func (f *fakeDeps) CreateSnapshot(_ context.Context) (*snapshot.Snapshot, error) {
	if len(f.snapshots) == 0 {
		return nil, snapshot.ErrEmpty
	}
	return f.snapshots[0], nil
}

func (f *fakeDeps) GetSnapshot(_ context.Context, id string) (*snapshot.Snapshot, error) {
	for _, s := range f.snapshots {
		if s.SnapshotID == id {
			return s, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeDeps) ListSnapshots(_ context.Context, limit int) ([]*snapshot.Snapshot, error) {
	if limit < len(f.snapshots) {
		return f.snapshots[:limit], nil
	}
	return f.snapshots, nil
}

func (f *fakeDeps) VerifySnapshot(ctx context.Context, id string) (bool, string, error) {
	snap, err := f.GetSnapshot(ctx, id)
	if err != nil {
		return false, "", err
	}
	ok, msg := snap.VerifyMessage()
	return ok, msg, nil
}

func (f *fakeDeps) DiffLatest(_ context.Context) (snapshot.Diff, error) {
	switch len(f.snapshots) {
	case 0:
		return snapshot.Diff{}, service.ErrNoSnapshots
	case 1:
		return snapshot.DiffSnapshots(f.snapshots[0], nil), nil
	default:
		return snapshot.DiffSnapshots(f.snapshots[0], f.snapshots[1]), nil
	}
}

func (f *fakeDeps) DetectRegressions(_ context.Context, _ string, _ regression.Thresholds) (regression.Report, error) {
	return f.report, f.reportErr
}

func (f *fakeDeps) RegressionHistory(_ context.Context, _ string, _ int) ([]regression.Report, error) {
	if f.report.ModelID == "" {
		return nil, nil
	}
	return []regression.Report{f.report}, nil
}

func (f *fakeDeps) ComputePRS(_ context.Context, _ string) (reliability.Components, string, error) {
	if f.prsErr != nil {
		return reliability.Components{}, "", f.prsErr
	}
	id := ""
	if len(f.snapshots) > 0 {
		id = f.snapshots[0].SnapshotID
	}
	return f.prs, id, nil
}

func (f *fakeDeps) GetStats(_ context.Context) map[string]any {
	return map[string]any{"started": true}
}

func newTestServer(deps *fakeDeps) *httptest.Server {
	mux := http.NewServeMux()
	NewServer(deps, deps).Register(context.Background(), mux)
	return httptest.NewServer(mux)
}

func sseFrames(t *testing.T, resp *http.Response) []event.Event {
	t.Helper()
	defer resp.Body.Close()
	var frames []event.Event
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var e event.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &e); err != nil {
			t.Fatalf("bad frame %q: %v", line, err)
		}
		frames = append(frames, e)
	}
	return frames
}

func mustSnapshot(t *testing.T, scores map[string]map[string]float64) *snapshot.Snapshot {
	t.Helper()
	snap, err := snapshot.New(scores, []snapshot.BenchmarkVersion{
		{BenchmarkID: "huggingface", Version: "2025-06", SourceURL: "https://example.com"},
	}, map[string]float64{"general": 1.0})
	if err != nil {
		t.Fatalf("build snapshot: %v", err)
	}
	return snap
}

func TestSearchEndpoint(t *testing.T) {
	Convey("Given a search request over SSE", t, func() {
		deps := &fakeDeps{
			capacity: 2,
			events: []event.Event{
				event.StatusEvent("huggingface", "gpt-4o", event.StatusRunning),
				event.Now(event.Event{Kind: event.KindResult, Source: "huggingface"}),
			},
		}
		srv := newTestServer(deps)
		defer srv.Close()

		post := func(body string) *http.Response {
			resp, err := http.Post(srv.URL+"/api/search", "application/json", strings.NewReader(body))
			So(err, ShouldBeNil)
			return resp
		}

		Convey("When the request is valid", func() {
			resp := post(`{"model_name":"gpt-4o"}`)
			So(resp.Header.Get("Content-Type"), ShouldEqual, "text/event-stream")

			frames := sseFrames(t, resp)
			So(frames, ShouldHaveLength, 3)
			So(frames[1].Kind, ShouldEqual, event.KindResult)
			So(frames[2].Kind, ShouldEqual, event.KindDone)

			Convey("Then the gate slot is released", func() {
				So(deps.active, ShouldEqual, 0)
			})
		})

		Convey("When model_name is missing", func() {
			frames := sseFrames(t, post(`{}`))
			So(frames, ShouldHaveLength, 2)
			So(frames[0].Kind, ShouldEqual, event.KindError)
			So(frames[0].ErrorCode, ShouldEqual, codeInvalidRequest)
			So(frames[1].Kind, ShouldEqual, event.KindDone)
		})

		Convey("When every requested source is unknown", func() {
			frames := sseFrames(t, post(`{"model_name":"gpt-4o","sources":["nope"]}`))
			So(frames[0].Kind, ShouldEqual, event.KindError)
			So(frames[0].Message, ShouldEqual, "No valid sources specified")
		})

		Convey("When capacity is exhausted", func() {
			deps.active = deps.capacity
			frames := sseFrames(t, post(`{"model_name":"gpt-4o"}`))
			So(frames, ShouldHaveLength, 2)
			So(frames[0].ErrorCode, ShouldEqual, codeTooManyStreams)
			So(frames[0].Message, ShouldEqual, "Too many active streams")
		})

		Convey("When the method is GET", func() {
			resp, err := http.Get(srv.URL + "/api/search")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestCompareEndpoint(t *testing.T) {
	Convey("Given a compare request", t, func() {
		deps := &fakeDeps{
			capacity: 1,
			events: []event.Event{
				event.Now(event.Event{Kind: event.KindInit, Models: []string{"a", "b"}}),
			},
		}
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("When both models are present", func() {
			resp, err := http.Post(srv.URL+"/api/compare", "application/json",
				strings.NewReader(`{"model_a":"a","model_b":"b"}`))
			So(err, ShouldBeNil)
			frames := sseFrames(t, resp)
			So(frames[0].Kind, ShouldEqual, event.KindInit)
			So(frames[len(frames)-1].Kind, ShouldEqual, event.KindDone)
		})

		Convey("When one model is missing", func() {
			resp, err := http.Post(srv.URL+"/api/compare", "application/json",
				strings.NewReader(`{"model_a":"a"}`))
			So(err, ShouldBeNil)
			frames := sseFrames(t, resp)
			So(frames[0].Kind, ShouldEqual, event.KindError)
			So(frames[0].Message, ShouldContainSubstring, "model_a and model_b")
		})
	})
}

func TestCatalogEndpoints(t *testing.T) {
	Convey("Given the catalog endpoints", t, func() {
		score := 88.0
		deps := &fakeDeps{
			capacity: 1,
			models:   []string{"openai/gpt-4o"},
			history: []result.Result{
				{ModelID: "openai/gpt-4o", SourceID: "huggingface", AverageScore: &score, ScrapedAt: time.Now().UTC()},
			},
		}
		srv := newTestServer(deps)
		defer srv.Close()

		getJSON := func(path string) (int, map[string]any) {
			resp, err := http.Get(srv.URL + path)
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			var body map[string]any
			So(json.NewDecoder(resp.Body).Decode(&body), ShouldBeNil)
			return resp.StatusCode, body
		}

		Convey("Then /api/sources lists the full catalog", func() {
			status, body := getJSON("/api/sources")
			So(status, ShouldEqual, http.StatusOK)
			So(body["count"], ShouldEqual, 6)
		})

		Convey("Then /api/models lists stored models", func() {
			status, body := getJSON("/api/models")
			So(status, ShouldEqual, http.StatusOK)
			So(body["models"], ShouldResemble, []any{"openai/gpt-4o"})
		})

		Convey("Then /api/history/{model} returns rows", func() {
			status, body := getJSON("/api/history/gpt-4o?limit=5")
			So(status, ShouldEqual, http.StatusOK)
			So(body["count"], ShouldEqual, 1)
			So(body["model"], ShouldEqual, "gpt-4o")
		})

		Convey("Then /api/history/ without a model is rejected", func() {
			status, _ := getJSON("/api/history/")
			So(status, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Then /api/cached/{model} with a source filter narrows", func() {
			deps.cached = deps.history
			status, body := getJSON("/api/cached/gpt-4o?source=huggingface")
			So(status, ShouldEqual, http.StatusOK)
			So(body["result"], ShouldNotBeNil)

			status, body = getJSON("/api/cached/gpt-4o?source=vellum")
			So(status, ShouldEqual, http.StatusOK)
			So(body["result"], ShouldBeNil)
		})

		Convey("Then OPTIONS preflight succeeds", func() {
			req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/sources", nil)
			So(err, ShouldBeNil)
			resp, err := http.DefaultClient.Do(req)
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusNoContent)
			So(resp.Header.Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
		})
	})
}

func TestSnapshotEndpoints(t *testing.T) {
	Convey("Given stored snapshots", t, func() {
		current := mustSnapshot(t, map[string]map[string]float64{"m": {"mmlu": 91}})
		previous := mustSnapshot(t, map[string]map[string]float64{"m": {"mmlu": 88}})
		deps := &fakeDeps{capacity: 1, snapshots: []*snapshot.Snapshot{current, previous}}
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("Then the list view truncates hashes", func() {
			resp, err := http.Get(srv.URL + "/api/v2/snapshots")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			var body struct {
				Snapshots []snapshotSummary `json:"snapshots"`
				Total     int               `json:"total"`
			}
			So(json.NewDecoder(resp.Body).Decode(&body), ShouldBeNil)
			So(body.Total, ShouldEqual, 2)
			So(body.Snapshots[0].ContentHash, ShouldEndWith, "...")
			So(len(body.Snapshots[0].ContentHash), ShouldEqual, 19)
		})

		Convey("Then the detail view exposes the full hash", func() {
			resp, err := http.Get(srv.URL + "/api/v2/snapshots/" + current.SnapshotID)
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			var body map[string]any
			So(json.NewDecoder(resp.Body).Decode(&body), ShouldBeNil)
			check := body["integrity_check"].(map[string]any)
			So(check["stored_hash"], ShouldEqual, current.ContentHash)
		})

		Convey("Then verify confirms integrity", func() {
			resp, err := http.Get(srv.URL + "/api/v2/snapshots/" + current.SnapshotID + "/verify")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			var body map[string]any
			So(json.NewDecoder(resp.Body).Decode(&body), ShouldBeNil)
			So(body["integrity_valid"], ShouldEqual, true)
		})

		Convey("Then an unknown id is a 404", func() {
			resp, err := http.Get(srv.URL + "/api/v2/snapshots/snap_nope")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then diff compares the two newest", func() {
			resp, err := http.Get(srv.URL + "/api/v2/snapshots/diff")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			var d snapshot.Diff
			So(json.NewDecoder(resp.Body).Decode(&d), ShouldBeNil)
			So(d.Status, ShouldEqual, snapshot.Comparable)
		})

		Convey("Then POST creates a snapshot", func() {
			resp, err := http.Post(srv.URL+"/api/v2/snapshots", "application/json", nil)
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusCreated)
		})
	})

	Convey("Given no snapshots", t, func() {
		srv := newTestServer(&fakeDeps{capacity: 1})
		defer srv.Close()

		Convey("Then diff is a 404", func() {
			resp, err := http.Get(srv.URL + "/api/v2/snapshots/diff")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then POST is a 400", func() {
			resp, err := http.Post(srv.URL+"/api/v2/snapshots", "application/json", nil)
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestRegressionEndpoints(t *testing.T) {
	Convey("Given a detection report", t, func() {
		deps := &fakeDeps{
			capacity: 1,
			report: regression.Report{
				ModelID:          "m",
				RegressionsFound: 1,
				MajorRegressions: 1,
			},
		}
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("When detection succeeds", func() {
			resp, err := http.Post(srv.URL+"/api/v2/regressions/detect/m", "application/json",
				strings.NewReader(`{"thresholds":{"minor_threshold_pct":3.0}}`))
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			var report regression.Report
			So(json.NewDecoder(resp.Body).Decode(&report), ShouldBeNil)
			So(report.MajorRegressions, ShouldEqual, 1)
		})

		Convey("When snapshots are insufficient", func() {
			deps.reportErr = service.ErrInsufficientSnapshots
			resp, err := http.Post(srv.URL+"/api/v2/regressions/detect/m", "application/json", nil)
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the model is unknown", func() {
			deps.reportErr = fmt.Errorf("%w: ghost", service.ErrModelNotInSnapshot)
			resp, err := http.Post(srv.URL+"/api/v2/regressions/detect/ghost", "application/json", nil)
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})

		Convey("When history is requested", func() {
			resp, err := http.Get(srv.URL + "/api/v2/regressions/history?model_id=m")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			var body map[string]any
			So(json.NewDecoder(resp.Body).Decode(&body), ShouldBeNil)
			So(body["total"], ShouldEqual, 1)
		})
	})
}

func TestPRSEndpoint(t *testing.T) {
	Convey("Given a computed PRS", t, func() {
		snap := mustSnapshot(t, map[string]map[string]float64{"m": {"mmlu": 90}})
		deps := &fakeDeps{
			capacity:  1,
			snapshots: []*snapshot.Snapshot{snap},
			prs: reliability.Components{
				CapabilityConsistency: 100,
				BenchmarkStability:    90,
				TemporalReliability:   50,
				FinalPRS:              84,
				BenchmarksIncluded:    []string{"mmlu"},
				ExtractionCount:       3,
			},
		}
		srv := newTestServer(deps)
		defer srv.Close()

		Convey("When the model exists", func() {
			resp, err := http.Get(srv.URL + "/api/v2/prs/m")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			var body map[string]any
			So(json.NewDecoder(resp.Body).Decode(&body), ShouldBeNil)
			So(body["snapshot_id"], ShouldEqual, snap.SnapshotID)

			prs := body["prs"].(map[string]any)
			So(prs["final_prs"], ShouldEqual, 84)
			So(prs["disclaimer"], ShouldEqual, reliability.Disclaimer)

			comps := prs["components"].(map[string]any)
			cc := comps["capability_consistency"].(map[string]any)
			So(cc["weight"], ShouldEqual, reliability.WeightCapabilityConsistency)
			So(cc["weighted_contribution"], ShouldEqual, 40)

			So(body["raw_scores"], ShouldResemble, map[string]any{"mmlu": 90.0})
		})

		Convey("When no snapshot exists", func() {
			deps.prsErr = service.ErrNoSnapshots
			resp, err := http.Get(srv.URL + "/api/v2/prs/m")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestInputValidation(t *testing.T) {
	Convey("Given hostile model names", t, func() {
		deps := &fakeDeps{capacity: 2}
		srv := newTestServer(deps)
		defer srv.Close()

		search := func(body string) []event.Event {
			resp, err := http.Post(srv.URL+"/api/search", "application/json", strings.NewReader(body))
			So(err, ShouldBeNil)
			return sseFrames(t, resp)
		}

		Convey("When the name carries a path traversal", func() {
			frames := search(`{"model_name":"../../etc/passwd"}`)
			So(frames, ShouldHaveLength, 2)
			So(frames[0].Kind, ShouldEqual, event.KindError)
			So(frames[0].ErrorCode, ShouldEqual, codeInvalidRequest)
			So(frames[0].Message, ShouldContainSubstring, "path traversal")
			So(frames[1].Kind, ShouldEqual, event.KindDone)
		})

		Convey("When the name exceeds the length cap", func() {
			long := strings.Repeat("a", maxModelNameLen+1)
			frames := search(`{"model_name":"` + long + `"}`)
			So(frames[0].Kind, ShouldEqual, event.KindError)
			So(frames[0].Message, ShouldContainSubstring, "too long")
		})

		Convey("When the name carries illegal characters", func() {
			frames := search(`{"model_name":"gpt 4o;drop"}`)
			So(frames[0].Kind, ShouldEqual, event.KindError)
			So(frames[0].Message, ShouldContainSubstring, "alphanumeric")
		})

		Convey("When compare gets a tainted model", func() {
			resp, err := http.Post(srv.URL+"/api/compare", "application/json",
				strings.NewReader(`{"model_a":"gpt-4o","model_b":"..\\secrets"}`))
			So(err, ShouldBeNil)
			frames := sseFrames(t, resp)
			So(frames[0].Kind, ShouldEqual, event.KindError)
			So(frames[0].ErrorCode, ShouldEqual, codeInvalidRequest)
		})

		Convey("When the history path carries a suspicious pattern", func() {
			resp, err := http.Get(srv.URL + "/api/history/gpt--4o")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When a snapshot id carries illegal characters", func() {
			resp, err := http.Get(srv.URL + "/api/v2/snapshots/snap.2025.weird")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestRateLimiting(t *testing.T) {
	Convey("Given the per-client request budgets", t, func() {
		Convey("Then the limiter itself refuses the burst overflow", func() {
			rl := NewRateLimiter(CompareRatePerMinute)
			for i := 0; i < CompareRatePerMinute; i++ {
				So(rl.Allow("10.0.0.1"), ShouldBeTrue)
			}
			So(rl.Allow("10.0.0.1"), ShouldBeFalse)

			Convey("And other clients keep their own budget", func() {
				So(rl.Allow("10.0.0.2"), ShouldBeTrue)
			})
		})

		Convey("Then compare returns 429 past its budget", func() {
			deps := &fakeDeps{capacity: 1}
			srv := newTestServer(deps)
			defer srv.Close()

			var last *http.Response
			for i := 0; i <= CompareRatePerMinute; i++ {
				resp, err := http.Post(srv.URL+"/api/compare", "application/json",
					strings.NewReader(`{}`))
				So(err, ShouldBeNil)
				resp.Body.Close()
				last = resp
			}
			So(last.StatusCode, ShouldEqual, http.StatusTooManyRequests)
			So(last.Header.Get("Retry-After"), ShouldEqual, "60")
		})

		Convey("Then ops endpoints stay unthrottled", func() {
			deps := &fakeDeps{capacity: 1}
			srv := newTestServer(deps)
			defer srv.Close()

			for i := 0; i < StandardRatePerMinute+5; i++ {
				resp, err := http.Get(srv.URL + "/healthz")
				So(err, ShouldBeNil)
				resp.Body.Close()
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
			}
		})
	})
}

func TestStatsAndHealth(t *testing.T) {
	Convey("Given the operational endpoints", t, func() {
		srv := newTestServer(&fakeDeps{capacity: 1})
		defer srv.Close()

		Convey("Then /stats reports service state", func() {
			resp, err := http.Get(srv.URL + "/stats")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			var body map[string]any
			So(json.NewDecoder(resp.Body).Decode(&body), ShouldBeNil)
			So(body["started"], ShouldEqual, true)
		})

		Convey("Then /healthz serves the Prometheus exposition", func() {
			resp, err := http.Get(srv.URL + "/healthz")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
		})
	})
}
