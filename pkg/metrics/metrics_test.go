package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNewManager(t *testing.T) {
	Convey("Given metrics manager options", t, func() {
		Convey("When creating a manager with defaults on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			m := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should carry the scout namespace", func() {
				So(m, ShouldNotBeNil)
				So(m.namespace, ShouldEqual, "scout")
				So(m.subsystem, ShouldEqual, "aggregator")
				So(m.enabled, ShouldBeTrue)
			})

			Convey("And its metrics should be registered", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "scout_aggregator_streams_active")
				So(names, ShouldContain, "scout_aggregator_cache_hits_total")
			})
		})

		Convey("When overriding namespace and subsystem", func() {
			registry := prometheus.NewRegistry()
			m := NewManager(
				WithPrometheusRegistry(registry),
				WithNamespace("custom"),
				WithSubsystem("probe"),
			)

			Convey("Then the overrides should apply", func() {
				So(m.namespace, ShouldEqual, "custom")
				So(m.subsystem, ShouldEqual, "probe")
			})
		})

		Convey("When passing empty overrides", func() {
			registry := prometheus.NewRegistry()
			m := NewManager(
				WithPrometheusRegistry(registry),
				WithNamespace(""),
				WithHistogramBuckets(nil),
			)

			Convey("Then defaults should be preserved", func() {
				So(m.namespace, ShouldEqual, "scout")
				So(m.histogramBuckets, ShouldResemble, prometheus.DefBuckets)
			})
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording domain events", func() {
			// These must not panic; values are asserted via the registry.
			RecordExtraction("huggingface", "completed")
			RecordExtractionDuration("huggingface", 12.5)
			RecordCacheHit()
			RecordCacheMiss()
			RecordStreamStarted()
			RecordStreamRejected()
			UpdateActiveStreams(3)
			RecordStreamEvent("result")
			RecordKeepalive()
			RecordDispatchDuration(42)
			RecordStoreWriteLatency(1.5)
			RecordStoreReadLatency(0.5)
			RecordStoreError()
			RecordSnapshotCreated()
			RecordSnapshotDuplicate()
			RecordIntegrityFailure()
			RecordRegression("major")
			RecordPRSComputation()
			RecordHTTPRequest("search", "POST", "200")
			RecordHTTPRequestDuration("search", "POST", "200", 10)
			RecordErrorByComponent("store", "write_failed")
			RecordErrorByEndpoint("search", "POST", "client_error")
			UpdateSystemMemoryUsage(1 << 20)
			UpdateSystemGoroutineCount(10)
			RecordSystemGCPauseTime(0.2)

			Convey("Then the custom registry should gather without error", func() {
				families, err := GetRegistry().Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
			})
		})
	})
}
