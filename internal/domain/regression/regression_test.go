package regression

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestCategoryOf(t *testing.T) {
	Convey("Given benchmark ids", t, func() {
		So(CategoryOf("mmlu"), ShouldEqual, "reasoning")
		So(CategoryOf("HumanEval"), ShouldEqual, "coding")
		So(CategoryOf("hallucination_rate"), ShouldEqual, "safety")
		So(CategoryOf("input_price"), ShouldEqual, "economics")
		So(CategoryOf("something_new"), ShouldEqual, "general")
	})
}

func TestThresholdsFor(t *testing.T) {
	Convey("Given the default thresholds", t, func() {
		th := DefaultThresholds()

		Convey("Then categories resolve their overrides", func() {
			minor, major := th.For("coding")
			So(minor, ShouldEqual, 7.0)
			So(major, ShouldEqual, 15.0)

			minor, major = th.For("safety")
			So(minor, ShouldEqual, 2.0)
			So(major, ShouldEqual, 5.0)
		})

		Convey("Then unknown categories fall back to defaults", func() {
			minor, major := th.For("general")
			So(minor, ShouldEqual, 5.0)
			So(major, ShouldEqual, 10.0)
		})

		Convey("Then lookup is case-insensitive", func() {
			minor, _ := th.For("Reasoning")
			So(minor, ShouldEqual, 3.0)
		})
	})
}

func TestDetectSeverityBoundaries(t *testing.T) {
	Convey("Given a coding benchmark with thresholds 7/15", t, func() {
		th := DefaultThresholds()
		prev := map[string]float64{"humaneval": 80}

		detect := func(curr float64) Event {
			r := Detect("openai/gpt-4o", map[string]float64{"humaneval": curr}, prev, "snap_b", "snap_a", th)
			So(r.Events, ShouldHaveLength, 1)
			return r.Events[0]
		}

		Convey("When the score drops 15 percent, it is major", func() {
			e := detect(68) // -15%
			So(e.Severity, ShouldEqual, Major)
			So(e.IsRegression(), ShouldBeTrue)
			So(e.Explanation(), ShouldContainSubstring, "MAJOR regression")
		})

		Convey("When the score drops 12.5 percent, it is minor", func() {
			e := detect(70) // -12.5%
			So(e.Severity, ShouldEqual, Minor)
			So(e.Explanation(), ShouldContainSubstring, "Minor regression")
		})

		Convey("When the score drops 5 percent, it is none", func() {
			e := detect(76) // -5%
			So(e.Severity, ShouldEqual, None)
			So(e.IsRegression(), ShouldBeFalse)
			So(e.Explanation(), ShouldContainSubstring, "stable")
		})

		Convey("When the score improves, it is never a regression", func() {
			e := detect(95)
			So(e.Severity, ShouldEqual, None)
			So(e.Explanation(), ShouldContainSubstring, "improved")
		})
	})
}

func TestDetectReport(t *testing.T) {
	Convey("Given mixed score movements", t, func() {
		th := DefaultThresholds()
		current := map[string]float64{
			"mmlu":               70, // -12.5% reasoning -> major
			"humaneval":          74, // -7.5% coding -> minor
			"hallucination_rate": 90, // +2.3%, none
			"gsm8k":              85, // only in current
		}
		previous := map[string]float64{
			"mmlu":               80,
			"humaneval":          80,
			"hallucination_rate": 88,
			"truthfulqa":         60, // only in previous
		}

		r := Detect("anthropic/claude-3-opus", current, previous, "snap_curr", "snap_prev", th)

		Convey("Then only common benchmarks are analyzed", func() {
			So(r.BenchmarksAnalyzed, ShouldEqual, 3)
			So(r.Events, ShouldHaveLength, 3)
		})

		Convey("Then counts and flags line up", func() {
			So(r.MajorRegressions, ShouldEqual, 1)
			So(r.MinorRegressions, ShouldEqual, 1)
			So(r.RegressionsFound, ShouldEqual, 2)
			So(r.HasMajor(), ShouldBeTrue)
		})

		Convey("Then every event carries the snapshot audit trail", func() {
			for _, e := range r.Events {
				So(e.CurrentSnapshotID, ShouldEqual, "snap_curr")
				So(e.PreviousSnapshotID, ShouldEqual, "snap_prev")
				So(e.DetectedAt, ShouldNotBeBlank)
			}
		})
	})

	Convey("Given a previous score of zero", t, func() {
		r := Detect("m", map[string]float64{"mmlu": 50}, map[string]float64{"mmlu": 0}, "c", "p", DefaultThresholds())

		Convey("Then the benchmark is skipped, not divided by", func() {
			So(r.Events, ShouldBeEmpty)
			So(r.BenchmarksAnalyzed, ShouldEqual, 1)
			So(r.RegressionsFound, ShouldEqual, 0)
		})
	})
}
