package config

import (
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNewDefaults(t *testing.T) {
	Convey("Given a fresh configuration", t, func() {
		cfg := New()

		Convey("Then service defaults are populated", func() {
			So(cfg.Addr, ShouldEqual, ":9090")
			So(cfg.DataDir, ShouldEqual, "./scout-data")
			So(cfg.LogLevel, ShouldEqual, "info")
		})

		Convey("Then streaming defaults are populated", func() {
			So(cfg.MaxWorkers, ShouldEqual, 5)
			So(cfg.KeepaliveIntervalSec, ShouldEqual, 10)
			So(cfg.MaxConcurrentStreams, ShouldEqual, 20)
			So(cfg.StreamBufferSize, ShouldEqual, 256)
		})

		Convey("Then extraction defaults are populated", func() {
			So(cfg.RequestTimeoutSec, ShouldEqual, 180)
			So(cfg.CacheMaxAgeHours, ShouldEqual, 24)
			So(cfg.AgentURL, ShouldNotBeBlank)
		})

		Convey("Then the defaults validate", func() {
			So(cfg.validate(), ShouldBeNil)
		})
	})
}

func TestValidate(t *testing.T) {
	Convey("Given a valid configuration", t, func() {
		cfg := New()

		Convey("When the listen address is empty", func() {
			cfg.Addr = ""
			So(cfg.validate(), ShouldWrap, ErrInvalidConfig)
		})

		Convey("When the worker count is zero", func() {
			cfg.MaxWorkers = 0
			So(cfg.validate(), ShouldWrap, ErrInvalidConfig)
		})

		Convey("When the keepalive interval is zero", func() {
			cfg.KeepaliveIntervalSec = 0
			So(cfg.validate(), ShouldWrap, ErrInvalidConfig)
		})

		Convey("When the stream capacity is zero", func() {
			cfg.MaxConcurrentStreams = 0
			So(cfg.validate(), ShouldWrap, ErrInvalidConfig)
		})

		Convey("When the request timeout is zero", func() {
			cfg.RequestTimeoutSec = 0
			So(cfg.validate(), ShouldWrap, ErrInvalidConfig)
		})
	})
}

func TestSourceCatalog(t *testing.T) {
	Convey("Given the benchmark source catalog", t, func() {
		Convey("Then all six sources are present", func() {
			keys := SourceKeys()
			So(keys, ShouldResemble, []string{
				"huggingface", "livecodebench", "lmsys_arena",
				"mask", "vectara", "vellum",
			})
		})

		Convey("Then safety sources invert their scores", func() {
			for _, key := range []string{"mask", "vectara"} {
				s, ok := SourceByKey(key)
				So(ok, ShouldBeTrue)
				So(s.Category, ShouldEqual, "safety")
				So(s.InvertScore, ShouldBeTrue)
			}
		})

		Convey("Then non-safety sources keep their scores", func() {
			s, ok := SourceByKey("huggingface")
			So(ok, ShouldBeTrue)
			So(s.InvertScore, ShouldBeFalse)
		})

		Convey("Then goals interpolate the model name", func() {
			s, _ := SourceByKey("lmsys_arena")
			goal := s.Goal("claude-3-opus")
			So(strings.Count(goal, "claude-3-opus"), ShouldEqual, 2)
		})

		Convey("Then every source carries a version string", func() {
			for _, s := range Sources() {
				So(s.Version, ShouldNotBeBlank)
				So(s.URL, ShouldStartWith, "https://")
				So(s.Metrics, ShouldNotBeEmpty)
			}
		})
	})
}

func TestValidSources(t *testing.T) {
	Convey("Given a source selection", t, func() {
		Convey("When the selection is empty, all sources are returned", func() {
			So(ValidSources(nil), ShouldResemble, SourceKeys())
		})

		Convey("When the selection mixes known and unknown keys", func() {
			got := ValidSources([]string{"vellum", "bogus", "mask"})
			So(got, ShouldResemble, []string{"vellum", "mask"})
		})

		Convey("When nothing in the selection is known", func() {
			So(ValidSources([]string{"bogus"}), ShouldBeEmpty)
		})
	})
}
