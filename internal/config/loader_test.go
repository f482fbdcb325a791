package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoad(t *testing.T) {
	Convey("Given a clean environment", t, func() {
		t.Setenv("SCOUT_CONFIG", "")

		Convey("When loading with no overrides", func() {
			cfg, err := Load(context.Background())

			Convey("Then the defaults come back", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":9090")
				So(cfg.MaxWorkers, ShouldEqual, 5)
			})
		})

		Convey("When environment variables override defaults", func() {
			t.Setenv("SCOUT_ADDR", ":8088")
			t.Setenv("SCOUT_MAX_WORKERS", "9")
			t.Setenv("SCOUT_LOG_LEVEL", "debug")

			cfg, err := Load(context.Background())

			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":8088")
			So(cfg.MaxWorkers, ShouldEqual, 9)
			So(cfg.LogLevel, ShouldEqual, "debug")
		})

		Convey("When an override is invalid", func() {
			t.Setenv("SCOUT_MAX_WORKERS", "0")

			_, err := Load(context.Background())
			So(err, ShouldWrap, ErrInvalidConfig)
		})
	})
}

func TestLoadFromFile(t *testing.T) {
	Convey("Given a configuration file", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "scout.yaml")
		body := []byte("addr: \":7070\"\ncache_max_age_hours: 6\n")
		So(os.WriteFile(path, body, 0o600), ShouldBeNil)
		t.Setenv("SCOUT_CONFIG", path)

		Convey("When loading", func() {
			cfg, err := Load(context.Background())

			Convey("Then the file values apply over defaults", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":7070")
				So(cfg.CacheMaxAgeHours, ShouldEqual, 6)
				So(cfg.MaxWorkers, ShouldEqual, 5)
			})
		})

		Convey("When the environment overrides the file", func() {
			t.Setenv("SCOUT_ADDR", ":6060")

			cfg, err := Load(context.Background())
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":6060")
		})

		Convey("When the file path does not exist", func() {
			t.Setenv("SCOUT_CONFIG", filepath.Join(dir, "missing.yaml"))

			_, err := Load(context.Background())
			So(err, ShouldWrap, ErrLoadConfig)
		})
	})
}
