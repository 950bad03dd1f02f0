package config_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/allot/internal/config"
	"github.com/okian/allot/internal/domain/matching"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			convey.So(cfg.Store, convey.ShouldEqual, config.StoreMemory)
			convey.So(cfg.SQLitePath, convey.ShouldEqual, "data/allot.db")
			convey.So(cfg.ShutdownTimeout, convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.MetricsNamespace, convey.ShouldEqual, "allot")
			convey.So(cfg.MetricsSubsystem, convey.ShouldEqual, "allocation")
		})

		convey.Convey("And they validate", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
			rule, err := cfg.Rule()
			convey.So(err, convey.ShouldBeNil)
			convey.So(rule, convey.ShouldEqual, matching.RuleAll)
		})

		convey.Convey("And metric labels must be distinct key=value pairs", func() {
			cfg.MetricsLabels = []string{"env=prod", "env=dev"}
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			cfg.MetricsLabels = []string{"__name__=x"}
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("And the sqlite store needs a path", func() {
			cfg.Store = config.StoreSQLite
			cfg.SQLitePath = ""
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}
