package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/allot/internal/config"
	"github.com/okian/allot/pkg/logger"
	"github.com/okian/allot/pkg/metrics"
	"github.com/smartystreets/goconvey/convey"
)

const sampleSeed = "../internal/fixture/testdata/seed.yaml"

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestMainWiring(t *testing.T) {
	convey.Convey("Given the default configuration", t, func() {
		ctx := context.Background()
		cfg := config.New(ctx)

		convey.Convey("When the service is built and started", func() {
			svc, err := newService(cfg, logger.Nop())
			convey.So(err, convey.ShouldBeNil)
			convey.So(svc.Start(ctx), convey.ShouldBeNil)
			defer svc.Stop()

			convey.Convey("Then the seed imports into the empty store", func() {
				convey.So(importSeed(ctx, svc, sampleSeed), convey.ShouldBeNil)
				counts, err := svc.Count(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(counts.Phases, convey.ShouldEqual, 1)
				convey.So(counts.Employees, convey.ShouldEqual, 3)
				convey.So(counts.Projects, convey.ShouldEqual, 3)

				convey.Convey("And a second import is skipped", func() {
					convey.So(importSeed(ctx, svc, sampleSeed), convey.ShouldBeNil)
					counts, err := svc.Count(ctx)
					convey.So(err, convey.ShouldBeNil)
					convey.So(counts.Phases, convey.ShouldEqual, 1)
				})
			})

			convey.Convey("And a missing seed file fails", func() {
				convey.So(importSeed(ctx, svc, "testdata/missing.yaml"), convey.ShouldNotBeNil)
			})

			convey.Convey("And no seed file is a no-op", func() {
				convey.So(importSeed(ctx, svc, ""), convey.ShouldBeNil)
			})

			convey.Convey("And the handler serves the API and the docs", func() {
				h := newHandler(cfg, svc, logger.Nop())
				for _, path := range []string{"/healthz", "/phases", "/projects", "/openapi.yaml", "/api-docs", "/metrics"} {
					w := httptest.NewRecorder()
					h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
					convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				}
			})
		})

		convey.Convey("When the competency rule is unknown", func() {
			cfg.CompetencyRule = "most"
			_, err := newService(cfg, logger.Nop())

			convey.Convey("Then the service is not built", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestInitMetrics(t *testing.T) {
	convey.Convey("Given configured metric names", t, func() {
		cfg := config.New(context.Background())
		cfg.MetricsNamespace = "team"
		cfg.MetricsLabels = []string{"env=test"}
		defer func() { _ = metrics.Init() }()

		convey.Convey("When metrics are initialised", func() {
			convey.So(initMetrics(cfg), convey.ShouldBeNil)
			metrics.RecordReset()

			convey.Convey("Then /metrics serves them under the configured namespace", func() {
				svc, err := newService(cfg, logger.Nop())
				convey.So(err, convey.ShouldBeNil)
				w := httptest.NewRecorder()
				newHandler(cfg, svc, logger.Nop()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				body := w.Body.String()
				convey.So(strings.Contains(body, "team_allocation_resets_total"), convey.ShouldBeTrue)
				convey.So(strings.Contains(body, `env="test"`), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a constant label clashes with a metric label", func() {
			cfg.MetricsLabels = []string{"outcome=x"}

			convey.Convey("Then start-up fails", func() {
				convey.So(initMetrics(cfg), convey.ShouldNotBeNil)
			})
		})
	})
}
