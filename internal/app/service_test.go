package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	service "github.com/okian/allot/internal/app"
	"github.com/okian/allot/internal/domain/matching"
	"github.com/okian/allot/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it is not started", func() {
			So(svc, ShouldNotBeNil)
			So(svc.GetStats(context.Background())["started"], ShouldEqual, false)
		})

		Convey("And operations refuse to run", func() {
			_, err := svc.ListPhases(context.Background())
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithStoreKind(service.StoreMemory),
			service.WithCompetencyRule(matching.RuleLastMatch),
			service.WithRandomSeed(9),
			service.WithClock(time.Now),
			service.WithLogger(logger.Nop()),
		)

		Convey("Then it should be created successfully", func() {
			So(svc, ShouldNotBeNil)
		})
	})
}

func TestService_Start(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New()
		// Ensure service is stopped after test
		defer svc.Stop()

		Convey("When starting the service", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err := svc.Start(ctx)

			Convey("Then it should start successfully", func() {
				So(err, ShouldBeNil)
			})

			Convey("And it should be marked as started", func() {
				stats := svc.GetStats(ctx)
				So(stats["started"], ShouldEqual, true)
				So(stats["store"], ShouldEqual, service.StoreMemory)
				So(stats["phases"], ShouldEqual, 0)
			})

			Convey("And starting twice is harmless", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})

			Convey("And the store answers health checks", func() {
				So(svc.Healthy(ctx), ShouldBeNil)
			})
		})
	})

	Convey("Given a service backed by SQLite", t, func() {
		path := filepath.Join(t.TempDir(), "allot.db")
		svc := service.New(service.WithStoreKind(service.StoreSQLite), service.WithSQLitePath(path))
		defer svc.Stop()

		Convey("Then it starts against the file", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			So(svc.Healthy(context.Background()), ShouldBeNil)
		})
	})

	Convey("Given an unknown store kind", t, func() {
		svc := service.New(service.WithStoreKind("etcd"))

		Convey("Then Start fails", func() {
			So(svc.Start(context.Background()), ShouldNotBeNil)
		})
	})
}

func TestService_Stop(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := service.New()
		So(svc.Start(context.Background()), ShouldBeNil)

		Convey("When it is stopped", func() {
			svc.Stop()

			Convey("Then it reports not started", func() {
				So(svc.GetStats(context.Background())["started"], ShouldEqual, false)
				So(errors.Is(svc.Healthy(context.Background()), service.ErrNotStarted), ShouldBeTrue)
			})

			Convey("And stopping again is harmless", func() {
				So(func() { svc.Stop() }, ShouldNotPanic)
			})
		})
	})
}
