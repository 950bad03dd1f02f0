package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/allot/internal/adapters/repository"
	"github.com/okian/allot/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func seedChangeset() model.Changeset {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return model.Changeset{
		Phases: []model.Phase{
			{ID: "b", Title: "Spring", StartAt: start, EndAt: start.AddDate(0, 0, 7), EmployeeCap: 1, Projects: []string{"API"}},
			{ID: "a", Title: "Winter", StartAt: start.AddDate(0, -3, 0), EndAt: start, EmployeeCap: 2},
		},
		Employees: []model.Employee{
			{Email: "e1@x.io", Skills: []model.Skill{{Name: "go", Competency: model.Advanced}}, FirstChoice: "API"},
		},
		Projects: []model.Project{
			{Title: "Web", Capacity: 1},
			{Title: "API", Capacity: 2, PhaseID: "b", Skills: []model.Skill{{Name: "go", Competency: model.Beginner}}},
		},
	}
}

func TestMemStore(t *testing.T) {
	Convey("Given a seeded memory store", t, func() {
		ctx := context.Background()
		s := repository.NewMemStore(ctx, repository.WithMetricsUpdateInterval(time.Hour))
		Reset(func() { _ = s.Close() })
		So(s.Apply(ctx, seedChangeset()), ShouldBeNil)

		Convey("When reading records back", func() {
			e, err := s.GetEmployee(ctx, "e1@x.io")
			So(err, ShouldBeNil)
			p, err := s.GetProject(ctx, "API")
			So(err, ShouldBeNil)

			Convey("Then they match what was written", func() {
				So(e.Skills, ShouldResemble, []model.Skill{{Name: "go", Competency: model.Advanced}})
				So(p.PhaseID, ShouldEqual, "b")
			})

			Convey("And mutating a copy does not leak into the store", func() {
				e.Skills[0].Name = "rust"
				again, _ := s.GetEmployee(ctx, "e1@x.io")
				So(again.Skills[0].Name, ShouldEqual, "go")
			})
		})

		Convey("When listing", func() {
			phases, err := s.ListPhases(ctx)
			So(err, ShouldBeNil)
			projects, err := s.ListProjects(ctx)
			So(err, ShouldBeNil)

			Convey("Then phases come by start date and projects by title", func() {
				So(phases[0].ID, ShouldEqual, "a")
				So(phases[1].ID, ShouldEqual, "b")
				So(projects[0].Title, ShouldEqual, "API")
				So(projects[1].Title, ShouldEqual, "Web")
			})
		})

		Convey("When a missing record is requested", func() {
			_, perr := s.GetPhase(ctx, "zzz")
			_, eerr := s.GetEmployee(ctx, "ghost@x.io")
			_, jerr := s.GetProject(ctx, "Nope")

			Convey("Then the errors are not-found kinds", func() {
				So(errors.Is(perr, repository.ErrNotFound), ShouldBeTrue)
				So(errors.Is(eerr, model.ErrNotFound), ShouldBeTrue)
				So(errors.Is(jerr, model.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When a changeset reuses another phase's title", func() {
			cs := model.Changeset{
				Phases:    []model.Phase{{ID: "c", Title: "Spring"}},
				Employees: []model.Employee{{Email: "new@x.io"}},
			}
			err := s.Apply(ctx, cs)

			Convey("Then it conflicts and nothing is written", func() {
				So(errors.Is(err, repository.ErrConflict), ShouldBeTrue)
				_, gerr := s.GetEmployee(ctx, "new@x.io")
				So(errors.Is(gerr, model.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When a phase is renamed to its own title", func() {
			p, _ := s.GetPhase(ctx, "b")
			p.Active = true
			err := s.Apply(ctx, model.Changeset{Phases: []model.Phase{p}})

			Convey("Then it is an update, not a conflict", func() {
				So(err, ShouldBeNil)
				got, _ := s.GetPhase(ctx, "b")
				So(got.Active, ShouldBeTrue)
			})
		})

		Convey("When a phase is deleted and its title reused in one changeset", func() {
			err := s.Apply(ctx, model.Changeset{
				DeletedPhases: []string{"b"},
				Phases:        []model.Phase{{ID: "d", Title: "Spring"}},
			})

			Convey("Then both writes land", func() {
				So(err, ShouldBeNil)
				_, gerr := s.GetPhase(ctx, "b")
				So(errors.Is(gerr, model.ErrNotFound), ShouldBeTrue)
				d, _ := s.GetPhase(ctx, "d")
				So(d.Title, ShouldEqual, "Spring")
			})
		})

		Convey("When counting", func() {
			c, err := s.Count(ctx)

			Convey("Then every kind is reported", func() {
				So(err, ShouldBeNil)
				So(c, ShouldResemble, repository.Counts{Phases: 2, Employees: 1, Projects: 2})
			})
		})

		Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			Convey("Then Apply refuses to write", func() {
				So(s.Apply(cctx, model.Changeset{Employees: []model.Employee{{Email: "late@x.io"}}}), ShouldNotBeNil)
			})
		})

		Convey("When the store is closed", func() {
			So(s.Close(), ShouldBeNil)

			Convey("Then calls fail", func() {
				_, err := s.GetPhase(ctx, "a")
				So(errors.Is(err, repository.ErrClosed), ShouldBeTrue)
				So(s.Close(), ShouldBeNil)
			})
		})
	})
}
