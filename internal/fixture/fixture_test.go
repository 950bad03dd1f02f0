package fixture_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/okian/allot/internal/domain/model"
	"github.com/okian/allot/internal/fixture"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLoad(t *testing.T) {
	Convey("Given the sample fixture", t, func() {
		seed, err := fixture.Load("testdata/seed.yaml")
		So(err, ShouldBeNil)

		Convey("Then records and competencies are decoded", func() {
			So(len(seed.Employees), ShouldEqual, 3)
			So(len(seed.Projects), ShouldEqual, 3)
			So(seed.Employees[0].Skills[0], ShouldResemble, model.Skill{Name: "go", Competency: model.Advanced})
			So(seed.Projects[1].Capacity, ShouldEqual, 2)
			So(seed.Phases[0].StartDate.Equal(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)), ShouldBeTrue)
		})

		Convey("When it is converted to a changeset", func() {
			cs := seed.Changeset()

			Convey("Then the phase gets an ID and a one-week window", func() {
				So(len(cs.Phases), ShouldEqual, 1)
				ph := cs.Phases[0]
				So(ph.ID, ShouldNotBeEmpty)
				So(ph.EndAt, ShouldEqual, ph.StartAt.Add(7*24*time.Hour))
				So(ph.Employees[0], ShouldResemble, model.Member{Name: "Ada", Email: "ada@example.com"})

				id, ok := fixture.PhaseID(cs, "Spring rotation")
				So(ok, ShouldBeTrue)
				So(id, ShouldEqual, ph.ID)
			})

			Convey("And members and projects point back to it", func() {
				id := cs.Phases[0].ID
				for _, e := range cs.Employees {
					So(e.CurrentPhase, ShouldEqual, id)
				}
				for _, p := range cs.Projects {
					So(p.PhaseID, ShouldEqual, id)
					So(p.Active, ShouldBeTrue)
				}
			})

			Convey("And the seed itself is untouched", func() {
				So(seed.Employees[0].CurrentPhase, ShouldBeEmpty)
			})
		})
	})

	Convey("Given a missing file", t, func() {
		_, err := fixture.Load("testdata/nope.yaml")

		Convey("Then loading fails", func() {
			So(err, ShouldNotBeNil)
		})
	})
}

func TestParse(t *testing.T) {
	Convey("Given a fixture with an unknown key", t, func() {
		_, err := fixture.Parse(strings.NewReader("employees: []\nteams: []\n"))

		Convey("Then decoding fails", func() {
			So(err, ShouldNotBeNil)
			So(errors.Is(err, fixture.ErrInvalid), ShouldBeFalse)
		})
	})

	Convey("Given a fixture with a bad competency", t, func() {
		_, err := fixture.Parse(strings.NewReader(`
employees:
  - email: a@x.io
    skills: [{skill: go, competency: wizard}]
`))

		Convey("Then decoding fails", func() {
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given a fixture with broken references", t, func() {
		_, err := fixture.Parse(strings.NewReader(`
employees:
  - email: a@x.io
  - email: a@x.io
projects:
  - title: P1
    capacity: 1
phases:
  - title: Q1
    threshold: 0
    employees: [ghost@x.io]
    projects: [P9]
`))

		Convey("Then every problem is reported", func() {
			So(errors.Is(err, fixture.ErrInvalid), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "a@x.io listed twice")
			So(err.Error(), ShouldContainSubstring, "threshold")
			So(err.Error(), ShouldContainSubstring, "ghost@x.io")
			So(err.Error(), ShouldContainSubstring, "P9")
		})
	})

	Convey("Given an empty document", t, func() {
		seed, err := fixture.Parse(strings.NewReader(""))

		Convey("Then the seed is empty", func() {
			So(err, ShouldBeNil)
			So(seed.Changeset().Empty(), ShouldBeTrue)
		})
	})

	Convey("Given a phase with a fixed ID", t, func() {
		seed, err := fixture.Parse(strings.NewReader(`
phases:
  - id: ph-1
    title: Q1
    start_date: 2024-01-01T00:00:00Z
    end_date: 2024-01-31T00:00:00Z
    threshold: 2
`))
		So(err, ShouldBeNil)

		Convey("Then it is kept", func() {
			cs := seed.Changeset()
			So(cs.Phases[0].ID, ShouldEqual, "ph-1")
			So(cs.Phases[0].EmployeeCap, ShouldEqual, 2)
			So(cs.Phases[0].Active, ShouldBeFalse)
		})
	})
}
