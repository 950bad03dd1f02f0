package allocation_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/okian/allot/internal/domain/allocation"
	"github.com/okian/allot/internal/domain/ledger"
	"github.com/okian/allot/internal/domain/matching"
	"github.com/okian/allot/internal/domain/model"
	"github.com/okian/allot/internal/domain/priority"
	. "github.com/smartystreets/goconvey/convey"
)

func seeded(seed int64) allocation.Option {
	return allocation.WithRand(rand.New(rand.NewSource(seed)))
}

func scenario() *ledger.Ledger {
	phase := model.Phase{
		ID:          "ph-1",
		EmployeeCap: 1,
		Projects:    []string{"P1", "P2"},
		Employees:   []model.Member{{Email: "e1@x.io"}, {Email: "e2@x.io"}},
	}
	employees := []model.Employee{
		{Email: "e1@x.io", FirstChoice: "P1", SecondChoice: "P2", ThirdChoice: "P3", Skills: []model.Skill{{Name: "S", Competency: model.Advanced}}},
		{Email: "e2@x.io", FirstChoice: "P1", SecondChoice: "P3", ThirdChoice: "P4"},
	}
	projects := []model.Project{
		{Title: "P1", Capacity: 1, Skills: []model.Skill{{Name: "S", Competency: model.Intermediate}}},
		{Title: "P2", Capacity: 1},
	}
	return ledger.New(phase, employees, projects)
}

// crowd builds a phase with more demand than supply so every level is exercised.
func crowd(employeeCount, projectCount, employeeCap int) *ledger.Ledger {
	phase := model.Phase{ID: "ph-c", EmployeeCap: employeeCap}
	skillNames := []string{"go", "sql", "k8s", "ui"}
	levels := []model.Competency{model.Beginner, model.Intermediate, model.Advanced}

	projects := make([]model.Project, projectCount)
	for i := range projects {
		title := fmt.Sprintf("P%d", i)
		phase.Projects = append(phase.Projects, title)
		projects[i] = model.Project{Title: title, Capacity: 1 + i%3}
		for j := 0; j < i%4; j++ {
			projects[i].Skills = append(projects[i].Skills, model.Skill{Name: skillNames[(i+j)%4], Competency: levels[(i+j)%3]})
		}
	}
	employees := make([]model.Employee, employeeCount)
	for i := range employees {
		email := fmt.Sprintf("e%d@x.io", i)
		phase.Employees = append(phase.Employees, model.Member{Email: email})
		employees[i] = model.Employee{
			Email:        email,
			FirstChoice:  fmt.Sprintf("P%d", i%projectCount),
			SecondChoice: fmt.Sprintf("P%d", (i+1)%projectCount),
			ThirdChoice:  fmt.Sprintf("P%d", (i+2)%projectCount),
		}
		for j := 0; j < i%3; j++ {
			employees[i].Skills = append(employees[i].Skills, model.Skill{Name: skillNames[(i*j+j)%4], Competency: levels[(i+j)%3]})
		}
	}
	return ledger.New(phase, employees, projects)
}

func TestAllocator_Run(t *testing.T) {
	Convey("Given two employees competing for a skilled first choice", t, func() {
		l := scenario()
		a := allocation.New(seeded(7))

		Convey("When the allocation runs", func() {
			rep, err := a.Run(context.Background(), l)

			Convey("Then the skilled employee wins P1 at level 1", func() {
				So(err, ShouldBeNil)
				So(rep.Pairings[0], ShouldResemble, allocation.Pairing{
					Email:   "e1@x.io",
					Project: "P1",
					Level:   priority.First,
					Rank:    model.FirstChoice,
					Tier:    matching.TierFullMet,
				})
			})

			Convey("And the other employee lands on the skill-free project at tier 7", func() {
				So(rep.Pairings, ShouldHaveLength, 2)
				So(rep.Pairings[1].Email, ShouldEqual, "e2@x.io")
				So(rep.Pairings[1].Project, ShouldEqual, "P2")
				So(rep.Pairings[1].Tier, ShouldEqual, matching.TierNone)
				So(rep.Pairings[1].Level, ShouldEqual, priority.Of(model.Unranked, matching.TierNone))
			})

			Convey("And every employee and project is served", func() {
				So(rep.Unassigned, ShouldBeEmpty)
				So(rep.Empty, ShouldBeEmpty)
				p1, _ := l.Project("P1")
				p2, _ := l.Project("P2")
				So(p1.Full(), ShouldBeTrue)
				So(p2.Full(), ShouldBeTrue)
			})

			Convey("And the run stops once every project is full", func() {
				So(rep.LastLevel, ShouldEqual, priority.Of(model.Unranked, matching.TierNone))
			})
		})
	})

	Convey("Given an oversubscribed phase", t, func() {
		for _, employeeCap := range []int{1, 2, 3} {
			for seed := int64(1); seed <= 5; seed++ {
				l := crowd(40, 9, employeeCap)
				rep, err := allocation.New(seeded(seed)).Run(context.Background(), l)
				So(err, ShouldBeNil)

				Convey(fmt.Sprintf("Then capacity holds with cap %d and seed %d", employeeCap, seed), func() {
					for _, p := range l.Projects() {
						So(len(p.AssignedTo.Employees), ShouldBeLessThanOrEqualTo, p.Capacity)
					}
					for _, e := range l.Members() {
						So(l.Load(e), ShouldBeLessThanOrEqualTo, employeeCap)
					}
				})

				Convey(fmt.Sprintf("Then pairings never go back to a better level (cap %d, seed %d)", employeeCap, seed), func() {
					for i := 1; i < len(rep.Pairings); i++ {
						So(rep.Pairings[i].Level, ShouldBeGreaterThanOrEqualTo, rep.Pairings[i-1].Level)
					}
				})

				Convey(fmt.Sprintf("Then every pairing survives to the end (cap %d, seed %d)", employeeCap, seed), func() {
					So(l.Bindings(), ShouldHaveLength, len(rep.Pairings))
					for _, pr := range rep.Pairings {
						e, _ := l.Employee(pr.Email)
						So(e.ProjectsIn("ph-c"), ShouldContain, pr.Project)
						So(e.RankOf(pr.Project), ShouldEqual, pr.Rank)
					}
				})
			}
		}
	})

	Convey("Given the same seed twice", t, func() {
		first, err := allocation.New(seeded(42)).Run(context.Background(), crowd(30, 7, 2))
		So(err, ShouldBeNil)
		second, err := allocation.New(seeded(42)).Run(context.Background(), crowd(30, 7, 2))
		So(err, ShouldBeNil)

		Convey("Then the runs are identical", func() {
			So(second.Pairings, ShouldResemble, first.Pairings)
		})
	})

	Convey("Given a cancelled context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		l := scenario()

		Convey("Then the run stops before the first level", func() {
			rep, err := allocation.New(seeded(1)).Run(ctx, l)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
			So(rep.Pairings, ShouldBeEmpty)
			So(l.Changeset().Empty(), ShouldBeTrue)
		})
	})

	Convey("Given a phase without members", t, func() {
		l := ledger.New(model.Phase{ID: "ph", EmployeeCap: 1, Projects: []string{"P"}}, nil, []model.Project{{Title: "P", Capacity: 2}})

		Convey("Then all levels run and the project is reported empty", func() {
			rep, err := allocation.New(seeded(1)).Run(context.Background(), l)
			So(err, ShouldBeNil)
			So(rep.LastLevel, ShouldEqual, priority.Last)
			So(rep.Empty, ShouldResemble, []string{"P"})
		})
	})
}
