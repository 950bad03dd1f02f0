package stats_test

import (
	"context"
	"math/rand"
	"testing"

	"github.com/okian/allot/internal/domain/allocation"
	"github.com/okian/allot/internal/domain/ledger"
	"github.com/okian/allot/internal/domain/matching"
	"github.com/okian/allot/internal/domain/model"
	"github.com/okian/allot/internal/domain/stats"
	. "github.com/smartystreets/goconvey/convey"
)

func sample() *ledger.Ledger {
	phase := model.Phase{
		ID:          "ph-1",
		EmployeeCap: 2,
		Projects:    []string{"API", "Web", "Ops"},
		Employees:   []model.Member{{Email: "a@x.io"}, {Email: "b@x.io"}, {Email: "c@x.io"}},
	}
	employees := []model.Employee{
		{Email: "a@x.io", FirstChoice: "API", SecondChoice: "Web", ThirdChoice: "Ops",
			Skills: []model.Skill{{Name: "go", Competency: model.Advanced}, {Name: "sql", Competency: model.Beginner}}},
		{Email: "b@x.io", FirstChoice: "Web", SecondChoice: "Ops", ThirdChoice: "X",
			Skills: []model.Skill{{Name: "sql", Competency: model.Advanced}}},
		{Email: "c@x.io", FirstChoice: "X", SecondChoice: "Y", ThirdChoice: "Z"},
	}
	projects := []model.Project{
		{Title: "API", Capacity: 2, Skills: []model.Skill{
			{Name: "go", Competency: model.Intermediate},
			{Name: "sql", Competency: model.Intermediate},
			{Name: "k8s", Competency: model.Beginner},
		}},
		{Title: "Web", Capacity: 2},
		{Title: "Ops", Capacity: 1},
	}
	l := ledger.New(phase, employees, projects)
	api, _ := l.Project("API")
	web, _ := l.Project("Web")
	a, _ := l.Employee("a@x.io")
	b, _ := l.Employee("b@x.io")
	_, _ = l.Commit(api, []*model.Employee{a, b})
	_, _ = l.Commit(web, []*model.Employee{a})
	return l
}

func TestPhase(t *testing.T) {
	Convey("Given a partially allocated phase", t, func() {
		l := sample()

		Convey("When the phase is aggregated", func() {
			s := stats.Phase(l)

			Convey("Then each pairing is tallied by the employee's rank", func() {
				So(s.Ranks, ShouldResemble, model.RankTally{First: 1, Second: 1, Unranked: 1})
				So(s.Ranks.Total(), ShouldEqual, len(l.Bindings()))
			})

			Convey("And members with no project are counted", func() {
				So(s.WithoutProject, ShouldEqual, 1)
			})

			Convey("And projects are classified by fill", func() {
				So(s.ProjectsFilled, ShouldEqual, 1)
				So(s.ProjectsNotFilled, ShouldEqual, 1)
				So(s.ProjectsEmpty, ShouldEqual, 1)
			})

			Convey("And the derived ratios follow the tally", func() {
				So(s.MeanChoiceRank, ShouldAlmostEqual, (1.0+2.0+4.0)/3.0)
				So(s.PreferenceMetRatio, ShouldAlmostEqual, 2.0/3.0)
			})

			Convey("And aggregating again yields the same counters", func() {
				So(stats.Phase(l), ShouldResemble, s)
			})
		})
	})

	Convey("Given a phase holding a zero-capacity project", t, func() {
		phase := model.Phase{ID: "ph", Projects: []string{"Hold", "Open"}}
		projects := []model.Project{
			{Title: "Hold", Capacity: 0},
			{Title: "Open", Capacity: 1},
		}
		l := ledger.New(phase, nil, projects)

		Convey("Then it counts as filled rather than empty", func() {
			s := stats.Phase(l)
			So(s.ProjectsFilled, ShouldEqual, 1)
			So(s.ProjectsEmpty, ShouldEqual, 1)
			So(s.ProjectsNotFilled, ShouldEqual, 0)
		})
	})

	Convey("Given an empty phase", t, func() {
		l := ledger.New(model.Phase{ID: "ph"}, nil, nil)

		Convey("Then every counter is zero", func() {
			So(stats.Phase(l), ShouldResemble, model.PhaseStats{})
		})
	})
}

func TestProject(t *testing.T) {
	Convey("Given a project with two assignees", t, func() {
		l := sample()
		api, _ := l.Project("API")

		Convey("When the project is aggregated", func() {
			s := stats.Project(l, matching.NewEvaluator(matching.RuleAll), api)

			Convey("Then skills are unioned across assignees", func() {
				So(s.SkillsFulfilled, ShouldEqual, 2)
				So(s.SkillsAndCompetencyFulfilled, ShouldEqual, 2)
				So(s.Ranks, ShouldResemble, model.RankTally{First: 1, Unranked: 1})
			})
		})
	})
}

func TestRefresh(t *testing.T) {
	Convey("Given an allocation run", t, func() {
		l := sample()
		l.Reset()
		rep, err := allocation.New(allocation.WithRand(rand.New(rand.NewSource(3)))).Run(context.Background(), l)
		So(err, ShouldBeNil)

		Convey("When stats are refreshed", func() {
			s := stats.Refresh(l, matching.Evaluator{})

			Convey("Then the phase and every project carry stats", func() {
				So(l.Phase().Stats, ShouldNotBeNil)
				So(*l.Phase().Stats, ShouldResemble, s)
				for _, p := range l.Projects() {
					So(p.Stats, ShouldNotBeNil)
				}
			})

			Convey("And the tally equals the number of pairings", func() {
				So(s.Ranks.Total(), ShouldEqual, len(rep.Pairings))
				without := 0
				for _, e := range l.Members() {
					if len(e.ProjectsIn("ph-1")) == 0 {
						without++
					}
				}
				So(s.WithoutProject, ShouldEqual, without)
			})
		})
	})
}
