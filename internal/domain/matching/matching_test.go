package matching_test

import (
	"testing"

	"github.com/okian/allot/internal/domain/matching"
	"github.com/okian/allot/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func skills(pairs ...any) []model.Skill {
	out := make([]model.Skill, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, model.Skill{Name: pairs[i].(string), Competency: pairs[i+1].(model.Competency)})
	}
	return out
}

func TestEvaluator_Evaluate(t *testing.T) {
	Convey("Given a project requiring A:Intermediate and B:Beginner", t, func() {
		required := skills("A", model.Intermediate, "B", model.Beginner)
		ev := matching.NewEvaluator(matching.RuleAll)

		Convey("When the candidate holds A:Advanced and B:Beginner", func() {
			res := ev.Evaluate(required, skills("A", model.Advanced, "B", model.Beginner))

			Convey("Then both skills match with the candidate's own levels", func() {
				So(res.Matching, ShouldResemble, skills("A", model.Advanced, "B", model.Beginner))
				So(res.Coverage(), ShouldEqual, 1.0)
				So(res.CompetencyMet, ShouldBeTrue)
				So(res.Tier(), ShouldEqual, matching.TierFullMet)
			})
		})

		Convey("When the candidate holds only A:Beginner", func() {
			res := ev.Evaluate(required, skills("A", model.Beginner))

			Convey("Then coverage is exactly half and competency is not met", func() {
				So(res.Matching, ShouldResemble, skills("A", model.Beginner))
				So(res.Coverage(), ShouldEqual, 0.5)
				So(res.CompetencyMet, ShouldBeFalse)
				So(res.Tier(), ShouldEqual, matching.TierHalfUnmet)
			})
		})

		Convey("When the candidate holds unrelated skills", func() {
			res := ev.Evaluate(required, skills("C", model.Advanced))

			Convey("Then nothing matches", func() {
				So(res.Matching, ShouldBeEmpty)
				So(res.Tier(), ShouldEqual, matching.TierNone)
			})
		})

		Convey("When the last matching skill is adequate but an earlier one is not", func() {
			held := skills("A", model.Beginner, "B", model.Advanced)

			Convey("Then the default rule reports competency not met", func() {
				So(ev.Evaluate(required, held).CompetencyMet, ShouldBeFalse)
				So(ev.Evaluate(required, held).Tier(), ShouldEqual, matching.TierFullUnmet)
			})

			Convey("And the legacy rule reports competency met", func() {
				legacy := matching.NewEvaluator(matching.RuleLastMatch)
				So(legacy.Evaluate(required, held).CompetencyMet, ShouldBeTrue)
				So(legacy.Evaluate(required, held).Tier(), ShouldEqual, matching.TierFullMet)
			})
		})
	})

	Convey("Given a project without required skills", t, func() {
		ev := matching.Evaluator{}

		Convey("Then every candidate classifies as tier 7", func() {
			So(ev.Evaluate(nil, skills("A", model.Advanced)).Tier(), ShouldEqual, matching.TierNone)
			So(ev.Evaluate(nil, nil).Tier(), ShouldEqual, matching.TierNone)
			So(ev.Evaluate(nil, nil).Coverage(), ShouldEqual, 0)
		})
	})
}

func TestClassify(t *testing.T) {
	Convey("Given skill coverage boundaries", t, func() {
		cases := []struct {
			required, matching int
			met                bool
			want               matching.Tier
		}{
			{4, 4, true, matching.TierFullMet},
			{4, 4, false, matching.TierFullUnmet},
			{4, 2, true, matching.TierHalfMet},
			{4, 3, false, matching.TierHalfUnmet},
			{3, 1, true, matching.TierPartialMet},
			{5, 2, false, matching.TierPartialUnmet},
			{3, 0, true, matching.TierNone},
			{0, 0, true, matching.TierNone},
		}

		Convey("Then each case lands on the expected tier", func() {
			for _, c := range cases {
				So(matching.Classify(c.required, c.matching, c.met), ShouldEqual, c.want)
			}
		})
	})

	Convey("Given config rule names", t, func() {
		Convey("Then known names parse and unknown ones fail", func() {
			r, err := matching.ParseRule("last")
			So(err, ShouldBeNil)
			So(r, ShouldEqual, matching.RuleLastMatch)
			_, err = matching.ParseRule("any")
			So(err, ShouldNotBeNil)
		})
	})
}
