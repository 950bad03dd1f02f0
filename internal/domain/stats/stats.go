// Package stats derives the counters stored on phases and projects from the
// state of a ledger. Every function is a pure read; Refresh writes the results
// back through the ledger.
package stats

import (
	"gonum.org/v1/gonum/stat"

	"github.com/okian/allot/internal/domain/ledger"
	"github.com/okian/allot/internal/domain/matching"
	"github.com/okian/allot/internal/domain/model"
)

// Phase aggregates the per-phase counters.
func Phase(l *ledger.Ledger) model.PhaseStats {
	var s model.PhaseStats
	phaseID := l.Phase().ID

	var ranks []float64
	for _, e := range l.Members() {
		titles := e.ProjectsIn(phaseID)
		if len(titles) == 0 {
			s.WithoutProject++
			continue
		}
		for _, t := range titles {
			r := e.RankOf(t)
			s.Ranks.Add(r)
			ranks = append(ranks, float64(r))
		}
	}
	if len(ranks) > 0 {
		s.MeanChoiceRank = stat.Mean(ranks, nil)
		s.PreferenceMetRatio = float64(s.Ranks.First+s.Ranks.Second+s.Ranks.Third) / float64(len(ranks))
	}

	for _, p := range l.Projects() {
		n := assignedIn(p, phaseID)
		// A zero-capacity project is already at capacity.
		switch {
		case n >= p.Capacity:
			s.ProjectsFilled++
		case n == 0:
			s.ProjectsEmpty++
		default:
			s.ProjectsNotFilled++
		}
	}
	return s
}

// Project aggregates the counters of one project over its current assignees.
// A required skill counts as fulfilled when any assignee holds it.
func Project(l *ledger.Ledger, ev matching.Evaluator, p *model.Project) model.ProjectStats {
	var s model.ProjectStats
	skilled := make(map[string]struct{})
	competent := make(map[string]struct{})

	for _, email := range p.AssignedTo.Employees {
		e, ok := l.Employee(email)
		if !ok {
			continue
		}
		s.Ranks.Add(e.RankOf(p.Title))
		res := ev.Evaluate(p.Skills, e.Skills)
		for i, sk := range res.Matching {
			skilled[sk.Name] = struct{}{}
			if res.Adequate[i] {
				competent[sk.Name] = struct{}{}
			}
		}
	}
	s.SkillsFulfilled = len(skilled)
	s.SkillsAndCompetencyFulfilled = len(competent)
	return s
}

// Refresh recomputes both passes and stores them on the ledger's records.
func Refresh(l *ledger.Ledger, ev matching.Evaluator) model.PhaseStats {
	for _, p := range l.Projects() {
		l.SetProjectStats(p, Project(l, ev, p))
	}
	s := Phase(l)
	l.SetStats(s)
	return s
}

func assignedIn(p *model.Project, phaseID string) int {
	if p.AssignedTo.PhaseID != "" && p.AssignedTo.PhaseID != phaseID {
		return 0
	}
	return len(p.AssignedTo.Employees)
}
