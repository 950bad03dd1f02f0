// Package allocation drives the tiered-priority matching of employees to
// projects over a ledger.
//
// Levels are served in ascending order (see package priority). For each level
// every project below capacity receives, in random order, the employees whose
// choice rank and match tier equal the level's pair and who are still under the
// phase cap. Commitments are never revisited, so the result is greedy rather
// than stable.
package allocation

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/okian/allot/internal/domain/ledger"
	"github.com/okian/allot/internal/domain/matching"
	"github.com/okian/allot/internal/domain/model"
	"github.com/okian/allot/internal/domain/priority"
)

// Rand is the randomness the allocator needs. *rand.Rand satisfies it.
type Rand interface {
	Shuffle(n int, swap func(i, j int))
}

// Pairing is a committed binding tagged with the level that produced it.
type Pairing struct {
	Email   string           `json:"email" yaml:"email"`
	Project string           `json:"project" yaml:"project"`
	Level   priority.Level   `json:"level" yaml:"level"`
	Rank    model.ChoiceRank `json:"choice_rank" yaml:"choice_rank"`
	Tier    matching.Tier    `json:"tier" yaml:"tier"`
}

// Report summarises one allocation run.
type Report struct {
	Pairings []Pairing
	// LastLevel is the last level whose pass ran.
	LastLevel priority.Level
	// Unassigned lists members without any project in the phase.
	Unassigned []string
	// Empty lists projects that received nobody.
	Empty []string
}

// Allocator runs allocation passes. It is not safe for concurrent use when
// sharing a non-thread-safe Rand.
type Allocator struct {
	evaluator matching.Evaluator
	rng       Rand
}

// New creates an Allocator. Without WithRand it shuffles from a time-seeded source.
func New(opts ...Option) *Allocator {
	a := &Allocator{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // fairness shuffling, not security
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type pair struct {
	email, title string
}

// Run allocates over the ledger's phase. ctx is checked between levels; on
// cancellation the ledger may hold partial bindings and must be discarded by
// the caller. A CapacityExceededError from the ledger aborts the run.
func (a *Allocator) Run(ctx context.Context, l *ledger.Ledger) (Report, error) {
	var rep Report
	projects := l.Projects()
	employees := l.Members()
	tiers := make(map[pair]matching.Tier, len(projects)*len(employees))

	for level, ok := priority.First, true; ok; level, ok = level.Next() {
		if err := ctx.Err(); err != nil {
			return rep, fmt.Errorf("allocation stopped before %s: %w", level, err)
		}
		if allFull(projects) {
			break
		}
		rep.LastLevel = level

		a.rng.Shuffle(len(projects), func(i, j int) { projects[i], projects[j] = projects[j], projects[i] })
		a.rng.Shuffle(len(employees), func(i, j int) { employees[i], employees[j] = employees[j], employees[i] })

		for _, p := range projects {
			if p.Full() {
				continue
			}
			pool := a.candidates(l, employees, p, level, tiers)
			if len(pool) == 0 {
				continue
			}
			a.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

			n, err := l.Commit(p, pool)
			for _, b := range l.Recent(n) {
				rep.Pairings = append(rep.Pairings, Pairing{
					Email:   b.Email,
					Project: b.Project,
					Level:   level,
					Rank:    level.Rank(),
					Tier:    level.Tier(),
				})
			}
			if err != nil {
				return rep, fmt.Errorf("commit %q at %s: %w", p.Title, level, err)
			}
		}
	}

	for _, e := range l.Members() {
		if l.Load(e) == 0 {
			rep.Unassigned = append(rep.Unassigned, e.Email)
		}
	}
	for _, p := range l.Projects() {
		if len(p.AssignedTo.Employees) == 0 {
			rep.Empty = append(rep.Empty, p.Title)
		}
	}
	return rep, nil
}

// candidates returns the employees under the phase cap whose rank and tier for
// p equal the level's pair.
func (a *Allocator) candidates(l *ledger.Ledger, employees []*model.Employee, p *model.Project, level priority.Level, tiers map[pair]matching.Tier) []*model.Employee {
	var pool []*model.Employee
	for _, e := range employees {
		if l.AtCap(e) || e.RankOf(p.Title) != level.Rank() {
			continue
		}
		k := pair{email: e.Email, title: p.Title}
		t, ok := tiers[k]
		if !ok {
			t = a.evaluator.Evaluate(p.Skills, e.Skills).Tier()
			tiers[k] = t
		}
		if t == level.Tier() {
			pool = append(pool, e)
		}
	}
	return pool
}

func allFull(projects []*model.Project) bool {
	for _, p := range projects {
		if !p.Full() {
			return false
		}
	}
	return true
}
