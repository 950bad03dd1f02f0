package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/allot/internal/adapters/repository"
	"github.com/okian/allot/internal/domain/ledger"
	"github.com/okian/allot/internal/domain/model"
	"github.com/okian/allot/pkg/logger"
)

// snapshot is the set of records an operation reads before it mutates.
type snapshot struct {
	phase     model.Phase
	employees []model.Employee
	projects  []model.Project

	missingEmployees []string
	missingProjects  []string
}

func (s snapshot) ledger() *ledger.Ledger {
	return ledger.New(s.phase, s.employees, s.projects)
}

// load reads the given employees and projects. Missing records are collected,
// not fatal; any other store error is.
func load(ctx context.Context, store repository.Store, phase model.Phase, emails, titles []string) (snapshot, error) {
	snap := snapshot{phase: phase}

	for _, email := range unique(emails) {
		e, err := store.GetEmployee(ctx, email)
		switch {
		case errors.Is(err, model.ErrNotFound):
			snap.missingEmployees = append(snap.missingEmployees, email)
		case err != nil:
			return snapshot{}, fmt.Errorf("load employee %q: %w", email, err)
		default:
			snap.employees = append(snap.employees, e)
		}
	}
	for _, title := range unique(titles) {
		p, err := store.GetProject(ctx, title)
		switch {
		case errors.Is(err, model.ErrNotFound):
			snap.missingProjects = append(snap.missingProjects, title)
		case err != nil:
			return snapshot{}, fmt.Errorf("load project %q: %w", title, err)
		default:
			snap.projects = append(snap.projects, p)
		}
	}
	return snap, nil
}

// loadPhase reads the phase and everything it references.
func loadPhase(ctx context.Context, store repository.Store, id string) (snapshot, error) {
	phase, err := store.GetPhase(ctx, id)
	if err != nil {
		return snapshot{}, err
	}
	return load(ctx, store, phase, phase.Emails(), phase.Projects)
}

// loadBound reads the phase, everything it references and every record still
// bound to it through a project assignment or an employee history entry.
func loadBound(ctx context.Context, store repository.Store, id string) (snapshot, error) {
	snap, err := loadPhase(ctx, store, id)
	if err != nil {
		return snapshot{}, err
	}
	if err := snap.widen(ctx, store); err != nil {
		return snapshot{}, err
	}
	return snap, nil
}

// widen follows bindings of the phase out of the snapshot until every bound
// record is loaded. Bound records missing from the store are ignored.
func (s *snapshot) widen(ctx context.Context, store repository.Store) error {
	seenE := make(map[string]struct{})
	seenP := make(map[string]struct{})
	for i := range s.employees {
		seenE[s.employees[i].Email] = struct{}{}
	}
	for _, email := range s.missingEmployees {
		seenE[email] = struct{}{}
	}
	for i := range s.projects {
		seenP[s.projects[i].Title] = struct{}{}
	}
	for _, title := range s.missingProjects {
		seenP[title] = struct{}{}
	}

	for {
		var emails, titles []string
		for i := range s.employees {
			for _, t := range s.employees[i].ProjectsIn(s.phase.ID) {
				if _, ok := seenP[t]; !ok {
					seenP[t] = struct{}{}
					titles = append(titles, t)
				}
			}
		}
		for i := range s.projects {
			if s.projects[i].AssignedTo.PhaseID != s.phase.ID {
				continue
			}
			for _, email := range s.projects[i].AssignedTo.Employees {
				if _, ok := seenE[email]; !ok {
					seenE[email] = struct{}{}
					emails = append(emails, email)
				}
			}
		}
		if len(emails) == 0 && len(titles) == 0 {
			return nil
		}
		more, err := load(ctx, store, s.phase, emails, titles)
		if err != nil {
			return err
		}
		s.employees = append(s.employees, more.employees...)
		s.projects = append(s.projects, more.projects...)
	}
}

// warnMissing logs records a phase references but the store no longer holds.
func (s *Service) warnMissing(ctx context.Context, op string, snap snapshot) {
	for _, email := range snap.missingEmployees {
		s.logger.Warn(ctx, "employee missing from store, skipped",
			logger.String("op", op),
			logger.String("phase", snap.phase.ID),
			logger.String("email", email),
		)
	}
	for _, title := range snap.missingProjects {
		s.logger.Warn(ctx, "project missing from store, skipped",
			logger.String("op", op),
			logger.String("phase", snap.phase.ID),
			logger.String("project", title),
		)
	}
}

func unique(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok || k == "" {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
