package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/okian/allot/internal/adapters/repository"
	"github.com/okian/allot/internal/domain/allocation"
	"github.com/okian/allot/internal/domain/ledger"
	"github.com/okian/allot/internal/domain/model"
	"github.com/okian/allot/internal/domain/stats"
	"github.com/okian/allot/pkg/logger"
	"github.com/okian/allot/pkg/metrics"
)

// AllocationResult is what one allocation run committed.
type AllocationResult struct {
	Phase      model.Phase          `json:"phase"`
	Pairings   []allocation.Pairing `json:"pairings"`
	Unassigned []string             `json:"employee_without_project"`
	Empty      []string             `json:"project_without_employee"`
}

// AllocatePhase runs the tiered-priority allocation for a phase and commits
// the result, with fresh statistics, in one batch. Precondition failures
// return a *model.ValidationError naming the offending fields; nothing is
// written then, nor when ctx is cancelled mid-run.
func (s *Service) AllocatePhase(ctx context.Context, id string) (AllocationResult, error) {
	const op = "allocate"
	start := time.Now()
	var res AllocationResult

	err := s.mutate(ctx, func(store repository.Store) (*ledger.Ledger, error) {
		snap, err := loadPhase(ctx, store, id)
		if err != nil {
			return nil, err
		}
		if err := validateAllocation(op, snap); err != nil {
			return nil, err
		}
		s.warnMissing(ctx, op, snap)

		l := snap.ledger()
		rep, err := allocation.New(
			allocation.WithRand(s.rng),
			allocation.WithEvaluator(s.evaluator()),
		).Run(ctx, l)
		if err != nil {
			return nil, err
		}
		stats.Refresh(l, s.evaluator())

		for _, p := range rep.Pairings {
			s.logger.Debug(ctx, "pairing committed",
				logger.String("phase", id),
				logger.String("email", p.Email),
				logger.String("project", p.Project),
				logger.Int("level", int(p.Level)),
				logger.Int("tier", int(p.Tier)),
				logger.String("rank", p.Rank.String()),
			)
		}
		res = AllocationResult{
			Phase:      l.Phase().Clone(),
			Pairings:   rep.Pairings,
			Unassigned: rep.Unassigned,
			Empty:      rep.Empty,
		}
		return l, nil
	})

	metrics.RecordRunDuration(float64(time.Since(start).Milliseconds()))
	if err != nil {
		outcome := runOutcome(err)
		metrics.RecordRun(outcome)
		metrics.RecordErrorByComponent("allocation", outcome)
		s.logger.Warn(ctx, "allocation failed", logger.String("phase", id), logger.String("outcome", outcome), logger.Error(err))
		return AllocationResult{}, err
	}

	metrics.RecordRun("ok")
	for _, p := range res.Pairings {
		metrics.RecordAssignment(p.Rank.String(), strconv.Itoa(int(p.Tier)))
	}
	metrics.UpdateRunOutcome(len(res.Unassigned), len(res.Empty))
	s.logger.Info(ctx, "allocation complete",
		logger.String("phase", id),
		logger.Int("pairings", len(res.Pairings)),
		logger.Int("unassigned", len(res.Unassigned)),
		logger.Int("emptyProjects", len(res.Empty)),
	)
	return res, nil
}

func runOutcome(err error) string {
	switch {
	case errors.Is(err, model.ErrValidation):
		return "invalid"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, model.ErrCapacityExceeded):
		return "invariant"
	}
	return "failed"
}

// validateAllocation checks every precondition and reports all failing fields at once.
func validateAllocation(op string, snap snapshot) error {
	var fields, reasons []string

	if snap.phase.EmployeeCap < 1 {
		fields = append(fields, model.FieldThreshold)
		reasons = append(reasons, "employee project cap must be at least 1")
	}

	var badEmployees []string
	if len(snap.phase.Employees) == 0 {
		badEmployees = append(badEmployees, "no employees in phase")
	}
	if len(snap.missingEmployees) > 0 {
		badEmployees = append(badEmployees, "unknown employees "+strings.Join(snap.missingEmployees, ","))
	}
	var noPrefs []string
	for i := range snap.employees {
		if !snap.employees[i].HasPreferences() {
			noPrefs = append(noPrefs, snap.employees[i].Email)
		}
	}
	if len(noPrefs) > 0 {
		badEmployees = append(badEmployees, "missing or repeated preferences for "+strings.Join(noPrefs, ","))
	}
	if len(badEmployees) > 0 {
		fields = append(fields, model.FieldEmployees)
		reasons = append(reasons, badEmployees...)
	}

	if len(snap.phase.Projects) == 0 || len(snap.projects) == 0 {
		fields = append(fields, model.FieldProjects)
		reasons = append(reasons, "no projects in phase")
	}

	if len(fields) == 0 {
		return nil
	}
	return invalid(op, strings.Join(reasons, "; "), fields...)
}

// ResetPhase reverses every binding of the phase. Resetting a clean phase is a no-op.
func (s *Service) ResetPhase(ctx context.Context, id string) (model.Phase, error) {
	var out model.Phase
	err := s.mutate(ctx, func(store repository.Store) (*ledger.Ledger, error) {
		snap, err := loadBound(ctx, store, id)
		if err != nil {
			return nil, err
		}
		s.warnMissing(ctx, "reset", snap)
		l := snap.ledger()
		l.Reset()
		out = l.Phase().Clone()
		return l, nil
	})
	if err != nil {
		return model.Phase{}, err
	}
	metrics.RecordReset()
	s.logger.Info(ctx, "phase reset", logger.String("phase", id))
	return out, nil
}

// CloseProject marks the project completed and releases the assignees whose
// projects in the phase are now all completed. It returns the released emails.
func (s *Service) CloseProject(ctx context.Context, title string) ([]string, error) {
	var released []string
	err := s.mutate(ctx, func(store repository.Store) (*ledger.Ledger, error) {
		p, err := store.GetProject(ctx, title)
		if err != nil {
			return nil, err
		}
		phaseID := p.AssignedTo.PhaseID
		phase := model.Phase{ID: phaseID}
		if phaseID != "" {
			if ph, err := store.GetPhase(ctx, phaseID); err == nil {
				phase = ph
			} else if !errors.Is(err, model.ErrNotFound) {
				return nil, fmt.Errorf("load phase %q: %w", phaseID, err)
			}
		}

		snap, err := load(ctx, store, phase, p.AssignedTo.Employees, nil)
		if err != nil {
			return nil, err
		}
		// Every project the assignees hold in the phase decides their release.
		titles := []string{title}
		for i := range snap.employees {
			titles = append(titles, snap.employees[i].ProjectsIn(phaseID)...)
		}
		more, err := load(ctx, store, phase, nil, titles)
		if err != nil {
			return nil, err
		}
		snap.projects = more.projects
		snap.missingProjects = more.missingProjects
		s.warnMissing(ctx, "close", snap)

		l := snap.ledger()
		released, err = l.CloseProject(title)
		if err != nil {
			return nil, err
		}
		return l, nil
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordProjectClosed(len(released))
	s.logger.Info(ctx, "project closed", logger.String("project", title), logger.Int("released", len(released)))
	return released, nil
}

// RecomputeStats re-derives and stores the phase and project statistics.
func (s *Service) RecomputeStats(ctx context.Context, id string) (model.PhaseStats, error) {
	var out model.PhaseStats
	err := s.mutate(ctx, func(store repository.Store) (*ledger.Ledger, error) {
		snap, err := loadPhase(ctx, store, id)
		if err != nil {
			return nil, err
		}
		s.warnMissing(ctx, "stats", snap)
		l := snap.ledger()
		out = stats.Refresh(l, s.evaluator())
		return l, nil
	})
	return out, err
}
