package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/allot/internal/adapters/repository"
	"github.com/okian/allot/internal/domain/ledger"
	"github.com/okian/allot/internal/domain/model"
	"github.com/okian/allot/pkg/logger"
	"github.com/okian/allot/pkg/metrics"
)

// defaultPhaseLength applies when a phase is created without an end date.
const defaultPhaseLength = 7 * 24 * time.Hour

// PhaseInput describes a phase to create.
type PhaseInput struct {
	Title        string
	Organisation string
	StartAt      time.Time
	EndAt        time.Time
	EmployeeCap  int
	Active       bool
	Employees    []model.Member
	Projects     []string
}

// CreatePhase validates and stores a new phase, wiring the given members and
// projects to it.
func (s *Service) CreatePhase(ctx context.Context, in PhaseInput) (model.Phase, error) {
	const op = "create phase"
	in.Title = strings.TrimSpace(in.Title)
	if in.EndAt.IsZero() && !in.StartAt.IsZero() {
		in.EndAt = in.StartAt.Add(defaultPhaseLength)
	}

	var fields, reasons []string
	if in.Title == "" {
		fields = append(fields, model.FieldTitle)
		reasons = append(reasons, "title is required")
	}
	if in.StartAt.IsZero() {
		fields = append(fields, model.FieldStartDate)
		reasons = append(reasons, "start date is required")
	} else if in.EndAt.Before(in.StartAt) {
		fields = append(fields, model.FieldEndDate)
		reasons = append(reasons, "end date is before start date")
	}
	if in.EmployeeCap < 1 {
		fields = append(fields, model.FieldThreshold)
		reasons = append(reasons, "employee project cap must be at least 1")
	}
	if len(fields) > 0 {
		return model.Phase{}, invalid(op, strings.Join(reasons, "; "), fields...)
	}

	phase := model.Phase{
		ID:           uuid.NewString(),
		Title:        in.Title,
		Organisation: in.Organisation,
		StartAt:      in.StartAt,
		EndAt:        in.EndAt,
		EmployeeCap:  in.EmployeeCap,
		Active:       in.Active,
	}

	var out model.Phase
	err := s.mutate(ctx, func(store repository.Store) (*ledger.Ledger, error) {
		l, err := s.rewire(ctx, store, op, phase, in.Employees, in.Projects)
		if err != nil {
			return nil, err
		}
		out = l.Phase().Clone()
		return l, nil
	})
	if errors.Is(err, model.ErrConflict) {
		return model.Phase{}, invalid(op, "title already in use", model.FieldTitle)
	}
	if err != nil {
		return model.Phase{}, err
	}
	s.logger.Info(ctx, "phase created", logger.String("phase", out.ID), logger.String("title", out.Title))
	return out, nil
}

// rewire builds a ledger for phase with its member and project sets replaced.
// The returned ledger always marks the phase dirty.
func (s *Service) rewire(ctx context.Context, store repository.Store, op string, phase model.Phase, members []model.Member, titles []string) (*ledger.Ledger, error) {
	if err := validateMembers(op, members); err != nil {
		return nil, err
	}
	if err := validateTitles(op, titles); err != nil {
		return nil, err
	}

	emails := append(phase.Emails(), memberEmails(members)...)
	snap, err := load(ctx, store, phase, emails, append(append([]string{}, phase.Projects...), titles...))
	if err != nil {
		return nil, err
	}
	if err := snap.widen(ctx, store); err != nil {
		return nil, err
	}

	l := snap.ledger()
	if err := l.ReplaceMembers(members); err != nil {
		return nil, invalid(op, err.Error(), model.FieldEmployees)
	}
	if err := l.ReplaceProjects(titles); err != nil {
		return nil, invalid(op, err.Error(), model.FieldProjects)
	}
	return l, nil
}

func validateMembers(op string, members []model.Member) error {
	seen := make(map[string]struct{}, len(members))
	for _, m := range members {
		if strings.TrimSpace(m.Email) == "" {
			return invalid(op, "employee email is required", model.FieldEmployees)
		}
		if _, dup := seen[m.Email]; dup {
			return invalid(op, "employee "+m.Email+" listed twice", model.FieldEmployees)
		}
		seen[m.Email] = struct{}{}
	}
	return nil
}

func validateTitles(op string, titles []string) error {
	seen := make(map[string]struct{}, len(titles))
	for _, t := range titles {
		if strings.TrimSpace(t) == "" {
			return invalid(op, "project title is required", model.FieldProjects)
		}
		if _, dup := seen[t]; dup {
			return invalid(op, "project "+t+" listed twice", model.FieldProjects)
		}
		seen[t] = struct{}{}
	}
	return nil
}

func memberEmails(members []model.Member) []string {
	out := make([]string, len(members))
	for i, m := range members {
		out[i] = m.Email
	}
	return out
}

// GetPhase returns the phase with its last computed statistics.
func (s *Service) GetPhase(ctx context.Context, id string) (model.Phase, error) {
	store, err := s.backend()
	if err != nil {
		return model.Phase{}, err
	}
	return store.GetPhase(ctx, id)
}

// ListPhases returns every phase ordered by start date.
func (s *Service) ListPhases(ctx context.Context) ([]model.Phase, error) {
	store, err := s.backend()
	if err != nil {
		return nil, err
	}
	return store.ListPhases(ctx)
}

// SetPhaseEmployees replaces the phase's members.
func (s *Service) SetPhaseEmployees(ctx context.Context, id string, members []model.Member) (model.Phase, error) {
	return s.replace(ctx, id, func(ph model.Phase) ([]model.Member, []string) { return members, ph.Projects })
}

// SetPhaseProjects replaces the phase's projects.
func (s *Service) SetPhaseProjects(ctx context.Context, id string, titles []string) (model.Phase, error) {
	return s.replace(ctx, id, func(ph model.Phase) ([]model.Member, []string) { return ph.Employees, titles })
}

func (s *Service) replace(ctx context.Context, id string, next func(model.Phase) ([]model.Member, []string)) (model.Phase, error) {
	var out model.Phase
	err := s.mutate(ctx, func(store repository.Store) (*ledger.Ledger, error) {
		phase, err := store.GetPhase(ctx, id)
		if err != nil {
			return nil, err
		}
		members, titles := next(phase.Clone())
		l, err := s.rewire(ctx, store, "update phase", phase, members, titles)
		if err != nil {
			return nil, err
		}
		out = l.Phase().Clone()
		return l, nil
	})
	if err != nil {
		return model.Phase{}, err
	}
	s.logger.Info(ctx, "phase updated",
		logger.String("phase", id),
		logger.Int("employees", len(out.Employees)),
		logger.Int("projects", len(out.Projects)),
	)
	return out, nil
}

// SetActive sets the phase's active flag; its projects' visibility follows.
func (s *Service) SetActive(ctx context.Context, id string, active bool) (model.Phase, error) {
	var out model.Phase
	err := s.mutate(ctx, func(store repository.Store) (*ledger.Ledger, error) {
		snap, err := loadPhase(ctx, store, id)
		if err != nil {
			return nil, err
		}
		l := snap.ledger()
		l.SetActive(active)
		out = l.Phase().Clone()
		return l, nil
	})
	return out, err
}

// DeletePhase removes the phase and clears every reference to it.
func (s *Service) DeletePhase(ctx context.Context, id string) error {
	err := s.mutate(ctx, func(store repository.Store) (*ledger.Ledger, error) {
		snap, err := loadBound(ctx, store, id)
		if err != nil {
			return nil, err
		}
		s.warnMissing(ctx, "delete", snap)
		l := snap.ledger()
		l.Detach()
		return l, nil
	})
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "phase deleted", logger.String("phase", id))
	return nil
}

// ExpirePhases deactivates active phases whose window ended before now and
// returns how many it changed.
func (s *Service) ExpirePhases(ctx context.Context) (int, error) {
	store, err := s.backend()
	if err != nil {
		return 0, err
	}
	phases, err := store.ListPhases(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	expired := 0
	for _, ph := range phases {
		if !ph.Active || ph.EndAt.IsZero() || !ph.EndAt.Before(now) {
			continue
		}
		if _, err := s.SetActive(ctx, ph.ID, false); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				continue
			}
			return expired, err
		}
		expired++
		s.logger.Info(ctx, "phase expired", logger.String("phase", ph.ID), logger.String("title", ph.Title))
	}
	metrics.RecordPhaseExpirations(expired)
	return expired, nil
}

// GetProject returns the project with its last computed statistics.
func (s *Service) GetProject(ctx context.Context, title string) (model.Project, error) {
	store, err := s.backend()
	if err != nil {
		return model.Project{}, err
	}
	return store.GetProject(ctx, title)
}

// ListProjects returns every project ordered by title.
func (s *Service) ListProjects(ctx context.Context) ([]model.Project, error) {
	store, err := s.backend()
	if err != nil {
		return nil, err
	}
	return store.ListProjects(ctx)
}

// Import writes seed records in one batch.
func (s *Service) Import(ctx context.Context, cs model.Changeset) error {
	store, err := s.backend()
	if err != nil {
		return err
	}
	s.write.Lock()
	defer s.write.Unlock()

	if err := store.Apply(ctx, cs); err != nil {
		return err
	}
	s.logger.Info(ctx, "seed imported",
		logger.Int("phases", len(cs.Phases)),
		logger.Int("employees", len(cs.Employees)),
		logger.Int("projects", len(cs.Projects)),
	)
	return nil
}
