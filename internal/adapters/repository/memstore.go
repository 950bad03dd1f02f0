package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/allot/internal/domain/model"
)

// MemStore is an in-memory Store. Records are copied on the way in and out.
type MemStore struct {
	mu        sync.RWMutex
	phases    map[string]model.Phase
	employees map[string]model.Employee
	projects  map[string]model.Project
	closed    bool

	reporter reporter
}

// NewMemStore constructs an empty in-memory store and starts its metrics updater.
func NewMemStore(ctx context.Context, opts ...Option) *MemStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	s := &MemStore{
		phases:    make(map[string]model.Phase),
		employees: make(map[string]model.Employee),
		projects:  make(map[string]model.Project),
	}
	s.reporter.start(ctx, o.metricsUpdateInterval, s.Count)
	return s
}

// Close stops the metrics updater. Further calls fail with ErrClosed.
func (s *MemStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.reporter.stop()
	return nil
}

func (s *MemStore) GetPhase(ctx context.Context, id string) (model.Phase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.Phase{}, ErrClosed
	}
	p, ok := s.phases[id]
	if !ok {
		return model.Phase{}, model.NotFound("phase", id)
	}
	return p.Clone(), nil
}

func (s *MemStore) ListPhases(ctx context.Context) ([]model.Phase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]model.Phase, 0, len(s.phases))
	for _, p := range s.phases {
		out = append(out, p.Clone())
	}
	sortPhases(out)
	return out, nil
}

func (s *MemStore) GetEmployee(ctx context.Context, email string) (model.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.Employee{}, ErrClosed
	}
	e, ok := s.employees[email]
	if !ok {
		return model.Employee{}, model.NotFound("employee", email)
	}
	return e.Clone(), nil
}

func (s *MemStore) GetProject(ctx context.Context, title string) (model.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.Project{}, ErrClosed
	}
	p, ok := s.projects[title]
	if !ok {
		return model.Project{}, model.NotFound("project", title)
	}
	return p.Clone(), nil
}

func (s *MemStore) ListProjects(ctx context.Context) ([]model.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]model.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

// Apply validates the whole changeset before touching any record.
func (s *MemStore) Apply(ctx context.Context, cs model.Changeset) (err error) {
	start := time.Now()
	defer func() { observeApply(start, err) }()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if err := s.checkTitles(cs); err != nil {
		return err
	}

	for _, id := range cs.DeletedPhases {
		delete(s.phases, id)
	}
	for _, p := range cs.Phases {
		s.phases[p.ID] = p.Clone()
	}
	for _, e := range cs.Employees {
		s.employees[e.Email] = e.Clone()
	}
	for _, p := range cs.Projects {
		s.projects[p.Title] = p.Clone()
	}
	return nil
}

// checkTitles reports a conflict if any written phase would share its title
// with another phase after the changeset is applied.
func (s *MemStore) checkTitles(cs model.Changeset) error {
	owner := make(map[string]string, len(s.phases)+len(cs.Phases))
	deleted := make(map[string]struct{}, len(cs.DeletedPhases))
	for _, id := range cs.DeletedPhases {
		deleted[id] = struct{}{}
	}
	written := make(map[string]struct{}, len(cs.Phases))
	for _, p := range cs.Phases {
		written[p.ID] = struct{}{}
	}
	for id, p := range s.phases {
		if _, ok := deleted[id]; ok {
			continue
		}
		if _, ok := written[id]; ok {
			continue
		}
		owner[p.Title] = id
	}
	for _, p := range cs.Phases {
		if id, ok := owner[p.Title]; ok && id != p.ID {
			return &ConflictError{Kind: "phase", Field: model.FieldTitle, Value: p.Title}
		}
		owner[p.Title] = p.ID
	}
	return nil
}

func (s *MemStore) Count(ctx context.Context) (Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Counts{}, ErrClosed
	}
	return Counts{Phases: len(s.phases), Employees: len(s.employees), Projects: len(s.projects)}, nil
}

func sortPhases(ps []model.Phase) {
	sort.Slice(ps, func(i, j int) bool {
		if !ps[i].StartAt.Equal(ps[j].StartAt) {
			return ps[i].StartAt.Before(ps[j].StartAt)
		}
		return ps[i].ID < ps[j].ID
	})
}
