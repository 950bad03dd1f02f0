// Package ledger is the authoritative record of which employees are bound to
// which projects in a phase.
//
// A Ledger works on an in-memory snapshot of the phase, its members and its
// projects. Every mutation marks the touched records dirty; Changeset collects
// them so the caller can persist the whole operation in one batch. A Ledger is
// not safe for concurrent use.
package ledger

import (
	"slices"
	"sort"

	"github.com/okian/allot/internal/domain/model"
)

// Binding is one committed (employee, project) pairing.
type Binding struct {
	Email   string
	Project string
}

// Ledger holds the working set for one phase.
type Ledger struct {
	phase     model.Phase
	employees map[string]*model.Employee
	projects  map[string]*model.Project

	phaseDirty     bool
	phaseDeleted   bool
	dirtyEmployees map[string]struct{}
	dirtyProjects  map[string]struct{}

	journal []Binding
}

// New builds a ledger from snapshot records. The records are copied; the
// caller's values are never mutated.
func New(phase model.Phase, employees []model.Employee, projects []model.Project) *Ledger {
	l := &Ledger{
		phase:          phase.Clone(),
		employees:      make(map[string]*model.Employee, len(employees)),
		projects:       make(map[string]*model.Project, len(projects)),
		dirtyEmployees: make(map[string]struct{}),
		dirtyProjects:  make(map[string]struct{}),
	}
	for _, e := range employees {
		c := e.Clone()
		l.employees[c.Email] = &c
	}
	for _, p := range projects {
		c := p.Clone()
		l.projects[c.Title] = &c
	}
	return l
}

// Phase returns the working copy of the phase.
func (l *Ledger) Phase() *model.Phase { return &l.phase }

// Employee returns the working copy of an employee.
func (l *Ledger) Employee(email string) (*model.Employee, bool) {
	e, ok := l.employees[email]
	return e, ok
}

// Project returns the working copy of a project.
func (l *Ledger) Project(title string) (*model.Project, bool) {
	p, ok := l.projects[title]
	return p, ok
}

// Members returns the phase's employees in member order, skipping any that
// are absent from the snapshot.
func (l *Ledger) Members() []*model.Employee {
	out := make([]*model.Employee, 0, len(l.phase.Employees))
	for _, m := range l.phase.Employees {
		if e, ok := l.employees[m.Email]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Projects returns the phase's projects in phase order, skipping any that are
// absent from the snapshot.
func (l *Ledger) Projects() []*model.Project {
	out := make([]*model.Project, 0, len(l.phase.Projects))
	for _, t := range l.phase.Projects {
		if p, ok := l.projects[t]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Load returns how many projects the employee holds in this phase.
func (l *Ledger) Load(e *model.Employee) int {
	return len(e.ProjectsIn(l.phase.ID))
}

// AtCap reports whether the employee reached the phase's per-employee cap.
func (l *Ledger) AtCap(e *model.Employee) bool {
	return l.Load(e) >= l.phase.EmployeeCap
}

// Holds reports whether the employee is already bound to the project in this phase.
func (l *Ledger) Holds(e *model.Employee, title string) bool {
	return slices.Contains(e.ProjectsIn(l.phase.ID), title)
}

// Commit binds candidates to the project in order until the project is full.
// Candidates at the phase cap, or already on the project, are skipped. It
// returns the number of bindings made.
func (l *Ledger) Commit(p *model.Project, candidates []*model.Employee) (int, error) {
	n := 0
	for _, e := range candidates {
		if p.Full() {
			break
		}
		if l.AtCap(e) || l.Holds(e, p.Title) {
			continue
		}
		if err := l.bind(p, e); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (l *Ledger) bind(p *model.Project, e *model.Employee) error {
	if len(p.AssignedTo.Employees) >= p.Capacity {
		return &model.CapacityExceededError{Project: p.Title, Limit: p.Capacity}
	}
	if l.Load(e) >= l.phase.EmployeeCap {
		return &model.CapacityExceededError{Project: p.Title, Employee: e.Email, Limit: l.phase.EmployeeCap}
	}

	if p.AssignedTo.PhaseID == "" {
		p.AssignedTo.PhaseID = l.phase.ID
	}
	p.AssignedTo.Employees = append(p.AssignedTo.Employees, e.Email)

	h := e.Entry(l.phase.ID)
	if h == nil {
		e.History = append(e.History, model.HistoryEntry{PhaseID: l.phase.ID})
		h = &e.History[len(e.History)-1]
	}
	h.Projects = append(h.Projects, p.Title)

	l.markProject(p)
	l.markEmployee(e)
	l.journal = append(l.journal, Binding{Email: e.Email, Project: p.Title})
	return nil
}

// Bindings returns the pairings committed through this ledger, in order.
func (l *Ledger) Bindings() []Binding {
	return slices.Clone(l.journal)
}

// Recent returns the last n committed pairings.
func (l *Ledger) Recent(n int) []Binding {
	if n > len(l.journal) {
		n = len(l.journal)
	}
	return slices.Clone(l.journal[len(l.journal)-n:])
}

// Reset reverses every binding of the phase: project assignments and stats are
// cleared, employee history entries for the phase are removed and the phase
// stats are dropped. It covers every loaded record bound to the phase, not
// only current members and projects. Resetting a clean phase marks nothing
// dirty.
func (l *Ledger) Reset() {
	for _, p := range l.projects {
		switch {
		case p.AssignedTo.PhaseID == l.phase.ID:
		case p.AssignedTo.PhaseID == "" && slices.Contains(l.phase.Projects, p.Title):
			if len(p.AssignedTo.Employees) == 0 && p.Stats == nil {
				continue
			}
		default:
			continue
		}
		p.AssignedTo = model.Assignment{}
		p.Stats = nil
		l.markProject(p)
	}
	for _, e := range l.employees {
		if e.DropEntry(l.phase.ID) {
			l.markEmployee(e)
		}
	}
	if l.phase.Stats != nil {
		l.phase.Stats = nil
		l.phaseDirty = true
	}
}

// CloseProject marks the project completed and releases every assigned
// employee whose projects in the phase are now all completed. It returns the
// released emails. Projects missing from the snapshot count as open.
func (l *Ledger) CloseProject(title string) ([]string, error) {
	p, ok := l.projects[title]
	if !ok {
		return nil, model.NotFound("project", title)
	}
	if !p.Completed {
		p.Completed = true
		l.markProject(p)
	}

	var released []string
	for _, email := range p.AssignedTo.Employees {
		e, ok := l.employees[email]
		if !ok || e.CurrentPhase == "" {
			continue
		}
		if !l.allCompleted(e.ProjectsIn(p.AssignedTo.PhaseID)) {
			continue
		}
		e.CurrentPhase = ""
		l.markEmployee(e)
		released = append(released, email)
	}
	return released, nil
}

func (l *Ledger) allCompleted(titles []string) bool {
	for _, t := range titles {
		p, ok := l.projects[t]
		if !ok || !p.Completed {
			return false
		}
	}
	return true
}

// SetStats stores freshly aggregated stats on the phase.
func (l *Ledger) SetStats(s model.PhaseStats) {
	l.phase.Stats = &s
	l.phaseDirty = true
}

// SetProjectStats stores freshly aggregated stats on a project.
func (l *Ledger) SetProjectStats(p *model.Project, s model.ProjectStats) {
	p.Stats = &s
	l.markProject(p)
}

func (l *Ledger) markProject(p *model.Project) {
	l.dirtyProjects[p.Title] = struct{}{}
}

func (l *Ledger) markEmployee(e *model.Employee) {
	l.dirtyEmployees[e.Email] = struct{}{}
}

// Changeset returns copies of every record touched since the ledger was built.
func (l *Ledger) Changeset() model.Changeset {
	var cs model.Changeset
	switch {
	case l.phaseDeleted:
		cs.DeletedPhases = []string{l.phase.ID}
	case l.phaseDirty:
		cs.Phases = []model.Phase{l.phase.Clone()}
	}
	for _, email := range sortedKeys(l.dirtyEmployees) {
		cs.Employees = append(cs.Employees, l.employees[email].Clone())
	}
	for _, title := range sortedKeys(l.dirtyProjects) {
		cs.Projects = append(cs.Projects, l.projects[title].Clone())
	}
	return cs
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
