package ledger

import (
	"slices"

	"github.com/okian/allot/internal/domain/model"
)

// ReplaceMembers swaps the phase's employee set. Outgoing members lose their
// current-phase reference; incoming members gain it. Every incoming member
// must be present in the snapshot.
func (l *Ledger) ReplaceMembers(members []model.Member) error {
	for _, m := range members {
		if _, ok := l.employees[m.Email]; !ok {
			return model.NotFound("employee", m.Email)
		}
	}
	incoming := make(map[string]struct{}, len(members))
	for _, m := range members {
		incoming[m.Email] = struct{}{}
	}
	for _, e := range l.Members() {
		if _, stays := incoming[e.Email]; stays {
			continue
		}
		l.release(e)
	}
	l.phase.Employees = slices.Clone(members)
	for _, e := range l.Members() {
		e.CurrentPhase = l.phase.ID
		l.markEmployee(e)
	}
	l.phaseDirty = true
	return nil
}

// ReplaceProjects swaps the phase's project set. Outgoing projects are
// detached and hidden; incoming projects follow the phase's active flag.
func (l *Ledger) ReplaceProjects(titles []string) error {
	for _, t := range titles {
		if _, ok := l.projects[t]; !ok {
			return model.NotFound("project", t)
		}
	}
	incoming := make(map[string]struct{}, len(titles))
	for _, t := range titles {
		incoming[t] = struct{}{}
	}
	for _, p := range l.Projects() {
		if _, stays := incoming[p.Title]; stays {
			continue
		}
		l.unassign(p)
		if p.PhaseID == l.phase.ID {
			p.PhaseID = ""
		}
		p.Active = false
		l.markProject(p)
	}
	l.phase.Projects = slices.Clone(titles)
	for _, p := range l.Projects() {
		p.PhaseID = l.phase.ID
		p.Active = l.phase.Active
		l.markProject(p)
	}
	l.phaseDirty = true
	return nil
}

// SetActive sets the phase's active flag; its projects' visibility follows.
func (l *Ledger) SetActive(active bool) {
	if l.phase.Active != active {
		l.phase.Active = active
		l.phaseDirty = true
	}
	for _, p := range l.Projects() {
		if p.Active != active {
			p.Active = active
			l.markProject(p)
		}
	}
}

// Detach prepares the phase for deletion: projects lose their phase reference,
// completion, visibility and assignments; employees lose their history entry
// and current-phase reference. Every loaded record bound to the phase is
// cleared, member or not. The phase itself is marked deleted.
func (l *Ledger) Detach() {
	for _, p := range l.projects {
		inPhase := p.PhaseID == l.phase.ID || slices.Contains(l.phase.Projects, p.Title)
		if !inPhase && p.AssignedTo.PhaseID != l.phase.ID {
			continue
		}
		if p.AssignedTo.PhaseID == l.phase.ID || (inPhase && p.AssignedTo.PhaseID == "") {
			p.AssignedTo = model.Assignment{}
			p.Stats = nil
		}
		if inPhase {
			if p.PhaseID == l.phase.ID {
				p.PhaseID = ""
			}
			p.Completed = false
			p.Active = false
		}
		l.markProject(p)
	}
	for _, e := range l.employees {
		dropped := e.DropEntry(l.phase.ID)
		if e.CurrentPhase == l.phase.ID {
			e.CurrentPhase = ""
			dropped = true
		}
		if dropped {
			l.markEmployee(e)
		}
	}
	l.phaseDeleted = true
}

// release takes an outgoing member out of the phase: every project it holds
// here drops it, its history entry goes and its current-phase reference is
// cleared.
func (l *Ledger) release(e *model.Employee) {
	for _, title := range slices.Clone(e.ProjectsIn(l.phase.ID)) {
		if p, ok := l.projects[title]; ok {
			l.unbind(e, p)
		}
	}
	if e.DropEntry(l.phase.ID) {
		l.markEmployee(e)
	}
	if e.CurrentPhase == l.phase.ID {
		e.CurrentPhase = ""
		l.markEmployee(e)
	}
}

// unassign clears an outgoing project's bindings in this phase on both sides.
func (l *Ledger) unassign(p *model.Project) {
	if p.AssignedTo.PhaseID != "" && p.AssignedTo.PhaseID != l.phase.ID {
		return
	}
	for _, email := range slices.Clone(p.AssignedTo.Employees) {
		if e, ok := l.employees[email]; ok {
			l.unbind(e, p)
		}
	}
	p.AssignedTo = model.Assignment{}
	p.Stats = nil
	l.markProject(p)
}

// unbind removes one (employee, project) binding of the phase from both
// records. Empty history entries and assignments are dropped.
func (l *Ledger) unbind(e *model.Employee, p *model.Project) {
	p.AssignedTo.Employees = slices.DeleteFunc(p.AssignedTo.Employees, func(s string) bool { return s == e.Email })
	if len(p.AssignedTo.Employees) == 0 {
		p.AssignedTo = model.Assignment{}
	}
	p.Stats = nil
	l.markProject(p)

	if h := e.Entry(l.phase.ID); h != nil {
		h.Projects = slices.DeleteFunc(h.Projects, func(s string) bool { return s == p.Title })
		if len(h.Projects) == 0 {
			e.DropEntry(l.phase.ID)
		}
		l.markEmployee(e)
	}
}
