// Package model contains the records shared by the allocation engine and its adapters.
package model

import (
	"slices"
	"time"
)

// ChoiceRank classifies an employee's preference for one project.
type ChoiceRank int

const (
	FirstChoice ChoiceRank = iota + 1
	SecondChoice
	ThirdChoice
	Unranked
)

// ChoiceRanks lists the ranks in priority order.
var ChoiceRanks = [...]ChoiceRank{FirstChoice, SecondChoice, ThirdChoice, Unranked}

func (r ChoiceRank) String() string {
	switch r {
	case FirstChoice:
		return "first"
	case SecondChoice:
		return "second"
	case ThirdChoice:
		return "third"
	case Unranked:
		return "unranked"
	}
	return "invalid"
}

// HistoryEntry lists the projects an employee received in one phase.
type HistoryEntry struct {
	PhaseID  string   `json:"phase_id" yaml:"phase_id" msgpack:"p"`
	Projects []string `json:"projects" yaml:"projects" msgpack:"r"`
}

// Employee is a candidate, keyed by email.
type Employee struct {
	Email        string         `json:"email" yaml:"email" msgpack:"email"`
	Name         string         `json:"name" yaml:"name" msgpack:"name"`
	Skills       []Skill        `json:"skills" yaml:"skills" msgpack:"skills"`
	FirstChoice  string         `json:"first_choice" yaml:"first_choice" msgpack:"first"`
	SecondChoice string         `json:"second_choice" yaml:"second_choice" msgpack:"second"`
	ThirdChoice  string         `json:"third_choice" yaml:"third_choice" msgpack:"third"`
	CurrentPhase string         `json:"current_phase,omitempty" yaml:"current_phase,omitempty" msgpack:"phase"`
	History      []HistoryEntry `json:"history" yaml:"history,omitempty" msgpack:"history"`
}

// RankOf classifies the project title against the employee's preferences.
func (e *Employee) RankOf(title string) ChoiceRank {
	switch title {
	case e.FirstChoice:
		return FirstChoice
	case e.SecondChoice:
		return SecondChoice
	case e.ThirdChoice:
		return ThirdChoice
	}
	return Unranked
}

// HasPreferences reports whether all three choices are set and distinct.
func (e *Employee) HasPreferences() bool {
	if e.FirstChoice == "" || e.SecondChoice == "" || e.ThirdChoice == "" {
		return false
	}
	return e.FirstChoice != e.SecondChoice && e.FirstChoice != e.ThirdChoice && e.SecondChoice != e.ThirdChoice
}

// Entry returns the history entry for phaseID, or nil.
func (e *Employee) Entry(phaseID string) *HistoryEntry {
	for i := range e.History {
		if e.History[i].PhaseID == phaseID {
			return &e.History[i]
		}
	}
	return nil
}

// ProjectsIn returns the projects the employee holds in phaseID.
func (e *Employee) ProjectsIn(phaseID string) []string {
	if h := e.Entry(phaseID); h != nil {
		return h.Projects
	}
	return nil
}

// DropEntry removes the history entry for phaseID and reports whether one existed.
func (e *Employee) DropEntry(phaseID string) bool {
	n := len(e.History)
	e.History = slices.DeleteFunc(e.History, func(h HistoryEntry) bool { return h.PhaseID == phaseID })
	return len(e.History) != n
}

// Clone returns a deep copy.
func (e Employee) Clone() Employee {
	e.Skills = slices.Clone(e.Skills)
	h := make([]HistoryEntry, len(e.History))
	for i, entry := range e.History {
		h[i] = HistoryEntry{PhaseID: entry.PhaseID, Projects: slices.Clone(entry.Projects)}
	}
	e.History = h
	return e
}

// Assignment is the project side of the ledger: which employees the project
// received and in which phase.
type Assignment struct {
	PhaseID   string   `json:"phase_id,omitempty" yaml:"phase_id,omitempty" msgpack:"p"`
	Employees []string `json:"employees" yaml:"employees,omitempty" msgpack:"e"`
}

// Project is a unit of work, keyed by title.
type Project struct {
	Title        string        `json:"title" yaml:"title" msgpack:"title"`
	Organisation string        `json:"organisation,omitempty" yaml:"organisation,omitempty" msgpack:"org"`
	Skills       []Skill       `json:"skills" yaml:"skills" msgpack:"skills"`
	Capacity     int           `json:"capacity" yaml:"capacity" msgpack:"cap"`
	PhaseID      string        `json:"phase_id,omitempty" yaml:"phase_id,omitempty" msgpack:"phase"`
	AssignedTo   Assignment    `json:"assigned_to" yaml:"assigned_to,omitempty" msgpack:"assigned"`
	Completed    bool          `json:"completed" yaml:"completed,omitempty" msgpack:"done"`
	Active       bool          `json:"active" yaml:"active,omitempty" msgpack:"active"`
	Stats        *ProjectStats `json:"stats,omitempty" yaml:"stats,omitempty" msgpack:"stats"`
}

// Remaining returns how many more employees the project can take.
func (p *Project) Remaining() int {
	return p.Capacity - len(p.AssignedTo.Employees)
}

// Full reports whether the project is at capacity.
func (p *Project) Full() bool {
	return p.Remaining() <= 0
}

// Clone returns a deep copy.
func (p Project) Clone() Project {
	p.Skills = slices.Clone(p.Skills)
	p.AssignedTo.Employees = slices.Clone(p.AssignedTo.Employees)
	if p.Stats != nil {
		s := *p.Stats
		p.Stats = &s
	}
	return p
}

// Member identifies an employee taking part in a phase.
type Member struct {
	Name  string `json:"name" yaml:"name" msgpack:"n"`
	Email string `json:"email" yaml:"email" msgpack:"e"`
}

// Phase is one bounded allocation run over a chosen set of employees and projects.
type Phase struct {
	ID           string      `json:"id" yaml:"id" msgpack:"id"`
	Title        string      `json:"title" yaml:"title" msgpack:"title"`
	Organisation string      `json:"organisation,omitempty" yaml:"organisation,omitempty" msgpack:"org"`
	StartAt      time.Time   `json:"start_date" yaml:"start_date" msgpack:"start"`
	EndAt        time.Time   `json:"end_date" yaml:"end_date" msgpack:"end"`
	EmployeeCap  int         `json:"threshold" yaml:"threshold" msgpack:"cap"`
	Projects     []string    `json:"projects" yaml:"projects" msgpack:"projects"`
	Employees    []Member    `json:"employees" yaml:"employees" msgpack:"employees"`
	Active       bool        `json:"active" yaml:"active" msgpack:"active"`
	Stats        *PhaseStats `json:"stats,omitempty" yaml:"stats,omitempty" msgpack:"stats"`
}

// Emails returns the member emails in phase order.
func (p *Phase) Emails() []string {
	out := make([]string, len(p.Employees))
	for i, m := range p.Employees {
		out[i] = m.Email
	}
	return out
}

// Clone returns a deep copy.
func (p Phase) Clone() Phase {
	p.Projects = slices.Clone(p.Projects)
	p.Employees = slices.Clone(p.Employees)
	if p.Stats != nil {
		s := *p.Stats
		p.Stats = &s
	}
	return p
}
