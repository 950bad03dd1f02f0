// Package repository persists phases, employees and projects.
package repository

import (
	"context"

	"github.com/okian/allot/internal/domain/model"
)

// Counts reports how many records of each kind a store holds.
type Counts struct {
	Phases    int
	Employees int
	Projects  int
}

// Store provides keyed access to the allocation records. Employees are keyed
// by email, projects by title and phases by ID; phase titles are unique.
type Store interface {
	// GetPhase returns the phase or an error matching model.ErrNotFound.
	GetPhase(ctx context.Context, id string) (model.Phase, error)
	// ListPhases returns every phase ordered by start date, then ID.
	ListPhases(ctx context.Context) ([]model.Phase, error)

	// GetEmployee returns the employee or an error matching model.ErrNotFound.
	GetEmployee(ctx context.Context, email string) (model.Employee, error)
	// GetProject returns the project or an error matching model.ErrNotFound.
	GetProject(ctx context.Context, title string) (model.Project, error)
	// ListProjects returns every project ordered by title.
	ListProjects(ctx context.Context) ([]model.Project, error)

	// Apply writes the changeset all-or-nothing. A phase title already used
	// by another phase fails with an error matching model.ErrConflict.
	Apply(ctx context.Context, cs model.Changeset) error

	// Count returns the number of stored records per kind.
	Count(ctx context.Context) (Counts, error)

	Close() error
}
