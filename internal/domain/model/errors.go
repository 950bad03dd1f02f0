package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel error kinds. Typed errors below match them through errors.Is.
var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrConflict         = errors.New("conflict")
)

// Validation field names reported to callers.
const (
	FieldTitle     = "title"
	FieldStartDate = "startDate"
	FieldEndDate   = "endDate"
	FieldThreshold = "threshold"
	FieldEmployees = "employees"
	FieldProjects  = "projects"
)

// ValidationError reports failed preconditions. Nothing has been committed when
// it is returned.
type ValidationError struct {
	Op      string
	Message string
	Fields  []string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if len(e.Fields) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(e.Fields, ","))
		b.WriteString("]")
	}
	return b.String()
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports a missing record.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NotFound builds a NotFoundError.
func NotFound(kind, key string) error {
	return &NotFoundError{Kind: kind, Key: key}
}

// CapacityExceededError signals a broken ledger invariant. An allocation run
// that sees it is aborted.
type CapacityExceededError struct {
	Project  string
	Employee string
	Limit    int
}

func (e *CapacityExceededError) Error() string {
	if e.Employee != "" {
		return fmt.Sprintf("employee %q would exceed %d projects", e.Employee, e.Limit)
	}
	return fmt.Sprintf("project %q would exceed capacity %d", e.Project, e.Limit)
}

func (e *CapacityExceededError) Is(target error) bool { return target == ErrCapacityExceeded }
