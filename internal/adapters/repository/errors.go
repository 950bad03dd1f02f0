package repository

import (
	"errors"
	"strconv"

	"github.com/okian/allot/internal/domain/model"
)

// Sentinel kinds for store errors.
var (
	ErrNotFound = model.ErrNotFound
	ErrConflict = model.ErrConflict
	ErrClosed   = errors.New("store closed")
)

// ConflictError reports a uniqueness violation.
type ConflictError struct {
	Kind  string
	Field string
	Value string
}

func (e *ConflictError) Error() string {
	return e.Kind + " " + e.Field + " " + strconv.Quote(e.Value) + " already in use"
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }
