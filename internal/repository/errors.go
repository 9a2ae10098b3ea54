package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/weighttracker/weighttracker/internal/database"
)

// Common repository errors
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// DuplicateError names the unique field a write collided on
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s already exists", e.Field)
}

func (e *DuplicateError) Unwrap() error {
	return ErrDuplicate
}

// duplicateFromDriver turns a driver unique violation into *DuplicateError.
// fields are matched against the constraint text in order.
func duplicateFromDriver(err error, fields ...string) error {
	detail, ok := database.UniqueViolation(err)
	if !ok {
		return nil
	}
	detail = strings.ToLower(detail)
	for _, f := range fields {
		if strings.Contains(detail, f) {
			return &DuplicateError{Field: f}
		}
	}
	return &DuplicateError{Field: "unknown"}
}
