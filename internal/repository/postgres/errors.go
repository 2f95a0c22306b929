package postgres

import (
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/Kerhoff/fitrooms/internal/repository"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = pq.ErrorCode("23505")

// wrapWriteError maps unique violations to repository.ErrConflict and wraps
// everything else.
func wrapWriteError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("failed to %s: %w", op, repository.ErrConflict)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
