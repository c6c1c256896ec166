package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
)

// uniqueViolation maps a unique constraint failure to the given sentinel and
// leaves any other error untouched.
func uniqueViolation(err error, sentinel error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pgerrcode.UniqueViolation {
		return fmt.Errorf("%w: %s", sentinel, pqErr.Constraint)
	}
	return err
}

// foreignKeyViolation maps a foreign key failure to the given sentinel.
func foreignKeyViolation(err error, sentinel error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pgerrcode.ForeignKeyViolation {
		return fmt.Errorf("%w: %s", sentinel, pqErr.Constraint)
	}
	return err
}
