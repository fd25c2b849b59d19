package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"

	apperrors "github.com/yourusername/complaint-tracker/internal/pkg/errors"
)

const uniqueViolationCode = "23505"

// isUniqueViolation detects Postgres unique violations (23505) from both the
// pgx and lib/pq drivers
func isUniqueViolation(err error) bool {
	// pgx/v5 driver (pgconn.PgError)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return true
	}
	// lib/pq driver
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode {
		return true
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// constraintName returns the violated constraint, when the driver reports one
func constraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Constraint
	}
	return ""
}

// translateWriteError maps driver errors onto application errors
func translateWriteError(err error, what string) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		if name := constraintName(err); name != "" {
			return fmt.Errorf("%w: %s violates %s", apperrors.ErrConflict, what, name)
		}
		return fmt.Errorf("%w: %s already exists", apperrors.ErrConflict, what)
	}
	return err
}

func translateReadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrNotFound
	}
	return err
}
