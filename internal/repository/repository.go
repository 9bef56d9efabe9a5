// Package repository holds the Postgres and Redis collaborators of the
// authorization pipeline.
package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/ruralpay/payauth/internal/models"
)

var (
	ErrNotFound             = models.ErrNotFound
	ErrDuplicateTransaction = models.ErrDuplicateTransaction
	ErrInsufficientFunds    = models.ErrInsufficientFunds
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
