package postgres

import (
	"errors"

	"github.com/jackc/pgconn"
)

const (
	pgUniqueViolation      = "23505"
	pgCheckViolation       = "23514"
	pgRaiseException       = "P0001"
	pgSerializationFailure = "40001"
)

func isUniqueViolation(err error) bool { return pgCode(err) == pgUniqueViolation }

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// pgMessage returns the server message for errors raised by our procedures.
func pgMessage(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Message
	}
	return err.Error()
}
