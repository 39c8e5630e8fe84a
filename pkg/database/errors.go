package database

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes the repositories react to.
const (
	CodeUniqueViolation      = "23505"
	CodeForeignKeyViolation  = "23503"
	CodeCheckViolation       = "23514"
	CodeSerializationFailure = "40001"
	CodeDeadlockDetected     = "40P01"
	CodeAdminShutdown        = "57P01"
	CodeTooManyConnections   = "53300"
)

// PgErrorCode returns the SQLSTATE of err, or "" when err is not a PostgreSQL error.
func PgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	return PgErrorCode(err) == CodeUniqueViolation
}

// IsTransient reports whether err is a store failure a caller may retry with backoff:
// timeouts, cancellations, serialization/deadlock aborts and connection loss.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	switch code := PgErrorCode(err); {
	case code == CodeSerializationFailure, code == CodeDeadlockDetected,
		code == CodeAdminShutdown, code == CodeTooManyConnections:
		return true
	case strings.HasPrefix(code, "08"): // connection exception class
		return true
	case code != "":
		return false
	}
	return pgconn.SafeToRetry(err) || pgconn.Timeout(err)
}
