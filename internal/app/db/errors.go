package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes the store layer cares about.
const (
	codeForeignKeyViolation   = "23503"
	codeInsufficientPrivilege = "42501"
	codeRLSViolation          = "42P17"
)

// IsForeignKeyViolation checks if the error is a foreign key constraint
// violation, e.g. a message addressed to a user id with no matching row.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeForeignKeyViolation
	}
	return false
}

// IsPermissionDenied checks if the error stems from a privilege or row-level
// security policy refusal. Policy-denied reads must stay distinguishable from
// legitimately empty results, so callers branch on this before treating an
// empty result set as success.
func IsPermissionDenied(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeInsufficientPrivilege || pgErr.Code == codeRLSViolation
	}
	return false
}
