package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sundayezeilo/pinboard/internal/errx"
)

const uniqueViolation = "23505"

// Constraint names from schema.sql that the repositories react to.
const (
	PinsUserURLUnique  = "pins_user_id_url_key"
	TagsUserNameUnique = "tags_user_id_name_key"
)

// IsUniqueViolation reports whether err is a unique violation on the named
// constraint. An empty constraint matches any unique violation.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolation &&
		(constraint == "" || pgErr.ConstraintName == constraint)
}

// MapError classifies a driver error: no rows becomes NotFound, a unique
// violation becomes Conflict, errors that already carry a kind keep it and
// everything else is Unavailable.
func MapError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return errx.E(op, errx.NotFound, err)
	case IsUniqueViolation(err, ""):
		return errx.E(op, errx.Conflict, err)
	case errx.KindOf(err) != errx.Unknown:
		return errx.Wrap(op, err)
	default:
		return errx.E(op, errx.Unavailable, err)
	}
}
