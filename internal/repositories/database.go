package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	// ErrInvalidFilter marks a query the store refused to evaluate.
	ErrInvalidFilter = errors.New("invalid filter")
)

// FilterError names the filter or sort field that could not be evaluated.
type FilterError struct {
	Field  string
	Reason string
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("filter on %s: %s", e.Field, e.Reason)
}

func (e *FilterError) Unwrap() error {
	return ErrInvalidFilter
}

// Database is satisfied by *pgxpool.Pool and by pgxmock pools.
type Database interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// isDataException reports SQLSTATE class 22: bad casts, invalid regular
// expressions and the like, all caused by the caller's input.
func isDataException(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "22")
	}
	return false
}

// mapError converts driver errors into the package sentinels.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return ErrNotFound
	case isUniqueViolation(err):
		return errors.Join(ErrDuplicate, err)
	}
	return err
}

// mapQueryError is mapError for filtered reads, where a data exception can
// only come from the caller's filter values.
func mapQueryError(err error) error {
	if isDataException(err) {
		return errors.Join(ErrInvalidFilter, err)
	}
	return mapError(err)
}
