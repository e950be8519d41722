package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation     = "23505"
	sqliteConstraintUniq  = 2067
	sqliteConstraintPrimK = 1555
)

// sqliteCoder matches driver errors that expose the extended sqlite result
// code (modernc.org/sqlite).
type sqliteCoder interface {
	Code() int
}

// IsDuplicateKeyErr reports whether err is a unique-constraint violation,
// judged by error type and driver code only.
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	var liteErr sqliteCoder
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqliteConstraintUniq || code == sqliteConstraintPrimK
	}

	return false
}
