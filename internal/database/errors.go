package database

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// ErrStaleWrite is returned by guarded updates that matched no row because a concurrent
// writer changed it first.
var ErrStaleWrite = errors.New("stale write")

// IsConflict reports whether err is a transient concurrency failure that is safe to retry:
// a unique violation, a serialization failure, a deadlock or a busy database.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrStaleWrite) {
		return true
	}

	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		switch pgErr.Field('C') {
		case "23505", "40001", "40P01":
			return true
		}
		return false
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1062, 1205, 1213:
			return true
		}
		return false
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		if liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked {
			return true
		}
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	return false
}

// IsUniqueViolation reports whether err is a unique constraint failure.
func IsUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// SupportsRowLocks reports whether SELECT ... FOR UPDATE is available. SQLite serialises
// writers at the database level instead.
func SupportsRowLocks(db bun.IDB) bool {
	return db.Dialect().Name() != dialect.SQLite
}
