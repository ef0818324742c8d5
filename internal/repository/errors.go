// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow the service layer to tell a
// missing row from a uniqueness clash or a transient store conflict
// without inspecting driver errors itself.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup yields no rows.
var ErrNotFound = errors.New("not found")

// ErrDuplicateAccessCode is returned when an insert collides with the
// unique index on bookings.access_code.
var ErrDuplicateAccessCode = errors.New("duplicate access code")

// ErrEmailExists is returned when registering an email that is taken.
var ErrEmailExists = errors.New("email already exists")

// MySQL server error numbers the repositories react to.
const (
	mysqlErrDuplicateEntry  = 1062
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

func mysqlErrNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

func isDuplicateEntry(err error) bool {
	return mysqlErrNumber(err) == mysqlErrDuplicateEntry
}

// IsRetryable reports whether err is a store-level conflict that a fresh
// transaction may not hit again: deadlocks, lock wait timeouts and access
// code collisions that slipped past the pre-insert check.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDuplicateAccessCode) {
		return true
	}
	switch mysqlErrNumber(err) {
	case mysqlErrDeadlock, mysqlErrLockWaitTimeout:
		return true
	}
	return false
}
