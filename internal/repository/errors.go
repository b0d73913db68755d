// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios. ErrNotFound means the row does not exist at all,
// ErrForbidden that it exists but belongs to someone else, and
// ErrConflict that a unique constraint (the account email) was hit.
package repository

import (
    "errors"

    "github.com/go-sql-driver/mysql"
    "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when the requested row does not exist.
// Handlers should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an insert or update violates a
// unique constraint, such as registering an email that is already
// taken. Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// isDuplicate reports whether err is a unique-key violation on either
// supported driver.
func isDuplicate(err error) bool {
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
