// Package query composes the filtered, paginated listings of tasks and
// users. Filters become a Predicate (AND-joined SQL clauses with positional
// arguments) that repositories splice into their COUNT and SELECT queries.
package query

import "strings"

// Order is the only ordering listings use: newest first, id as tie-breaker
// so paging is reproducible.
const Order = "created_at DESC, id DESC"

// Predicate is an immutable conjunction of SQL clauses.
type Predicate struct {
	clauses []string
	args    []any
}

// And returns a copy of p with clause appended.
func (p Predicate) And(clause string, args ...any) Predicate {
	out := Predicate{
		clauses: make([]string, 0, len(p.clauses)+1),
		args:    make([]any, 0, len(p.args)+len(args)),
	}
	out.clauses = append(append(out.clauses, p.clauses...), clause)
	out.args = append(append(out.args, p.args...), args...)
	return out
}

// Where renders " WHERE c1 AND c2 ..." or "" when p is empty.
func (p Predicate) Where() string {
	if len(p.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(p.clauses, " AND ")
}

// Args returns the positional arguments in clause order.
func (p Predicate) Args() []any {
	return append([]any(nil), p.args...)
}

// OwnedBy scopes a task listing to the caller's own tasks.
func OwnedBy(ownerID uint64) Predicate {
	return Predicate{}.And("user_id = ?", ownerID)
}

// PublicFeed selects public tasks of any owner, excluding excludeID when it
// is non-zero.
func PublicFeed(excludeID uint64) Predicate {
	p := Predicate{}.And("is_public = ?", true)
	if excludeID != 0 {
		p = p.And("user_id <> ?", excludeID)
	}
	return p
}

// PublicOf selects the public tasks of one owner.
func PublicOf(ownerID uint64) Predicate {
	return OwnedBy(ownerID).And("is_public = ?", true)
}

// AllUsers is the base predicate of the user listing.
func AllUsers() Predicate { return Predicate{} }

// likeEscaper escapes LIKE wildcards with '!' so user input matches
// literally.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// containsPattern returns a LIKE pattern matching s anywhere.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
