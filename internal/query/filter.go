package query

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// DueDate is a due-date filter. A date-only value matches the whole UTC
// calendar day; a timestamp matches that exact instant.
type DueDate struct {
	At       time.Time
	DateOnly bool
}

// ParseDueDate accepts an ISO-8601 date (2006-01-02) or an RFC 3339
// timestamp.
func ParseDueDate(s string) (DueDate, error) {
	s = strings.TrimSpace(s)
	if d, err := time.Parse(time.DateOnly, s); err == nil {
		return DueDate{At: d.UTC(), DateOnly: true}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return DueDate{At: ts.UTC()}, nil
	}
	return DueDate{}, errors.Errorf("invalid dueDate %q", s)
}

// TaskFilter holds the optional task filters. Zero values mean "not
// applied".
type TaskFilter struct {
	Search   string
	Priority string
	Status   string
	Category string
	DueDate  *DueDate
	IsPublic *bool
}

// Apply conjoins the supplied filters onto base.
func (f TaskFilter) Apply(base Predicate) Predicate {
	p := base
	if s := strings.TrimSpace(f.Search); s != "" {
		pat := containsPattern(s)
		p = p.And("(name LIKE ? ESCAPE '!' OR description LIKE ? ESCAPE '!')", pat, pat)
	}
	if f.Priority != "" {
		p = p.And("priority = ?", f.Priority)
	}
	if f.Status != "" {
		p = p.And("status = ?", f.Status)
	}
	if f.Category != "" {
		p = p.And("category = ?", f.Category)
	}
	if f.IsPublic != nil {
		p = p.And("is_public = ?", *f.IsPublic)
	}
	if d := f.DueDate; d != nil {
		if d.DateOnly {
			p = p.And("due_date >= ? AND due_date < ?", d.At, d.At.AddDate(0, 0, 1))
		} else {
			p = p.And("due_date = ?", d.At)
		}
	}
	return p
}

// UserFilter holds the optional user listing filters.
type UserFilter struct {
	Search string
}

// Apply conjoins the search, over name or email, onto base.
func (f UserFilter) Apply(base Predicate) Predicate {
	s := strings.TrimSpace(f.Search)
	if s == "" {
		return base
	}
	pat := containsPattern(s)
	return base.And("(name LIKE ? ESCAPE '!' OR email LIKE ? ESCAPE '!')", pat, pat)
}
