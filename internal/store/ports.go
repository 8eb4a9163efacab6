package store

import (
	"context"

	"cashbook/internal/core"
)

// Backend is the raw persistence port. Implementations return plain errors;
// the Client turns them into Failures.
type Backend interface {
	Create(ctx context.Context, t core.Transaction) (core.Transaction, error)
	Update(ctx context.Context, id core.ID, t core.Transaction) (core.Transaction, error)
	Delete(ctx context.Context, id core.ID) error
	// List returns every stored transaction, narrowed to r when the backend
	// supports server-side date filtering. A backend may ignore r.
	List(ctx context.Context, r *DateRange) ([]core.Transaction, error)
}

// DateRange bounds a list query. Either end may be unset.
type DateRange struct {
	From core.Date
	To   core.Date
}

// IsZero reports whether neither bound is set.
func (r *DateRange) IsZero() bool {
	return r == nil || (!r.From.Valid() && !r.To.Valid())
}

// Contains reports whether d lies inside the inclusive range. Invalid dates
// are outside every non-empty range.
func (r *DateRange) Contains(d core.Date) bool {
	if r.IsZero() {
		return true
	}
	if !d.Valid() {
		return false
	}
	day := core.NewDate(d.Year(), int(d.Month()), d.Day()).Instant()
	if r.From.Valid() && day.Before(r.From.Instant()) {
		return false
	}
	if r.To.Valid() && day.After(r.To.Instant()) {
		return false
	}
	return true
}

// Filter returns the transactions of ts that fall inside r.
func (r *DateRange) Filter(ts []core.Transaction) []core.Transaction {
	if r.IsZero() {
		return ts
	}
	out := make([]core.Transaction, 0, len(ts))
	for _, t := range ts {
		if r.Contains(t.Date) {
			out = append(out, t)
		}
	}
	return out
}
