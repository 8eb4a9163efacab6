// Package view derives what the transaction list shows: filtering, a single
// sort key, and the month and category choices offered to the user. Every
// function is pure and leaves its input untouched.
package view

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"cashbook/internal/core"
)

// SortKey selects the single ordering applied to a view.
type SortKey string

const (
	SortNone       SortKey = ""
	SortDateAsc    SortKey = "date_asc"
	SortDateDesc   SortKey = "date_desc"
	SortAmountAsc  SortKey = "amount_asc"
	SortAmountDesc SortKey = "amount_desc"
)

// All is the wire value meaning "no filter" for type, category and month.
const All = "all"

func (k SortKey) Valid() bool {
	switch k {
	case SortNone, SortDateAsc, SortDateDesc, SortAmountAsc, SortAmountDesc:
		return true
	}
	return false
}

// Options is the active filter and sort selection. Zero values disable the
// corresponding predicate.
type Options struct {
	Type     core.TransactionType
	Category string
	Month    string // YYYY-MM
	From     core.Date
	To       core.Date
	Sort     SortKey
}

// Derive returns the transactions matching every active predicate, ordered
// by o.Sort. The result is a fresh slice; equal keys keep collection order.
func Derive(collection []core.Transaction, o Options) []core.Transaction {
	out := make([]core.Transaction, 0, len(collection))
	for _, t := range collection {
		if o.Match(t) {
			out = append(out, t)
		}
	}
	sortBy(out, o.Sort)
	return out
}

// Match reports whether t satisfies all active predicates.
func (o Options) Match(t core.Transaction) bool {
	if o.Type != "" && t.Type != o.Type {
		return false
	}
	if o.Category != "" && t.Category != o.Category {
		return false
	}
	if o.Month != "" && t.Date.MonthKey() != o.Month {
		return false
	}
	if o.From.Valid() || o.To.Valid() {
		if !t.Date.Valid() {
			return false
		}
		day := dayOf(t.Date)
		if o.From.Valid() && day.Before(dayOf(o.From)) {
			return false
		}
		if o.To.Valid() && day.After(dayOf(o.To)) {
			return false
		}
	}
	return true
}

// dayOf truncates d to midnight so a bound includes its whole day.
func dayOf(d core.Date) time.Time {
	return core.NewDate(d.Year(), int(d.Month()), d.Day()).Instant()
}

func sortBy(ts []core.Transaction, key SortKey) {
	var less func(a, b core.Transaction) bool
	switch key {
	case SortDateAsc:
		less = func(a, b core.Transaction) bool { return a.Date.Instant().Before(b.Date.Instant()) }
	case SortDateDesc:
		less = func(a, b core.Transaction) bool { return a.Date.Instant().After(b.Date.Instant()) }
	case SortAmountAsc:
		less = func(a, b core.Transaction) bool { return a.Amount.Cents < b.Amount.Cents }
	case SortAmountDesc:
		less = func(a, b core.Transaction) bool { return a.Amount.Cents > b.Amount.Cents }
	default:
		return
	}
	sort.SliceStable(ts, func(i, j int) bool { return less(ts[i], ts[j]) })
}

// Months returns the distinct YYYY-MM keys present in the collection, newest
// first. Transactions with unparseable dates contribute nothing.
func Months(collection []core.Transaction) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0)
	for _, t := range collection {
		k := t.Date.MonthKey()
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out
}

// Categories returns the distinct categories in first-encounter order.
func Categories(collection []core.Transaction) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0)
	for _, t := range collection {
		if t.Category == "" {
			continue
		}
		if _, ok := seen[t.Category]; ok {
			continue
		}
		seen[t.Category] = struct{}{}
		out = append(out, t.Category)
	}
	return out
}

var monthToken = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// ParseOptions reads type, category, month, from, to and sort from query
// values. Empty values and "all" disable a filter.
func ParseOptions(q url.Values) (Options, error) {
	var o Options

	if typ := strings.ToLower(value(q, "type")); typ != "" {
		o.Type = core.TransactionType(typ)
		if !o.Type.Valid() {
			return Options{}, fmt.Errorf("type: %w", core.ErrInvalidType)
		}
	}

	o.Category = value(q, "category")

	if m := value(q, "month"); m != "" {
		if !monthToken.MatchString(m) {
			return Options{}, fmt.Errorf("month %q: want YYYY-MM", m)
		}
		o.Month = m
	}

	for _, f := range []struct {
		name string
		dst  *core.Date
	}{{"from", &o.From}, {"to", &o.To}} {
		s := value(q, f.name)
		if s == "" {
			continue
		}
		d, err := core.ParseDate(s)
		if err != nil {
			return Options{}, fmt.Errorf("%s %q: %w", f.name, s, err)
		}
		*f.dst = d
	}

	o.Sort = SortKey(strings.ToLower(strings.TrimSpace(q.Get("sort"))))
	if !o.Sort.Valid() {
		return Options{}, fmt.Errorf("unknown sort %q", q.Get("sort"))
	}
	return o, nil
}

func value(q url.Values, key string) string {
	v := strings.TrimSpace(q.Get(key))
	if strings.EqualFold(v, All) {
		return ""
	}
	return v
}
