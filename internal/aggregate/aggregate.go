// Package aggregate computes the numbers shown above and beside the list:
// the income/expense/balance summary, expense totals per category and
// per-month totals for the chart. Results are recomputed on every call.
package aggregate

import (
	"cashbook/internal/core"
)

// Summarize totals the whole collection regardless of any active filter.
func Summarize(c []core.Transaction) core.Summary {
	var s core.Summary
	for _, t := range c {
		switch t.Type {
		case core.Income:
			s.Income.Cents += t.Amount.Cents
		case core.Expense:
			s.Expense.Cents += t.Amount.Cents
		}
	}
	s.Balance.Cents = s.Income.Cents - s.Expense.Cents
	return s
}

// CategoryTotals sums expenses per category. Categories appear in the order
// they are first met; a category with only income never appears.
func CategoryTotals(c []core.Transaction) []core.CategoryAmount {
	index := map[string]int{}
	out := make([]core.CategoryAmount, 0)
	for _, t := range c {
		if t.Type != core.Expense {
			continue
		}
		i, ok := index[t.Category]
		if !ok {
			i = len(out)
			index[t.Category] = i
			out = append(out, core.CategoryAmount{Name: t.Category})
		}
		out[i].Amount.Cents += t.Amount.Cents
	}
	return out
}

// Mode selects how Monthly buckets transactions. The zero Mode ignores the
// year, so March 2024 and March 2025 share a bucket.
type Mode struct {
	Year int
}

// YearAware counts only transactions dated in year.
func YearAware(year int) Mode {
	return Mode{Year: year}
}

// Monthly buckets income and expense by calendar month. Transactions whose
// date cannot be parsed are skipped.
func Monthly(c []core.Transaction, mode Mode) core.MonthlyTotals {
	var m core.MonthlyTotals
	for _, t := range c {
		i := t.Date.MonthIndex()
		if i < 0 {
			continue
		}
		if mode.Year != 0 && t.Date.Year() != mode.Year {
			continue
		}
		switch t.Type {
		case core.Income:
			m.Income[i].Cents += t.Amount.Cents
		case core.Expense:
			m.Expense[i].Cents += t.Amount.Cents
		}
	}
	return m
}
