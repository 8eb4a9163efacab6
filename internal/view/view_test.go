package view

import (
	"math/rand"
	"net/url"
	"reflect"
	"testing"

	"cashbook/internal/core"
)

func sample() []core.Transaction {
	return []core.Transaction{
		{ID: core.Confirmed("1"), Date: core.NewDate(2025, 8, 20), Category: "Food", Type: core.Expense, Amount: core.Money{Cents: 50000}},
		{ID: core.Confirmed("2"), Date: core.NewDate(2025, 8, 19), Category: "Salary", Type: core.Income, Amount: core.Money{Cents: 404300}},
		{ID: core.Confirmed("3"), Date: core.NewDate(2025, 7, 2), Category: "Food", Type: core.Expense, Amount: core.Money{Cents: 1200}},
		{ID: core.Confirmed("4"), Date: core.ParseDateLenient("someday"), Category: "Misc", Type: core.Expense, Amount: core.Money{Cents: 1200}},
		{ID: core.Confirmed("5"), Date: core.NewDate(2024, 8, 5), Category: "Gift", Type: core.Income, Amount: core.Money{Cents: 700}},
	}
}

func ids(ts []core.Transaction) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.ID.String()
	}
	return out
}

func TestDeriveFilters(t *testing.T) {
	from, _ := core.ParseDate("2025-08-01")
	to, _ := core.ParseDate("2025-08-19")
	cases := []struct {
		name string
		opts Options
		want []string
	}{
		{"no filters keeps collection order", Options{}, []string{"1", "2", "3", "4", "5"}},
		{"expense only", Options{Type: core.Expense}, []string{"1", "3", "4"}},
		{"category", Options{Category: "Food"}, []string{"1", "3"}},
		{"month", Options{Month: "2025-08"}, []string{"1", "2"}},
		{"month is year aware", Options{Month: "2024-08"}, []string{"5"}},
		{"from only", Options{From: from}, []string{"1", "2"}},
		{"inclusive range", Options{From: from, To: to}, []string{"2"}},
		{"to only drops invalid dates", Options{To: to}, []string{"2", "3", "5"}},
		{"combined", Options{Type: core.Income, Month: "2025-08"}, []string{"2"}},
		{"empty result", Options{Category: "Travel"}, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ids(Derive(sample(), tc.opts))
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDeriveTypeFilterScenario(t *testing.T) {
	c := sample()[:2]
	got := Derive(c, Options{Type: core.Expense})
	if len(got) != 1 || got[0].ID.String() != "1" {
		t.Fatalf("expected only id 1, got %v", ids(got))
	}
}

func TestDeriveSort(t *testing.T) {
	cases := []struct {
		key  SortKey
		want []string
	}{
		{SortDateAsc, []string{"4", "5", "3", "2", "1"}},
		{SortDateDesc, []string{"1", "2", "3", "5", "4"}},
		{SortAmountAsc, []string{"5", "3", "4", "1", "2"}},
		{SortAmountDesc, []string{"2", "1", "3", "4", "5"}},
	}
	for _, tc := range cases {
		got := ids(Derive(sample(), Options{Sort: tc.key}))
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("%s: got %v, want %v", tc.key, got, tc.want)
		}
	}
}

func TestDeriveDoesNotMutateInput(t *testing.T) {
	c := sample()
	before := ids(c)
	Derive(c, Options{Sort: SortAmountDesc})
	if !reflect.DeepEqual(ids(c), before) {
		t.Fatalf("input reordered: %v", ids(c))
	}
}

func TestDeriveProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	cats := []string{"Food", "Rent", "Salary", ""}
	types := []core.TransactionType{core.Income, core.Expense}
	sorts := []SortKey{SortNone, SortDateAsc, SortDateDesc, SortAmountAsc, SortAmountDesc}

	for round := 0; round < 200; round++ {
		n := rng.Intn(15)
		c := make([]core.Transaction, n)
		for i := range c {
			d := core.NewDate(2024+rng.Intn(2), 1+rng.Intn(12), 1+rng.Intn(28))
			if rng.Intn(8) == 0 {
				d = core.ParseDateLenient("??")
			}
			c[i] = core.Transaction{
				ID:       core.Provisional(int64(i)),
				Date:     d,
				Category: cats[rng.Intn(len(cats))],
				Type:     types[rng.Intn(2)],
				Amount:   core.Money{Cents: int64(rng.Intn(10000))},
			}
		}
		o := Options{Sort: sorts[rng.Intn(len(sorts))]}
		if rng.Intn(2) == 0 {
			o.Type = types[rng.Intn(2)]
		}
		if rng.Intn(2) == 0 {
			o.Category = cats[rng.Intn(len(cats)-1)]
		}
		if rng.Intn(3) == 0 {
			o.Month = core.NewDate(2024+rng.Intn(2), 1+rng.Intn(12), 1).MonthKey()
		}
		if rng.Intn(3) == 0 {
			o.From = core.NewDate(2024, 1+rng.Intn(12), 1)
		}
		if rng.Intn(3) == 0 {
			o.To = core.NewDate(2025, 1+rng.Intn(12), 28)
		}

		got := Derive(c, o)
		inInput := map[string]bool{}
		for _, x := range c {
			inInput[x.ID.String()] = true
		}
		for _, tr := range got {
			if !inInput[tr.ID.String()] {
				t.Fatalf("round %d: fabricated %s", round, tr.ID)
			}
			if !o.Match(tr) {
				t.Fatalf("round %d: %+v violates %+v", round, tr, o)
			}
		}
		if again := Derive(got, o); !reflect.DeepEqual(ids(again), ids(got)) {
			t.Fatalf("round %d: derive is not idempotent", round)
		}
	}
}

func TestMonthsAndCategories(t *testing.T) {
	months := Months(sample())
	if want := []string{"2025-08", "2025-07", "2024-08"}; !reflect.DeepEqual(months, want) {
		t.Fatalf("months = %v, want %v", months, want)
	}
	cats := Categories(sample())
	if want := []string{"Food", "Salary", "Misc", "Gift"}; !reflect.DeepEqual(cats, want) {
		t.Fatalf("categories = %v, want %v", cats, want)
	}
	if got := Months(nil); len(got) != 0 {
		t.Fatalf("expected no months, got %v", got)
	}
}

func TestParseOptions(t *testing.T) {
	q := url.Values{}
	q.Set("type", "Expense")
	q.Set("category", "all")
	q.Set("month", "2025-08")
	q.Set("from", "2025-08-01")
	q.Set("sort", "amount_desc")
	o, err := ParseOptions(q)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if o.Type != core.Expense || o.Category != "" || o.Month != "2025-08" || o.From.String() != "2025-08-01" || o.To.Valid() || o.Sort != SortAmountDesc {
		t.Fatalf("unexpected options %+v", o)
	}

	bad := []url.Values{
		{"type": {"transfer"}},
		{"month": {"2025-13"}},
		{"from": {"yesterday"}},
		{"sort": {"random"}},
	}
	for _, q := range bad {
		if _, err := ParseOptions(q); err == nil {
			t.Errorf("expected error for %v", q)
		}
	}
}
