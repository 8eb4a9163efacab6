package aggregate

import (
	"math/rand"
	"testing"

	"cashbook/internal/core"
)

func scenario() []core.Transaction {
	return []core.Transaction{
		{ID: core.Confirmed("1"), Date: core.NewDate(2025, 8, 20), Category: "Food", Type: core.Expense, Amount: core.Money{Cents: 50000}},
		{ID: core.Confirmed("2"), Date: core.NewDate(2025, 8, 19), Category: "Salary", Type: core.Income, Amount: core.Money{Cents: 404300}},
	}
}

func TestSummarizeScenario(t *testing.T) {
	s := Summarize(scenario())
	if s.Income.Cents != 404300 || s.Expense.Cents != 50000 || s.Balance.Cents != 354300 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if s.Balance.String() != "3543" {
		t.Fatalf("balance renders as %s", s.Balance)
	}
}

func TestSummarizeBalanceProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for round := 0; round < 100; round++ {
		c := make([]core.Transaction, rng.Intn(20))
		for i := range c {
			typ := core.Income
			if rng.Intn(2) == 0 {
				typ = core.Expense
			}
			c[i] = core.Transaction{Type: typ, Amount: core.Money{Cents: rng.Int63n(1_000_000)}}
		}
		s := Summarize(c)
		if s.Balance.Cents != s.Income.Cents-s.Expense.Cents {
			t.Fatalf("round %d: balance %d != %d - %d", round, s.Balance.Cents, s.Income.Cents, s.Expense.Cents)
		}
	}
	if s := Summarize(nil); s != (core.Summary{}) {
		t.Fatalf("empty collection must sum to zero, got %+v", s)
	}
}

func TestCategoryTotals(t *testing.T) {
	c := append(scenario(),
		core.Transaction{Category: "Rent", Type: core.Expense, Amount: core.Money{Cents: 100}},
		core.Transaction{Category: "Food", Type: core.Expense, Amount: core.Money{Cents: 25}},
		core.Transaction{Category: "Bonus", Type: core.Income, Amount: core.Money{Cents: 999}},
	)
	got := CategoryTotals(c)
	want := []core.CategoryAmount{
		{Name: "Food", Amount: core.Money{Cents: 50025}},
		{Name: "Rent", Amount: core.Money{Cents: 100}},
	}
	if len(got) != len(want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("at %d got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestMonthly(t *testing.T) {
	c := append(scenario(),
		core.Transaction{Date: core.NewDate(2024, 8, 1), Type: core.Expense, Amount: core.Money{Cents: 7}},
		core.Transaction{Date: core.NewDate(2025, 1, 31), Type: core.Income, Amount: core.Money{Cents: 3}},
		core.Transaction{Date: core.ParseDateLenient("n/a"), Type: core.Income, Amount: core.Money{Cents: 1000}},
	)

	blind := Monthly(c, Mode{})
	if blind.Expense[7].Cents != 50007 {
		t.Fatalf("year-blind August expense = %d", blind.Expense[7].Cents)
	}
	if blind.Income[7].Cents != 404300 || blind.Income[0].Cents != 3 {
		t.Fatalf("unexpected income buckets %+v", blind.Income)
	}
	var total int64
	for i := range blind.Income {
		total += blind.Income[i].Cents
	}
	if total != 404303 {
		t.Fatalf("unparseable dates must be skipped, total income %d", total)
	}

	aware := Monthly(c, YearAware(2025))
	if aware.Expense[7].Cents != 50000 {
		t.Fatalf("year-aware August expense = %d", aware.Expense[7].Cents)
	}
}
