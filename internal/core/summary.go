package core

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
}

// Summary is the income/expense/balance triple over a whole collection.
type Summary struct {
	Income  Money `json:"income"`
	Expense Money `json:"expense"`
	Balance Money `json:"balance"`
}

// MonthlyTotals buckets amounts by calendar month, January at index 0.
type MonthlyTotals struct {
	Income  [12]Money `json:"income"`
	Expense [12]Money `json:"expense"`
}
