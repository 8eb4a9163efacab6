// Package format renders amounts, dates and labels the way the list and
// charts display them: grouped numbers with at most two decimals behind the
// user's currency label, day/month/year dates and English month names.
package format

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"cashbook/internal/core"
)

var titleCaser = cases.Title(language.English)

// DefaultLanguage picks digit grouping when no locale is configured.
var DefaultLanguage = language.English

// ShortMonths labels the twelve monthly chart buckets.
var ShortMonths = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

type Formatter struct {
	p *message.Printer
}

// New returns a formatter for tag. English grouping is used for und.
func New(tag language.Tag) *Formatter {
	if tag == language.Und {
		tag = language.English
	}
	return &Formatter{p: message.NewPrinter(tag)}
}

// Number renders m with digit grouping and up to two decimals ("4,043",
// "12.5").
func (f *Formatter) Number(m core.Money) string {
	return f.p.Sprint(number.Decimal(m.Float64(), number.MaxFractionDigits(2)))
}

// Amount prefixes the number with the currency label ("₹ 4,043").
func (f *Formatter) Amount(m core.Money, currency string) string {
	currency = strings.TrimSpace(currency)
	if currency == "" {
		return f.Number(m)
	}
	return currency + " " + f.Number(m)
}

// TypeLabel renders a transaction type for display ("Income").
func TypeLabel(t core.TransactionType) string {
	return titleCaser.String(string(t))
}

// MonthLabel turns a YYYY-MM key into "August 2025". Malformed keys are
// returned unchanged.
func MonthLabel(key string) string {
	year, month, ok := strings.Cut(key, "-")
	if !ok {
		return key
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return key
	}
	return time.Month(m).String() + " " + year
}

// Row is a transaction prepared for display.
type Row struct {
	ID       string `json:"id"`
	Date     string `json:"date"`
	Category string `json:"category"`
	Type     string `json:"type"`
	Amount   string `json:"amount"`
}

// Rows formats ts in order.
func (f *Formatter) Rows(ts []core.Transaction, currency string) []Row {
	out := make([]Row, len(ts))
	for i, t := range ts {
		out[i] = Row{
			ID:       t.ID.String(),
			Date:     t.Date.Display(),
			Category: t.Category,
			Type:     TypeLabel(t.Type),
			Amount:   f.Amount(t.Amount, currency),
		}
	}
	return out
}
