package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

type (
	// TransactionType is the closed set of transaction kinds. The sign of an
	// amount is implied by the type, never stored in the value.
	TransactionType string

	Transaction struct {
		ID       ID
		Date     Date
		Category string
		Type     TransactionType
		Amount   Money
	}

	// Draft holds the raw field values entered by the user before they are
	// turned into a Transaction.
	Draft struct {
		Date     string
		Category string
		Type     string
		Amount   string
	}

	// ValidationError reports a draft field that blocks submission.
	ValidationError struct {
		Field string
		Err   error
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidType   = errors.New("invalid transaction type")
)

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (t TransactionType) String() string {
	return string(t)
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validate checks the draft without building a transaction.
func (d Draft) Validate() error {
	_, err := d.Transaction(ID{})
	return err
}

// Transaction validates the draft and builds a transaction carrying id.
// Only the amount and the type are checked; dates that cannot be parsed are
// kept verbatim and simply fail date predicates later on.
func (d Draft) Transaction(id ID) (Transaction, error) {
	amount, err := ParseAmount(d.Amount)
	if err != nil {
		return Transaction{}, &ValidationError{Field: "amount", Err: err}
	}
	typ := TransactionType(strings.ToLower(strings.TrimSpace(d.Type)))
	if !typ.Valid() {
		return Transaction{}, &ValidationError{Field: "type", Err: ErrInvalidType}
	}
	return Transaction{
		ID:       id,
		Date:     ParseDateLenient(d.Date),
		Category: strings.TrimSpace(d.Category),
		Type:     typ,
		Amount:   amount,
	}, nil
}

// DraftOf returns the draft that would reproduce t, used to prefill an editor.
func DraftOf(t Transaction) Draft {
	return Draft{
		Date:     t.Date.String(),
		Category: t.Category,
		Type:     string(t.Type),
		Amount:   t.Amount.String(),
	}
}

// Signed returns the amount in cents with the sign implied by the type.
func (t Transaction) Signed() int64 {
	if t.Type == Expense {
		return -t.Amount.Cents
	}
	return t.Amount.Cents
}

// wireTransaction is the JSON record exchanged with stores.
type wireTransaction struct {
	ID       ID              `json:"id"`
	Date     Date            `json:"date"`
	Category string          `json:"category"`
	Type     TransactionType `json:"type"`
	Amount   json.RawMessage `json:"amount"`
}

func (t Transaction) MarshalJSON() ([]byte, error) {
	amount, err := t.Amount.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireTransaction{
		ID:       t.ID,
		Date:     t.Date,
		Category: t.Category,
		Type:     t.Type,
		Amount:   amount,
	})
}

// UnmarshalJSON decodes a store record. Amounts go through CoerceAmount so a
// record with a garbage amount still decodes, with a zero amount.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var w wireTransaction
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var raw any
	if len(w.Amount) > 0 {
		dec := json.NewDecoder(strings.NewReader(string(w.Amount)))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			raw = nil
		}
	}
	*t = Transaction{
		ID:       w.ID,
		Date:     w.Date,
		Category: w.Category,
		Type:     TransactionType(strings.ToLower(strings.TrimSpace(string(w.Type)))),
		Amount:   CoerceAmount(raw),
	}
	return nil
}
