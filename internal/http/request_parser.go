// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"cashbook/internal/core"
	"cashbook/internal/prefs"
	"cashbook/internal/store"
	"cashbook/internal/view"
)

const maxBodyBytes = 64 << 10

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// transactionRequest is the body of POST and PUT /api/transactions.
type transactionRequest struct {
	Date     string `json:"date"`
	Category string `json:"category" validate:"max=128"`
	Type     string `json:"type" validate:"required,oneof=income expense"`
	Amount   string `json:"amount" validate:"required"`
}

// Draft returns the user-entered values as a core draft.
func (t transactionRequest) Draft() core.Draft {
	return core.Draft{Date: t.Date, Category: t.Category, Type: t.Type, Amount: t.Amount}
}

// preferencesRequest is the body of PUT /api/preferences. Empty fields keep
// the stored value.
type preferencesRequest struct {
	Currency string `json:"currency" validate:"omitempty,max=8"`
	Theme    string `json:"theme" validate:"omitempty,oneof=light dark"`
}

func (p preferencesRequest) Preferences() prefs.Preferences {
	return prefs.Preferences{Currency: p.Currency, Theme: prefs.Theme(p.Theme)}
}

// fieldError names the first request field that failed validation.
type fieldError struct {
	Field   string
	Message string
}

func (e *fieldError) Error() string {
	return e.Field + ": " + e.Message
}

// validateRequest runs the struct tags of v and reports the first failure.
func validateRequest(v any) *fieldError {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &fieldError{Message: err.Error()}
	}
	fe := verrs[0]
	return &fieldError{Field: fe.Field(), Message: messageFor(fe)}
}

func messageFor(fe validator.FieldError) string {
	switch fe.Field() {
	case "amount":
		return core.ErrInvalidAmount.Error()
	case "type":
		return core.ErrInvalidType.Error()
	case "theme":
		return prefs.ErrInvalidTheme.Error()
	case "currency":
		return prefs.ErrInvalidCurrency.Error()
	}
	switch fe.Tag() {
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "required":
		return "is required"
	}
	return "is invalid"
}

// parseTransaction reads and validates a transaction body.
func parseTransaction(w http.ResponseWriter, r *http.Request) (transactionRequest, *fieldError, error) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		return transactionRequest{}, nil, err
	}
	req := transactionRequest{
		Date:     p.Get("date"),
		Category: p.Get("category"),
		Type:     strings.ToLower(p.Get("type")),
		Amount:   p.Get("amount"),
	}
	return req, validateRequest(req), nil
}

// parsePreferences reads and validates a preferences body.
func parsePreferences(w http.ResponseWriter, r *http.Request) (preferencesRequest, *fieldError, error) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		return preferencesRequest{}, nil, err
	}
	req := preferencesRequest{
		Currency: p.Get("currency"),
		Theme:    strings.ToLower(p.Get("theme")),
	}
	return req, validateRequest(req), nil
}

// parseViewOptions reads the list filters from the query string.
func parseViewOptions(r *http.Request) (view.Options, error) {
	return view.ParseOptions(r.URL.Query())
}

// rangeOf returns the store range selected by o, or nil when neither bound
// is set.
func rangeOf(o view.Options) *store.DateRange {
	rng := &store.DateRange{From: o.From, To: o.To}
	if rng.IsZero() {
		return nil
	}
	return rng
}

// sameRange compares two ranges by their rendered bounds.
func sameRange(a, b *store.DateRange) bool {
	if a.IsZero() || b.IsZero() {
		return a.IsZero() == b.IsZero()
	}
	return a.From.String() == b.From.String() && a.To.String() == b.To.String()
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads at most maxBodyBytes of the body once.
func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := strings.TrimSpace(string(p.body))
	if trimmed == "" {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' {
		p.jsonData = make(map[string]any)
		dec := json.NewDecoder(strings.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&p.jsonData); err != nil {
			p.err = fmt.Errorf("invalid JSON body: %w", err)
			return p.err
		}
		return nil
	}
	if trimmed[0] == '[' {
		p.err = errors.New("request body must be an object")
		return p.err
	}

	p.formData, p.err = url.ParseQuery(trimmed)
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts a decoded JSON value to string.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
