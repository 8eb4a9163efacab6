// Package prefs holds the cosmetic user preferences: the currency label shown
// next to amounts and the light/dark theme. Neither is part of the
// transaction data.
package prefs

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode/utf8"
)

type Theme string

const (
	Light Theme = "light"
	Dark  Theme = "dark"
)

// DefaultCurrency is the label used until the user picks another one.
const DefaultCurrency = "₹"

const maxCurrencyLen = 8

var (
	ErrInvalidTheme    = errors.New("theme must be light or dark")
	ErrInvalidCurrency = errors.New("currency label must be 1 to 8 characters")
)

type Preferences struct {
	Currency string `json:"currency"`
	Theme    Theme  `json:"theme"`
}

// Defaults returns the preferences used when nothing is stored. An empty
// currency falls back to DefaultCurrency.
func Defaults(currency string) Preferences {
	currency = strings.TrimSpace(currency)
	if currency == "" {
		currency = DefaultCurrency
	}
	return Preferences{Currency: currency, Theme: Light}
}

// Normalize trims the currency and lowercases the theme.
func (p Preferences) Normalize() Preferences {
	p.Currency = strings.TrimSpace(p.Currency)
	p.Theme = Theme(strings.ToLower(strings.TrimSpace(string(p.Theme))))
	return p
}

func (p Preferences) Validate() error {
	if p.Theme != Light && p.Theme != Dark {
		return ErrInvalidTheme
	}
	if n := utf8.RuneCountInString(p.Currency); n == 0 || n > maxCurrencyLen {
		return ErrInvalidCurrency
	}
	return nil
}

// Merge fills the empty fields of p from base.
func (p Preferences) Merge(base Preferences) Preferences {
	if p.Currency == "" {
		p.Currency = base.Currency
	}
	if p.Theme == "" {
		p.Theme = base.Theme
	}
	return p
}

// Store persists preferences. Load returns ok=false when nothing was saved.
type Store interface {
	Load(ctx context.Context) (p Preferences, ok bool, err error)
	Save(ctx context.Context, p Preferences) error
}

// Service applies defaults and validation on top of a Store.
type Service struct {
	store    Store
	defaults Preferences
}

func NewService(store Store, defaultCurrency string) *Service {
	if store == nil {
		store = NewMemory()
	}
	return &Service{store: store, defaults: Defaults(defaultCurrency)}
}

// Get returns the stored preferences with defaults for missing fields.
func (s *Service) Get(ctx context.Context) (Preferences, error) {
	p, ok, err := s.store.Load(ctx)
	if err != nil {
		return s.defaults, err
	}
	if !ok {
		return s.defaults, nil
	}
	return p.Normalize().Merge(s.defaults), nil
}

// Update merges the non-empty fields of p into the current preferences.
func (s *Service) Update(ctx context.Context, p Preferences) (Preferences, error) {
	cur, err := s.Get(ctx)
	if err != nil {
		return cur, err
	}
	next := p.Normalize().Merge(cur)
	if err := next.Validate(); err != nil {
		return cur, err
	}
	if err := s.store.Save(ctx, next); err != nil {
		return cur, err
	}
	return next, nil
}

// Memory is a process-local Store.
type Memory struct {
	mu    sync.RWMutex
	p     Preferences
	saved bool
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(_ context.Context) (Preferences, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.p, m.saved, nil
}

func (m *Memory) Save(_ context.Context, p Preferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.p = p
	m.saved = true
	return nil
}
