package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/oklog/ulid/v2"

	"cashbook/internal/core"
	"cashbook/internal/store"
)

var _ store.Backend = (*Store)(nil)

// Store keeps transactions in insertion order behind a mutex.
type Store struct {
	mu    sync.Mutex
	items []core.Transaction
}

func New(seed ...core.Transaction) *Store {
	s := &Store{}
	for _, t := range seed {
		if t.ID.IsZero() || t.ID.IsProvisional() {
			t.ID = newID()
		}
		s.items = append(s.items, t)
	}
	return s
}

// NewFromFile seeds the store from a JSON array of transactions. A missing
// file yields an empty store.
func NewFromFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed []core.Transaction
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("%w: seed file %s: %v", store.ErrDecode, path, err)
	}
	return New(seed...), nil
}

// Create stores t under a fresh ULID, dropping the provisional id.
func (s *Store) Create(_ context.Context, t core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = newID()
	s.items = append(s.items, t)
	return t, nil
}

func (s *Store) Update(_ context.Context, id core.ID, t core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.Transaction{}, fmt.Errorf("update %s: %w", id, store.ErrNotFound)
	}
	t.ID = s.items[i].ID
	s.items[i] = t
	return t, nil
}

func (s *Store) Delete(_ context.Context, id core.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("delete %s: %w", id, store.ErrNotFound)
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return nil
}

// List applies the range in process.
func (s *Store) List(_ context.Context, r *store.DateRange) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]core.Transaction(nil), s.items...)
	return r.Filter(out), nil
}

func (s *Store) indexOf(id core.ID) int {
	for i, t := range s.items {
		if t.ID.String() == id.String() {
			return i
		}
	}
	return -1
}

func newID() core.ID {
	return core.Confirmed(ulid.Make().String())
}
