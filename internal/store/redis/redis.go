// Package redis stores the whole collection as one JSON array under a single
// key, the way a browser keeps it in a local storage slot. Writes are
// read-modify-write cycles guarded by WATCH/MULTI.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"
	goredis "github.com/redis/go-redis/v9"

	"cashbook/internal/core"
	"cashbook/internal/prefs"
	"cashbook/internal/store"
)

var _ store.Backend = (*Store)(nil)

// DefaultKey is used when no key is configured.
const DefaultKey = "cashbook:transactions"

// maxAttempts bounds optimistic-lock retries on concurrent writers.
const maxAttempts = 5

type Store struct {
	rdb *goredis.Client
	key string
}

// Connect dials addr and checks the connection.
func Connect(ctx context.Context, addr, key string) (*Store, error) {
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return New(rdb, key), nil
}

func New(rdb *goredis.Client, key string) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{rdb: rdb, key: key}
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Create(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t.ID = core.Confirmed(ulid.Make().String())
	err := s.mutate(ctx, func(all []core.Transaction) ([]core.Transaction, error) {
		return append(all, t), nil
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

func (s *Store) Update(ctx context.Context, id core.ID, t core.Transaction) (core.Transaction, error) {
	t.ID = id.Confirm()
	err := s.mutate(ctx, func(all []core.Transaction) ([]core.Transaction, error) {
		i := indexOf(all, id)
		if i < 0 {
			return nil, fmt.Errorf("update %s: %w", id, store.ErrNotFound)
		}
		all[i] = t
		return all, nil
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

func (s *Store) Delete(ctx context.Context, id core.ID) error {
	return s.mutate(ctx, func(all []core.Transaction) ([]core.Transaction, error) {
		i := indexOf(all, id)
		if i < 0 {
			return nil, fmt.Errorf("delete %s: %w", id, store.ErrNotFound)
		}
		return append(all[:i], all[i+1:]...), nil
	})
}

// List reads the slot and applies the range in process.
func (s *Store) List(ctx context.Context, r *store.DateRange) ([]core.Transaction, error) {
	all, err := load(ctx, s.rdb, s.key)
	if err != nil {
		return nil, err
	}
	return r.Filter(all), nil
}

func (s *Store) mutate(ctx context.Context, fn func([]core.Transaction) ([]core.Transaction, error)) error {
	txf := func(tx *goredis.Tx) error {
		all, err := load(ctx, tx, s.key)
		if err != nil {
			return err
		}
		next, err := fn(all)
		if err != nil {
			return err
		}
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode collection: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, s.key, data, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := s.rdb.Watch(ctx, txf, s.key)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("write %s: too much contention", s.key)
}

// getter is the slice of the command API shared by clients and transactions.
type getter interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
}

func load(ctx context.Context, c getter, key string) ([]core.Transaction, error) {
	data, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return []core.Transaction{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	var all []core.Transaction
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", store.ErrDecode, key, err)
	}
	if all == nil {
		all = []core.Transaction{}
	}
	return all, nil
}

func indexOf(all []core.Transaction, id core.ID) int {
	for i, t := range all {
		if t.ID.String() == id.String() {
			return i
		}
	}
	return -1
}

// Preferences returns a prefs.Store kept in a hash next to the collection.
func (s *Store) Preferences() prefs.Store {
	return preferenceStore{rdb: s.rdb, key: s.key + ":preferences"}
}

type preferenceStore struct {
	rdb *goredis.Client
	key string
}

func (p preferenceStore) Load(ctx context.Context) (prefs.Preferences, bool, error) {
	m, err := p.rdb.HGetAll(ctx, p.key).Result()
	if err != nil {
		return prefs.Preferences{}, false, fmt.Errorf("load preferences: %w", err)
	}
	if len(m) == 0 {
		return prefs.Preferences{}, false, nil
	}
	return prefs.Preferences{Currency: m["currency"], Theme: prefs.Theme(m["theme"])}, true, nil
}

func (p preferenceStore) Save(ctx context.Context, v prefs.Preferences) error {
	if err := p.rdb.HSet(ctx, p.key, "currency", v.Currency, "theme", string(v.Theme)).Err(); err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}
