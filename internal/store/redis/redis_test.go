package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"cashbook/internal/core"
	"cashbook/internal/prefs"
	"cashbook/internal/store"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return New(rdb, ""), mr
}

func TestStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	if got, err := s.List(ctx, nil); err != nil || len(got) != 0 {
		t.Fatalf("empty slot: %v err=%v", got, err)
	}

	a, err := s.Create(ctx, core.Transaction{ID: core.Provisional(1), Date: core.NewDate(2025, 8, 20), Category: "Food", Type: core.Expense, Amount: core.Money{Cents: 50000}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Create(ctx, core.Transaction{Date: core.NewDate(2025, 8, 19), Category: "Salary", Type: core.Income, Amount: core.Money{Cents: 404300}}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !mr.Exists(DefaultKey) {
		t.Fatalf("expected collection under %s", DefaultKey)
	}

	a.Category = "Groceries"
	if _, err := s.Update(ctx, a.ID, a); err != nil {
		t.Fatalf("update: %v", err)
	}
	list, _ := s.List(ctx, nil)
	if len(list) != 2 || list[0].Category != "Groceries" || list[1].Amount.Cents != 404300 {
		t.Fatalf("unexpected list: %+v", list)
	}

	if err := s.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, a.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	from := core.NewDate(2025, 9, 1)
	if got, _ := s.List(ctx, &store.DateRange{From: from}); len(got) != 0 {
		t.Fatalf("range should exclude everything, got %v", got)
	}
}

func TestStoreCorruptSlotIsDecodeError(t *testing.T) {
	s, mr := newTestStore(t)
	mr.Set(DefaultKey, "{definitely not an array")
	_, err := s.List(context.Background(), nil)
	if !errors.Is(err, store.ErrDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestStoreReadsForeignRecords(t *testing.T) {
	s, mr := newTestStore(t)
	mr.Set(DefaultKey, `[{"id":1755648000000,"date":"2025-08-20","category":"Food","type":"Expense","amount":"500"}]`)
	got, err := s.List(context.Background(), nil)
	if err != nil || len(got) != 1 {
		t.Fatalf("list: %v err=%v", got, err)
	}
	if got[0].ID.String() != "1755648000000" || got[0].Type != core.Expense || got[0].Amount.Cents != 50000 {
		t.Fatalf("unexpected record %+v", got[0])
	}
}

func TestPreferencesHash(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)
	ps := s.Preferences()

	if _, ok, _ := ps.Load(ctx); ok {
		t.Fatalf("expected no preferences")
	}
	if err := ps.Save(ctx, prefs.Preferences{Currency: "€", Theme: prefs.Dark}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got := mr.HGet(DefaultKey+":preferences", "theme"); got != "dark" {
		t.Fatalf("theme in hash = %q", got)
	}
	p, ok, err := ps.Load(ctx)
	if err != nil || !ok || p.Currency != "€" {
		t.Fatalf("load: %+v ok=%v err=%v", p, ok, err)
	}
}
