// Package sqlite is the local relational store backend. Transactions live in
// one table in insertion order; preferences live in a key/value table of the
// same database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"cashbook/internal/core"
	"cashbook/internal/prefs"
	"cashbook/internal/store"
)

var _ store.Backend = (*Repository)(nil)

type Repository struct {
	db *sql.DB
}

// Open creates the database directory if needed, runs migrations and
// returns a ready repository.
func Open(dbPath string) (*Repository, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// modernc serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks that the database answers.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Create inserts t under a new ULID.
func (r *Repository) Create(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t.ID = core.Confirmed(ulid.Make().String())
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, date_text, day, category, type, amount_cents)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID.String(), t.Date.String(), dayOf(t.Date), t.Category, string(t.Type), t.Amount.Cents)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return t, nil
}

func (r *Repository) Update(ctx context.Context, id core.ID, t core.Transaction) (core.Transaction, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET date_text = ?, day = ?, category = ?, type = ?, amount_cents = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		t.Date.String(), dayOf(t.Date), t.Category, string(t.Type), t.Amount.Cents, id.String())
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %s: %w", id, err)
	}
	if err := expectOne(res, id); err != nil {
		return core.Transaction{}, err
	}
	t.ID = id.Confirm()
	return t, nil
}

func (r *Repository) Delete(ctx context.Context, id core.ID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	return expectOne(res, id)
}

// List filters on the indexed day column. Rows with unparseable dates have
// no day and drop out of any ranged query.
func (r *Repository) List(ctx context.Context, rng *store.DateRange) ([]core.Transaction, error) {
	query := `SELECT id, date_text, category, type, amount_cents FROM transactions`
	var args []any
	if !rng.IsZero() {
		query += ` WHERE day IS NOT NULL`
		if rng.From.Valid() {
			query += ` AND day >= ?`
			args = append(args, rng.From.String())
		}
		if rng.To.Valid() {
			query += ` AND day <= ?`
			args = append(args, rng.To.String())
		}
	}
	query += ` ORDER BY seq`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := make([]core.Transaction, 0)
	for rows.Next() {
		var (
			id, dateText, category, typ string
			cents                       int64
		)
		if err := rows.Scan(&id, &dateText, &category, &typ, &cents); err != nil {
			return nil, fmt.Errorf("%w: scan transaction: %v", store.ErrDecode, err)
		}
		out = append(out, core.Transaction{
			ID:       core.Confirmed(id),
			Date:     core.ParseDateLenient(dateText),
			Category: category,
			Type:     core.TransactionType(typ),
			Amount:   core.Money{Cents: cents},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// Preferences returns a prefs.Store backed by the preferences table.
func (r *Repository) Preferences() prefs.Store {
	return preferenceStore{db: r.db}
}

func dayOf(d core.Date) sql.NullString {
	if !d.Valid() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func expectOne(res sql.Result, id core.ID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
	}
	return nil
}

type preferenceStore struct {
	db *sql.DB
}

const (
	keyCurrency = "currency"
	keyTheme    = "theme"
)

func (s preferenceStore) Load(ctx context.Context) (prefs.Preferences, bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM preferences WHERE key IN (?, ?)`, keyCurrency, keyTheme)
	if err != nil {
		return prefs.Preferences{}, false, fmt.Errorf("load preferences: %w", err)
	}
	defer rows.Close()

	var p prefs.Preferences
	found := false
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return prefs.Preferences{}, false, fmt.Errorf("scan preference: %w", err)
		}
		found = true
		switch k {
		case keyCurrency:
			p.Currency = v
		case keyTheme:
			p.Theme = prefs.Theme(v)
		}
	}
	if err := rows.Err(); err != nil {
		return prefs.Preferences{}, false, err
	}
	return p, found, nil
}

func (s preferenceStore) Save(ctx context.Context, p prefs.Preferences) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	const upsert = `
		INSERT INTO preferences (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`
	for k, v := range map[string]string{keyCurrency: p.Currency, keyTheme: string(p.Theme)} {
		if _, err = tx.ExecContext(ctx, upsert, k, v); err != nil {
			return fmt.Errorf("save preference %s: %w", k, err)
		}
	}
	return tx.Commit()
}
