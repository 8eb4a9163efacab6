// Package store is the transaction store client: the single place where the
// application talks to persistence. Backends live in subpackages and
// implement Backend; the Client adds failure normalization, the one-shot
// list retry, and logging.
package store

import (
	"context"
	"fmt"

	"cashbook/internal/core"
	"cashbook/internal/log"
)

// Client wraps a Backend. It never mutates any in-memory collection and
// never lets a backend panic escape.
type Client struct {
	backend Backend
	name    string
	logger  *log.Logger
}

func NewClient(backend Backend, name string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{
		backend: backend,
		name:    name,
		logger:  logger.WithComponent(log.ComponentStore),
	}
}

// Name returns the backend name used in logs.
func (c *Client) Name() string { return c.name }

// Create persists t. The returned transaction carries the id the backend
// assigned.
func (c *Client) Create(ctx context.Context, t core.Transaction) (out core.Transaction, err error) {
	defer c.guard(log.OpCreate, &err)
	out, err = c.backend.Create(ctx, t)
	if err != nil {
		return core.Transaction{}, c.fail(ctx, log.OpCreate, err, t)
	}
	c.logger.DebugContext(ctx, "Transaction created",
		log.NewFields().WithBackend(c.name).
			WithTransaction(out.ID.String(), out.Type.String(), out.Amount.Cents, out.Category).ToSlice()...)
	return out, nil
}

// Update replaces the record identified by id with t.
func (c *Client) Update(ctx context.Context, id core.ID, t core.Transaction) (out core.Transaction, err error) {
	defer c.guard(log.OpUpdate, &err)
	out, err = c.backend.Update(ctx, id, t)
	if err != nil {
		t.ID = id
		return core.Transaction{}, c.fail(ctx, log.OpUpdate, err, t)
	}
	c.logger.DebugContext(ctx, "Transaction updated",
		log.NewFields().WithBackend(c.name).
			WithTransaction(id.String(), out.Type.String(), out.Amount.Cents, out.Category).ToSlice()...)
	return out, nil
}

// Delete removes the record identified by id.
func (c *Client) Delete(ctx context.Context, id core.ID) (err error) {
	defer c.guard(log.OpDelete, &err)
	if err = c.backend.Delete(ctx, id); err != nil {
		return c.fail(ctx, log.OpDelete, err, core.Transaction{ID: id})
	}
	c.logger.DebugContext(ctx, "Transaction deleted", log.FieldBackend, c.name, log.FieldTransactionID, id.String())
	return nil
}

// List fetches the collection. When r is set and the backend returns nothing,
// List asks once more without a range and returns that answer instead. A
// non-empty answer is accepted as is, even if the backend ignored r.
func (c *Client) List(ctx context.Context, r *DateRange) (out []core.Transaction, err error) {
	defer c.guard(log.OpList, &err)
	out, err = c.backend.List(ctx, r)
	if err != nil {
		return nil, c.fail(ctx, log.OpList, err, core.Transaction{})
	}
	if len(out) == 0 && !r.IsZero() {
		c.logger.InfoContext(ctx, "Empty filtered list, retrying without date range",
			log.NewFields().WithBackend(c.name).WithRange(r.From.String(), r.To.String()).ToSlice()...)
		out, err = c.backend.List(ctx, nil)
		if err != nil {
			return nil, c.fail(ctx, log.OpList, err, core.Transaction{})
		}
	}
	if out == nil {
		out = []core.Transaction{}
	}
	c.logger.DebugContext(ctx, "Transactions listed", log.FieldBackend, c.name, log.FieldCount, len(out))
	return out, nil
}

func (c *Client) fail(ctx context.Context, op string, err error, t core.Transaction) error {
	f := normalize(op, err)
	fields := log.NewFields().
		WithBackend(c.name).
		WithOperation(op).
		WithError(f.Err)
	fields[log.FieldErrorKind] = f.Kind.String()
	if !t.ID.IsZero() {
		fields[log.FieldTransactionID] = t.ID.String()
	}
	c.logger.WarnContext(ctx, "Store operation failed", fields.ToSlice()...)
	return f
}

func (c *Client) guard(op string, err *error) {
	if p := recover(); p != nil {
		*err = &Failure{Kind: Transport, Op: op, Message: "store backend panicked", Err: fmt.Errorf("panic: %v", p)}
		c.logger.Error("Store backend panicked", log.FieldOperation, op, log.FieldBackend, c.name, log.FieldError, (*err).Error())
	}
}
