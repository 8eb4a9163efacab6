// Package reconcile owns the in-memory transaction collection and keeps it
// backend-derived: every mutation is followed by a full re-list that replaces
// the collection, whatever the mutation's outcome.
package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"cashbook/internal/core"
	"cashbook/internal/log"
	"cashbook/internal/store"
)

// Messages shown in the notice slot.
const (
	NoticeAddFailed    = "Failed to add transaction. Please try again later."
	NoticeUpdateFailed = "Failed to update transaction. Please try again later."
	NoticeDeleteFailed = "Failed to delete transaction. Please try again later."
	NoticeListFailed   = "Failed to fetch transactions. Please check your connection or try again later."
	NoticeBadData      = "API returned invalid data format."
	NoticeResetFailed  = "Some transactions could not be deleted. Refresh to see what remains."
)

// ErrUnknownTransaction is returned when an id is not in the collection.
var ErrUnknownTransaction = errors.New("transaction not in the current collection")

// Store is the subset of store.Client the controller drives.
type Store interface {
	Create(ctx context.Context, t core.Transaction) (core.Transaction, error)
	Update(ctx context.Context, id core.ID, t core.Transaction) (core.Transaction, error)
	Delete(ctx context.Context, id core.ID) error
	List(ctx context.Context, r *store.DateRange) ([]core.Transaction, error)
}

// Publisher receives an event after each mutation the store accepted.
type Publisher interface {
	Publish(ctx context.Context, ev core.ChangeEvent) error
}

// Result keeps the mutation outcome apart from the refresh that followed it.
// Transactions is the collection after the operation.
type Result struct {
	Mutation     error
	Refresh      error
	Transactions []core.Transaction
	Notice       string
}

// Err joins both failures, or returns nil when the operation fully succeeded.
func (r Result) Err() error {
	return errors.Join(r.Mutation, r.Refresh)
}

// ResetResult reports a reset. The local collection is emptied even when
// some deletes failed; Failed lists the ids the store kept.
type ResetResult struct {
	Deleted int
	Failed  []core.ID
	Err     error
	Notice  string
}

type Controller struct {
	mu         sync.Mutex
	store      Store
	clock      *core.Clock
	publisher  Publisher
	logger     *log.Logger
	sl         *log.StructuredLogger
	now        func() time.Time
	collection []core.Transaction
	active     *store.DateRange
	editing    core.ID
	notice     string
}

type Option func(*Controller)

func WithPublisher(p Publisher) Option {
	return func(c *Controller) { c.publisher = p }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithClock sets the time source for provisional ids and event stamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func New(s Store, opts ...Option) *Controller {
	c := &Controller{store: s, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.Discard()
	}
	c.logger = c.logger.WithComponent(log.ComponentReconcile)
	c.sl = log.NewStructuredLogger(c.logger)
	c.clock = core.NewClock(c.now)
	return c
}

// Add validates d, creates it under a provisional id and re-lists.
// Validation failures return before any store call and leave the editor open.
func (c *Controller) Add(ctx context.Context, d core.Draft) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, err := d.Transaction(c.clock.Next())
	if err != nil {
		return Result{Mutation: err, Transactions: c.snapshot(), Notice: c.notice}
	}

	var failed bool
	created, mutErr := c.store.Create(ctx, t)
	if mutErr != nil {
		failed = true
		c.notice = NoticeAddFailed
	} else {
		c.sl.LogTransaction(ctx, log.OpCreate, created.ID.String(), created.Type.String(), created.Amount.Cents, created.Category)
		c.publish(ctx, core.OpCreated, created)
	}
	c.editing = core.ID{}
	return c.finish(ctx, mutErr, failed)
}

// Edit replaces the record identified by id with d and re-lists.
func (c *Controller) Edit(ctx context.Context, id core.ID, d core.Draft) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, err := d.Transaction(id)
	if err != nil {
		return Result{Mutation: err, Transactions: c.snapshot(), Notice: c.notice}
	}

	var failed bool
	updated, mutErr := c.store.Update(ctx, id, t)
	if mutErr != nil {
		failed = true
		c.notice = NoticeUpdateFailed
	} else {
		if updated.ID.IsZero() {
			updated = t
		}
		c.sl.LogTransaction(ctx, log.OpUpdate, id.String(), updated.Type.String(), updated.Amount.Cents, updated.Category)
		c.publish(ctx, core.OpUpdated, updated)
	}
	c.editing = core.ID{}
	return c.finish(ctx, mutErr, failed)
}

// Remove deletes the record identified by id and re-lists.
func (c *Controller) Remove(ctx context.Context, id core.ID) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	var failed bool
	mutErr := c.store.Delete(ctx, id)
	if mutErr != nil {
		failed = true
		c.notice = NoticeDeleteFailed
	} else {
		c.sl.LogTransaction(ctx, log.OpDelete, id.String(), "", 0, "")
		c.publish(ctx, core.OpDeleted, core.Transaction{ID: id})
	}
	if c.editing == id {
		c.editing = core.ID{}
	}
	return c.finish(ctx, mutErr, failed)
}

// ResetAll deletes every known transaction one after another, then empties
// the local collection without re-listing.
func (c *Controller) ResetAll(ctx context.Context) ResetResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		res  ResetResult
		errs []error
	)
	for _, t := range c.collection {
		if err := c.store.Delete(ctx, t.ID); err != nil {
			res.Failed = append(res.Failed, t.ID)
			errs = append(errs, err)
			c.notice = NoticeDeleteFailed
			continue
		}
		res.Deleted++
		c.publish(ctx, core.OpDeleted, core.Transaction{ID: t.ID})
	}
	c.collection = []core.Transaction{}
	c.editing = core.ID{}
	res.Err = errors.Join(errs...)

	fields := log.NewFields().WithOperation(log.OpReset).WithCount(res.Deleted)
	if len(res.Failed) > 0 {
		c.notice = NoticeResetFailed
		fields["failed"] = len(res.Failed)
		c.logger.WarnContext(ctx, "Reset left transactions in the store", fields.ToSlice()...)
	} else {
		c.notice = ""
		c.logger.InfoContext(ctx, "All transactions deleted", fields.ToSlice()...)
	}
	res.Notice = c.notice
	return res
}

// Refresh sets the active date range (nil clears it) and re-lists.
func (c *Controller) Refresh(ctx context.Context, r *store.DateRange) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r.IsZero() {
		c.active = nil
	} else {
		cp := *r
		c.active = &cp
	}
	return c.finish(ctx, nil, false)
}

// finish re-lists and settles the notice slot. It runs with c.mu held.
func (c *Controller) finish(ctx context.Context, mutErr error, failed bool) Result {
	list, err := c.store.List(ctx, c.active)
	if err != nil {
		failed = true
		c.notice = noticeForList(err)
		c.logger.WarnContext(ctx, "Refresh failed, keeping last known collection",
			log.NewFields().WithOperation(log.OpRefresh).WithError(err).ToSlice()...)
	} else {
		c.collection = list
	}
	if !failed {
		c.notice = ""
	}
	return Result{Mutation: mutErr, Refresh: err, Transactions: c.snapshot(), Notice: c.notice}
}

func noticeForList(err error) string {
	var f *store.Failure
	if errors.As(err, &f) && f.Kind == store.Decode {
		return NoticeBadData
	}
	return NoticeListFailed
}

func (c *Controller) publish(ctx context.Context, op core.ChangeOp, t core.Transaction) {
	if c.publisher == nil {
		return
	}
	ev := core.ChangeEvent{Op: op, Transaction: t, At: c.now().UTC()}
	if err := c.publisher.Publish(ctx, ev); err != nil {
		c.logger.WarnContext(ctx, "Failed to publish change event",
			log.NewFields().WithOperation(string(op)).WithError(err).ToSlice()...)
	}
}

// BeginEdit puts id in the edit slot and returns the draft to prefill.
func (c *Controller) BeginEdit(id core.ID) (core.Draft, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.collection {
		if t.ID == id {
			c.editing = t.ID
			return core.DraftOf(t), nil
		}
	}
	return core.Draft{}, ErrUnknownTransaction
}

// BeginAdd clears the edit slot.
func (c *Controller) BeginAdd() {
	c.mu.Lock()
	c.editing = core.ID{}
	c.mu.Unlock()
}

// CloseEditor clears the edit slot.
func (c *Controller) CloseEditor() {
	c.mu.Lock()
	c.editing = core.ID{}
	c.mu.Unlock()
}

// Editing returns the id in the edit slot.
func (c *Controller) Editing() (core.ID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editing, !c.editing.IsZero()
}

// Snapshot returns a copy of the collection for one render pass.
func (c *Controller) Snapshot() []core.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// Range returns the active date range, or nil.
func (c *Controller) Range() *store.DateRange {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return nil
	}
	cp := *c.active
	return &cp
}

// Notice returns the visible error message, empty when the last operation
// succeeded.
func (c *Controller) Notice() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notice
}

func (c *Controller) snapshot() []core.Transaction {
	out := make([]core.Transaction, len(c.collection))
	copy(out, c.collection)
	return out
}
