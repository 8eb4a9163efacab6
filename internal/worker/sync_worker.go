package worker

import (
	"context"
	"fmt"
	"time"

	"cashbook/internal/core"
	"cashbook/internal/log"
	"cashbook/internal/store"
)

// Mirror is a secondary copy of the collection, kept in step with the
// primary store from change events. The Google Sheets client implements it.
type Mirror interface {
	Put(ctx context.Context, t core.Transaction) error
	Remove(ctx context.Context, id core.ID) error
	List(ctx context.Context, r *store.DateRange) ([]core.Transaction, error)
}

// Source lists the primary store.
type Source interface {
	List(ctx context.Context, r *store.DateRange) ([]core.Transaction, error)
}

// SyncWorker mirrors transaction changes from the primary store into a Mirror.
type SyncWorker struct {
	source Source
	mirror Mirror
	logger *log.Logger
}

func NewSyncWorker(source Source, mirror Mirror, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &SyncWorker{
		source: source,
		mirror: mirror,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleChange applies a single change event to the mirror. Deletes of rows
// the mirror never had succeed.
func (w *SyncWorker) HandleChange(ctx context.Context, ev core.ChangeEvent) error {
	id := ev.Transaction.ID
	switch ev.Op {
	case core.OpCreated, core.OpUpdated:
		if err := w.mirror.Put(ctx, ev.Transaction); err != nil {
			return fmt.Errorf("mirror %s %s: %w", ev.Op, id, err)
		}
	case core.OpDeleted:
		if err := w.mirror.Remove(ctx, id); err != nil {
			return fmt.Errorf("mirror delete %s: %w", id, err)
		}
	default:
		return fmt.Errorf("unknown change op %q", ev.Op)
	}

	w.logger.InfoContext(ctx, "Mirrored change event",
		log.NewFields().WithOperation(string(ev.Op)).
			WithTransaction(id.String(), ev.Transaction.Type.String(), ev.Transaction.Amount.Cents, ev.Transaction.Category).ToSlice()...)
	return nil
}

// SyncStats summarizes one full resync.
type SyncStats struct {
	Written int
	Removed int
	Errors  int
}

// Resync brings the mirror in line with the primary store: every source
// transaction is written and every mirror row the source no longer has is
// removed. Individual row failures are counted, not returned, so one bad row
// does not block the rest.
func (w *SyncWorker) Resync(ctx context.Context) (SyncStats, error) {
	var stats SyncStats

	want, err := w.source.List(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("list source: %w", err)
	}
	have, err := w.mirror.List(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("list mirror: %w", err)
	}

	keep := make(map[string]core.Transaction, len(want))
	for _, t := range want {
		keep[t.ID.String()] = t
	}
	present := make(map[string]core.Transaction, len(have))
	for _, t := range have {
		present[t.ID.String()] = t
	}

	for _, t := range want {
		if cur, ok := present[t.ID.String()]; ok && sameRecord(cur, t) {
			continue
		}
		if err := w.mirror.Put(ctx, t); err != nil {
			w.logger.ErrorContext(ctx, "Failed to write mirror row",
				log.FieldTransactionID, t.ID.String(), log.FieldError, err.Error())
			stats.Errors++
			continue
		}
		stats.Written++
	}
	for _, t := range have {
		if _, ok := keep[t.ID.String()]; ok {
			continue
		}
		if err := w.mirror.Remove(ctx, t.ID); err != nil {
			w.logger.ErrorContext(ctx, "Failed to remove mirror row",
				log.FieldTransactionID, t.ID.String(), log.FieldError, err.Error())
			stats.Errors++
			continue
		}
		stats.Removed++
	}

	w.logger.InfoContext(ctx, "Mirror resync completed",
		log.FieldOperation, log.OpSync,
		log.FieldCount, len(want),
		"written", stats.Written,
		"removed", stats.Removed,
		"errors", stats.Errors)
	return stats, nil
}

// RunPeriodic resyncs every interval until ctx is done, catching up on
// events that were lost while the worker was down.
func (w *SyncWorker) RunPeriodic(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.Resync(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Periodic resync failed", log.FieldError, err.Error())
			}
		}
	}
}

func sameRecord(a, b core.Transaction) bool {
	return a.Date.String() == b.Date.String() &&
		a.Category == b.Category &&
		a.Type == b.Type &&
		a.Amount == b.Amount
}
