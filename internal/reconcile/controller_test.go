package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"cashbook/internal/core"
	"cashbook/internal/store"
	"cashbook/internal/store/memory"
)

// fakeBackend records calls and fails on demand.
type fakeBackend struct {
	mu         sync.Mutex
	items      []core.Transaction
	calls      []string
	created    []core.Transaction
	failCreate bool
	failUpdate bool
	failList   error
	failDelete map[string]bool
	ignoreRng  bool
	next       int
}

func (f *fakeBackend) Create(_ context.Context, t core.Transaction) (core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "create")
	f.created = append(f.created, t)
	if f.failCreate {
		return core.Transaction{}, errors.New("connection refused")
	}
	f.next++
	t.ID = core.Confirmed(fmt.Sprintf("srv-%d", f.next))
	f.items = append(f.items, t)
	return t, nil
}

func (f *fakeBackend) Update(_ context.Context, id core.ID, t core.Transaction) (core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "update "+id.String())
	if f.failUpdate {
		return core.Transaction{}, errors.New("503")
	}
	for i := range f.items {
		if f.items[i].ID == id {
			t.ID = id
			f.items[i] = t
			return t, nil
		}
	}
	return core.Transaction{}, store.ErrNotFound
}

func (f *fakeBackend) Delete(_ context.Context, id core.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "delete "+id.String())
	if f.failDelete[id.String()] {
		return errors.New("timeout")
	}
	for i := range f.items {
		if f.items[i].ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeBackend) List(_ context.Context, r *store.DateRange) ([]core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "list")
	if f.failList != nil {
		return nil, f.failList
	}
	out := append([]core.Transaction(nil), f.items...)
	if f.ignoreRng {
		return out, nil
	}
	return r.Filter(out), nil
}

func (f *fakeBackend) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []core.ChangeEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev core.ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func scenarioItems() []core.Transaction {
	return []core.Transaction{
		{ID: core.Confirmed("1"), Date: core.NewDate(2025, 8, 20), Category: "Food", Type: core.Expense, Amount: core.Money{Cents: 50000}},
		{ID: core.Confirmed("2"), Date: core.NewDate(2025, 8, 19), Category: "Salary", Type: core.Income, Amount: core.Money{Cents: 404300}},
	}
}

func newController(fb *fakeBackend, opts ...Option) *Controller {
	fixed := time.UnixMilli(1_755_648_000_000)
	opts = append([]Option{WithClock(func() time.Time { return fixed })}, opts...)
	return New(store.NewClient(fb, "fake", nil), opts...)
}

func food() core.Draft {
	return core.Draft{Date: "2025-08-21", Category: "Food", Type: "expense", Amount: "12.50"}
}

func TestAddCreatesWithProvisionalIDThenRelists(t *testing.T) {
	fb := &fakeBackend{}
	pub := &recordingPublisher{}
	c := newController(fb, WithPublisher(pub))

	res := c.Add(context.Background(), food())
	if err := res.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := fb.callLog(); len(got) != 2 || got[0] != "create" || got[1] != "list" {
		t.Fatalf("expected create then list, got %v", got)
	}
	sent := fb.created[0]
	if !sent.ID.IsProvisional() || sent.ID.String() != "1755648000000" {
		t.Fatalf("expected provisional clock id, got %+v", sent.ID)
	}
	if len(res.Transactions) != 1 || res.Transactions[0].ID.String() != "srv-1" {
		t.Fatalf("collection must come from the store: %+v", res.Transactions)
	}
	if len(pub.events) != 1 || pub.events[0].Op != core.OpCreated || pub.events[0].Transaction.ID.String() != "srv-1" {
		t.Fatalf("unexpected events %+v", pub.events)
	}
	if c.Notice() != "" {
		t.Fatalf("notice should be empty, got %q", c.Notice())
	}
}

func TestAddFailureStillRelists(t *testing.T) {
	fb := &fakeBackend{items: scenarioItems(), failCreate: true}
	pub := &recordingPublisher{}
	c := newController(fb, WithPublisher(pub))

	res := c.Add(context.Background(), food())
	var f *store.Failure
	if !errors.As(res.Mutation, &f) || f.Kind != store.Transport {
		t.Fatalf("expected transport failure, got %v", res.Mutation)
	}
	if res.Refresh != nil {
		t.Fatalf("refresh should have succeeded: %v", res.Refresh)
	}
	if len(res.Transactions) != 2 {
		t.Fatalf("collection must be what the store lists, got %d", len(res.Transactions))
	}
	if res.Notice != NoticeAddFailed || c.Notice() != NoticeAddFailed {
		t.Fatalf("unexpected notice %q", res.Notice)
	}
	if len(pub.events) != 0 {
		t.Fatalf("failed mutations must not publish")
	}
}

func TestValidationBlocksStoreCalls(t *testing.T) {
	fb := &fakeBackend{}
	c := newController(fb)

	d := food()
	d.Amount = "twelve"
	res := c.Add(context.Background(), d)
	var ve *core.ValidationError
	if !errors.As(res.Mutation, &ve) || ve.Field != "amount" {
		t.Fatalf("expected amount validation error, got %v", res.Mutation)
	}
	if len(fb.callLog()) != 0 {
		t.Fatalf("no store call expected, got %v", fb.callLog())
	}
}

func TestEditLocatesByID(t *testing.T) {
	fb := &fakeBackend{items: scenarioItems()}
	pub := &recordingPublisher{}
	c := newController(fb, WithPublisher(pub))
	ctx := context.Background()
	c.Refresh(ctx, nil)

	draft, err := c.BeginEdit(core.Confirmed("2"))
	if err != nil {
		t.Fatalf("begin edit: %v", err)
	}
	if draft.Amount != "4043" || draft.Type != "income" {
		t.Fatalf("unexpected prefill %+v", draft)
	}
	draft.Amount = "5000"
	res := c.Edit(ctx, core.Confirmed("2"), draft)
	if err := res.Err(); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if res.Transactions[1].Amount.Cents != 500000 || res.Transactions[0].Amount.Cents != 50000 {
		t.Fatalf("wrong record edited: %+v", res.Transactions)
	}
	if _, editing := c.Editing(); editing {
		t.Fatalf("edit must close the editor")
	}
	if len(pub.events) != 1 || pub.events[0].Op != core.OpUpdated {
		t.Fatalf("unexpected events %+v", pub.events)
	}
}

func TestEditSlot(t *testing.T) {
	fb := &fakeBackend{items: scenarioItems()}
	c := newController(fb)
	ctx := context.Background()
	c.Refresh(ctx, nil)

	if _, err := c.BeginEdit(core.Confirmed("404")); !errors.Is(err, ErrUnknownTransaction) {
		t.Fatalf("expected unknown transaction, got %v", err)
	}
	if _, err := c.BeginEdit(core.Confirmed("1")); err != nil {
		t.Fatalf("begin edit: %v", err)
	}
	if id, ok := c.Editing(); !ok || id.String() != "1" {
		t.Fatalf("editing = %v %v", id, ok)
	}
	if _, err := c.BeginEdit(core.Confirmed("2")); err != nil {
		t.Fatalf("begin edit: %v", err)
	}
	if id, _ := c.Editing(); id.String() != "2" {
		t.Fatalf("only one record may be edited, got %v", id)
	}
	c.BeginAdd()
	if _, ok := c.Editing(); ok {
		t.Fatalf("begin add must clear the slot")
	}
	c.BeginEdit(core.Confirmed("1"))
	c.CloseEditor()
	if _, ok := c.Editing(); ok {
		t.Fatalf("close must clear the slot")
	}

	// a failed validation keeps the editor open
	c.BeginEdit(core.Confirmed("1"))
	c.Edit(ctx, core.Confirmed("1"), core.Draft{Type: "expense", Amount: "x"})
	if _, ok := c.Editing(); !ok {
		t.Fatalf("validation failure must keep the editor open")
	}
}

func TestNoticeClearedByNextSuccess(t *testing.T) {
	fb := &fakeBackend{items: scenarioItems(), failDelete: map[string]bool{"1": true}}
	c := newController(fb)
	ctx := context.Background()

	res := c.Remove(ctx, core.Confirmed("1"))
	if res.Mutation == nil || c.Notice() != NoticeDeleteFailed {
		t.Fatalf("expected delete failure notice, got %q (%v)", c.Notice(), res.Mutation)
	}
	if len(res.Transactions) != 2 {
		t.Fatalf("store still holds both records, got %+v", res.Transactions)
	}

	res = c.Remove(ctx, core.Confirmed("2"))
	if res.Err() != nil || c.Notice() != "" {
		t.Fatalf("success must clear the notice, got %q (%v)", c.Notice(), res.Err())
	}
}

func TestRefreshFailureKeepsLastCollection(t *testing.T) {
	fb := &fakeBackend{items: scenarioItems()}
	c := newController(fb)
	ctx := context.Background()
	c.Refresh(ctx, nil)

	fb.mu.Lock()
	fb.failList = errors.New("dial tcp: connection refused")
	fb.mu.Unlock()
	res := c.Refresh(ctx, nil)
	if res.Refresh == nil || res.Notice != NoticeListFailed {
		t.Fatalf("expected list failure, got %v %q", res.Refresh, res.Notice)
	}
	if len(res.Transactions) != 2 {
		t.Fatalf("last known collection must survive, got %d", len(res.Transactions))
	}

	fb.mu.Lock()
	fb.failList = fmt.Errorf("%w: unexpected token", store.ErrDecode)
	fb.mu.Unlock()
	if res := c.Refresh(ctx, nil); res.Notice != NoticeBadData {
		t.Fatalf("decode failures get their own notice, got %q", res.Notice)
	}
}

func TestRefreshWithIgnoredRangeDoesNotRetry(t *testing.T) {
	fb := &fakeBackend{items: scenarioItems(), ignoreRng: true}
	c := newController(fb)
	from := core.NewDate(2030, 1, 1)

	res := c.Refresh(context.Background(), &store.DateRange{From: from})
	if len(res.Transactions) != 2 {
		t.Fatalf("non-empty answer must be accepted as is, got %d", len(res.Transactions))
	}
	if got := fb.callLog(); len(got) != 1 {
		t.Fatalf("expected a single list call, got %v", got)
	}
	if r := c.Range(); r == nil || r.From.String() != "2030-01-01" {
		t.Fatalf("active range not kept: %+v", r)
	}
}

func TestRefreshWithEmptyRangeRetriesOnce(t *testing.T) {
	fb := &fakeBackend{items: scenarioItems()}
	c := newController(fb)
	from := core.NewDate(2030, 1, 1)

	res := c.Refresh(context.Background(), &store.DateRange{From: from})
	if len(res.Transactions) != 2 {
		t.Fatalf("expected the unfiltered answer, got %d", len(res.Transactions))
	}
	if got := fb.callLog(); len(got) != 2 {
		t.Fatalf("expected exactly one retry, got %v", got)
	}
}

func TestResetAllPartialFailure(t *testing.T) {
	fb := &fakeBackend{items: scenarioItems(), failDelete: map[string]bool{"2": true}}
	pub := &recordingPublisher{}
	c := newController(fb, WithPublisher(pub))
	ctx := context.Background()
	c.Refresh(ctx, nil)

	res := c.ResetAll(ctx)
	if res.Deleted != 1 || len(res.Failed) != 1 || res.Failed[0].String() != "2" {
		t.Fatalf("unexpected reset result %+v", res)
	}
	if res.Err == nil || res.Notice != NoticeResetFailed {
		t.Fatalf("partial failure must be reported, got %v %q", res.Err, res.Notice)
	}
	if got := c.Snapshot(); len(got) != 0 {
		t.Fatalf("local collection must be empty, got %+v", got)
	}
	calls := fb.callLog()
	if calls[len(calls)-1] != "delete 2" {
		t.Fatalf("reset must not re-list, calls %v", calls)
	}
	if len(pub.events) != 1 || pub.events[0].Transaction.ID.String() != "1" {
		t.Fatalf("only successful deletes publish, got %+v", pub.events)
	}

	// the store stays authoritative
	if res := c.Refresh(ctx, nil); len(res.Transactions) != 1 || res.Transactions[0].ID.String() != "2" {
		t.Fatalf("expected the surviving record, got %+v", res.Transactions)
	}
}

func TestPublishErrorDoesNotFailMutation(t *testing.T) {
	fb := &fakeBackend{}
	c := newController(fb, WithPublisher(&recordingPublisher{err: errors.New("broker down")}))
	if res := c.Add(context.Background(), food()); res.Err() != nil {
		t.Fatalf("publish errors must be absorbed, got %v", res.Err())
	}
}

func TestRoundTripWithMemoryStore(t *testing.T) {
	c := New(store.NewClient(memory.New(), "memory", nil))
	ctx := context.Background()
	draft := core.Draft{Date: "2025-08-19", Category: "Salary", Type: "income", Amount: "4043"}

	res := c.Add(ctx, draft)
	if res.Err() != nil {
		t.Fatalf("add: %v", res.Err())
	}
	got := res.Transactions
	if len(got) != 1 {
		t.Fatalf("expected one transaction, got %+v", got)
	}
	tx := got[0]
	if tx.Date.String() != draft.Date || tx.Category != draft.Category || string(tx.Type) != draft.Type || tx.Amount.String() != draft.Amount {
		t.Fatalf("round trip mismatch: %+v", tx)
	}
	if tx.ID.IsProvisional() {
		t.Fatalf("listed ids must be confirmed")
	}
}

func TestConcurrentAddsAreSerialized(t *testing.T) {
	c := New(store.NewClient(memory.New(), "memory", nil))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Add(ctx, food())
		}()
	}
	wg.Wait()
	if got := len(c.Snapshot()); got != 20 {
		t.Fatalf("expected 20 transactions, got %d", got)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	fb := &fakeBackend{items: scenarioItems()}
	c := newController(fb)
	c.Refresh(context.Background(), nil)

	snap := c.Snapshot()
	snap[0].Category = "changed"
	if c.Snapshot()[0].Category != "Food" {
		t.Fatalf("snapshot must not alias controller state")
	}
}
