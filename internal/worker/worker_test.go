package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cassa/internal/amqp"
	"cassa/internal/core"
	"cassa/internal/ledger"
	"cassa/internal/log"
	"cassa/internal/storage/memory"
)

type fakeMirror struct {
	mu     sync.Mutex
	events []core.LedgerEvent
	err    error
}

func (m *fakeMirror) MirrorEvent(_ context.Context, e core.LedgerEvent) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.events = append(m.events, e)
	return "Ledger!A1:L1", nil
}

// replayConsumer hands each queued message to the handler, then blocks until cancelled.
type replayConsumer struct {
	msgs    []*amqp.LedgerEventMessage
	handled chan error
}

func (c *replayConsumer) ConsumeLedgerEvents(ctx context.Context, h amqp.Handler) error {
	for _, m := range c.msgs {
		c.handled <- h(ctx, m)
	}
	<-ctx.Done()
	return ctx.Err()
}

type fixture struct {
	store  *memory.Store
	svc    *ledger.Service
	book   *ledger.Book
	biz    core.Business
	mirror *fakeMirror
	worker *LedgerWorker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	svc := ledger.NewService(store, ledger.WithLogger(log.Discard("test")))
	biz, err := svc.Onboard(context.Background(), "owner-1", "Trattoria", core.Restaurant)
	if err != nil {
		t.Fatal(err)
	}
	mirror := &fakeMirror{}
	return &fixture{
		store:  store,
		svc:    svc,
		book:   svc.Book(ledger.Scope{BusinessID: biz.ID, OwnerID: "owner-1"}),
		biz:    biz,
		mirror: mirror,
		worker: New(svc, mirror, log.Discard("test")),
	}
}

func (f *fixture) corrupt(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	err := f.store.InTx(ctx, func(tx ledger.Tx) error {
		return tx.SetBalances(ctx, f.biz.ID, core.Balances{Cash: decimal.NewFromInt(999), Bank: decimal.Zero}, time.Now())
	})
	if err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) expectCash(t *testing.T, want string) {
	t.Helper()
	b, err := f.book.Balances(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !b.Cash.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("cash = %s, want %s", b.Cash, want)
	}
}

func (f *fixture) sale(t *testing.T, amount string) core.Sale {
	t.Helper()
	s, err := f.book.CreateSale(context.Background(), ledger.SaleInput{
		Date:          core.NewDate(2024, 6, 3),
		Amount:        decimal.RequireFromString(amount),
		PaymentMethod: core.Cash,
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestHandleEventReconcilesAndMirrors(t *testing.T) {
	f := newFixture(t)
	s := f.sale(t, "25")
	f.corrupt(t)

	ev := core.SaleEvent(core.OpCreate, s, core.Balances{}, time.Now())
	if err := f.worker.HandleEvent(context.Background(), amqp.NewLedgerEventMessage(ev)); err != nil {
		t.Fatal(err)
	}
	f.expectCash(t, "25")
	if len(f.mirror.events) != 1 || f.mirror.events[0].RecordID != s.ID {
		t.Fatalf("event must be mirrored once, got %+v", f.mirror.events)
	}
}

func TestHandleEventMirrorFailureRequeues(t *testing.T) {
	f := newFixture(t)
	s := f.sale(t, "10")
	f.mirror.err = errors.New("quota exceeded")

	err := f.worker.HandleEvent(context.Background(), amqp.NewLedgerEventMessage(core.SaleEvent(core.OpCreate, s, core.Balances{}, time.Now())))
	if err == nil {
		t.Fatal("mirror failure must be returned so the message is requeued")
	}
}

func TestHandleEventUnknownBusinessIsDropped(t *testing.T) {
	f := newFixture(t)
	ev := core.LedgerEvent{BusinessID: "gone", Kind: core.KindSale, Op: core.OpDelete, RecordID: "s-1", Date: core.NewDate(2024, 6, 3)}
	if err := f.worker.HandleEvent(context.Background(), amqp.NewLedgerEventMessage(ev)); err != nil {
		t.Fatalf("unknown business must be acked, got %v", err)
	}
	if len(f.mirror.events) != 0 {
		t.Fatalf("nothing must be mirrored for an unknown business")
	}
}

func TestReconcileAllRepairs(t *testing.T) {
	f := newFixture(t)
	f.sale(t, "40")
	f.corrupt(t)

	if err := f.worker.ReconcileAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	f.expectCash(t, "40")
}

func TestRunConsumesAndStops(t *testing.T) {
	f := newFixture(t)
	s := f.sale(t, "15")
	consumer := &replayConsumer{
		msgs:    []*amqp.LedgerEventMessage{amqp.NewLedgerEventMessage(core.SaleEvent(core.OpCreate, s, core.Balances{}, time.Now()))},
		handled: make(chan error, 1),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.worker.Run(ctx, consumer, time.Hour) }()

	select {
	case err := <-consumer.handled:
		if err != nil {
			t.Fatalf("handler failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("event was not consumed")
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run must stop cleanly on cancel, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
	if len(f.mirror.events) != 1 {
		t.Fatalf("expected one mirrored event, got %d", len(f.mirror.events))
	}
}

func TestRunPeriodicReconciles(t *testing.T) {
	f := newFixture(t)
	f.sale(t, "5")
	f.corrupt(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := f.worker.RunPeriodic(ctx, 20*time.Millisecond); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("unexpected error %v", err)
	}
	f.expectCash(t, "5")
}
