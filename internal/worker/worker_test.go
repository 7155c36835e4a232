package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"spendwise/internal/amqp"
	"spendwise/internal/core"
	"spendwise/internal/ledger"
	"spendwise/internal/log"
	sheetmem "spendwise/internal/sheets/memory"
	"spendwise/internal/store/memory"
)

var day = time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)

func expenseMessage(typ ledger.EventType, tx core.Transaction) *amqp.LedgerEventMessage {
	return amqp.NewLedgerEventMessage(ledger.Event{Type: typ, UserID: "alice", Transaction: &tx, At: day})
}

func TestMirrorWorker_HandleMessage(t *testing.T) {
	mirror := sheetmem.New()
	w := NewMirrorWorker(mirror, log.Discard())
	ctx := context.Background()
	tx := core.Transaction{ID: "t1", Amount: core.Money{Cents: 1500}, Title: "Lunch", Category: "Food", Date: day}

	if err := w.HandleMessage(ctx, expenseMessage(ledger.EventExpenseAdded, tx)); err != nil {
		t.Fatalf("expense: %v", err)
	}
	rows := mirror.Rows()
	if len(rows) != 1 || rows[0].UserID != "alice" || rows[0].Transaction.Title != "Lunch" {
		t.Fatalf("rows after add = %+v", rows)
	}

	// Balance and income events are ignored.
	for _, typ := range []ledger.EventType{ledger.EventBalanceSet, ledger.EventIncomeAdded} {
		msg := amqp.NewLedgerEventMessage(ledger.Event{Type: typ, UserID: "alice"})
		if err := w.HandleMessage(ctx, msg); err != nil {
			t.Fatalf("%s: %v", typ, err)
		}
	}
	if len(mirror.Rows()) != 1 {
		t.Fatal("non-expense events must not touch the mirror")
	}

	if err := w.HandleMessage(ctx, expenseMessage(ledger.EventTransactionDeleted, tx)); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(mirror.Rows()) != 0 {
		t.Fatal("delete should remove the mirrored row")
	}
}

func TestMirrorWorker_SkipsEventWithoutTransaction(t *testing.T) {
	mirror := sheetmem.New()
	w := NewMirrorWorker(mirror, log.Discard())
	msg := &amqp.LedgerEventMessage{Type: string(ledger.EventExpenseAdded), UserID: "alice"}
	if err := w.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	if len(mirror.Rows()) != 0 {
		t.Fatal("nothing should be mirrored")
	}
}

type failingMirror struct{ err error }

func (f failingMirror) AppendTransaction(context.Context, string, core.Transaction) (string, error) {
	return "", f.err
}

func (f failingMirror) DeleteTransaction(context.Context, string) error { return f.err }

func TestMirrorWorker_PropagatesMirrorErrors(t *testing.T) {
	boom := errors.New("quota exceeded")
	w := NewMirrorWorker(failingMirror{err: boom}, log.Discard())
	tx := core.Transaction{ID: "t1", Amount: core.Money{Cents: 1}, Title: "x", Date: day}

	for _, typ := range []ledger.EventType{ledger.EventExpenseAdded, ledger.EventTransactionDeleted} {
		if err := w.HandleMessage(context.Background(), expenseMessage(typ, tx)); !errors.Is(err, boom) {
			t.Errorf("%s: got %v, want wrapped %v", typ, err, boom)
		}
	}
}

func TestReconciler_RunOnce(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	// consistent: income 1000, one 150 expense, balance 850
	if err := st.SetBalance(ctx, "alice", core.Balance{Amount: core.Money{Cents: 85000}, Income: core.Money{Cents: 100000}}); err != nil {
		t.Fatal(err)
	}
	if _, err := st.AddTransaction(ctx, "alice", core.TransactionInput{Amount: core.Money{Cents: 15000}, Title: "Rent", Category: "Rent", Date: day}); err != nil {
		t.Fatal(err)
	}
	// drifted: balance edited directly
	if err := st.SetBalance(ctx, "bob", core.Balance{Amount: core.Money{Cents: 50000}, Income: core.Money{Cents: 20000}}); err != nil {
		t.Fatal(err)
	}

	rep, err := NewReconciler(st, st, time.Second, log.Discard()).RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if rep.Checked != 2 || rep.Failed != 0 {
		t.Fatalf("report = %+v", rep)
	}
	if len(rep.Drifted) != 1 || rep.Drifted[0].UserID != "bob" || rep.Drifted[0].Drift.Cents != 30000 {
		t.Fatalf("drifted = %+v", rep.Drifted)
	}

	bal, _ := st.GetBalance(ctx, "bob")
	if bal.Amount.Cents != 50000 {
		t.Fatal("reconciliation must not rewrite balances")
	}
}

type brokenStore struct {
	*memory.Store
}

func (brokenStore) ListTransactions(context.Context, string) ([]core.Transaction, error) {
	return nil, errors.New("disk I/O error")
}

type staticUsers []string

func (u staticUsers) ListUserIDs(context.Context) ([]string, error) { return u, nil }

func TestReconciler_CountsLoadFailures(t *testing.T) {
	r := NewReconciler(brokenStore{memory.New()}, staticUsers{"a", "b"}, time.Second, log.Discard())
	rep, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rep.Failed != 2 || rep.Checked != 0 {
		t.Fatalf("report = %+v", rep)
	}
}

func TestReconciler_ScheduleRejectsBadSpec(t *testing.T) {
	r := NewReconciler(memory.New(), staticUsers{}, time.Second, log.Discard())
	if _, err := r.Schedule(context.Background(), "not a schedule"); err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
	stop, err := r.Schedule(context.Background(), "@hourly")
	if err != nil {
		t.Fatal(err)
	}
	stop()
}
