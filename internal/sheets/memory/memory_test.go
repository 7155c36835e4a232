package memory

import (
	"context"
	"errors"
	"testing"

	"spendwise/internal/core"
)

func TestMirrorAppendAndDelete(t *testing.T) {
	m := New()
	ctx := context.Background()

	ref, err := m.AppendTransaction(ctx, "alice", core.Transaction{ID: "a", Amount: core.Money{Cents: 123}})
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}
	if _, err := m.AppendTransaction(ctx, "alice", core.Transaction{ID: "b"}); err != nil {
		t.Fatal(err)
	}

	// Redelivery must not duplicate.
	ref, err = m.AppendTransaction(ctx, "alice", core.Transaction{ID: "a"})
	if err != nil || ref != "mem:1" || len(m.Rows()) != 2 {
		t.Fatalf("duplicate append: ref=%q rows=%d err=%v", ref, len(m.Rows()), err)
	}

	if err := m.DeleteTransaction(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if err := m.DeleteTransaction(ctx, "a"); err != nil {
		t.Fatalf("second delete should be a no-op, got %v", err)
	}
	rows := m.Rows()
	if len(rows) != 1 || rows[0].Transaction.ID != "b" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestMirrorRejectsMissingID(t *testing.T) {
	_, err := New().AppendTransaction(context.Background(), "u", core.Transaction{})
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("got %v, want ErrValidation", err)
	}
}
