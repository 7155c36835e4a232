package google

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	gsheet "google.golang.org/api/sheets/v4"

	"spendwise/internal/core"
	"spendwise/internal/log"
)

func TestNew_MissingConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"no spreadsheet", Config{CredentialsJSON: []byte(`{}`)}, "missing spreadsheet id"},
		{"no credentials", Config{SpreadsheetID: "sheet"}, "missing service account credentials"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.cfg, log.Discard())
			if err == nil || err.Error() != tt.want {
				t.Errorf("got %v, want %q", err, tt.want)
			}
		})
	}
}

func TestNew_InvalidCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "s", CredentialsJSON: []byte("not-json")}, log.Discard())
	if err == nil || !strings.Contains(err.Error(), "parse service account credentials") {
		t.Fatalf("expected credential parse error, got %v", err)
	}
}

func TestClient_UninitializedService(t *testing.T) {
	c := &Client{spreadsheetID: "test", sheetName: "Transactions", logger: log.Discard()}
	tx := core.Transaction{ID: "tx", Amount: core.Money{Cents: 100}, Title: "t", Date: time.Now()}

	if _, err := c.AppendTransaction(context.Background(), "u", tx); err == nil {
		t.Error("AppendTransaction should fail without a service")
	}
	if err := c.DeleteTransaction(context.Background(), "tx"); err == nil {
		t.Error("DeleteTransaction should fail without a service")
	}
}

func TestClient_AppendRequiresID(t *testing.T) {
	c := &Client{svc: &gsheet.Service{}, spreadsheetID: "test", sheetName: "Transactions", logger: log.Discard()}
	_, err := c.AppendTransaction(context.Background(), "u", core.Transaction{})
	if !errors.Is(err, core.ErrValidation) {
		t.Errorf("got %v, want ErrValidation", err)
	}
}

func TestTransactionRow(t *testing.T) {
	tx := core.Transaction{
		ID:       "3f2c",
		Amount:   core.Money{Cents: 15050},
		Title:    "Dinner",
		Category: "Food",
		Message:  "with friends",
		Date:     time.Date(2026, 2, 14, 20, 0, 0, 0, time.UTC),
	}
	row := transactionRow("alice", tx)
	want := []any{"2026-02-14", "alice", "Dinner", "Food", "150.50", "with friends", "3f2c"}
	if len(row) != len(want) {
		t.Fatalf("row has %d cells, want %d", len(row), len(want))
	}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("cell %d = %v, want %v", i, row[i], want[i])
		}
	}
}

func TestFindRowByID(t *testing.T) {
	values := [][]any{
		{"id"},
		{},
		{"a1"},
		{" b2 "},
	}
	tests := []struct {
		id   string
		want int
	}{
		{"a1", 2},
		{"b2", 3},
		{"missing", -1},
		{"", -1},
	}
	for _, tt := range tests {
		if got := findRowByID(values, tt.id); got != tt.want {
			t.Errorf("findRowByID(%q) = %d, want %d", tt.id, got, tt.want)
		}
	}
}

func TestSheetIDByTitle(t *testing.T) {
	sheets := []*gsheet.Sheet{
		nil,
		{Properties: &gsheet.SheetProperties{Title: "Summary", SheetId: 1}},
		{Properties: &gsheet.SheetProperties{Title: "Transactions", SheetId: 42}},
	}
	if id, ok := sheetIDByTitle(sheets, "transactions"); !ok || id != 42 {
		t.Errorf("got %d, %v", id, ok)
	}
	if _, ok := sheetIDByTitle(sheets, "Other"); ok {
		t.Error("unexpected match")
	}
}

func TestRowRef(t *testing.T) {
	if got := rowRef("Transactions", 4); got != "Transactions!A5:G5" {
		t.Errorf("rowRef = %q", got)
	}
}
