package store

import (
	"context"

	"spendwise/internal/core"
)

// Ports for persistence adapters.
type (
	// Store is the minimum contract the ledger needs from a backing store.
	// Implementations return core.ErrNotFound when a user has no balance
	// record yet or a transaction id is unknown.
	Store interface {
		GetBalance(ctx context.Context, userID string) (core.Balance, error)
		SetBalance(ctx context.Context, userID string, b core.Balance) error
		// ListTransactions returns the user's transactions in no particular order.
		ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error)
		AddTransaction(ctx context.Context, userID string, in core.TransactionInput) (core.Transaction, error)
		DeleteTransaction(ctx context.Context, userID string, id string) error
	}

	// AtomicWriter is implemented by stores that can write a transaction
	// change and the resulting balance in one unit.
	AtomicWriter interface {
		CommitExpense(ctx context.Context, userID string, in core.TransactionInput, b core.Balance) (core.Transaction, error)
		CommitDelete(ctx context.Context, userID string, id string, b core.Balance) error
	}

	// UserLister enumerates users with a balance record or transactions.
	UserLister interface {
		ListUserIDs(ctx context.Context) ([]string, error)
	}
)
