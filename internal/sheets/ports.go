package sheets

import (
	"context"

	"spendwise/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionMirror keeps an external, human-readable copy of every
	// recorded expense. Implementations must tolerate redelivery: deleting an
	// id that is not present is not an error.
	TransactionMirror interface {
		AppendTransaction(ctx context.Context, userID string, t core.Transaction) (rowRef string, err error)
		DeleteTransaction(ctx context.Context, id string) error
	}
)
