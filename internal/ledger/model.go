package ledger

import (
	"sort"
	"sync"
	"time"

	"spendwise/internal/core"
)

// State of a single user's ledger.
type State int

const (
	Unloaded State = iota
	Loaded
	LoadFailed
)

func (s State) String() string {
	switch s {
	case Loaded:
		return "loaded"
	case LoadFailed:
		return "load_failed"
	default:
		return "unloaded"
	}
}

// Snapshot is an immutable view of one user's balance and transactions.
// Transactions are newest first.
type Snapshot struct {
	UserID       string
	Balance      core.Balance
	Transactions []core.Transaction
	// Exists is false until a balance record has been written.
	Exists bool
}

// NewSnapshot copies and sorts txns.
func NewSnapshot(userID string, b core.Balance, txns []core.Transaction, exists bool) Snapshot {
	sorted := append([]core.Transaction(nil), txns...)
	SortTransactions(sorted)
	return Snapshot{
		UserID:       userID,
		Balance:      b.Clone(),
		Transactions: sorted,
		Exists:       exists,
	}
}

// SortTransactions orders by date desc, then createdAt desc, then id desc so
// equal dates always render in the same order.
func SortTransactions(txns []core.Transaction) {
	sort.SliceStable(txns, func(i, j int) bool {
		a, b := txns[i], txns[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}

// TotalExpenses re-sums every transaction.
func (s Snapshot) TotalExpenses() core.Money {
	return ExpenseSum(s.Transactions)
}

func (s Snapshot) Find(id string) (core.Transaction, bool) {
	for _, t := range s.Transactions {
		if t.ID == id {
			return t, true
		}
	}
	return core.Transaction{}, false
}

func (s Snapshot) withTransaction(t core.Transaction, b core.Balance) Snapshot {
	txns := make([]core.Transaction, 0, len(s.Transactions)+1)
	txns = append(txns, s.Transactions...)
	txns = append(txns, t)
	return NewSnapshot(s.UserID, b, txns, true)
}

func (s Snapshot) withoutTransaction(id string, b core.Balance) Snapshot {
	txns := make([]core.Transaction, 0, len(s.Transactions))
	for _, t := range s.Transactions {
		if t.ID != id {
			txns = append(txns, t)
		}
	}
	return Snapshot{UserID: s.UserID, Balance: b.Clone(), Transactions: txns, Exists: true}
}

// Ledger holds one user's snapshot. mu serializes mutations for the user.
// refs and lastUsed are guarded by the owning Service's mutex.
type Ledger struct {
	mu    sync.Mutex
	state State
	snap  Snapshot

	refs     int
	lastUsed time.Time
}

func (l *Ledger) set(s Snapshot) {
	l.snap = s
	l.state = Loaded
}
