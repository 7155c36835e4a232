package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"spendwise/internal/core"
	"spendwise/internal/store"
)

var (
	_ store.Store        = (*Store)(nil)
	_ store.AtomicWriter = (*Store)(nil)
	_ store.UserLister   = (*Store)(nil)
)

// Store keeps ledgers in process memory. Useful for local runs and tests.
type Store struct {
	mu       sync.Mutex
	balances map[string]core.Balance
	txns     map[string][]core.Transaction
	now      func() time.Time
}

func New() *Store {
	return &Store{
		balances: make(map[string]core.Balance),
		txns:     make(map[string][]core.Transaction),
		now:      time.Now,
	}
}

// WithClock overrides the CreatedAt clock.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) GetBalance(_ context.Context, userID string) (core.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.balances[userID]
	if !ok {
		return core.Balance{}, core.ErrNotFound
	}
	return b.Clone(), nil
}

func (s *Store) SetBalance(_ context.Context, userID string, b core.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[userID] = b.Clone()
	return nil
}

func (s *Store) ListTransactions(_ context.Context, userID string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.txns[userID]...), nil
}

// AddTransaction stores the expense with a fresh UUID.
func (s *Store) AddTransaction(_ context.Context, userID string, in core.TransactionInput) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(userID, in), nil
}

func (s *Store) DeleteTransaction(_ context.Context, userID string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(userID, id)
}

func (s *Store) CommitExpense(_ context.Context, userID string, in core.TransactionInput, b core.Balance) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.addLocked(userID, in)
	s.balances[userID] = b.Clone()
	return t, nil
}

func (s *Store) CommitDelete(_ context.Context, userID string, id string, b core.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.deleteLocked(userID, id); err != nil {
		return err
	}
	s.balances[userID] = b.Clone()
	return nil
}

func (s *Store) ListUserIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{}, len(s.balances))
	for id := range s.balances {
		seen[id] = struct{}{}
	}
	for id := range s.txns {
		seen[id] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) addLocked(userID string, in core.TransactionInput) core.Transaction {
	t := core.Transaction{
		ID:        uuid.NewString(),
		Amount:    in.Amount,
		Title:     in.Title,
		Category:  in.Category,
		Message:   in.Message,
		Date:      in.Date,
		CreatedAt: s.now(),
	}
	s.txns[userID] = append(s.txns[userID], t)
	return t
}

func (s *Store) deleteLocked(userID, id string) error {
	list := s.txns[userID]
	for i, t := range list {
		if t.ID == id {
			s.txns[userID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return core.ErrNotFound
}
