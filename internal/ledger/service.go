package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"spendwise/internal/auth"
	"spendwise/internal/core"
	"spendwise/internal/log"
	"spendwise/internal/store"
)

const (
	DefaultStoreTimeout = 5 * time.Second
	// DefaultIdleTTL is how long an unused ledger stays in memory.
	DefaultIdleTTL = 30 * time.Minute
)

// Fetch reads a user's balance and transactions concurrently. A missing
// balance record yields an empty ledger. Any other failure wraps
// core.ErrStoreUnavailable.
func Fetch(ctx context.Context, st store.Store, userID string) (Snapshot, error) {
	var (
		bal    core.Balance
		exists = true
		txns   []core.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := st.GetBalance(gctx, userID)
		if errors.Is(err, core.ErrNotFound) {
			exists = false
			return nil
		}
		if err != nil {
			return fmt.Errorf("get balance: %w", err)
		}
		bal = b
		return nil
	})
	g.Go(func() error {
		list, err := st.ListTransactions(gctx, userID)
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		txns = list
		return nil
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
	}
	return NewSnapshot(userID, bal, txns, exists), nil
}

// BalanceUpdate overwrites the balance record. Nil Income and nil
// IncomeSources reset those fields.
type BalanceUpdate struct {
	Amount        core.Money
	Income        *core.Money
	IncomeSources map[string]core.Money
}

// Service owns the per-user ledgers and applies mutations to them.
type Service struct {
	identity auth.Identity
	store    store.Store
	bus      *Bus
	timeout  time.Duration
	now      func() time.Time
	logger   *log.Logger
	slog     *log.StructuredLogger

	mu      sync.Mutex
	ledgers map[string]*Ledger
}

type Option func(*Service)

func WithBus(b *Bus) Option { return func(s *Service) { s.bus = b } }

func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithLogger(l *log.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewService(identity auth.Identity, st store.Store, opts ...Option) *Service {
	s := &Service{
		identity: identity,
		store:    st,
		bus:      NewBus(),
		timeout:  DefaultStoreTimeout,
		now:      time.Now,
		logger:   log.New(log.DefaultConfig()),
		ledgers:  make(map[string]*Ledger),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(log.ComponentLedger)
	s.slog = log.NewStructuredLogger(s.logger)
	return s
}

func (s *Service) Bus() *Bus { return s.bus }

func (s *Service) Now() time.Time { return s.now() }

// acquire pins the user's ledger so EvictIdle leaves it alone until release.
func (s *Service) acquire(userID string) *Ledger {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.ledgers[userID]
	if !ok {
		l = &Ledger{}
		s.ledgers[userID] = l
	}
	l.refs++
	l.lastUsed = s.now()
	return l
}

func (s *Service) release(l *Ledger) {
	s.mu.Lock()
	l.refs--
	l.lastUsed = s.now()
	s.mu.Unlock()
}

// EvictIdle drops ledgers nobody has touched for idle and returns how many
// were removed. An evicted user is reloaded from the store on next access.
func (s *Service) EvictIdle(idle time.Duration) int {
	cutoff := s.now().Add(-idle)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for uid, l := range s.ledgers {
		if l.refs == 0 && l.lastUsed.Before(cutoff) {
			delete(s.ledgers, uid)
			n++
		}
	}
	return n
}

// RunEviction calls EvictIdle every idle/2 until ctx is done.
func (s *Service) RunEviction(ctx context.Context, idle time.Duration) {
	if idle <= 0 {
		idle = DefaultIdleTTL
	}
	ticker := time.NewTicker(idle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.EvictIdle(idle); n > 0 {
				s.logger.Debug("evicted idle ledgers", "count", n)
			}
		}
	}
}

func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// ensureLoaded must be called with l.mu held.
func (s *Service) ensureLoaded(ctx context.Context, userID string, l *Ledger, force bool) error {
	if l.state == Loaded && !force {
		return nil
	}
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	snap, err := Fetch(sctx, s.store, userID)
	if err != nil {
		l.state = LoadFailed
		s.logger.ErrorContext(ctx, "Failed to load ledger",
			log.NewFields().WithUser(userID).WithOperation(log.OpLoad).WithError(err).ToSlice()...)
		return err
	}
	l.set(snap)
	return nil
}

// UserID resolves the caller's identity.
func (s *Service) UserID(ctx context.Context) (string, error) {
	return s.currentUser(ctx)
}

func (s *Service) currentUser(ctx context.Context) (string, error) {
	if s.identity == nil {
		return "", core.ErrNotAuthenticated
	}
	return s.identity.CurrentUserID(ctx)
}

// Snapshot returns the current user's ledger, loading it on first use or
// after a failed load.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	return s.read(ctx, false)
}

// Reload discards the cached ledger and fetches it again.
func (s *Service) Reload(ctx context.Context) (Snapshot, error) {
	return s.read(ctx, true)
}

// State reports the load state of the current user's ledger without loading.
func (s *Service) State(ctx context.Context) (State, error) {
	uid, err := s.currentUser(ctx)
	if err != nil {
		return Unloaded, err
	}
	l := s.acquire(uid)
	defer s.release(l)
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state, nil
}

func (s *Service) read(ctx context.Context, force bool) (Snapshot, error) {
	uid, err := s.currentUser(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	l := s.acquire(uid)
	defer s.release(l)
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := s.ensureLoaded(ctx, uid, l, force); err != nil {
		return Snapshot{}, err
	}
	return l.snap, nil
}

// mutate runs fn under the user's lock on a loaded ledger and publishes the
// returned event once the lock is released.
func (s *Service) mutate(ctx context.Context, fn func(uid string, l *Ledger) (Event, error)) (Snapshot, error) {
	uid, err := s.currentUser(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	l := s.acquire(uid)
	defer s.release(l)

	l.mu.Lock()
	if err := s.ensureLoaded(ctx, uid, l, false); err != nil {
		l.mu.Unlock()
		return Snapshot{}, err
	}
	ev, err := fn(uid, l)
	snap := l.snap
	l.mu.Unlock()

	if err != nil {
		return Snapshot{}, err
	}
	ev.UserID = uid
	ev.Balance = snap.Balance.Clone()
	ev.At = s.now()
	s.bus.Publish(ev)
	return snap, nil
}

func (s *Service) SetBalance(ctx context.Context, u BalanceUpdate) (Snapshot, error) {
	if _, err := s.currentUser(ctx); err != nil {
		return Snapshot{}, err
	}
	next := core.Balance{Amount: u.Amount, IncomeSources: make(map[string]core.Money, len(u.IncomeSources))}
	if u.Income != nil {
		if u.Income.Cents < 0 {
			return Snapshot{}, fmt.Errorf("%w: income cannot be negative", core.ErrValidation)
		}
		next.Income = *u.Income
	}
	for name, v := range u.IncomeSources {
		src, ok := core.LookupIncomeSource(name)
		if !ok {
			return Snapshot{}, fmt.Errorf("%w: %q", core.ErrUnknownSource, name)
		}
		if v.Cents < 0 {
			return Snapshot{}, fmt.Errorf("%w: income for %s cannot be negative", core.ErrValidation, src.Name)
		}
		sum, err := next.IncomeSources[src.Name].CheckedAdd(v)
		if err != nil {
			return Snapshot{}, fmt.Errorf("%w (%s)", err, src.Name)
		}
		next.IncomeSources[src.Name] = sum
	}

	return s.mutate(ctx, func(uid string, l *Ledger) (Event, error) {
		next.UpdatedAt = s.now()
		sctx, cancel := s.storeCtx(ctx)
		defer cancel()
		if err := s.store.SetBalance(sctx, uid, next); err != nil {
			return Event{}, s.persistFailed(ctx, log.OpSetBalance, uid, err)
		}
		l.set(Snapshot{UserID: uid, Balance: next.Clone(), Transactions: l.snap.Transactions, Exists: true})
		s.slog.LogMutation(ctx, log.OpSetBalance, uid, next.Amount.Cents, log.NewFields())
		return Event{Type: EventBalanceSet, Amount: next.Amount}, nil
	})
}

// AddIncome credits amountText to sourceName and to the balance. It reads the
// in-memory snapshot and writes the whole record back, so two processes
// writing the same user can lose an update.
func (s *Service) AddIncome(ctx context.Context, sourceName, amountText string) (Snapshot, error) {
	if _, err := s.currentUser(ctx); err != nil {
		return Snapshot{}, err
	}
	amount, err := core.ParseAmount(amountText)
	if err != nil {
		return Snapshot{}, err
	}
	src, ok := core.LookupIncomeSource(sourceName)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %q", core.ErrUnknownSource, strings.TrimSpace(sourceName))
	}

	return s.mutate(ctx, func(uid string, l *Ledger) (Event, error) {
		next := l.snap.Balance.Clone()
		var err error
		if next.Amount, err = next.Amount.CheckedAdd(amount); err != nil {
			return Event{}, err
		}
		if next.Income, err = next.Income.CheckedAdd(amount); err != nil {
			return Event{}, err
		}
		if next.IncomeSources[src.Name], err = next.IncomeSources[src.Name].CheckedAdd(amount); err != nil {
			return Event{}, err
		}
		next.UpdatedAt = s.now()

		sctx, cancel := s.storeCtx(ctx)
		defer cancel()
		if err := s.store.SetBalance(sctx, uid, next); err != nil {
			return Event{}, s.persistFailed(ctx, log.OpAddIncome, uid, err)
		}
		l.set(Snapshot{UserID: uid, Balance: next, Transactions: l.snap.Transactions, Exists: true})
		s.slog.LogMutation(ctx, log.OpAddIncome, uid, next.Amount.Cents,
			log.NewFields().WithSource(src.Name, amount.Cents))
		return Event{Type: EventIncomeAdded, Source: src.Name, Amount: amount}, nil
	})
}

// AddExpense records an expense and debits the balance. A zero date means now.
func (s *Service) AddExpense(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	if _, err := s.currentUser(ctx); err != nil {
		return core.Transaction{}, err
	}
	in = in.Normalize()
	if in.Date.IsZero() {
		in.Date = s.now()
	}
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	var created core.Transaction
	_, err := s.mutate(ctx, func(uid string, l *Ledger) (Event, error) {
		if _, err := l.snap.TotalExpenses().CheckedAdd(in.Amount); err != nil {
			return Event{}, err
		}
		next := l.snap.Balance.Clone()
		var err error
		if next.Amount, err = next.Amount.CheckedSub(in.Amount); err != nil {
			return Event{}, err
		}
		next.UpdatedAt = s.now()

		t, err := s.commitExpense(ctx, uid, l, in, next)
		if err != nil {
			return Event{}, err
		}
		created = t
		l.set(l.snap.withTransaction(t, next))
		s.slog.LogMutation(ctx, log.OpAddExpense, uid, next.Amount.Cents,
			log.NewFields().WithTransaction(t.ID, t.Title, t.Category, t.Amount.Cents))
		return Event{Type: EventExpenseAdded, Transaction: &t, Amount: t.Amount}, nil
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return created, nil
}

func (s *Service) commitExpense(ctx context.Context, uid string, l *Ledger, in core.TransactionInput, next core.Balance) (core.Transaction, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if aw, ok := s.store.(store.AtomicWriter); ok {
		t, err := aw.CommitExpense(sctx, uid, in, next)
		if err != nil {
			return core.Transaction{}, s.persistFailed(ctx, log.OpAddExpense, uid, err)
		}
		return t, nil
	}

	t, err := s.store.AddTransaction(sctx, uid, in)
	if err != nil {
		return core.Transaction{}, s.persistFailed(ctx, log.OpAddExpense, uid, err)
	}
	if err := s.store.SetBalance(sctx, uid, next); err != nil {
		cctx, ccancel := s.storeCtx(context.WithoutCancel(ctx))
		defer ccancel()
		if cerr := s.store.DeleteTransaction(cctx, uid, t.ID); cerr != nil {
			l.state = LoadFailed
			s.logger.ErrorContext(ctx, "Compensating delete failed, ledger needs reload",
				log.NewFields().WithUser(uid).WithOperation(log.OpCompensate).
					WithTransaction(t.ID, t.Title, t.Category, t.Amount.Cents).WithError(cerr).ToSlice()...)
			return core.Transaction{}, fmt.Errorf("%w: update balance: %w (compensation failed: %v)", core.ErrPersistence, err, cerr)
		}
		return core.Transaction{}, s.persistFailed(ctx, log.OpAddExpense, uid, err)
	}
	return t, nil
}

// DeleteTransaction removes the transaction and credits its amount back to
// the balance.
func (s *Service) DeleteTransaction(ctx context.Context, id string) error {
	if _, err := s.currentUser(ctx); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: empty transaction id", core.ErrValidation)
	}
	_, err := s.mutate(ctx, func(uid string, l *Ledger) (Event, error) {
		t, ok := l.snap.Find(id)
		if !ok {
			return Event{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
		}
		next := l.snap.Balance.Clone()
		var err error
		if next.Amount, err = next.Amount.CheckedAdd(t.Amount); err != nil {
			return Event{}, err
		}
		next.UpdatedAt = s.now()

		if err := s.commitDelete(ctx, uid, l, t, next); err != nil {
			return Event{}, err
		}
		l.set(l.snap.withoutTransaction(id, next))
		s.slog.LogMutation(ctx, log.OpDelete, uid, next.Amount.Cents,
			log.NewFields().WithTransaction(t.ID, t.Title, t.Category, t.Amount.Cents))
		return Event{Type: EventTransactionDeleted, Transaction: &t, Amount: t.Amount}, nil
	})
	return err
}

func (s *Service) commitDelete(ctx context.Context, uid string, l *Ledger, t core.Transaction, next core.Balance) error {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if aw, ok := s.store.(store.AtomicWriter); ok {
		if err := aw.CommitDelete(sctx, uid, t.ID, next); err != nil {
			return s.deleteFailed(ctx, uid, l, err)
		}
		return nil
	}

	if err := s.store.DeleteTransaction(sctx, uid, t.ID); err != nil {
		return s.deleteFailed(ctx, uid, l, err)
	}
	if err := s.store.SetBalance(sctx, uid, next); err != nil {
		// The store assigns ids, so the compensating re-add gets a new one.
		cctx, ccancel := s.storeCtx(context.WithoutCancel(ctx))
		defer ccancel()
		_, cerr := s.store.AddTransaction(cctx, uid, core.TransactionInput{
			Amount: t.Amount, Title: t.Title, Category: t.Category, Message: t.Message, Date: t.Date,
		})
		// Either way the cached id is stale now.
		l.state = LoadFailed
		if cerr != nil {
			s.logger.ErrorContext(ctx, "Compensating re-add failed, ledger needs reload",
				log.NewFields().WithUser(uid).WithOperation(log.OpCompensate).
					WithTransaction(t.ID, t.Title, t.Category, t.Amount.Cents).WithError(cerr).ToSlice()...)
			return fmt.Errorf("%w: update balance: %w (compensation failed: %v)", core.ErrPersistence, err, cerr)
		}
		return s.persistFailed(ctx, log.OpDelete, uid, err)
	}
	return nil
}

// deleteFailed maps a store ErrNotFound (the row vanished under us) to
// ErrNotFound and forces a reload on next access.
func (s *Service) deleteFailed(ctx context.Context, uid string, l *Ledger, err error) error {
	if errors.Is(err, core.ErrNotFound) {
		l.state = Unloaded
		return err
	}
	return s.persistFailed(ctx, log.OpDelete, uid, err)
}

func (s *Service) persistFailed(ctx context.Context, op, uid string, err error) error {
	s.logger.ErrorContext(ctx, "Ledger mutation failed",
		log.NewFields().WithUser(uid).WithOperation(op).WithError(err).ToSlice()...)
	return fmt.Errorf("%w: %s: %w", core.ErrPersistence, op, err)
}
