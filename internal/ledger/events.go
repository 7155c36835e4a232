package ledger

import (
	"sync"
	"time"

	"spendwise/internal/core"
)

type EventType string

const (
	EventBalanceSet         EventType = "balance.set"
	EventIncomeAdded        EventType = "income.added"
	EventExpenseAdded       EventType = "expense.added"
	EventTransactionDeleted EventType = "transaction.deleted"
)

// Event describes a committed mutation. Balance is the post-mutation record.
type Event struct {
	Type        EventType
	UserID      string
	Balance     core.Balance
	Transaction *core.Transaction
	Source      string
	Amount      core.Money
	At          time.Time
}

// Bus fans events out to subscribers synchronously, in subscription order.
type Bus struct {
	mu   sync.RWMutex
	next int
	subs map[int]func(Event)
	ids  []int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(Event))}
}

// Subscribe registers fn and returns a func that removes it.
func (b *Bus) Subscribe(fn func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.ids = append(b.ids, id)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			for i, v := range b.ids {
				if v == id {
					b.ids = append(b.ids[:i:i], b.ids[i+1:]...)
					break
				}
			}
		})
	}
}

func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	fns := make([]func(Event), 0, len(b.ids))
	for _, id := range b.ids {
		fns = append(fns, b.subs[id])
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(e)
	}
}
