package amqp

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"spendwise/internal/core"
	"spendwise/internal/ledger"
)

// TransactionPayload is the wire form of a recorded expense.
type TransactionPayload struct {
	ID          string    `json:"id"`
	AmountCents int64     `json:"amount_cents"`
	Title       string    `json:"title"`
	Category    string    `json:"category"`
	Message     string    `json:"message,omitempty"`
	Date        time.Time `json:"date"`
	CreatedAt   time.Time `json:"created_at"`
}

// LedgerEventMessage carries one committed ledger mutation. Consumers get the
// post-mutation balance and, for expense events, the affected transaction.
type LedgerEventMessage struct {
	ID           string              `json:"id"`
	Type         string              `json:"type"`
	UserID       string              `json:"user_id"`
	Transaction  *TransactionPayload `json:"transaction,omitempty"`
	Source       string              `json:"source,omitempty"`
	AmountCents  int64               `json:"amount_cents,omitempty"`
	BalanceCents int64               `json:"balance_cents"`
	IncomeCents  int64               `json:"income_cents"`
	Timestamp    time.Time           `json:"timestamp"`
}

var errMalformedMessage = errors.New("malformed ledger event message")

// NewLedgerEventMessage converts a bus event into its wire form.
func NewLedgerEventMessage(e ledger.Event) *LedgerEventMessage {
	ts := e.At
	if ts.IsZero() {
		ts = time.Now()
	}
	msg := &LedgerEventMessage{
		ID:           uuid.NewString(),
		Type:         string(e.Type),
		UserID:       e.UserID,
		Source:       e.Source,
		AmountCents:  e.Amount.Cents,
		BalanceCents: e.Balance.Amount.Cents,
		IncomeCents:  e.Balance.Income.Cents,
		Timestamp:    ts,
	}
	if e.Transaction != nil {
		t := e.Transaction
		msg.Transaction = &TransactionPayload{
			ID:          t.ID,
			AmountCents: t.Amount.Cents,
			Title:       t.Title,
			Category:    t.Category,
			Message:     t.Message,
			Date:        t.Date,
			CreatedAt:   t.CreatedAt,
		}
	}
	return msg
}

// ToJSON converts the message to JSON bytes
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventMessageFromJSON decodes and sanity-checks a message body.
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %w", errMalformedMessage, err)
	}
	if msg.Type == "" || msg.UserID == "" {
		return nil, fmt.Errorf("%w: missing type or user_id", errMalformedMessage)
	}
	return &msg, nil
}

// CoreTransaction returns the transaction carried by the message, if any.
func (m *LedgerEventMessage) CoreTransaction() (core.Transaction, bool) {
	if m.Transaction == nil {
		return core.Transaction{}, false
	}
	t := m.Transaction
	return core.Transaction{
		ID:        t.ID,
		Amount:    core.Money{Cents: t.AmountCents},
		Title:     t.Title,
		Category:  t.Category,
		Message:   t.Message,
		Date:      t.Date,
		CreatedAt: t.CreatedAt,
	}, true
}
