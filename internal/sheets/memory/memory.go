package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"spendwise/internal/core"
	ports "spendwise/internal/sheets"
)

var _ ports.TransactionMirror = (*Mirror)(nil)

// Row is one mirrored transaction.
type Row struct {
	UserID      string
	Transaction core.Transaction
}

// Mirror keeps mirrored rows in memory, in append order.
type Mirror struct {
	mu   sync.Mutex
	rows []Row
}

func New() *Mirror {
	return &Mirror{}
}

// AppendTransaction stores the row and returns a synthetic row reference.
// Appending an id twice keeps the first row.
func (m *Mirror) AppendTransaction(_ context.Context, userID string, t core.Transaction) (string, error) {
	if strings.TrimSpace(t.ID) == "" {
		return "", fmt.Errorf("%w: transaction id required", core.ErrValidation)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexOf(t.ID); i >= 0 {
		return fmt.Sprintf("mem:%d", i+1), nil
	}
	m.rows = append(m.rows, Row{UserID: userID, Transaction: t})
	return fmt.Sprintf("mem:%d", len(m.rows)), nil
}

func (m *Mirror) DeleteTransaction(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexOf(id); i >= 0 {
		m.rows = append(m.rows[:i], m.rows[i+1:]...)
	}
	return nil
}

// Rows returns a copy of the mirrored rows.
func (m *Mirror) Rows() []Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Row(nil), m.rows...)
}

func (m *Mirror) indexOf(id string) int {
	for i, r := range m.rows {
		if r.Transaction.ID == id {
			return i
		}
	}
	return -1
}
