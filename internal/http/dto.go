package http

import (
	"time"

	"spendwise/internal/core"
	"spendwise/internal/ledger"
)

// Money crosses the wire as a fixed two-decimal string so clients never see
// float rounding.

const dateLayout = "2006-01-02"

type transactionDTO struct {
	ID        string    `json:"id"`
	Amount    string    `json:"amount"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	Icon      string    `json:"icon"`
	Message   string    `json:"message,omitempty"`
	Date      string    `json:"date"`
	CreatedAt time.Time `json:"created_at"`
}

type balanceDTO struct {
	Amount        string            `json:"amount"`
	Income        string            `json:"income"`
	IncomeSources map[string]string `json:"income_sources"`
	UpdatedAt     *time.Time        `json:"updated_at,omitempty"`
}

type ledgerDTO struct {
	UserID        string           `json:"user_id"`
	Exists        bool             `json:"exists"`
	Balance       balanceDTO       `json:"balance"`
	TotalExpenses string           `json:"total_expenses"`
	Transactions  []transactionDTO `json:"transactions"`
}

type summaryDTO struct {
	Period        string           `json:"period"`
	Start         time.Time        `json:"start"`
	End           time.Time        `json:"end"`
	Expenses      string           `json:"expenses"`
	Income        string           `json:"income"`
	TotalExpenses string           `json:"total_expenses"`
	Balance       string           `json:"balance"`
	SpendRatio    float64          `json:"spend_ratio"`
	Transactions  []transactionDTO `json:"transactions"`
}

type trendDTO struct {
	Labels  []string  `json:"labels"`
	Values  []string  `json:"values"`
	Display []float64 `json:"display"`
	Empty   bool      `json:"empty"`
}

type sliceDTO struct {
	Name        string `json:"name"`
	Icon        string `json:"icon,omitempty"`
	Value       string `json:"value"`
	Color       string `json:"color"`
	Placeholder bool   `json:"placeholder,omitempty"`
}

type monthGroupDTO struct {
	Month        string           `json:"month"`
	Label        string           `json:"label"`
	Total        string           `json:"total"`
	Transactions []transactionDTO `json:"transactions"`
}

type catalogDTO struct {
	Categories    []core.CatalogEntry `json:"categories"`
	IncomeSources []core.CatalogEntry `json:"income_sources"`
}

func newTransactionDTO(t core.Transaction, loc *time.Location) transactionDTO {
	return transactionDTO{
		ID:        t.ID,
		Amount:    t.Amount.String(),
		Title:     t.Title,
		Category:  t.Category,
		Icon:      core.CategoryIcon(t.Category),
		Message:   t.Message,
		Date:      t.Date.In(loc).Format(dateLayout),
		CreatedAt: t.CreatedAt,
	}
}

func newTransactionDTOs(txns []core.Transaction, loc *time.Location) []transactionDTO {
	out := make([]transactionDTO, 0, len(txns))
	for _, t := range txns {
		out = append(out, newTransactionDTO(t, loc))
	}
	return out
}

func newBalanceDTO(b core.Balance) balanceDTO {
	sources := make(map[string]string, len(b.IncomeSources))
	for name, v := range b.IncomeSources {
		sources[name] = v.String()
	}
	dto := balanceDTO{
		Amount:        b.Amount.String(),
		Income:        b.Income.String(),
		IncomeSources: sources,
	}
	if !b.UpdatedAt.IsZero() {
		at := b.UpdatedAt
		dto.UpdatedAt = &at
	}
	return dto
}

func newLedgerDTO(s ledger.Snapshot, loc *time.Location) ledgerDTO {
	return ledgerDTO{
		UserID:        s.UserID,
		Exists:        s.Exists,
		Balance:       newBalanceDTO(s.Balance),
		TotalExpenses: s.TotalExpenses().String(),
		Transactions:  newTransactionDTOs(s.Transactions, loc),
	}
}

func newSummaryDTO(s ledger.Summary, loc *time.Location) summaryDTO {
	return summaryDTO{
		Period:        s.Period.String(),
		Start:         s.Window.Start,
		End:           s.Window.End,
		Expenses:      s.Expenses.String(),
		Income:        s.Income.String(),
		TotalExpenses: s.TotalExpenses.String(),
		Balance:       s.Balance.String(),
		SpendRatio:    s.SpendRatio,
		Transactions:  newTransactionDTOs(s.Transactions, loc),
	}
}

func newTrendDTO(s ledger.TrendSeries) trendDTO {
	values := make([]string, len(s.Values))
	for i, v := range s.Values {
		values[i] = v.String()
	}
	return trendDTO{
		Labels:  s.Labels,
		Values:  values,
		Display: s.Display(),
		Empty:   s.IsEmpty(),
	}
}

func newSliceDTOs(slices []ledger.Slice) []sliceDTO {
	out := make([]sliceDTO, len(slices))
	for i, s := range slices {
		out[i] = sliceDTO{
			Name:        s.Name,
			Icon:        s.Icon,
			Value:       s.Value.String(),
			Color:       s.Color,
			Placeholder: s.Placeholder,
		}
	}
	return out
}

func newMonthGroupDTOs(groups []ledger.MonthGroup, loc *time.Location) []monthGroupDTO {
	out := make([]monthGroupDTO, len(groups))
	for i, g := range groups {
		out[i] = monthGroupDTO{
			Month:        g.Month.Format("2006-01"),
			Label:        g.Label,
			Total:        g.Total.String(),
			Transactions: newTransactionDTOs(g.Transactions, loc),
		}
	}
	return out
}
