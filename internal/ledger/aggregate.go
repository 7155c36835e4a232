package ledger

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"spendwise/internal/core"
)

type Period int

const (
	Daily Period = iota
	Weekly
	Monthly
)

func (p Period) String() string {
	switch p {
	case Daily:
		return "daily"
	case Weekly:
		return "weekly"
	case Monthly:
		return "monthly"
	default:
		return fmt.Sprintf("period(%d)", int(p))
	}
}

// ParsePeriod accepts daily, weekly or monthly in any case.
func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily":
		return Daily, nil
	case "weekly":
		return Weekly, nil
	case "monthly":
		return Monthly, nil
	}
	return 0, fmt.Errorf("%w: unknown period %q", core.ErrValidation, s)
}

// Window is an inclusive time range.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// PeriodWindow returns the full-day bounded window around ref, computed in
// ref's location. Weeks start on Sunday.
func PeriodWindow(ref time.Time, p Period) Window {
	loc := ref.Location()
	y, m, d := ref.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, loc)

	var start, next time.Time
	switch p {
	case Daily:
		start, next = day, day.AddDate(0, 0, 1)
	case Weekly:
		start = day.AddDate(0, 0, -int(ref.Weekday()))
		next = start.AddDate(0, 0, 7)
	default:
		start = time.Date(y, m, 1, 0, 0, 0, 0, loc)
		next = start.AddDate(0, 1, 0)
	}
	return Window{Start: start, End: next.Add(-time.Nanosecond)}
}

// FilterPeriod keeps the transactions dated inside the period window around
// ref. Input order is preserved and the input slice is never modified.
func FilterPeriod(txns []core.Transaction, ref time.Time, p Period) []core.Transaction {
	return FilterWindow(txns, PeriodWindow(ref, p))
}

func FilterWindow(txns []core.Transaction, w Window) []core.Transaction {
	out := make([]core.Transaction, 0)
	for _, t := range txns {
		if w.Contains(t.Date) {
			out = append(out, t)
		}
	}
	return out
}

func ExpenseSum(txns []core.Transaction) core.Money {
	var total core.Money
	for _, t := range txns {
		total = total.Add(t.Amount)
	}
	return total
}

// IncomeForPeriod returns the cumulative income regardless of period. Income
// is stored as running counters without dates, so there is nothing to window.
func IncomeForPeriod(b core.Balance, _ Period) core.Money {
	return b.Income
}

var hundred = decimal.NewFromInt(100)

// SpendRatio is expenses as a percentage of balance, clamped to [0, 100].
// It is 0 when balance is not positive.
func SpendRatio(expenses, balance core.Money) float64 {
	if balance.Cents <= 0 {
		return 0
	}
	r := expenses.Decimal().Div(balance.Decimal()).Mul(hundred)
	if r.LessThan(decimal.Zero) {
		return 0
	}
	if r.GreaterThan(hundred) {
		return 100
	}
	f, _ := r.Round(2).Float64()
	return f
}

// TrendMonths is the number of calendar months in a trend series.
const TrendMonths = 6

var trendPlaceholder = []float64{10, 20, 15, 30, 25, 40}

// TrendSeries holds per-month expense totals, oldest first.
type TrendSeries struct {
	Months []time.Time
	Labels []string
	Values []core.Money
}

func (s TrendSeries) IsEmpty() bool {
	for _, v := range s.Values {
		if !v.IsZero() {
			return false
		}
	}
	return true
}

// Display returns chart values in currency units. An all-zero series is
// replaced by a fixed placeholder shape; Values itself is never touched.
func (s TrendSeries) Display() []float64 {
	if s.IsEmpty() {
		return append([]float64(nil), trendPlaceholder...)
	}
	out := make([]float64, len(s.Values))
	for i, v := range s.Values {
		out[i] = v.Float()
	}
	return out
}

// MonthlyTrend buckets expenses into the six calendar months ending with
// ref's month. Months without expenses are present with zero.
func MonthlyTrend(txns []core.Transaction, ref time.Time) TrendSeries {
	loc := ref.Location()
	y, m, _ := ref.Date()
	last := time.Date(y, m, 1, 0, 0, 0, 0, loc)

	s := TrendSeries{
		Months: make([]time.Time, TrendMonths),
		Labels: make([]string, TrendMonths),
		Values: make([]core.Money, TrendMonths),
	}
	index := make(map[int]int, TrendMonths)
	for i := 0; i < TrendMonths; i++ {
		month := last.AddDate(0, i-(TrendMonths-1), 0)
		s.Months[i] = month
		s.Labels[i] = month.Format("Jan 2006")
		index[monthKey(month)] = i
	}
	for _, t := range txns {
		if i, ok := index[monthKey(t.Date.In(loc))]; ok {
			s.Values[i] = s.Values[i].Add(t.Amount)
		}
	}
	return s
}

func monthKey(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}

// Slice is one entry of a pie/legend breakdown.
type Slice struct {
	Name        string
	Icon        string
	Value       core.Money
	Color       string
	Placeholder bool
}

const NoDataLabel = "No Data"

// IncomeBreakdown lists catalog income sources with a positive total, in
// catalog order. With nothing to show it returns a single placeholder slice.
func IncomeBreakdown(b core.Balance) []Slice {
	var out []Slice
	for _, src := range core.IncomeSources() {
		v := b.IncomeSources[src.Name]
		if v.Cents <= 0 {
			continue
		}
		out = append(out, Slice{Name: src.Name, Icon: src.Icon, Value: v, Color: Color(src.Name)})
	}
	if len(out) == 0 {
		return []Slice{{Name: NoDataLabel, Value: core.Money{Cents: 100}, Color: PlaceholderColor, Placeholder: true}}
	}
	return out
}

// CategoryBreakdown totals spend per category: catalog categories first in
// catalog order, then free-form names alphabetically.
func CategoryBreakdown(txns []core.Transaction) []Slice {
	totals := make(map[string]core.Money)
	for _, t := range txns {
		totals[t.Category] = totals[t.Category].Add(t.Amount)
	}

	out := make([]Slice, 0, len(totals))
	for _, c := range core.Categories() {
		if v, ok := totals[c.Name]; ok {
			out = append(out, Slice{Name: c.Name, Icon: c.Icon, Value: v, Color: Color(c.Name)})
			delete(totals, c.Name)
		}
	}
	rest := make([]string, 0, len(totals))
	for name := range totals {
		rest = append(rest, name)
	}
	sort.Strings(rest)
	for _, name := range rest {
		out = append(out, Slice{Name: name, Icon: core.CategoryIcon(name), Value: totals[name], Color: Color(name)})
	}
	return out
}

// Summary is everything the analysis view shows for one period.
type Summary struct {
	Period        Period
	Window        Window
	Transactions  []core.Transaction
	Expenses      core.Money
	Income        core.Money
	TotalExpenses core.Money
	Balance       core.Money
	SpendRatio    float64
}

func Summarize(s Snapshot, ref time.Time, p Period) Summary {
	w := PeriodWindow(ref, p)
	in := FilterWindow(s.Transactions, w)
	total := s.TotalExpenses()
	return Summary{
		Period:        p,
		Window:        w,
		Transactions:  in,
		Expenses:      ExpenseSum(in),
		Income:        IncomeForPeriod(s.Balance, p),
		TotalExpenses: total,
		Balance:       s.Balance.Amount,
		SpendRatio:    SpendRatio(total, s.Balance.Amount),
	}
}

type MonthGroup struct {
	Month        time.Time
	Label        string
	Transactions []core.Transaction
	Total        core.Money
}

// GroupByMonth sections transactions by calendar month in loc, newest month
// first. Within a month the snapshot order is kept.
func GroupByMonth(txns []core.Transaction, loc *time.Location) []MonthGroup {
	sorted := append([]core.Transaction(nil), txns...)
	SortTransactions(sorted)

	var groups []MonthGroup
	for _, t := range sorted {
		d := t.Date.In(loc)
		month := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, loc)
		if n := len(groups); n == 0 || !groups[n-1].Month.Equal(month) {
			groups = append(groups, MonthGroup{Month: month, Label: month.Format("January 2006")})
		}
		g := &groups[len(groups)-1]
		g.Transactions = append(g.Transactions, t)
		g.Total = g.Total.Add(t.Amount)
	}
	return groups
}

// Drift is how far the stored balance is from income minus all expenses.
// Zero means the record is consistent.
func Drift(s Snapshot) core.Money {
	return s.Balance.Amount.Sub(s.Balance.Income.Sub(s.TotalExpenses()))
}
