package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	maxTitleLength   = 200
	maxMessageLength = 500

	// Stores keep dates as Unix nanoseconds, defined for 1678 to 2262.
	minDateYear = 1900
	maxDateYear = 2200
)

type (
	Money struct {
		Cents int64
	}

	// Transaction is a single recorded expense. Income is never stored as a
	// transaction; it lives in Balance as cumulative counters.
	Transaction struct {
		ID        string
		Amount    Money
		Title     string
		Category  string
		Message   string
		Date      time.Time // user supplied
		CreatedAt time.Time // store assigned
	}

	// TransactionInput is what a caller provides to record an expense.
	TransactionInput struct {
		Amount   Money
		Title    string
		Category string
		Message  string
		Date     time.Time
	}

	// Balance is the per-user summary record.
	Balance struct {
		Amount        Money // may go negative when overspent
		Income        Money // cumulative
		IncomeSources map[string]Money
		UpdatedAt     time.Time
	}
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrValidation       = errors.New("validation error")
	ErrPersistence      = errors.New("persistence error")
	ErrNotFound         = errors.New("not found")
	ErrStoreUnavailable = errors.New("store unavailable")
)

var (
	ErrInvalidAmount = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrEmptyTitle    = fmt.Errorf("%w: empty title", ErrValidation)
	ErrTitleTooLong  = fmt.Errorf("%w: title too long (max %d characters)", ErrValidation, maxTitleLength)
	ErrMessageLong   = fmt.Errorf("%w: message too long (max %d characters)", ErrValidation, maxMessageLength)
	ErrInvalidDate   = fmt.Errorf("%w: date cannot be zero", ErrValidation)
	ErrDateRange     = fmt.Errorf("%w: date must fall between %d and %d", ErrValidation, minDateYear, maxDateYear)
	ErrAmountRange   = fmt.Errorf("%w: total out of range", ErrValidation)
	ErrUnknownSource = fmt.Errorf("%w: unknown income source", ErrValidation)
)

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

// CheckedAdd is Add that reports int64 overflow as ErrAmountRange.
func (m Money) CheckedAdd(o Money) (Money, error) {
	if (o.Cents > 0 && m.Cents > math.MaxInt64-o.Cents) ||
		(o.Cents < 0 && m.Cents < math.MinInt64-o.Cents) {
		return Money{}, ErrAmountRange
	}
	return Money{Cents: m.Cents + o.Cents}, nil
}

// CheckedSub is Sub that reports int64 overflow as ErrAmountRange.
func (m Money) CheckedSub(o Money) (Money, error) {
	if (o.Cents < 0 && m.Cents > math.MaxInt64+o.Cents) ||
		(o.Cents > 0 && m.Cents < math.MinInt64+o.Cents) {
		return Money{}, ErrAmountRange
	}
	return Money{Cents: m.Cents - o.Cents}, nil
}

func (m Money) IsZero() bool { return m.Cents == 0 }

// Normalize trims free text and resolves the category against the catalog.
// An empty category becomes Other; catalog names are matched
// case-insensitively; anything else is kept as a free-form name.
func (in TransactionInput) Normalize() TransactionInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Message = strings.TrimSpace(in.Message)
	in.Category = strings.TrimSpace(in.Category)
	if in.Category == "" {
		in.Category = CategoryOther
	} else if c, ok := LookupCategory(in.Category); ok {
		in.Category = c.Name
	}
	return in
}

func (in TransactionInput) Validate() error {
	if err := in.Amount.Validate(); err != nil {
		return err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return ErrEmptyTitle
	}
	if len(title) > maxTitleLength {
		return ErrTitleTooLong
	}
	if len(in.Message) > maxMessageLength {
		return ErrMessageLong
	}
	if in.Date.IsZero() {
		return ErrInvalidDate
	}
	if y := in.Date.UTC().Year(); y < minDateYear || y > maxDateYear {
		return ErrDateRange
	}
	return nil
}

// Clone returns a copy whose IncomeSources map is not shared.
func (b Balance) Clone() Balance {
	out := b
	out.IncomeSources = make(map[string]Money, len(b.IncomeSources))
	for k, v := range b.IncomeSources {
		out.IncomeSources[k] = v
	}
	return out
}
