// Package http exposes the ledger as a JSON API.
//
// This file holds request decoding: JSON bodies, query parameters and the
// amount and date formats accepted on the wire.
package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"spendwise/internal/core"
	"spendwise/internal/ledger"
)

const maxBodyBytes = 64 << 10

var amountLimit = decimal.New(1, 15)

// errMalformedBody marks a request body that is not valid JSON for its
// endpoint. It maps to 400, unlike field validation which maps to 422.
var errMalformedBody = errors.New("malformed request body")

type balanceRequest struct {
	Amount        string            `json:"amount"`
	Income        *string           `json:"income"`
	IncomeSources map[string]string `json:"income_sources"`
}

type incomeRequest struct {
	Source string `json:"source"`
	Amount string `json:"amount"`
}

type expenseRequest struct {
	Amount   string `json:"amount"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Message  string `json:"message"`
	Date     string `json:"date"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return fmt.Errorf("%w: empty body", errMalformedBody)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	return nil
}

// parseSignedAmount accepts the same notation as core.ParseAmount but also
// allows zero and negative values, which a balance may legitimately hold.
func parseSignedAmount(s string) (core.Money, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" || strings.ContainsAny(s, "eE") {
		return core.Money{}, core.ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.Abs().GreaterThanOrEqual(amountLimit) {
		return core.Money{}, core.ErrInvalidAmount
	}
	return core.MoneyFromDecimal(d), nil
}

func (req balanceRequest) toUpdate() (ledger.BalanceUpdate, error) {
	amount, err := parseSignedAmount(req.Amount)
	if err != nil {
		return ledger.BalanceUpdate{}, err
	}
	u := ledger.BalanceUpdate{Amount: amount}
	if req.Income != nil {
		income, err := parseSignedAmount(*req.Income)
		if err != nil {
			return ledger.BalanceUpdate{}, err
		}
		u.Income = &income
	}
	if req.IncomeSources != nil {
		u.IncomeSources = make(map[string]core.Money, len(req.IncomeSources))
		for name, text := range req.IncomeSources {
			v, err := parseSignedAmount(text)
			if err != nil {
				return ledger.BalanceUpdate{}, fmt.Errorf("%w (%s)", err, name)
			}
			u.IncomeSources[name] = v
		}
	}
	return u, nil
}

// toInput converts the request. An empty date is left zero so the ledger
// stamps the current time.
func (req expenseRequest) toInput(loc *time.Location) (core.TransactionInput, error) {
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		return core.TransactionInput{}, err
	}
	in := core.TransactionInput{
		Amount:   amount,
		Title:    req.Title,
		Category: req.Category,
		Message:  req.Message,
	}
	if strings.TrimSpace(req.Date) != "" {
		d, err := parseDate(req.Date, loc)
		if err != nil {
			return core.TransactionInput{}, err
		}
		in.Date = d
	}
	return in, nil
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", core.ErrValidation)
	}
	return d, nil
}

// refDate reads the optional date query parameter, defaulting to now in loc.
// The reference is placed at noon so window math never straddles a DST edge.
func refDate(r *http.Request, now time.Time, loc *time.Location) (time.Time, error) {
	v := strings.TrimSpace(r.URL.Query().Get("date"))
	if v == "" {
		return now.In(loc), nil
	}
	d, err := parseDate(v, loc)
	if err != nil {
		return time.Time{}, err
	}
	return d.Add(12 * time.Hour), nil
}

// periodParam reads the period query parameter, defaulting to monthly.
func periodParam(r *http.Request) (ledger.Period, error) {
	v := strings.TrimSpace(r.URL.Query().Get("period"))
	if v == "" {
		return ledger.Monthly, nil
	}
	return ledger.ParsePeriod(v)
}
