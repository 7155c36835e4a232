package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"spendwise/internal/auth"
	"spendwise/internal/export"
	"spendwise/internal/ledger"
	"spendwise/internal/log"
	"spendwise/internal/store/memory"
)

const testSecret = "http-test-secret-0123"

var testNow = time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type testServer struct {
	t     *testing.T
	srv   *Server
	token string
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	svc := ledger.NewService(auth.ContextIdentity{}, memory.New(),
		ledger.WithClock(func() time.Time { return testNow }),
		ledger.WithLogger(log.Discard()))
	opts.Ledger = svc
	opts.Location = time.UTC
	opts.JWTSecret = testSecret
	opts.Logger = log.Discard()
	srv := NewServer(":0", opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	tok, err := auth.IssueToken(testSecret, "alice", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	return &testServer{t: t, srv: srv, token: tok}
}

func (ts *testServer) do(method, path, body string, authed bool) *httptest.ResponseRecorder {
	ts.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+ts.token)
	}
	rr := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t, Options{})
	for _, path := range []string{"/healthz", "/readyz"} {
		if rr := ts.do(http.MethodGet, path, "", false); rr.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rr.Code)
		}
	}

	down := newTestServer(t, Options{Ready: fakePinger{err: errors.New("connection refused")}})
	rr := down.do(http.MethodGet, "/readyz", "", false)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with failing store = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "not_ready") {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestCatalog(t *testing.T) {
	ts := newTestServer(t, Options{})
	rr := ts.do(http.MethodGet, "/api/catalog", "", false)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	got := decode[catalogDTO](t, rr)
	if len(got.Categories) == 0 || len(got.IncomeSources) == 0 {
		t.Errorf("empty catalog: %+v", got)
	}
}

func TestLedgerRequiresAuthentication(t *testing.T) {
	ts := newTestServer(t, Options{})
	paths := []struct{ method, path, body string }{
		{http.MethodGet, "/api/ledger", ""},
		{http.MethodGet, "/api/summary", ""},
		{http.MethodPost, "/api/expenses", `{"amount":"10","title":"x"}`},
		{http.MethodDelete, "/api/transactions/abc", ""},
	}
	for _, p := range paths {
		rr := ts.do(p.method, p.path, p.body, false)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s %s = %d, want 401", p.method, p.path, rr.Code)
		}
		if rr.Header().Get("WWW-Authenticate") == "" {
			t.Errorf("%s %s missing WWW-Authenticate", p.method, p.path)
		}
	}
}

func TestLedgerFlow(t *testing.T) {
	ts := newTestServer(t, Options{})

	rr := ts.do(http.MethodPut, "/api/balance", `{"amount":"1000"}`, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("set balance = %d %s", rr.Code, rr.Body.String())
	}

	rr = ts.do(http.MethodPost, "/api/income", `{"source":"salary","amount":"500"}`, true)
	if rr.Code != http.StatusCreated {
		t.Fatalf("add income = %d %s", rr.Code, rr.Body.String())
	}
	l := decode[ledgerDTO](t, rr)
	if l.Balance.Amount != "1500.00" || l.Balance.IncomeSources["Salary"] != "500.00" {
		t.Errorf("after income: %+v", l.Balance)
	}

	rr = ts.do(http.MethodPost, "/api/expenses",
		`{"amount":"150,50","title":" Dinner ","category":"food","date":"2026-10-15"}`, true)
	if rr.Code != http.StatusCreated {
		t.Fatalf("add expense = %d %s", rr.Code, rr.Body.String())
	}
	tx := decode[transactionDTO](t, rr)
	if tx.ID == "" || tx.Amount != "150.50" || tx.Title != "Dinner" || tx.Category != "Food" || tx.Date != "2026-10-15" {
		t.Errorf("transaction = %+v", tx)
	}
	if loc := rr.Header().Get("Location"); loc != "/api/transactions/"+tx.ID {
		t.Errorf("Location = %q", loc)
	}

	l = decode[ledgerDTO](t, ts.do(http.MethodGet, "/api/ledger", "", true))
	if l.Balance.Amount != "1349.50" || l.TotalExpenses != "150.50" || len(l.Transactions) != 1 {
		t.Errorf("ledger = %+v", l)
	}

	rr = ts.do(http.MethodDelete, "/api/transactions/"+tx.ID, "", true)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete = %d %s", rr.Code, rr.Body.String())
	}
	l = decode[ledgerDTO](t, ts.do(http.MethodGet, "/api/ledger", "", true))
	if l.Balance.Amount != "1500.00" || len(l.Transactions) != 0 {
		t.Errorf("after delete: %+v", l)
	}
}

func TestErrorMapping(t *testing.T) {
	ts := newTestServer(t, Options{})
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"malformed json", http.MethodPost, "/api/expenses", `{"amount":`, http.StatusBadRequest},
		{"empty body", http.MethodPost, "/api/income", "", http.StatusBadRequest},
		{"bad amount", http.MethodPost, "/api/expenses", `{"amount":"abc","title":"x"}`, http.StatusUnprocessableEntity},
		{"empty title", http.MethodPost, "/api/expenses", `{"amount":"5","title":"  "}`, http.StatusUnprocessableEntity},
		{"bad date", http.MethodPost, "/api/expenses", `{"amount":"5","title":"x","date":"17/10/2026"}`, http.StatusUnprocessableEntity},
		{"unknown source", http.MethodPost, "/api/income", `{"source":"Lottery","amount":"5"}`, http.StatusUnprocessableEntity},
		{"bad balance", http.MethodPut, "/api/balance", `{"amount":"lots"}`, http.StatusUnprocessableEntity},
		{"bad period", http.MethodGet, "/api/summary?period=yearly", "", http.StatusUnprocessableEntity},
		{"unknown transaction", http.MethodDelete, "/api/transactions/nope", "", http.StatusNotFound},
		{"unknown route", http.MethodGet, "/api/nothing", "", http.StatusNotFound},
		{"wrong method", http.MethodPost, "/api/ledger", "", http.StatusMethodNotAllowed},
		{"wrong method on api path with vars", http.MethodGet, "/api/transactions/abc", "", http.StatusMethodNotAllowed},
		{"date before supported range", http.MethodPost, "/api/expenses", `{"amount":"5","title":"x","date":"1600-03-01"}`, http.StatusUnprocessableEntity},
		{"date after supported range", http.MethodPost, "/api/expenses", `{"amount":"5","title":"x","date":"2300-01-01"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(tt.method, tt.path, tt.body, true)
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rr.Code, tt.want, rr.Body.String())
			}
			if body := decode[errorBody](t, rr); body.Error == "" {
				t.Error("error body should carry a message")
			}
		})
	}
}

func TestNegativeBalanceAccepted(t *testing.T) {
	ts := newTestServer(t, Options{})
	rr := ts.do(http.MethodPut, "/api/balance", `{"amount":"-20.5","income":"0"}`, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d %s", rr.Code, rr.Body.String())
	}
	if l := decode[ledgerDTO](t, rr); l.Balance.Amount != "-20.50" {
		t.Errorf("balance = %s", l.Balance.Amount)
	}
}

func TestSummaryCacheInvalidatedByMutation(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.do(http.MethodPut, "/api/balance", `{"amount":"1000"}`, true)

	path := "/api/summary?period=monthly&date=2026-10-17"
	first := decode[summaryDTO](t, ts.do(http.MethodGet, path, "", true))
	if first.Expenses != "0.00" || first.Period != "monthly" {
		t.Fatalf("first summary = %+v", first)
	}

	ts.do(http.MethodPost, "/api/expenses", `{"amount":"40","title":"Taxi","date":"2026-10-02"}`, true)

	second := decode[summaryDTO](t, ts.do(http.MethodGet, path, "", true))
	if second.Expenses != "40.00" || second.Balance != "960.00" || len(second.Transactions) != 1 {
		t.Errorf("summary after expense = %+v", second)
	}
	if second.SpendRatio <= 0 {
		t.Errorf("spend ratio = %v", second.SpendRatio)
	}
}

func TestCharts(t *testing.T) {
	ts := newTestServer(t, Options{})

	trend := decode[trendDTO](t, ts.do(http.MethodGet, "/api/charts/trend?date=2026-10-17", "", true))
	if !trend.Empty || len(trend.Labels) != ledger.TrendMonths || trend.Labels[5] != "Oct 2026" {
		t.Errorf("empty trend = %+v", trend)
	}

	sources := decode[[]sliceDTO](t, ts.do(http.MethodGet, "/api/charts/income-sources", "", true))
	if len(sources) != 1 || !sources[0].Placeholder || sources[0].Name != ledger.NoDataLabel {
		t.Errorf("income sources = %+v", sources)
	}

	ts.do(http.MethodPost, "/api/expenses", `{"amount":"12","title":"Bus","category":"Transport","date":"2026-10-16"}`, true)
	ts.do(http.MethodPost, "/api/expenses", `{"amount":"30","title":"Pizza","category":"Food","date":"2026-10-16"}`, true)

	cats := decode[[]sliceDTO](t, ts.do(http.MethodGet, "/api/charts/categories?period=weekly&date=2026-10-17", "", true))
	if len(cats) != 2 || cats[0].Name != "Food" || cats[0].Value != "30.00" || cats[1].Name != "Transport" {
		t.Errorf("categories = %+v", cats)
	}

	groups := decode[[]monthGroupDTO](t, ts.do(http.MethodGet, "/api/transactions/by-month", "", true))
	if len(groups) != 1 || groups[0].Month != "2026-10" || groups[0].Total != "42.00" {
		t.Errorf("groups = %+v", groups)
	}
}

func TestExport(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.do(http.MethodPut, "/api/balance", `{"amount":"10"}`, true)

	rr := ts.do(http.MethodGet, "/api/export.xlsx", "", true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != export.ContentType {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "spendwise_20261017.xlsx") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	// XLSX files are zip archives.
	if !bytes.HasPrefix(rr.Body.Bytes(), []byte("PK")) {
		t.Error("body is not a zip archive")
	}
}

func TestMutationsAreRateLimited(t *testing.T) {
	ts := newTestServer(t, Options{RateLimitPerMinute: 2})
	for i := 0; i < 2; i++ {
		if rr := ts.do(http.MethodPost, "/api/income", `{"source":"Gifts","amount":"1"}`, true); rr.Code != http.StatusCreated {
			t.Fatalf("request %d = %d", i, rr.Code)
		}
	}
	rr := ts.do(http.MethodPost, "/api/income", `{"source":"Gifts","amount":"1"}`, true)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("third mutation = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	if rr := ts.do(http.MethodGet, "/api/ledger", "", true); rr.Code != http.StatusOK {
		t.Errorf("reads should not be limited, got %d", rr.Code)
	}
}

func TestMiddlewareChain(t *testing.T) {
	ts := newTestServer(t, Options{})

	rr := ts.do(http.MethodGet, "/healthz", "", false)
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}

	rr = ts.do("TRACE", "/api/ledger", "", true)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("TRACE = %d", rr.Code)
	}
}
