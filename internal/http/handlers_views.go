package http

import (
	"bytes"
	"net/http"
	"strconv"

	"spendwise/internal/export"
	"spendwise/internal/ledger"
	"spendwise/internal/log"
)

// invalidate drops a user's cached views and bumps their generation so a
// view built from an older snapshot is not stored afterwards.
func (s *Server) invalidate(userID string) {
	s.genMu.Lock()
	s.gens[userID]++
	s.genMu.Unlock()
	if n := s.views.InvalidateUser(userID); n > 0 {
		s.logger.Debug("Invalidated cached views", log.FieldUserID, userID, "entries", n)
	}
}

func (s *Server) generation(userID string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.gens[userID]
}

// serveView answers from the per-user view cache or builds the view from
// the current snapshot.
func (s *Server) serveView(w http.ResponseWriter, r *http.Request, view string, params []string, build func(ledger.Snapshot) any) {
	ctx := r.Context()
	uid, err := s.ledger.UserID(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if v, ok := s.views.Get(uid, view, params...); ok {
		writeJSON(w, http.StatusOK, v)
		return
	}

	gen := s.generation(uid)
	snap, err := s.ledger.Snapshot(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	v := build(snap)
	if s.generation(uid) == gen {
		s.views.Set(v, uid, view, params...)
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleByMonth(w http.ResponseWriter, r *http.Request) {
	s.serveView(w, r, "by-month", nil, func(snap ledger.Snapshot) any {
		return newMonthGroupDTOs(ledger.GroupByMonth(snap.Transactions, s.loc), s.loc)
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	period, err := periodParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ref, err := refDate(r, s.ledger.Now(), s.loc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.serveView(w, r, "summary", []string{period.String(), ref.Format(dateLayout)}, func(snap ledger.Snapshot) any {
		return newSummaryDTO(ledger.Summarize(snap, ref, period), s.loc)
	})
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	ref, err := refDate(r, s.ledger.Now(), s.loc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.serveView(w, r, "trend", []string{ref.Format("2006-01")}, func(snap ledger.Snapshot) any {
		return newTrendDTO(ledger.MonthlyTrend(snap.Transactions, ref))
	})
}

func (s *Server) handleIncomeSources(w http.ResponseWriter, r *http.Request) {
	s.serveView(w, r, "income-sources", nil, func(snap ledger.Snapshot) any {
		return newSliceDTOs(ledger.IncomeBreakdown(snap.Balance))
	})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	period, err := periodParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ref, err := refDate(r, s.ledger.Now(), s.loc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.serveView(w, r, "categories", []string{period.String(), ref.Format(dateLayout)}, func(snap ledger.Snapshot) any {
		return newSliceDTOs(ledger.CategoryBreakdown(ledger.FilterPeriod(snap.Transactions, ref, period)))
	})
}

// handleExport streams the ledger as an XLSX workbook. The workbook is built
// in memory first so a failure can still be reported as JSON.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	snap, err := s.ledger.Snapshot(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteWorkbook(&buf, snap, s.loc); err != nil {
		writeError(w, r, err)
		return
	}
	name := export.FileName(s.ledger.Now().In(s.loc))
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)

	log.FromContext(r.Context()).InfoContext(r.Context(), "Ledger exported",
		log.NewFields().
			WithOperation(log.OpExport).
			WithUser(snap.UserID).
			ToSlice()...)
}
