package http

import (
	"net/http"

	"github.com/gorilla/mux"
)

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	snap, err := s.ledger.Snapshot(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newLedgerDTO(snap, s.loc))
}

// handleReload discards the in-memory copy and reads the store again.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	snap, err := s.ledger.Reload(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidate(snap.UserID)
	writeJSON(w, http.StatusOK, newLedgerDTO(snap, s.loc))
}

func (s *Server) handleSetBalance(w http.ResponseWriter, r *http.Request) {
	var req balanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	update, err := req.toUpdate()
	if err != nil {
		writeError(w, r, err)
		return
	}
	snap, err := s.ledger.SetBalance(r.Context(), update)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newLedgerDTO(snap, s.loc))
}

func (s *Server) handleAddIncome(w http.ResponseWriter, r *http.Request) {
	var req incomeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	snap, err := s.ledger.AddIncome(r.Context(), req.Source, req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newLedgerDTO(snap, s.loc))
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.toInput(s.loc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.ledger.AddExpense(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/transactions/"+t.ID)
	writeJSON(w, http.StatusCreated, newTransactionDTO(t, s.loc))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteTransaction(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
