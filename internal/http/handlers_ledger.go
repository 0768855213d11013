package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"budgetview/internal/core"
	"budgetview/internal/log"
	"budgetview/internal/services"
	"budgetview/internal/storage"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	year, err := queryYear(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	txs, err := s.ledger.ListTransactions(r.Context(), year)
	if err != nil {
		s.logs.LogError(r.Context(), "Failed to list transactions", err,
			log.ComponentLedger, log.OpList, log.NewFields())
		writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var tx core.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction payload: "+err.Error())
		return
	}

	id, err := s.ledger.CreateTransaction(r.Context(), tx)
	if err != nil {
		if services.IsValidationError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logs.LogError(r.Context(), "Failed to create transaction", err,
			log.ComponentLedger, log.OpCreate, log.NewFields())
		writeError(w, http.StatusInternalServerError, "failed to create transaction")
		return
	}

	s.logs.LogTransactionCreated(r.Context(), tx.Description, tx.Amount.Cents, tx.Category, tx.Subcategory)
	s.invalidateReports()
	tx.ID = id
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.ledger.DeleteTransaction(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "transaction not found")
			return
		}
		s.logs.LogError(r.Context(), "Failed to delete transaction", err,
			log.ComponentLedger, log.OpDelete, log.NewFields())
		writeError(w, http.StatusInternalServerError, "failed to delete transaction")
		return
	}

	s.invalidateReports()
	w.WriteHeader(http.StatusNoContent)
}

type updateCategoryRequest struct {
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
}

func (s *Server) handleUpdateTransactionCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req updateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}

	if err := s.ledger.UpdateTransactionCategory(r.Context(), id, req.Category, req.Subcategory); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			writeError(w, http.StatusNotFound, "transaction not found")
		case errors.Is(err, core.ErrEmptyCategory):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.logs.LogError(r.Context(), "Failed to update transaction category", err,
				log.ComponentLedger, log.OpUpdate, log.NewFields())
			writeError(w, http.StatusInternalServerError, "failed to update transaction")
		}
		return
	}

	s.invalidateReports()

	tx, err := s.ledger.GetTransaction(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load updated transaction")
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handlePaymentSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.ledger.ListPaymentSources(r.Context())
	if err != nil {
		s.logs.LogError(r.Context(), "Failed to list payment sources", err,
			log.ComponentLedger, log.OpList, log.NewFields())
		writeError(w, http.StatusInternalServerError, "failed to list payment sources")
		return
	}
	if sources == nil {
		sources = []string{}
	}
	writeJSON(w, http.StatusOK, sources)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	entries, err := s.ledger.ListActivity(r.Context(), limit)
	if err != nil {
		s.logs.LogError(r.Context(), "Failed to list activity", err,
			log.ComponentLedger, log.OpList, log.NewFields())
		writeError(w, http.StatusInternalServerError, "failed to list activity")
		return
	}
	if entries == nil {
		entries = []storage.ActivityEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.ledger.GetSettings(r.Context())
	if err != nil {
		s.logs.LogError(r.Context(), "Failed to load settings", err,
			log.ComponentLedger, log.OpRead, log.NewFields())
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var settings core.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, "invalid settings payload: "+err.Error())
		return
	}

	if err := s.ledger.SaveSettings(r.Context(), settings); err != nil {
		if services.IsValidationError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logs.LogError(r.Context(), "Failed to save settings", err,
			log.ComponentLedger, log.OpUpdate, log.NewFields())
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}

	s.invalidateReports()
	writeJSON(w, http.StatusOK, settings)
}
