package http

import (
	"net/http"

	"finboard/internal/core"
)

// transactionRequest is the create payload. Any owner or id the client sends
// is not part of it and therefore ignored.
type transactionRequest struct {
	Type        core.Kind  `json:"type"`
	Title       string     `json:"title"`
	Amount      core.Money `json:"amount"`
	Category    string     `json:"category"`
	Date        core.Date  `json:"date"`
	Description string     `json:"description"`
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(r)
	if !ok {
		s.writeError(w, r, core.ErrUnauthenticated)
		return
	}

	txs, err := s.txs.List(r.Context(), p.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(map[string]any{"transactions": txs}).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(r)
	if !ok {
		s.writeError(w, r, core.ErrUnauthenticated)
		return
	}

	var req transactionRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	t, err := s.txs.Create(r.Context(), p.ID, core.Transaction{
		Kind:       req.Type,
		Title:      sanitizeInput(req.Title),
		Amount:     req.Amount,
		Category:   sanitizeInput(req.Category),
		OccurredOn: req.Date,
		Note:       sanitizeInput(req.Description),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	NewJSONResponse().
		Status(http.StatusCreated).
		Body(map[string]any{
			"message":     "transaction created",
			"transaction": t,
		}).
		Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(r)
	if !ok {
		s.writeError(w, r, core.ErrUnauthenticated)
		return
	}

	if err := s.txs.Delete(r.Context(), p.ID, r.URL.Query().Get("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(map[string]any{"message": "transaction deleted"}).Write(w)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(r)
	if !ok {
		s.writeError(w, r, core.ErrUnauthenticated)
		return
	}

	income, expense, err := s.txs.Categories(r.Context(), p.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(map[string]any{
		"income":  income,
		"expense": expense,
	}).Write(w)
}
