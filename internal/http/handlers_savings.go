package http

import (
	"net/http"

	"finboard/internal/core"
)

type acceptRequest struct {
	Amount core.Money `json:"amount"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(r)
	if !ok {
		s.writeError(w, r, core.ErrUnauthenticated)
		return
	}

	q := r.URL.Query()
	period, err := ParsePeriod(q, s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	sum, err := s.savings.Summary(r.Context(), p.ID, period, sanitizeInput(q.Get("category")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(sum).Write(w)
}

// handleHistory returns the trailing monthly summaries ending at the
// selected month, which defaults to the current one.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(r)
	if !ok {
		s.writeError(w, r, core.ErrUnauthenticated)
		return
	}

	q := r.URL.Query()
	end, err := ParsePeriod(q, s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	months, err := ParseMonths(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	hist, err := s.savings.History(r.Context(), p.ID, end, months)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(map[string]any{"months": hist}).Write(w)
}

func (s *Server) handleRecommendation(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(r)
	if !ok {
		s.writeError(w, r, core.ErrUnauthenticated)
		return
	}

	period, err := ParsePeriod(r.URL.Query(), s.now())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	rec, err := s.savings.Recommendation(r.Context(), p.ID, period)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(rec).Write(w)
}

func (s *Server) handleAcceptSavings(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(r)
	if !ok {
		s.writeError(w, r, core.ErrUnauthenticated)
		return
	}

	var req acceptRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.savings.Accept(r.Context(), p.ID, req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if res.ManualEntry {
		NewJSONResponse().Body(map[string]any{"manualEntry": true}).Write(w)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Body(map[string]any{"transaction": res.Transaction}).
		Write(w)
}
