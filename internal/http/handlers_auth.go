package http

import (
	"errors"
	"net/http"

	"finboard/internal/auth"
	"finboard/internal/core"
	"finboard/internal/log"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type sessionRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	u, err := s.auth.Register(r.Context(), req.Email, req.Password, sanitizeInput(req.Name))
	if errors.Is(err, core.ErrConflict) {
		BadRequestError("user already exists").Write(w)
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	NewJSONResponse().
		Status(http.StatusCreated).
		Body(map[string]any{"user": u}).
		Write(w)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	verr := core.NewValidationError()
	if req.Email == "" {
		verr.Add("email", "is required")
	}
	if req.Password == "" {
		verr.Add("password", "is required")
	}
	if err := verr.OrNil(); err != nil {
		s.writeError(w, r, err)
		return
	}

	sess, err := s.auth.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.InfoContext(r.Context(), "Session started",
		log.FieldUserID, sess.User.ID,
		log.FieldOperation, log.OpCreate)

	NewJSONResponse().
		Cookie(&http.Cookie{
			Name:     auth.CookieName,
			Value:    sess.Token,
			Path:     "/",
			Expires:  sess.ExpiresAt,
			MaxAge:   int(s.auth.Tokens().TTL().Seconds()),
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		}).
		Body(sess).
		Write(w)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().
		Status(http.StatusNoContent).
		Cookie(&http.Cookie{
			Name:     auth.CookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		}).
		Write(w)
}
