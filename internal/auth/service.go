package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/store"
)

const (
	MinPasswordLen = 6
	maxPasswordLen = 72 // bcrypt ignores anything longer
	maxNameLen     = 100
)

// Session is the result of a successful sign-in.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      core.User `json:"user"`
}

// Service registers users and signs them in.
type Service struct {
	users  store.UserStore
	tokens *Tokens
	cost   int
	logger *log.Logger

	// dummyHash keeps the cost of a failed lookup close to a failed compare.
	dummyHash []byte
}

func NewService(users store.UserStore, tokens *Tokens, bcryptCost int, logger *log.Logger) (*Service, error) {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", bcryptCost)
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("finboard-dummy-password"), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("prepare password hasher: %w", err)
	}
	return &Service{
		users:     users,
		tokens:    tokens,
		cost:      bcryptCost,
		logger:    logger.WithComponent(log.ComponentAuth),
		dummyHash: dummy,
	}, nil
}

func (s *Service) Tokens() *Tokens { return s.tokens }

// Register creates a user. A taken email yields core.ErrConflict and leaves
// the existing account untouched.
func (s *Service) Register(ctx context.Context, email, password, name string) (core.User, error) {
	email = NormalizeEmail(email)
	name = strings.TrimSpace(name)

	verr := core.NewValidationError()
	if !validEmail(email) {
		verr.Add("email", "must be a valid email address")
	}
	switch {
	case len(password) < MinPasswordLen:
		verr.Add("password", fmt.Sprintf("must be at least %d characters", MinPasswordLen))
	case len(password) > maxPasswordLen:
		verr.Add("password", fmt.Sprintf("must be at most %d characters", maxPasswordLen))
	}
	if len(name) > maxNameLen {
		verr.Add("name", fmt.Sprintf("must be at most %d characters", maxNameLen))
	}
	if err := verr.OrNil(); err != nil {
		return core.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}

	u := core.User{
		ID:          uuid.NewString(),
		Email:       email,
		DisplayName: name,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, u, string(hash)); err != nil {
		return core.User{}, fmt.Errorf("register %s: %w", email, err)
	}

	s.logger.InfoContext(ctx, "User registered", log.FieldUserID, u.ID, log.FieldOperation, log.OpCreate)
	return u, nil
}

// Authenticate checks credentials and issues a session. Unknown emails and
// wrong passwords both yield core.ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Session, error) {
	email = NormalizeEmail(email)

	u, hash, err := s.users.UserByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return Session{}, core.ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		s.logger.WarnContext(ctx, "Failed sign-in", log.FieldUserID, u.ID, log.FieldErrorType, log.ErrorTypeAuth)
		return Session{}, core.ErrInvalidCredentials
	}

	token, exp, err := s.tokens.Issue(u)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: exp, User: u}, nil
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndexByte(email, '@')
	return at > 0 && strings.Contains(email[at+1:], ".")
}
