package http

import (
	"context"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"finboard/internal/auth"
	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/middleware/ratelimit"
	"finboard/internal/middleware/security"
	"finboard/internal/middleware/trace"
	"finboard/internal/services"
	appweb "finboard/web"
)

// ProtectedPrefixes lists the paths that require a session.
var ProtectedPrefixes = []string{"/dashboard", "/transactions", "/summary", "/savings", "/categories"}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the server routes to.
type Deps struct {
	Auth         *auth.Service
	Transactions *services.TransactionService
	Savings      *services.SavingsService
	Store        Pinger

	// AuthRateLimitPerMinute bounds sign-up and sign-in attempts per client IP.
	AuthRateLimitPerMinute int
}

type Server struct {
	http.Server

	auth    *auth.Service
	txs     *services.TransactionService
	savings *services.SavingsService
	store   Pinger

	templates *template.Template
	logger    *log.Logger
	now       func() time.Time
	started   time.Time

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(addr string, deps Deps, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	s := &Server{
		auth:     deps.Auth,
		txs:      deps.Transactions,
		savings:  deps.Savings,
		store:    deps.Store,
		logger:   logger.WithComponent(log.ComponentHTTP),
		now:      time.Now,
		started:  time.Now(),
		detector: security.NewDetector(),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: deps.AuthRateLimitPerMinute,
		}),
	}
	s.tracer = trace.NewMiddleware(logger.WithComponent(log.ComponentTrace), s.detector.ExtractClientIP)

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates",
			log.FieldError, err,
			log.FieldComponent, log.ComponentTemplate,
			log.FieldErrorType, log.ErrorTypeConfiguration)
	}
	s.templates = t

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	limited := s.limiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited)
	api := func(h http.HandlerFunc) http.Handler { return security.NoStore(h) }

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.Handle("POST /register", limited(api(s.handleRegister)))
	mux.Handle("POST /session", limited(api(s.handleCreateSession)))
	mux.Handle("DELETE /session", api(s.handleDeleteSession))

	mux.Handle("GET /transactions", api(s.handleListTransactions))
	mux.Handle("POST /transactions", api(s.handleCreateTransaction))
	mux.Handle("DELETE /transactions", api(s.handleDeleteTransaction))
	mux.Handle("GET /categories", api(s.handleCategories))

	mux.Handle("GET /summary", api(s.handleSummary))
	mux.Handle("GET /summary/history", api(s.handleHistory))
	mux.Handle("GET /savings/recommendation", api(s.handleRecommendation))
	mux.Handle("POST /savings/accept", api(s.handleAcceptSavings))

	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.Handle("GET /dashboard", security.NoStore(http.HandlerFunc(s.handleDashboardPage)))
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
	})

	var h http.Handler = mux
	h = s.auth.Tokens().Guard(ProtectedPrefixes, s.handleUnauthenticated)(h)
	h = s.detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.tracer.Middleware(h)
	h = log.Middleware(s.logger)(h)
	return h
}

// Shutdown stops background helpers and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleUnauthenticated(w http.ResponseWriter, r *http.Request) {
	if auth.WantsHTML(r) {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	UnauthorizedError(core.ErrUnauthenticated.Error()).Write(w)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldRequestID, trace.GetRequestID(r.Context()),
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldPath, r.URL.Path,
		log.FieldErrorType, log.ErrorTypeRateLimit)
	ErrorResponse(http.StatusTooManyRequests, "too many requests, try again later").Write(w)
}

// principal returns the caller attached by the guard. Handlers behind a
// protected prefix always have one.
func principal(r *http.Request) (auth.Principal, bool) {
	return auth.PrincipalFrom(r.Context())
}

// writeError maps err onto the error taxonomy. Unknown errors become an
// opaque 500 and are logged with the request id.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		ValidationErrorResponse(core.ErrValidation.Error(), verr.Fields).Write(w)
	case errors.Is(err, errMalformedBody):
		BadRequestError("invalid request body").Write(w)
	case errors.Is(err, core.ErrInvalidCredentials):
		UnauthorizedError(core.ErrInvalidCredentials.Error()).Write(w)
	case errors.Is(err, core.ErrUnauthenticated):
		UnauthorizedError(core.ErrUnauthenticated.Error()).Write(w)
	case errors.Is(err, core.ErrForbidden):
		ForbiddenError(core.ErrForbidden.Error()).Write(w)
	case errors.Is(err, core.ErrNotFound):
		NotFoundError(core.ErrNotFound.Error()).Write(w)
	case errors.Is(err, core.ErrConflict):
		ErrorResponse(http.StatusConflict, core.ErrConflict.Error()).Write(w)
	default:
		s.logger.ErrorContext(r.Context(), "Request failed",
			log.FieldRequestID, trace.GetRequestID(r.Context()),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeInternal)
		InternalServerError().Write(w)
	}
}
