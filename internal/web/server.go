package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"expense-web/internal/expense"
	"expense-web/internal/session"
	"expense-web/internal/upstream"
)

// Upstream is the slice of the remote expense API the web layer uses.
type Upstream interface {
	Login(ctx context.Context, email, password string) (string, error)
	GetExpenses(ctx context.Context, userID string) ([]expense.Expense, error)
	GetCategories(ctx context.Context, userID string) ([]expense.Category, error)
	CreateExpense(ctx context.Context, payload expense.ExpensePayload, receipt *upstream.ReceiptFile) (*expense.Expense, error)
	UpdateExpense(ctx context.Context, payload expense.ExpensePayload) error
	DeleteExpense(ctx context.Context, expenseID int, userID string) error
	AddCategory(ctx context.Context, userID, name string) (*expense.Category, error)
}

// SessionCookieName is the name of the session cookie.
const SessionCookieName = "__session"

type contextKey string

const userIDKey contextKey = "userID"

// Config holds the server's collaborators.
type Config struct {
	Upstream   Upstream
	Sessions   session.Store
	Scans      *expense.Service
	SessionTTL time.Duration
}

// Server handles the browser-facing routes.
type Server struct {
	upstream   Upstream
	sessions   session.Store
	scans      *expense.Service
	sessionTTL time.Duration
	drafts     *draftRegistry
	mux        *http.ServeMux
}

// NewServer creates a new Server with a default mux.
func NewServer(cfg Config) *Server {
	return NewServerWithMux(cfg, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing.
func NewServerWithMux(cfg Config, mux *http.ServeMux) *Server {
	s := &Server{
		upstream:   cfg.Upstream,
		sessions:   cfg.Sessions,
		scans:      cfg.Scans,
		sessionTTL: cfg.SessionTTL,
		drafts:     newDraftRegistry(),
		mux:        mux,
	}
	s.registerRoutes()
	return s
}

// currentUser extracts the authenticated user identifier the session gate
// stored on the request context.
func currentUser(r *http.Request) string {
	userID, _ := r.Context().Value(userIDKey).(string)
	return userID
}

// requireSession is the session gate: it resolves the session cookie to a
// user identifier or turns the request away. Absent, malformed, and
// revoked tokens are all the same "no user" case.
func (s *Server) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			s.unauthenticated(w, r)
			return
		}
		userID, err := s.sessions.Authenticate(cookie.Value)
		if err != nil {
			s.unauthenticated(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next(w, r.WithContext(ctx))
	}
}

// unauthenticated redirects browser routes to the login entry point; API
// routes get a 401 instead, never a redirect.
func (s *Server) unauthenticated(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "unauthenticated"})
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// registerRoutes registers all routes on the server's mux.
// Routes must be registered from most specific to least specific to avoid
// conflicts.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /static/app.css", s.handleStaticCSS)
	s.mux.HandleFunc("GET /static/app.js", s.handleStaticJS)

	s.mux.HandleFunc("GET /login", s.handleLoginForm)
	s.mux.HandleFunc("POST /login", s.handleLogin)
	s.mux.HandleFunc("POST /logout", s.handleLogout)

	s.mux.HandleFunc("POST /api/extract", s.requireSession(s.handleExtract))

	// Dashboard is the catch-all
	s.mux.HandleFunc("GET /", s.requireSession(s.handleDashboard))
	s.mux.HandleFunc("POST /", s.requireSession(s.handleIntent))
}

// setSessionCookie installs the session token on the response.
func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.sessionTTL.Seconds()),
	})
}

// clearSessionCookie expires the session cookie.
func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	return http.ListenAndServe(addr, s.mux)
}

// ServeHTTP implements http.Handler for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
