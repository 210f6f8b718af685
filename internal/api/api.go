package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/susu3304/expensebot/internal/assistant"
	"github.com/susu3304/expensebot/internal/config"
	"github.com/susu3304/expensebot/internal/session"
)

type API struct {
	router    *mux.Router
	store     *session.Store
	assistant *assistant.Service
	config    *config.Config
	jwtSecret []byte
	logger    *slog.Logger
	server    *http.Server
}

func New(cfg *config.Config, store *session.Store, svc *assistant.Service) *API {
	api := &API{
		router:    mux.NewRouter(),
		store:     store,
		assistant: svc,
		config:    cfg,
		jwtSecret: []byte(cfg.JWTSecret),
		logger:    slog.Default().With("component", "api"),
	}

	api.setupRoutes()
	return api
}

func (a *API) setupRoutes() {
	// Session lifecycle
	a.router.HandleFunc("/api/sessions", a.handleCreateSession).Methods("POST")
	a.router.HandleFunc("/api/auth/login", a.handleLogin).Methods("POST")
	a.router.HandleFunc("/api/auth/logout", a.handleLogout).Methods("POST")

	// Conversation; the session ID travels in the body
	a.router.HandleFunc("/api/chat", a.handleChat).Methods("POST")
	a.router.HandleFunc("/api/chat/batch", a.handleBatch).Methods("POST")
	a.router.HandleFunc("/api/report", a.handleReport).Methods("POST")

	a.router.HandleFunc("/api/stats", a.handleGlobalStats).Methods("GET")

	// Session-scoped endpoints
	scoped := a.router.PathPrefix("/api/sessions/{session_id}").Subrouter()
	scoped.Use(a.sessionMiddleware)

	scoped.HandleFunc("/stats", a.handleSessionStats).Methods("GET")
	scoped.HandleFunc("/expenses", a.handleListExpenses).Methods("GET")
	scoped.HandleFunc("/expenses", a.handleResetExpenses).Methods("DELETE")
	scoped.HandleFunc("/expenses/{expense_id}", a.handleUpdateExpense).Methods("PATCH")
	scoped.HandleFunc("/memory", a.handleResetMemory).Methods("DELETE")
}

// Handler returns the router wrapped with CORS handling.
func (a *API) Handler() http.Handler {
	origins := a.config.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	// Credentials stay off while the wildcard origin is allowed.
	corsOptions := cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: false,
	}
	return cors.New(corsOptions).Handler(a.router)
}

func (a *API) Start() error {
	a.server = &http.Server{
		Addr:              a.config.WebBind,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.logger.Info("API server listening", "addr", "http://"+a.config.WebBind)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *API) Shutdown(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}
