// Package api exposes the ledger over a JSON HTTP API.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/Veraticus/spice-ledger/internal/auth"
	"github.com/Veraticus/spice-ledger/internal/categories"
	"github.com/Veraticus/spice-ledger/internal/ledger"
	"github.com/Veraticus/spice-ledger/internal/report"
	"github.com/Veraticus/spice-ledger/internal/service"
	"github.com/Veraticus/spice-ledger/internal/views"
)

const shutdownTimeout = 10 * time.Second

// Dependencies are the collaborators a Server routes requests to.
type Dependencies struct {
	Store      service.Store
	Ledger     *ledger.Service
	Categories *categories.Service
	Reports    *report.Aggregator
	Verifier   *auth.Verifier
	// Cache holds rendered read views. Nil disables caching.
	Cache *views.Cache
	Now   func() time.Time
}

// Server routes API requests.
type Server struct {
	router      *mux.Router
	store       service.Store
	ledger      *ledger.Service
	categories  *categories.Service
	reports     *report.Aggregator
	cache       *views.Cache
	now         func() time.Time
	provisioned sync.Map
}

// NewServer builds the router.
func NewServer(deps Dependencies) *Server {
	s := &Server{
		store:      deps.Store,
		ledger:     deps.Ledger,
		categories: deps.Categories,
		reports:    deps.Reports,
		cache:      deps.Cache,
		now:        deps.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}

	r := mux.NewRouter()
	r.Use(requestID, logRequests, recoverPanics)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	if deps.Verifier != nil {
		api.Use(deps.Verifier.Middleware)
	}
	api.Use(s.provision)

	api.HandleFunc("/dashboard", s.handleDashboard).Methods(http.MethodGet)
	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/summary/year", s.handleYearSummary).Methods(http.MethodGet)
	api.HandleFunc("/trends/categories", s.handleCategoryBreakdown).Methods(http.MethodGet)
	api.HandleFunc("/trends/monthly", s.handleMonthlyTrend).Methods(http.MethodGet)
	api.HandleFunc("/trends/monthly.svg", s.handleMonthlyTrendChart).Methods(http.MethodGet)
	api.HandleFunc("/months", s.handleMonths).Methods(http.MethodGet)
	api.HandleFunc("/cash", s.handleCash).Methods(http.MethodGet)

	api.HandleFunc("/transactions", s.handleCreateTransaction).Methods(http.MethodPost)
	api.HandleFunc("/transactions/recategorize", s.handleRecategorize).Methods(http.MethodPost)
	api.HandleFunc("/transactions/{id:[0-9]+}", s.handleUpdateTransaction).Methods(http.MethodPatch)
	api.HandleFunc("/transactions/{id:[0-9]+}", s.handleDeleteTransaction).Methods(http.MethodDelete)

	api.HandleFunc("/categories", s.handleListCategories).Methods(http.MethodGet)
	api.HandleFunc("/categories", s.handleCreateCategory).Methods(http.MethodPost)
	api.HandleFunc("/categories/{id:[0-9]+}", s.handleDeleteCategory).Methods(http.MethodDelete)

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// cached serves a read view from the view cache, rendering it on a miss.
// Only successful renders of authenticated callers are stored.
func (s *Server) cached(w http.ResponseWriter, r *http.Request, view, variant string, render func() (views.Entry, error)) {
	ext, authed := auth.ExternalIDFromContext(r.Context())
	key := views.Key(view, ext, variant)

	if s.cache != nil && authed {
		if entry, ok := s.cache.Get(key); ok {
			w.Header().Set("X-Cache", "hit")
			writeEntry(w, entry)
			return
		}
	}

	entry, err := render()
	if err != nil {
		writeError(w, r, err)
		return
	}

	if s.cache != nil && authed && entry.Status == http.StatusOK {
		s.cache.Set(view, key, entry)
	}
	w.Header().Set("X-Cache", "miss")
	writeEntry(w, entry)
}

func caller(r *http.Request) string {
	ext, _ := auth.ExternalIDFromContext(r.Context())
	return ext
}
