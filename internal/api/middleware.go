package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/spice-ledger/internal/auth"
)

type requestIDKey struct{}

// RequestID returns the id assigned to the current request.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		level := slog.LevelInfo
		switch {
		case rw.status >= 500:
			level = slog.LevelError
		case rw.status >= 400:
			level = slog.LevelWarn
		}
		slog.Log(r.Context(), level, "HTTP request completed",
			"request_id", RequestID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status_code", rw.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

func recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				writeError(w, r, fmt.Errorf("panic: %v\n%s", rec, debug.Stack()))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// provision registers an authenticated caller on first contact and makes
// sure they have an income category. Each subject is provisioned once per
// process.
func (s *Server) provision(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ext, ok := auth.ExternalIDFromContext(ctx)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		if _, done := s.provisioned.Load(ext); !done {
			user, created, err := auth.EnsureUser(ctx, s.store, ext)
			if err != nil {
				writeError(w, r, err)
				return
			}
			if created {
				slog.InfoContext(ctx, "registered new user", "user_id", user.ID)
			}
			if _, err := s.categories.EnsureIncome(ctx, ext); err != nil {
				writeError(w, r, err)
				return
			}
			s.provisioned.Store(ext, struct{}{})
		}

		next.ServeHTTP(w, r)
	})
}
