package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/tarjetacolmado/ledger/auth"
	"github.com/tarjetacolmado/ledger/ledger"
)

// =============================================================================
// REQUEST LOGGING
// =============================================================================

// requestLogger logs each request with method, path, status, latency and
// request_id. 5xx log at error, 4xx at warn.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			ev := logger.Info()
			switch {
			case status >= 500:
				ev = logger.Error()
			case status >= 400:
				ev = logger.Warn()
			}
			ev.Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("latency", time.Since(start)).
				Msg("request")
		})
	}
}

// =============================================================================
// AUTHENTICATION
// =============================================================================

type ctxKey int

const (
	actorKey ctxKey = iota
	claimsKey
)

// authenticate resolves the bearer token into an actor. Role and store are
// read from the current users collection; a token whose role or store no
// longer matches the user is rejected, so edits and deletions take effect
// immediately.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
			return
		}
		claims, err := h.Issuer.Parse(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token", err)
			return
		}

		s := h.Engine.Repository().Snapshot()
		i := s.UserIndex(claims.UserID)
		if i < 0 {
			writeError(w, http.StatusUnauthorized, "User no longer exists", nil)
			return
		}
		actor, err := s.Users[i].Actor()
		if err != nil {
			writeError(w, http.StatusUnauthorized, "User has no usable role", err)
			return
		}
		issued, err := claims.Actor()
		if err != nil || issued != actor {
			writeError(w, http.StatusUnauthorized, "Session is out of date, log in again", err)
			return
		}

		ctx := context.WithValue(r.Context(), actorKey, actor)
		ctx = context.WithValue(ctx, claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin rejects store operators.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := actorFrom(r.Context()).(ledger.Administrator); !ok {
			writeError(w, http.StatusForbidden, "Administrator access required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func actorFrom(ctx context.Context) ledger.Actor {
	a, _ := ctx.Value(actorKey).(ledger.Actor)
	return a
}

func claimsFrom(ctx context.Context) *auth.Claims {
	c, _ := ctx.Value(claimsKey).(*auth.Claims)
	return c
}
