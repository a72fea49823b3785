package api

import (
	"context"
	"database/sql"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/smarthostel/smarthostel/internal/apperr"
	"github.com/smarthostel/smarthostel/internal/auth"
	"github.com/smarthostel/smarthostel/internal/hostel"
	"github.com/smarthostel/smarthostel/internal/model"
	"github.com/smarthostel/smarthostel/internal/ratelimit"
	"github.com/smarthostel/smarthostel/internal/store"
)

type contextKey string

const (
	claimsKey contextKey = "claims"
	userKey   contextKey = "user"
)

// AuthMiddleware validates the JWT from the Authorization header, rejects
// revoked tokens and deactivated accounts, and adds the claims and the
// current user to the context.
func AuthMiddleware(secret string, db *sql.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				jsonError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}

			tokenStr := strings.TrimPrefix(header, "Bearer ")
			claims, err := auth.ValidateToken(secret, tokenStr)
			if err != nil {
				jsonError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			revoked, err := store.IsTokenRevoked(r.Context(), db, claims.ID)
			if err != nil {
				slog.Error("checking token revocation", "error", err)
				jsonError(w, http.StatusServiceUnavailable, "service unavailable")
				return
			}
			if revoked {
				jsonError(w, http.StatusUnauthorized, "token has been revoked")
				return
			}

			// Role and location come from the database so that changes
			// apply without a new login.
			user, err := store.GetUser(r.Context(), db, claims.UserID)
			if err != nil {
				slog.Error("loading token user", "error", err)
				jsonError(w, http.StatusServiceUnavailable, "service unavailable")
				return
			}
			if user == nil || !user.Active() {
				jsonError(w, http.StatusUnauthorized, "account is not active")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			ctx = context.WithValue(ctx, userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole returns middleware that checks if the user has at least the given role.
func RequireRole(minimum model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := currentUser(r.Context())
			if user == nil {
				jsonError(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			if !model.RoleAtLeast(user.Role, minimum) {
				jsonResponse(w, http.StatusForbidden, errorBody{Error: "insufficient permissions", Kind: apperr.KindForbidden, Code: "forbidden"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetClaims retrieves the JWT claims from the context.
func GetClaims(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

func currentUser(ctx context.Context) *model.User {
	u, _ := ctx.Value(userKey).(*model.User)
	return u
}

// actor builds the lifecycle caller from the authenticated user.
func actor(r *http.Request) hostel.Actor {
	u := currentUser(r.Context())
	if u == nil {
		return hostel.Actor{}
	}
	return hostel.Actor{ID: u.ID, Role: u.Role, Block: u.HostelBlock, Room: u.RoomNumber}
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs HTTP requests with method, path, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.RequestURI(),
			"status", rec.status,
			"duration", time.Since(start).Round(time.Millisecond),
		)
	})
}

// RateLimit counts requests per authenticated user. Requests that fail are
// not counted. A nil limiter disables the check, and a Redis outage lets
// requests through.
func RateLimit(l *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := currentUser(r.Context())
			if user == nil {
				next.ServeHTTP(w, r)
				return
			}

			res, err := l.Allow(r.Context(), user.ID)
			if err != nil {
				slog.Warn("rate limiter unavailable", "user", user.ID, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !res.Allowed {
				secs := int(math.Ceil(res.RetryAfter.Seconds()))
				slog.Warn("rate limit exceeded", "user", user.ID, "path", r.URL.Path, "count", res.Count)
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				jsonResponse(w, http.StatusTooManyRequests, errorBody{
					Error:      "too many requests, try again later",
					Kind:       apperr.ErrRateLimited.Kind,
					Code:       apperr.ErrRateLimited.Code,
					RetryAfter: secs,
				})
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			if rec.status >= 400 {
				if err := l.Undo(context.WithoutCancel(r.Context()), user.ID); err != nil {
					slog.Warn("undoing rate limit hit", "user", user.ID, "error", err)
				}
			}
		})
	}
}
