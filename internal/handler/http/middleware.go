package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/winex/internal/cart"
	"golang.org/x/crypto/bcrypt"
)

const (
	UserIDHeader     = "X-User-ID"
	StaffTokenHeader = "X-Staff-Token"
	SessionCookie    = "winex_session"

	sessionMaxAge = 14 * 24 * time.Hour
)

type identityKey struct{}

// Identity is who is shopping: an upstream-authenticated user, a browser session, or both.
// The session is always present once Identify has run.
type Identity struct {
	UserID     uuid.UUID
	SessionKey string
}

// WebOwner is the cart owner for the storefront: the user when signed in, otherwise the session.
func (i Identity) WebOwner() cart.Owner {
	if i.UserID != uuid.Nil {
		return cart.ForUser(i.UserID)
	}
	return cart.ForSession(i.SessionKey)
}

// KioskOwner is always session scoped so a kiosk never touches a web cart.
func (i Identity) KioskOwner() cart.Owner {
	return cart.ForKiosk(i.SessionKey)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// Identify reads the user id set by the upstream auth proxy and makes sure every client carries
// a session cookie.
func Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id Identity

		if raw := r.Header.Get(UserIDHeader); raw != "" {
			userID, err := uuid.FromString(raw)
			if err != nil {
				log.Warn().Err(err).Str("user_id", raw).Msg("Failed to parse user id header")
				respondWithError(w, http.StatusBadRequest, "Invalid "+UserIDHeader+" header")
				return
			}
			id.UserID = userID
		}

		if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
			id.SessionKey = c.Value
		} else {
			key, err := uuid.NewV4()
			if err != nil {
				log.Error().Err(err).Msg("Failed to generate session key")
				respondWithError(w, http.StatusInternalServerError, "Failed to start session")
				return
			}
			id.SessionKey = key.String()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    id.SessionKey,
				Path:     "/",
				MaxAge:   int(sessionMaxAge.Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// RequireStaff checks X-Staff-Token against a bcrypt hash. An empty hash locks staff routes.
func RequireStaff(tokenHash string) func(http.Handler) http.Handler {
	hash := []byte(tokenHash)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(StaffTokenHeader)
			if token == "" || len(hash) == 0 {
				respondWithError(w, http.StatusUnauthorized, "Staff token required")
				return
			}
			if err := bcrypt.CompareHashAndPassword(hash, []byte(token)); err != nil {
				log.Warn().Str("path", r.URL.Path).Msg("Rejected staff request with invalid token")
				respondWithError(w, http.StatusUnauthorized, "Invalid staff token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger writes one zerolog line per request.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			event := log.Info()
			if status >= http.StatusInternalServerError {
				event = log.Error()
			}
			event.
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("HTTP request")
		}()
		next.ServeHTTP(ww, r)
	})
}
