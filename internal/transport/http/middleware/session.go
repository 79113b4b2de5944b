package middleware

import (
	"context"
	"errors"
	"net/http"

	"warbler/internal/httputil"
	"warbler/internal/logger"
	"warbler/internal/model"
	"warbler/internal/session"
)

const currentUserKey contextKey = "current_user"

// MsgAccessUnauthorized is flashed when an anonymous request hits a guarded route.
const MsgAccessUnauthorized = "Access unauthorized."

var log = logger.Component("Middleware")

// UserLoader resolves the session's user id to a user.
type UserLoader interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// LoadSession puts the logged-in user, if any, into the request context.
// Store failures and deleted users degrade to an anonymous request.
func LoadSession(sessions *session.Manager, users UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := sessions.UserID(r)
			if err != nil {
				log.Error().Err(err).Msg("Session lookup failed")
			}

			if userID != 0 {
				user, err := users.GetByID(r.Context(), userID)
				switch {
				case err == nil:
					r = r.WithContext(WithUser(r.Context(), user))
				case errors.Is(err, model.ErrUserNotFound):
					log.Debug().Int64("user", userID).Msg("Session user no longer exists")
				default:
					log.Error().Err(err).Int64("user", userID).Msg("Failed to load session user")
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireUser redirects anonymous requests to "/" with a flash.
func RequireUser(sessions *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if CurrentUser(r.Context()) == nil {
				sessions.AddFlash(w, r, session.FlashDanger, MsgAccessUnauthorized)
				httputil.SeeOther(w, r, "/")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, currentUserKey, user)
}

// CurrentUser returns the logged-in user, or nil for anonymous requests.
func CurrentUser(ctx context.Context) *model.User {
	user, _ := ctx.Value(currentUserKey).(*model.User)
	return user
}

// CurrentUserID returns 0 for anonymous requests.
func CurrentUserID(ctx context.Context) int64 {
	if user := CurrentUser(ctx); user != nil {
		return user.ID
	}
	return 0
}
