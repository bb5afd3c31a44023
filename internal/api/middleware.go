package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/rshrestha/imagetools/internal/model"
)

type contextKey string

const userKey contextKey = "user"

// Provider resolves an opaque bearer token to a user identity. It is
// the boundary to the external authentication collaborator.
type Provider interface {
	UserFromToken(token string) (*model.User, error)
}

// RoleChecker answers role-membership queries.
type RoleChecker interface {
	HasRole(userID, role string) (bool, error)
}

// AuthMiddleware resolves the optional bearer token into a user and
// stores it in the request context. Requests without a token proceed
// anonymously; requests with an unknown token are rejected.
func AuthMiddleware(p Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			const prefix = "Bearer "
			if !strings.HasPrefix(authHeader, prefix) {
				Unauthorized(w)
				return
			}

			user, err := p.UserFromToken(authHeader[len(prefix):])
			if err != nil {
				Unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser rejects anonymous requests.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFrom(r.Context()) == nil {
			Unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests whose user lacks the admin role.
func RequireAdmin(roles RoleChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFrom(r.Context())
			if user == nil {
				Unauthorized(w)
				return
			}
			ok, err := roles.HasRole(user.ID, model.RoleAdmin)
			if err != nil {
				Internal(w, "failed to check role")
				return
			}
			if !ok {
				Forbidden(w, "admin role required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserFrom retrieves the user stored in the context by AuthMiddleware,
// or nil for anonymous requests.
func UserFrom(ctx context.Context) *model.User {
	u, _ := ctx.Value(userKey).(*model.User)
	return u
}
