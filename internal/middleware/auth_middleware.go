package middleware

import (
	"context"
	"net/http"
	"strings"

	"carenote-server/internal/domain"
	"carenote-server/pkg/response"
)

type contextKey string

const principalKey contextKey = "principal"

// TokenValidator turns a bearer token into the calling principal.
type TokenValidator interface {
	ValidateToken(token string) (*domain.Principal, error)
}

func AuthMiddleware(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Unauthorized(w, "Missing authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				response.Unauthorized(w, "Invalid authorization header format")
				return
			}

			principal, err := tokens.ValidateToken(parts[1])
			if err != nil {
				response.Unauthorized(w, "Invalid or expired token")
				return
			}

			if info := requestInfoFrom(r.Context()); info != nil {
				info.userID = principal.ID
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), *principal)))
		})
	}
}

// RequireRole rejects principals whose role is not listed.
func RequireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := GetPrincipal(r)
			if !ok {
				response.Unauthorized(w, "Unauthorized")
				return
			}
			for _, role := range roles {
				if principal.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			response.Forbidden(w, "Insufficient role")
		})
	}
}

func WithPrincipal(ctx context.Context, principal domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

func GetPrincipal(r *http.Request) (domain.Principal, bool) {
	principal, ok := r.Context().Value(principalKey).(domain.Principal)
	return principal, ok
}

func GetUserID(r *http.Request) string {
	principal, ok := GetPrincipal(r)
	if !ok {
		return ""
	}
	return principal.ID
}
