package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/fkhayef/kasmoni/internal/auth"
	"github.com/fkhayef/kasmoni/pkg/response"
)

// Authenticate validates the bearer token and stores the principal on the
// request context
func Authenticate(verifier auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Unauthorized(w, "Authorization header required")
				return
			}

			// Extract token from "Bearer <token>"
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
				response.Unauthorized(w, "Invalid authorization header format")
				return
			}

			principal, err := verifier.Verify(parts[1])
			if err != nil {
				response.Unauthorized(w, "Invalid or expired token")
				return
			}

			ctx := auth.WithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireWriter rejects principals that may not mutate administrative data
func RequireWriter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := auth.PrincipalFrom(r.Context())
		if !ok {
			response.Unauthorized(w, "Authentication required")
			return
		}
		if !p.CanWrite() {
			response.Forbidden(w, "You do not have permission to perform this action")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects member principals
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := auth.PrincipalFrom(r.Context())
		if !ok {
			response.Unauthorized(w, "Authentication required")
			return
		}
		if p.UserType != auth.UserTypeAdmin {
			response.Forbidden(w, "Administrator access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole admits only the listed roles
func RequireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.PrincipalFrom(r.Context())
			if !ok {
				response.Unauthorized(w, "Authentication required")
				return
			}
			for _, role := range roles {
				if p.UserType == auth.UserTypeAdmin && p.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			response.Forbidden(w, "You do not have permission to perform this action")
		})
	}
}

// GetPrincipal extracts the authenticated principal from the request
func GetPrincipal(r *http.Request) (*auth.Principal, bool) {
	return auth.PrincipalFrom(r.Context())
}

// ActorFromRequest builds the audit actor for the current request
func ActorFromRequest(r *http.Request) auth.Actor {
	actor := auth.Actor{
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	}
	if p, ok := auth.PrincipalFrom(r.Context()); ok {
		actor.Principal = *p
	}
	return actor
}

// clientIP strips the port; chi's RealIP may already have left a bare address
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
