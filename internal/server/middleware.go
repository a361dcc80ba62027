package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/ecorescue/foodshare/internal/auth"
)

type contextKey string

const sessionContextKey contextKey = "session"

// sessionMiddleware resolves the bearer token and injects the session into
// the request context. There is no ambient current-user state; every handler
// reads identity from the request it is serving.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "Missing bearer token")
			return
		}

		session, ok := s.sessions.Resolve(token)
		if !ok {
			respondError(w, http.StatusUnauthorized, "Invalid or expired session")
			return
		}

		ctx := context.WithValue(r.Context(), sessionContextKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole gates a handler to one role. Runs after sessionMiddleware.
func (s *Server) requireRole(role auth.Role, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := sessionFromContext(r.Context())
		if session == nil || session.Role != role {
			respondError(w, http.StatusForbidden, "Operation not permitted for this role")
			return
		}
		next(w, r)
	}
}

func sessionFromContext(ctx context.Context) *auth.Session {
	session, _ := ctx.Value(sessionContextKey).(*auth.Session)
	return session
}

func contextWithSession(ctx context.Context, session *auth.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
