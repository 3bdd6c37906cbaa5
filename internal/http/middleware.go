package http

import (
	"net/http"
	"time"

	"github.com/sally802528/grade-query-education-system/internal/auth"
	"github.com/sally802528/grade-query-education-system/internal/model"
)

// requireRole admits only tokens whose role claim equals role.
func (s *Server) requireRole(role model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return s.guarded(role, next)
	}
}

// requireAuth admits any valid token regardless of role.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return s.guarded("", next)
}

// guarded writes exactly one response on rejection and never calls next in
// that case.
func (s *Server) guarded(role model.Role, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		req := auth.Request{AuthHeader: r.Header.Get("Authorization")}

		var decision auth.Decision
		if role == "" {
			decision = s.guard.Authenticate(req)
		} else {
			decision = s.guard.Check(req, role)
		}
		auth.Observe(role, decision, time.Since(start))

		if !decision.Allowed() {
			writeError(w, decision.Status, decision.Message)
			return
		}
		ctx := auth.WithIdentity(r.Context(), *decision.Identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFrom(r *http.Request) auth.Identity {
	identity, _ := auth.IdentityFromContext(r.Context())
	return identity
}
