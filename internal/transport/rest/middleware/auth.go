package middleware

import "net/http"

// AdminMiddleware guards the operator endpoints with a shared token.
type AdminMiddleware struct {
	token string
}

func NewAdminMiddleware(token string) *AdminMiddleware {
	return &AdminMiddleware{token: token}
}

// RequireAdmin validates the admin token from the X-Admin-Token header
// or the token query param. An unset server token disables the
// endpoints entirely.
func (m *AdminMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.token == "" {
			http.Error(w, `{"error":"admin api disabled"}`, http.StatusForbidden)
			return
		}
		token := r.Header.Get("X-Admin-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token != m.token {
			http.Error(w, `{"error":"invalid admin token"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
