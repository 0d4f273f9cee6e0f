package middleware

import (
	"crypto/hmac"
	"net/http"
	"strings"

	"ridehooks/internal/pkg/errors"
)

// TriggerMiddleware guards the dispatch trigger with a shared bearer secret.
// This is scheduler-to-service auth, not end-user auth.
type TriggerMiddleware struct {
	token string
}

func NewTriggerMiddleware(token string) *TriggerMiddleware {
	return &TriggerMiddleware{token: token}
}

func (m *TriggerMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		parts := strings.Split(authHeader, " ")
		if m.token == "" || len(parts) != 2 || parts[0] != "Bearer" {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Missing trigger token", nil)
			return
		}

		if !hmac.Equal([]byte(parts[1]), []byte(m.token)) {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid trigger token", nil)
			return
		}

		next(w, r)
	}
}
