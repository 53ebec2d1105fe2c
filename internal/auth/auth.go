// Package auth implements the bearer-token boundary check the core
// presents to whatever outer authentication system fronts it. There is no
// account or session store here — only token parsing and the
// Www-Authenticate challenge, per spec.md's scoping of auth outside the
// relational core.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const subjectKey contextKey = "subject"

type Middleware struct {
	secret string
}

func New(secret string) *Middleware {
	return &Middleware{secret: secret}
}

// Required wraps next, rejecting requests without a valid bearer token with
// the Distribution challenge response.
func (m *Middleware) Required(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			m.challenge(w)
			return
		}

		raw := strings.TrimPrefix(header, "Bearer ")
		token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(m.secret), nil
		})
		if err != nil || !token.Valid {
			m.challenge(w)
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			m.challenge(w)
			return
		}

		ctx := context.WithValue(r.Context(), subjectKey, claims["sub"])
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) challenge(w http.ResponseWriter) {
	w.Header().Set("Www-Authenticate", `Bearer realm="registryx",service="registryx"`)
	w.Header().Set("Docker-Distribution-Api-Version", "registry/2.0")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"errors":[{"code":"UNAUTHORIZED","message":"authentication required"}]}`))
}

// Subject returns the authenticated subject (JWT "sub" claim) from ctx, if
// any request passed through Required.
func Subject(ctx context.Context) (string, bool) {
	sub, ok := ctx.Value(subjectKey).(string)
	return sub, ok
}
