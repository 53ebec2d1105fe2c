package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestRequiredRejectsMissingHeader(t *testing.T) {
	m := New("secret")
	called := false
	h := m.Required(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v2/", nil))

	require.False(t, called)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Header().Get("Www-Authenticate"), `realm="registryx"`)
}

func TestRequiredRejectsWrongSigningSecret(t *testing.T) {
	m := New("secret")
	token := sign(t, "wrong-secret", jwt.MapClaims{"sub": "alice", "exp": time.Now().Add(time.Hour).Unix()})

	h := m.Required(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	r := httptest.NewRequest(http.MethodGet, "/v2/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequiredAcceptsValidTokenAndPropagatesSubject(t *testing.T) {
	m := New("secret")
	token := sign(t, "secret", jwt.MapClaims{"sub": "alice", "exp": time.Now().Add(time.Hour).Unix()})

	var gotSubject string
	var gotOK bool
	h := m.Required(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject, gotOK = Subject(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/v2/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, gotOK)
	require.Equal(t, "alice", gotSubject)
}

func TestRequiredRejectsExpiredToken(t *testing.T) {
	m := New("secret")
	token := sign(t, "secret", jwt.MapClaims{"sub": "alice", "exp": time.Now().Add(-time.Hour).Unix()})

	h := m.Required(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	r := httptest.NewRequest(http.MethodGet, "/v2/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}
