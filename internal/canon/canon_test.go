package canon

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMiddlewareRewritesNestedName(t *testing.T) {
	var seenPath string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/v2/library/nginx/tags/list", nil)
	w := httptest.NewRecorder()
	Middleware(next).ServeHTTP(w, req)

	assert.Equal(t, "/v2/library%2Fnginx/tags/list", seenPath)
}

func TestMiddlewareLeavesBaseAndCatalogUnchanged(t *testing.T) {
	for _, path := range []string{"/v2/", "/v2/_catalog"} {
		var seenPath string
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seenPath = r.URL.Path
		})

		req := httptest.NewRequest(http.MethodGet, path, nil)
		Middleware(next).ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, path, seenPath)
	}
}

func TestMiddlewareRestoresLocationHeader(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/v2/"+r.URL.Path[len("/v2/"):])
		w.WriteHeader(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodPut, "/v2/library/nginx/manifests/latest", nil)
	w := httptest.NewRecorder()
	Middleware(next).ServeHTTP(w, req)

	assert.Contains(t, w.Header().Get("Location"), "library/nginx")
	assert.NotContains(t, w.Header().Get("Location"), "%2F")
}
