// Package canon rewrites repository-name path segments before route
// matching. Repository names contain '/' (e.g. "library/nginx"), which an
// HTTP router otherwise treats as a route-segment boundary.
package canon

import (
	"net/http"
	"regexp"
	"strings"
)

// matchPattern finds the name cluster between "/v2/" and one of the
// tags/manifests/blobs resource segments. Names not matching (/v2/,
// /v2/_catalog, non-API routes) are forwarded unchanged.
var matchPattern = regexp.MustCompile(`^/v2/(?P<name>[\w/]+)/(?P<resource>tags|manifests|blobs)/`)

// Middleware wraps next, rewriting '/' to "%2F" in the name segment of the
// request path before next sees it, and restoring the original unencoded
// form in any Location header next writes in response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		match := matchPattern.FindStringSubmatchIndex(r.URL.Path)
		if match == nil {
			next.ServeHTTP(w, r)
			return
		}

		nameStart, nameEnd := match[2], match[3]
		original := r.URL.Path
		name := original[nameStart:nameEnd]
		encoded := strings.ReplaceAll(name, "/", "%2F")

		r.URL.Path = original[:nameStart] + encoded + original[nameEnd:]

		rw := &restoringWriter{ResponseWriter: w, encoded: encoded, original: name}
		next.ServeHTTP(rw, r)
	})
}

// restoringWriter rewrites an echoed Location header's encoded name segment
// back to its original unencoded form before it reaches the client.
type restoringWriter struct {
	http.ResponseWriter
	encoded  string
	original string
}

func (rw *restoringWriter) WriteHeader(status int) {
	if loc := rw.Header().Get("Location"); loc != "" {
		rw.Header().Set("Location", strings.Replace(loc, rw.encoded, rw.original, 1))
	}
	rw.ResponseWriter.WriteHeader(status)
}
