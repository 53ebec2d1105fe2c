package distreg

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUsesCanonicalMessage(t *testing.T) {
	err := New(BlobUnknown)
	assert.Equal(t, "blob unknown to registry", err.Error())
	assert.Equal(t, http.StatusNotFound, err.Status())
}

func TestNewfOverridesMessage(t *testing.T) {
	err := Newf(ManifestInvalid, "layers array missing digest")
	assert.Equal(t, "layers array missing digest", err.Error())
	assert.Equal(t, http.StatusBadRequest, err.Status())
}

func TestWriteHTTPRendersDistributionErrorBody(t *testing.T) {
	w := httptest.NewRecorder()
	WriteHTTP(w, New(DigestInvalid).WithDetail("expected sha256:abc"))

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body errorBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Len(t, body.Errors, 1)
	assert.Equal(t, "DIGEST_INVALID", body.Errors[0].Code)
	assert.Equal(t, "expected sha256:abc", body.Errors[0].Detail)
}

func TestWriteHTTPFallsBackForPlainErrors(t *testing.T) {
	w := httptest.NewRecorder()
	WriteHTTP(w, assertError{"boom"})

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body errorBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Len(t, body.Errors, 1)
	assert.Equal(t, "UNKNOWN", body.Errors[0].Code)
}

type assertError struct{ msg string }

func (e assertError) Error() string { return e.msg }
