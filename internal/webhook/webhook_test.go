package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyPostsEvent(t *testing.T) {
	var received Event
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := New(server.URL)
	err := n.Notify(context.Background(), Event{Kind: ManifestPushed, Repository: "library/nginx", Digest: "sha256:abc"})

	require.NoError(t, err)
	assert.Equal(t, ManifestPushed, received.Kind)
	assert.Equal(t, "library/nginx", received.Repository)
}

func TestNotifyWithoutURLIsNoop(t *testing.T) {
	n := New("")
	err := n.Notify(context.Background(), Event{Kind: GCCompleted})
	assert.NoError(t, err)
}

func TestNotifyPropagatesErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n := New(server.URL)
	err := n.Notify(context.Background(), Event{Kind: ManifestDeleted})
	assert.Error(t, err)
}
