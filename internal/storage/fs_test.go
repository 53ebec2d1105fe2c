package storage

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSDriverWriteReadStat(t *testing.T) {
	ctx := context.Background()
	d := NewMemFSDriver()

	w, err := d.Writer(ctx, "blobs/sha256:abc")
	require.NoError(t, err)
	_, err = w.Write([]byte("hello world"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	size, err := d.Stat(ctx, "blobs/sha256:abc")
	require.NoError(t, err)
	assert.EqualValues(t, 11, size)

	r, err := d.Reader(ctx, "blobs/sha256:abc")
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestFSDriverCopy(t *testing.T) {
	ctx := context.Background()
	d := NewMemFSDriver()

	w, _ := d.Writer(ctx, "blobs/src")
	w.Write([]byte("payload"))
	w.Close()

	require.NoError(t, d.Copy(ctx, "blobs/src", "blobs/dst"))

	r, err := d.Reader(ctx, "blobs/dst")
	require.NoError(t, err)
	defer r.Close()
	data, _ := io.ReadAll(r)
	assert.Equal(t, "payload", string(data))

	// src is left intact
	r2, err := d.Reader(ctx, "blobs/src")
	require.NoError(t, err)
	defer r2.Close()
	data2, _ := io.ReadAll(r2)
	assert.Equal(t, "payload", string(data2))
}

func TestFSDriverDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	d := NewMemFSDriver()

	assert.NoError(t, d.Delete(ctx, "blobs/never-written"))

	w, _ := d.Writer(ctx, "blobs/x")
	io.Copy(w, bytes.NewReader([]byte("x")))
	w.Close()

	require.NoError(t, d.Delete(ctx, "blobs/x"))
	assert.NoError(t, d.Delete(ctx, "blobs/x"))
}
