// Package upload implements the chunked blob upload session state machine:
// NONE -> OPEN(uuid, accumulated_bytes) -> CLOSED.
package upload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"

	"github.com/registryx/registryx/internal/distreg"
	"github.com/registryx/registryx/internal/store"
)

type Manager struct {
	store *store.Store
}

func New(s *store.Store) *Manager {
	return &Manager{store: s}
}

// Start mints a new upload session and records an empty blob row for it, so
// a Finalize with no prior Patch sees an open, zero-length session. A failure
// to record that row is not reported here; the first Patch creates the row
// regardless.
func (m *Manager) Start(ctx context.Context) string {
	session := uuid.NewString()
	_ = m.store.BlobSave(ctx, session, nil)
	return session
}

// Patch appends chunk to the session's accumulated payload and returns the
// inclusive start / exclusive end range of bytes now held, matching the
// Range header the caller must echo.
//
// PATCH against an unknown session is lenient: it is treated as appending to
// an empty payload, matching observed client retry behaviour.
func (m *Manager) Patch(ctx context.Context, session string, chunk []byte) (start, end int64, err error) {
	existing, err := m.store.BlobGet(ctx, session)
	if err != nil {
		if !isUnknownBlob(err) {
			return 0, 0, err
		}
		existing = nil
	}

	start = int64(len(existing))
	combined := append(existing, chunk...)
	end = int64(len(combined))

	if err := m.store.BlobSave(ctx, session, combined); err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// Finalize appends any trailing chunk, verifies the accumulated payload
// hashes to digest, and — on match — rekeys the session to its digest,
// closing it. On mismatch the session row (with any trailing chunk already
// appended) is left in place so the client may retry the finalize call.
func (m *Manager) Finalize(ctx context.Context, session, digest string, trailing []byte) error {
	existing, err := m.store.BlobGet(ctx, session)
	if err != nil {
		if isUnknownBlob(err) {
			return distreg.New(distreg.BlobUploadUnknown)
		}
		return err
	}

	combined := existing
	if len(trailing) > 0 {
		combined = append(combined, trailing...)
		if err := m.store.BlobSave(ctx, session, combined); err != nil {
			return err
		}
	}

	sum := sha256.Sum256(combined)
	computed := "sha256:" + hex.EncodeToString(sum[:])
	if computed != digest {
		return distreg.New(distreg.DigestInvalid)
	}

	return m.store.BlobRekey(ctx, session, digest)
}

func isUnknownBlob(err error) bool {
	derr, ok := err.(*distreg.Error)
	return ok && derr.Kind == distreg.BlobUnknown
}
