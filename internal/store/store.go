// Package store implements the relational content-addressed model: blobs,
// manifests, tags, repositories, and the manifest-blob edges between them.
// It wraps a Postgres connection for metadata and a storage.Driver for blob
// payload bytes — the two always move together (an upsert's row commits only
// once its payload write has landed).
package store

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/registryx/registryx/internal/distreg"
	"github.com/registryx/registryx/internal/storage"
)

// Store is the single point of access to registry metadata and payloads.
type Store struct {
	db      *sql.DB
	payload storage.Driver
}

func New(db *sql.DB, payload storage.Driver) *Store {
	return &Store{db: db, payload: payload}
}

func payloadKey(key string) string {
	return PayloadKey(key)
}

// PayloadKey is the storage.Driver path a digest or upload-session key lives
// under. Exported so callers outside this package (the GC sweep) can
// address the same payload without duplicating the layout convention.
func PayloadKey(key string) string {
	return "blobs/" + key
}

// BlobGet returns the full payload for digest.
func (s *Store) BlobGet(ctx context.Context, digest string) ([]byte, error) {
	var size int64
	err := s.db.QueryRowContext(ctx, `SELECT size FROM blobs WHERE digest = $1`, digest).Scan(&size)
	if err == sql.ErrNoRows {
		return nil, distreg.New(distreg.BlobUnknown)
	}
	if err != nil {
		return nil, fmt.Errorf("blob.get: %w", err)
	}

	r, err := s.payload.Reader(ctx, payloadKey(digest))
	if err != nil {
		return nil, distreg.New(distreg.BlobUnknown)
	}
	defer r.Close()

	return io.ReadAll(r)
}

// BlobLength returns the byte size of digest without loading the payload.
func (s *Store) BlobLength(ctx context.Context, digest string) (int64, error) {
	var size int64
	err := s.db.QueryRowContext(ctx, `SELECT size FROM blobs WHERE digest = $1`, digest).Scan(&size)
	if err == sql.ErrNoRows {
		return 0, distreg.New(distreg.BlobUnknown)
	}
	if err != nil {
		return 0, fmt.Errorf("blob.length: %w", err)
	}
	return size, nil
}

// BlobSave upserts the row for key and replaces its payload with data. key
// may be a pending-upload session UUID or a finalised digest.
func (s *Store) BlobSave(ctx context.Context, key string, data []byte) error {
	w, err := s.payload.Writer(ctx, payloadKey(key))
	if err != nil {
		return fmt.Errorf("blob.save: open payload: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("blob.save: write payload: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("blob.save: close payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO blobs (digest, size, media_type)
		VALUES ($1, $2, '')
		ON CONFLICT (digest) DO UPDATE SET size = EXCLUDED.size
	`, key, len(data))
	if err != nil {
		return fmt.Errorf("blob.save: %w", err)
	}
	return nil
}

// BlobRekey performs the atomic rename of a pending upload's key to its
// verified digest. Idempotent: if a row already exists at newKey, the row
// and payload at oldKey are dropped instead (content dedup).
func (s *Store) BlobRekey(ctx context.Context, oldKey, newKey string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("blob.rekey: %w", err)
	}
	defer tx.Rollback()

	var size int64
	err = tx.QueryRowContext(ctx, `SELECT size FROM blobs WHERE digest = $1`, oldKey).Scan(&size)
	if err == sql.ErrNoRows {
		return distreg.New(distreg.BlobUploadInvalid)
	}
	if err != nil {
		return fmt.Errorf("blob.rekey: %w", err)
	}

	var dedup bool
	err = tx.QueryRowContext(ctx, `SELECT true FROM blobs WHERE digest = $1`, newKey).Scan(&dedup)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("blob.rekey: %w", err)
	}

	if dedup {
		if _, err := tx.ExecContext(ctx, `DELETE FROM blobs WHERE digest = $1`, oldKey); err != nil {
			return fmt.Errorf("blob.rekey: drop duplicate row: %w", err)
		}
		if err := s.payload.Delete(ctx, payloadKey(oldKey)); err != nil {
			return fmt.Errorf("blob.rekey: drop duplicate payload: %w", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx, `UPDATE blobs SET digest = $1 WHERE digest = $2`, newKey, oldKey); err != nil {
			return fmt.Errorf("blob.rekey: rename row: %w", err)
		}
		if err := s.payload.Copy(ctx, payloadKey(oldKey), payloadKey(newKey)); err != nil {
			return fmt.Errorf("blob.rekey: rename payload: %w", err)
		}
		if err := s.payload.Delete(ctx, payloadKey(oldKey)); err != nil {
			return fmt.Errorf("blob.rekey: clean up old payload: %w", err)
		}
	}

	return tx.Commit()
}

// BlobAssociate links blobDigest as an element of manifestDigest. Idempotent.
func (s *Store) BlobAssociate(ctx context.Context, manifestDigest, blobDigest string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO manifest_blobs (manifest, blob) VALUES ($1, $2)
		ON CONFLICT (manifest, blob) DO NOTHING
	`, manifestDigest, blobDigest)
	if err != nil {
		return fmt.Errorf("blob.associate: %w", err)
	}
	return nil
}

// Edge is a removed manifest-blob pair, returned for logging by
// BlobDisassociate.
type Edge struct {
	Manifest string
	Blob     string
}

// BlobDisassociate removes every edge from a manifest in repository that
// targets blobDigest, returning the removed pairs.
func (s *Store) BlobDisassociate(ctx context.Context, repository, blobDigest string) ([]Edge, error) {
	rows, err := s.db.QueryContext(ctx, `
		DELETE FROM manifest_blobs
		WHERE blob = $2
		  AND manifest IN (SELECT digest FROM manifests WHERE repository = $1)
		RETURNING manifest, blob
	`, repository, blobDigest)
	if err != nil {
		return nil, fmt.Errorf("blob.disassociate: %w", err)
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.Manifest, &e.Blob); err != nil {
			return nil, fmt.Errorf("blob.disassociate: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// ManifestGet returns the raw JSON body stored for (repository, digest).
func (s *Store) ManifestGet(ctx context.Context, repository, digest string) ([]byte, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM manifests WHERE repository = $1 AND digest = $2
	`, repository, digest).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, distreg.New(distreg.ManifestUnknown)
	}
	if err != nil {
		return nil, fmt.Errorf("manifest.get: %w", err)
	}
	return raw, nil
}

// ManifestSave upserts the manifest body, idempotent on (repository, digest).
func (s *Store) ManifestSave(ctx context.Context, repository, digest string, raw []byte, mediaType string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO manifests (repository, digest, value, media_type, size)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (repository, digest) DO UPDATE
		  SET value = EXCLUDED.value, media_type = EXCLUDED.media_type, size = EXCLUDED.size
	`, repository, digest, raw, mediaType, len(raw))
	if err != nil {
		return fmt.Errorf("manifest.save: %w", err)
	}
	return nil
}

// ManifestDelete removes the manifest row named by digestOrTag, which may be
// either a digest or a tag name resolved within repository.
func (s *Store) ManifestDelete(ctx context.Context, repository, digestOrTag string) error {
	digest := digestOrTag
	if !isDigest(digestOrTag) {
		resolved, err := s.TagGet(ctx, repository, digestOrTag)
		if err != nil {
			return err
		}
		digest = resolved
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM manifests WHERE repository = $1 AND digest = $2
	`, repository, digest)
	if err != nil {
		return fmt.Errorf("manifest.delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("manifest.delete: %w", err)
	}
	if n == 0 {
		return distreg.New(distreg.ManifestUnknown)
	}
	return nil
}

// TagGet resolves a tag to the digest it currently points at.
func (s *Store) TagGet(ctx context.Context, repository, name string) (string, error) {
	var digest string
	err := s.db.QueryRowContext(ctx, `
		SELECT manifest FROM tags WHERE repository = $1 AND name = $2
	`, repository, name).Scan(&digest)
	if err == sql.ErrNoRows {
		return "", distreg.New(distreg.ManifestUnknown)
	}
	if err != nil {
		return "", fmt.Errorf("tag.get: %w", err)
	}
	return digest, nil
}

// TagSave upserts a tag pointer, bumping updated_at.
func (s *Store) TagSave(ctx context.Context, repository, name, digest string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tags (repository, name, manifest, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (repository, name) DO UPDATE
		  SET manifest = EXCLUDED.manifest, updated_at = now()
	`, repository, name, digest)
	if err != nil {
		return fmt.Errorf("tag.save: %w", err)
	}
	return nil
}

// Tag is one row of a tag.list result.
type Tag struct {
	Name     string
	Updated  string
	Manifest string
}

// TagList returns every tag in repository, most recently updated first.
func (s *Store) TagList(ctx context.Context, repository string) ([]Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, updated_at, manifest FROM tags
		WHERE repository = $1
		ORDER BY updated_at DESC
	`, repository)
	if err != nil {
		return nil, fmt.Errorf("tag.list: %w", err)
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.Name, &t.Updated, &t.Manifest); err != nil {
			return nil, fmt.Errorf("tag.list: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// TagSizeOf sums the length of every blob reachable from manifestDigest.
func (s *Store) TagSizeOf(ctx context.Context, manifestDigest string) (int64, error) {
	var size sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(b.size), 0)
		FROM manifest_blobs mb
		JOIN blobs b ON b.digest = mb.blob
		WHERE mb.manifest = $1
	`, manifestDigest).Scan(&size)
	if err != nil {
		return 0, fmt.Errorf("tag.sizeOf: %w", err)
	}
	return size.Int64, nil
}

// RepositoryList returns every known repository name, ascending.
func (s *Store) RepositoryList(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM repositories ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("repository.list: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("repository.list: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// RepositorySave registers name, idempotent.
func (s *Store) RepositorySave(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO repositories (name) VALUES ($1)
		ON CONFLICT (name) DO NOTHING
	`, name)
	if err != nil {
		return fmt.Errorf("repository.save: %w", err)
	}
	return nil
}
