// Package gc implements the garbage-collection sweep: reconciling blobs,
// tags, and repositories after manifest deletes. Invoked only by an
// administrative action, never on the request path.
package gc

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/registryx/registryx/internal/storage"
	"github.com/registryx/registryx/internal/store"
)

type Sweeper struct {
	db      *sql.DB
	payload storage.Driver
	log     *logrus.Logger
}

func New(db *sql.DB, payload storage.Driver, log *logrus.Logger) *Sweeper {
	return &Sweeper{db: db, payload: payload, log: log}
}

// Report carries the per-step row counts of one sweep, for callers that want
// to surface them (the admin endpoint, the GC CLI).
type Report struct {
	EdgesDeleted        int64
	BlobsDeleted        int64
	TagsDeleted         int64
	RepositoriesDeleted int64
}

// Sweep runs the ordered reconciliation in a single transaction, then issues
// a storage reclamation outside it. Step order is load-bearing: edges must
// go before blobs (a dangling edge keeps a blob alive), tags go after edges
// because the manifests table is ground truth, and repositories go last
// because they're reachable only via manifests.
func (s *Sweeper) Sweep(ctx context.Context) (Report, error) {
	var report Report

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return report, fmt.Errorf("gc: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		DELETE FROM manifest_blobs
		WHERE manifest NOT IN (SELECT digest FROM manifests)
	`)
	if err != nil {
		return report, fmt.Errorf("gc: sweep edges: %w", err)
	}
	report.EdgesDeleted, _ = res.RowsAffected()
	s.log.WithField("count", report.EdgesDeleted).Info("gc: edges deleted")

	rows, err := tx.QueryContext(ctx, `
		DELETE FROM blobs
		WHERE digest NOT IN (SELECT blob FROM manifest_blobs)
		RETURNING digest
	`)
	if err != nil {
		return report, fmt.Errorf("gc: sweep blobs: %w", err)
	}
	var reclaimed []string
	for rows.Next() {
		var digest string
		if err := rows.Scan(&digest); err != nil {
			rows.Close()
			return report, fmt.Errorf("gc: sweep blobs: %w", err)
		}
		reclaimed = append(reclaimed, digest)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return report, fmt.Errorf("gc: sweep blobs: %w", err)
	}
	rows.Close()
	report.BlobsDeleted = int64(len(reclaimed))
	s.log.WithField("count", report.BlobsDeleted).Info("gc: blobs deleted")

	res, err = tx.ExecContext(ctx, `
		DELETE FROM tags
		WHERE manifest NOT IN (SELECT digest FROM manifests)
	`)
	if err != nil {
		return report, fmt.Errorf("gc: sweep tags: %w", err)
	}
	report.TagsDeleted, _ = res.RowsAffected()
	s.log.WithField("count", report.TagsDeleted).Info("gc: tags deleted")

	res, err = tx.ExecContext(ctx, `
		DELETE FROM repositories
		WHERE name NOT IN (SELECT DISTINCT repository FROM manifests)
	`)
	if err != nil {
		return report, fmt.Errorf("gc: sweep repositories: %w", err)
	}
	report.RepositoriesDeleted, _ = res.RowsAffected()
	s.log.WithField("count", report.RepositoriesDeleted).Info("gc: repositories deleted")

	if err := tx.Commit(); err != nil {
		return report, fmt.Errorf("gc: commit: %w", err)
	}

	for _, digest := range reclaimed {
		if err := s.payload.Delete(ctx, store.PayloadKey(digest)); err != nil {
			s.log.WithError(err).WithField("digest", digest).Warn("gc: payload delete failed")
		}
	}

	if _, err := s.db.ExecContext(ctx, `VACUUM`); err != nil {
		s.log.WithError(err).Warn("gc: vacuum failed")
	}

	return report, nil
}
