package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/registryx/registryx/internal/gc"
	"github.com/registryx/registryx/internal/storage"
)

// AdminHandler exposes the administrative surface named in spec.md §6: a
// cleanup action that runs the GC sweep and reports pre/post on-disk size.
type AdminHandler struct {
	db  *sql.DB
	gc  *gc.Sweeper
	log *logrus.Logger
}

func NewAdminHandler(conn *sql.DB, payload storage.Driver, log *logrus.Logger) *AdminHandler {
	return &AdminHandler{db: conn, gc: gc.New(conn, payload, log), log: log}
}

func (h *AdminHandler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/gc", h.Cleanup)
	return mux
}

func (h *AdminHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	before, _ := h.size(r.Context())
	report, err := h.gc.Sweep(r.Context())
	if err != nil {
		h.log.WithError(err).Error("admin gc sweep failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	after, _ := h.size(r.Context())

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"edges_deleted":        report.EdgesDeleted,
		"blobs_deleted":        report.BlobsDeleted,
		"tags_deleted":         report.TagsDeleted,
		"repositories_deleted": report.RepositoriesDeleted,
		"size_before":          before,
		"size_after":           after,
	})
}

func (h *AdminHandler) size(ctx context.Context) (int64, error) {
	var size int64
	err := h.db.QueryRowContext(ctx, `SELECT pg_database_size(current_database())`).Scan(&size)
	return size, err
}
