// Command registryx-gc triggers the garbage-collection sweep and reports
// the on-disk size before and after reclamation.
package main

import (
	"context"
	"database/sql"

	"github.com/registryx/registryx/internal/config"
	"github.com/registryx/registryx/internal/db"
	"github.com/registryx/registryx/internal/gc"
	"github.com/registryx/registryx/internal/logging"
	"github.com/registryx/registryx/internal/storage"
)

func main() {
	log := logging.New()
	cfg := config.Load()

	conn, err := db.Connect(cfg)
	if err != nil {
		log.WithError(err).Fatal("database unreachable")
	}
	defer conn.Close()

	var payload storage.Driver
	if cfg.StorageDriver == "fs" {
		payload, err = storage.NewFSDriver(cfg)
	} else {
		payload, err = storage.NewS3Driver(cfg)
	}
	if err != nil {
		log.WithError(err).Fatal("storage driver init failed")
	}

	before, err := databaseSize(conn)
	if err != nil {
		log.WithError(err).Warn("could not measure pre-sweep size")
	}

	sweeper := gc.New(conn, payload, log)
	report, err := sweeper.Sweep(context.Background())
	if err != nil {
		log.WithError(err).Fatal("gc sweep failed")
	}

	after, err := databaseSize(conn)
	if err != nil {
		log.WithError(err).Warn("could not measure post-sweep size")
	}

	log.WithFields(map[string]interface{}{
		"edges_deleted":        report.EdgesDeleted,
		"blobs_deleted":        report.BlobsDeleted,
		"tags_deleted":         report.TagsDeleted,
		"repositories_deleted": report.RepositoriesDeleted,
		"size_before":          before,
		"size_after":           after,
	}).Info("gc sweep complete")
}

func databaseSize(conn *sql.DB) (int64, error) {
	var size int64
	err := conn.QueryRow(`SELECT pg_database_size(current_database())`).Scan(&size)
	return size, err
}
