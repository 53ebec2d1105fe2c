package main

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/registryx/registryx/internal/auth"
	"github.com/registryx/registryx/internal/cache"
	"github.com/registryx/registryx/internal/config"
	"github.com/registryx/registryx/internal/db"
	"github.com/registryx/registryx/internal/httpapi"
	"github.com/registryx/registryx/internal/logging"
	"github.com/registryx/registryx/internal/manifest"
	"github.com/registryx/registryx/internal/policy"
	"github.com/registryx/registryx/internal/storage"
	"github.com/registryx/registryx/internal/store"
	"github.com/registryx/registryx/internal/upload"
	"github.com/registryx/registryx/internal/webhook"
)

func main() {
	log := logging.New()
	cfg := config.Load()
	log.WithField("port", cfg.ServerPort).Info("starting registryx")

	var conn *sql.DB
	var err error
	for i := 0; i < 10; i++ {
		conn, err = db.Connect(cfg)
		if err == nil {
			break
		}
		log.WithError(err).WithField("attempt", i+1).Warn("database connect failed, retrying")
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		log.WithError(err).Fatal("database unreachable")
	}
	if err := db.Migrate(conn); err != nil {
		log.WithError(err).Fatal("schema migration failed")
	}

	var payload storage.Driver
	if cfg.StorageDriver == "fs" {
		payload, err = storage.NewFSDriver(cfg)
	} else {
		payload, err = storage.NewS3Driver(cfg)
	}
	if err != nil {
		log.WithError(err).Fatal("storage driver init failed")
	}

	registryStore := store.New(conn, payload)
	uploadMgr := upload.New(registryStore)
	linker := manifest.NewLinker(registryStore)

	var rcache *cache.Cache
	if c, err := cache.New(cfg); err != nil {
		log.WithError(err).Warn("redis cache unavailable, continuing without it")
	} else {
		rcache = c
	}

	policyGate := policy.New()
	notifier := webhook.New(cfg.WebhookURL)

	handler := httpapi.NewHandler(cfg, registryStore, uploadMgr, linker, rcache, policyGate, notifier, log)

	var h http.Handler = handler.Router()
	if cfg.JWTSecret != "" {
		h = auth.New(cfg.JWTSecret).Required(h)
	}

	admin := httpapi.NewAdminHandler(conn, payload, log)
	go func() {
		log.Info("admin surface listening on :5001")
		if err := http.ListenAndServe(":5001", admin.Router()); err != nil {
			log.WithError(err).Error("admin server exited")
		}
	}()

	log.WithField("addr", cfg.ServerPort).Info("listening")
	if err := http.ListenAndServe(cfg.ServerPort, h); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}
