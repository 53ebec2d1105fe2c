// Package httpapi dispatches the Docker Registry HTTP API v2 surface onto
// the relational store, upload manager, and manifest linker.
package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/registryx/registryx/internal/cache"
	"github.com/registryx/registryx/internal/canon"
	"github.com/registryx/registryx/internal/config"
	"github.com/registryx/registryx/internal/distreg"
	"github.com/registryx/registryx/internal/manifest"
	"github.com/registryx/registryx/internal/policy"
	"github.com/registryx/registryx/internal/store"
	"github.com/registryx/registryx/internal/upload"
	"github.com/registryx/registryx/internal/webhook"
)

type Handler struct {
	cfg     *config.Config
	store   *store.Store
	uploads *upload.Manager
	linker  *manifest.Linker
	cache   *cache.Cache // nil if not configured
	policy  *policy.Gate // nil if not configured
	hook    *webhook.Notifier
	log     *logrus.Logger
}

func NewHandler(cfg *config.Config, s *store.Store, u *upload.Manager, l *manifest.Linker, c *cache.Cache, p *policy.Gate, hook *webhook.Notifier, log *logrus.Logger) *Handler {
	return &Handler{cfg: cfg, store: s, uploads: u, linker: l, cache: c, policy: p, hook: hook, log: log}
}

// Router builds the full mux.Router for the registry surface, with name
// canonicalisation applied ahead of route matching.
func (h *Handler) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/v2/", h.Base).Methods(http.MethodGet)
	r.HandleFunc("/v2/_catalog", h.Catalog).Methods(http.MethodGet)

	r.HandleFunc("/v2/{name:.+}/tags/list", h.ListTags).Methods(http.MethodGet)

	r.HandleFunc("/v2/{name:.+}/manifests/{reference}", h.GetManifest).Methods(http.MethodGet)
	r.HandleFunc("/v2/{name:.+}/manifests/{reference}", h.HeadManifest).Methods(http.MethodHead)
	r.HandleFunc("/v2/{name:.+}/manifests/{reference}", h.PutManifest).Methods(http.MethodPut)
	r.HandleFunc("/v2/{name:.+}/manifests/{reference}", h.DeleteManifest).Methods(http.MethodDelete)

	r.HandleFunc("/v2/{name:.+}/blobs/uploads/", h.StartBlobUpload).Methods(http.MethodPost)
	r.HandleFunc("/v2/{name:.+}/blobs/uploads/{uuid}", h.PatchBlobUpload).Methods(http.MethodPatch)
	r.HandleFunc("/v2/{name:.+}/blobs/uploads/{uuid}", h.PutBlobUpload).Methods(http.MethodPut)

	r.HandleFunc("/v2/{name:.+}/blobs/{digest}", h.HeadBlob).Methods(http.MethodHead)
	r.HandleFunc("/v2/{name:.+}/blobs/{digest}", h.GetBlob).Methods(http.MethodGet)
	r.HandleFunc("/v2/{name:.+}/blobs/{digest}", h.DeleteBlob).Methods(http.MethodDelete)

	return canon.Middleware(r)
}

func (h *Handler) Base(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Docker-Distribution-Api-Version", "registry/2.0")
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte("{}"))
}

func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	names, err := h.store.RepositoryList(r.Context())
	if err != nil {
		h.log.WithError(err).Error("catalog: list repositories")
		distreg.WriteHTTP(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"repositories": names})
}

func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	tags, err := h.store.TagList(r.Context(), name)
	if err != nil {
		distreg.WriteHTTP(w, err)
		return
	}

	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"name": name, "tags": names})
}

func (h *Handler) GetManifest(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name, reference := vars["name"], vars["reference"]

	digest := reference
	if !store.IsDigest(reference) {
		if h.cache != nil {
			if cached, ok := h.cache.TagDigest(r.Context(), name, reference); ok {
				digest = cached
			}
		}
		if digest == reference {
			resolved, err := h.store.TagGet(r.Context(), name, reference)
			if err != nil {
				distreg.WriteHTTP(w, err)
				return
			}
			digest = resolved
			if h.cache != nil {
				h.cache.SetTagDigest(r.Context(), name, reference, digest)
			}
		}
	}

	raw, err := h.store.ManifestGet(r.Context(), name, digest)
	if err != nil {
		distreg.WriteHTTP(w, err)
		return
	}

	w.Header().Set("Docker-Content-Digest", digest)
	w.Header().Set("Content-Type", "application/vnd.docker.distribution.manifest.v2+json")
	w.Header().Set("Docker-Distribution-Api-Version", "registry/2.0")
	w.Write(raw)
}

// HeadManifest mirrors GetManifest without the body, for clients probing
// existence before deciding whether to pull.
func (h *Handler) HeadManifest(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name, reference := vars["name"], vars["reference"]

	digest := reference
	if !store.IsDigest(reference) {
		resolved, err := h.store.TagGet(r.Context(), name, reference)
		if err != nil {
			distreg.WriteHTTP(w, err)
			return
		}
		digest = resolved
	}

	raw, err := h.store.ManifestGet(r.Context(), name, digest)
	if err != nil {
		distreg.WriteHTTP(w, err)
		return
	}

	w.Header().Set("Docker-Content-Digest", digest)
	w.Header().Set("Content-Type", "application/vnd.docker.distribution.manifest.v2+json")
	w.Header().Set("Content-Length", strconv.Itoa(len(raw)))
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) PutManifest(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name, reference := vars["name"], vars["reference"]

	body, err := io.ReadAll(io.LimitReader(r.Body, h.cfg.MaxManifestBytes))
	if err != nil {
		distreg.WriteHTTP(w, distreg.New(distreg.ManifestInvalid))
		return
	}

	if h.policy != nil && !store.IsDigest(reference) {
		_, exists := h.store.TagGet(r.Context(), name, reference)
		input := policy.Input{
			Repository:    name,
			Tag:           reference,
			TagExists:     exists == nil,
			ImmutableTags: h.cfg.EnableImmutableTags,
		}
		allowed, violations, err := h.policy.Evaluate(r.Context(), input)
		if err == nil && !allowed {
			distreg.WriteHTTP(w, distreg.New(distreg.Denied).WithDetail(violations))
			return
		}
	}

	mediaType := guessMediaType(body)
	result, err := h.linker.Put(r.Context(), name, reference, body, mediaType)
	if err != nil {
		distreg.WriteHTTP(w, err)
		return
	}

	if h.cache != nil && result.Tag != "" {
		h.cache.SetTagDigest(r.Context(), name, result.Tag, result.Digest)
	}
	if h.hook != nil {
		go h.hook.Notify(r.Context(), webhook.Event{
			Kind: webhook.ManifestPushed, Repository: name, Tag: result.Tag, Digest: result.Digest,
		})
	}

	w.Header().Set("Docker-Content-Digest", result.Digest)
	w.Header().Set("Location", fmt.Sprintf("/v2/%s/manifests/%s", name, result.Digest))
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) DeleteManifest(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name, reference := vars["name"], vars["reference"]

	if err := h.store.ManifestDelete(r.Context(), name, reference); err != nil {
		distreg.WriteHTTP(w, err)
		return
	}

	if h.cache != nil && !store.IsDigest(reference) {
		h.cache.InvalidateTag(r.Context(), name, reference)
	}
	if h.hook != nil {
		go h.hook.Notify(r.Context(), webhook.Event{
			Kind: webhook.ManifestDeleted, Repository: name,
		})
	}

	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) HeadBlob(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	digest := vars["digest"]

	var length int64
	if h.cache != nil {
		if cached, ok := h.cache.BlobLength(r.Context(), digest); ok {
			length = cached
		}
	}
	if length == 0 {
		l, err := h.store.BlobLength(r.Context(), digest)
		if err != nil {
			distreg.WriteHTTP(w, err)
			return
		}
		length = l
		if h.cache != nil {
			h.cache.SetBlobLength(r.Context(), digest, length)
		}
	}

	w.Header().Set("Docker-Content-Digest", digest)
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) GetBlob(w http.ResponseWriter, r *http.Request) {
	digest := mux.Vars(r)["digest"]

	data, err := h.store.BlobGet(r.Context(), digest)
	if err != nil {
		distreg.WriteHTTP(w, err)
		return
	}

	w.Header().Set("Docker-Content-Digest", digest)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(data)
}

// DeleteBlob disassociates the blob from this repository. Row removal is
// deferred to the GC sweep.
func (h *Handler) DeleteBlob(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name, digest := vars["name"], vars["digest"]

	removed, err := h.store.BlobDisassociate(r.Context(), name, digest)
	if err != nil {
		distreg.WriteHTTP(w, err)
		return
	}
	h.log.WithField("count", len(removed)).WithField("blob", digest).Info("blob disassociated")

	if h.cache != nil {
		h.cache.InvalidateBlob(r.Context(), digest)
	}

	w.Header().Set("Content-Length", "0")
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) StartBlobUpload(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	session := h.uploads.Start(r.Context())

	w.Header().Set("Location", fmt.Sprintf("/v2/%s/blobs/uploads/%s", name, session))
	w.Header().Set("Docker-Upload-UUID", session)
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) PatchBlobUpload(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name, session := vars["name"], vars["uuid"]

	chunk, err := io.ReadAll(io.LimitReader(r.Body, h.cfg.MaxChunkBytes))
	if err != nil {
		distreg.WriteHTTP(w, distreg.New(distreg.BlobUploadInvalid))
		return
	}

	start, end, err := h.uploads.Patch(r.Context(), session, chunk)
	if err != nil {
		distreg.WriteHTTP(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/v2/%s/blobs/uploads/%s", name, session))
	w.Header().Set("Docker-Upload-UUID", session)
	w.Header().Set("Range", fmt.Sprintf("%d-%d", start, end))
	w.Header().Set("Content-Length", "0")
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) PutBlobUpload(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name, session := vars["name"], vars["uuid"]
	digest := r.URL.Query().Get("digest")

	if digest == "" {
		distreg.WriteHTTP(w, distreg.New(distreg.DigestInvalid))
		return
	}

	trailing, err := io.ReadAll(io.LimitReader(r.Body, h.cfg.MaxChunkBytes))
	if err != nil {
		distreg.WriteHTTP(w, distreg.New(distreg.BlobUploadInvalid))
		return
	}

	if err := h.uploads.Finalize(r.Context(), session, digest, trailing); err != nil {
		distreg.WriteHTTP(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/v2/%s/blobs/%s", name, digest))
	w.Header().Set("Docker-Content-Digest", digest)
	w.Header().Set("Content-Length", "0")
	w.WriteHeader(http.StatusCreated)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// guessMediaType reports the manifest mediaType field when present, falling
// back to the Docker v2 default — media type is otherwise unverified at
// push time, matching how registries tolerate unrecognised shapes.
func guessMediaType(raw []byte) string {
	var probe struct {
		MediaType string `json:"mediaType"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil && probe.MediaType != "" {
		return probe.MediaType
	}
	return "application/vnd.docker.distribution.manifest.v2+json"
}
