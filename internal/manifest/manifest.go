// Package manifest parses and links manifests pushed via
// PUT /v2/<name>/manifests/<reference>: it computes the content digest,
// persists the manifest and optional tag, and creates the manifest-blob
// reachability edges the GC sweep later walks.
package manifest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"

	"github.com/registryx/registryx/internal/store"
)

var referencePattern = regexp.MustCompile(`^[A-Za-z0-9_+.-]+:[A-Fa-f0-9]+$`)

// descriptor mirrors the {mediaType, size, digest} shape shared by an image
// manifest's config and layers entries, and a manifest list's children.
type descriptor struct {
	MediaType string `json:"mediaType"`
	Size      int64  `json:"size"`
	Digest    string `json:"digest"`
}

// imageManifest is the shape of a single-platform image manifest.
type imageManifest struct {
	Config descriptor   `json:"config"`
	Layers []descriptor `json:"layers"`
}

// manifestList is the shape of a manifest list / image index. Its children
// are stored verbatim; per-child edges are created when their owners push
// them directly, not by the parent list's linker pass.
type manifestList struct {
	Manifests []descriptor `json:"manifests"`
}

type Linker struct {
	store *store.Store
}

func NewLinker(s *store.Store) *Linker {
	return &Linker{store: s}
}

// Result carries what the linker resolved, for the HTTP layer to report.
type Result struct {
	Digest string
	Tag    string // empty if reference was already a digest
}

// Put implements the full manifest-parser/linker algorithm. A JSON parse
// failure is not fatal: the manifest and tag are still committed, and
// downstream Get calls return the stored bytes unchanged — this matches how
// registries tolerate new or unrecognised manifest media types.
func (l *Linker) Put(ctx context.Context, repository, reference string, raw []byte, mediaType string) (Result, error) {
	sum := sha256.Sum256(raw)
	digest := "sha256:" + hex.EncodeToString(sum[:])

	if err := l.store.RepositorySave(ctx, repository); err != nil {
		return Result{}, err
	}
	if err := l.store.ManifestSave(ctx, repository, digest, raw, mediaType); err != nil {
		return Result{}, err
	}

	result := Result{Digest: digest}
	if !referencePattern.MatchString(reference) {
		result.Tag = reference
		if err := l.store.TagSave(ctx, repository, reference, digest); err != nil {
			return Result{}, err
		}
	}

	var img imageManifest
	if err := json.Unmarshal(raw, &img); err == nil && img.Config.Digest != "" {
		if err := l.store.BlobAssociate(ctx, digest, img.Config.Digest); err != nil {
			return Result{}, err
		}
		for _, layer := range img.Layers {
			if err := l.store.BlobAssociate(ctx, digest, layer.Digest); err != nil {
				return Result{}, err
			}
		}
		return result, nil
	}

	var list manifestList
	if err := json.Unmarshal(raw, &list); err == nil && len(list.Manifests) > 0 {
		// Recorded verbatim; per-child edges are created when children are
		// pushed directly under their own digests.
		return result, nil
	}

	return result, nil
}
