package storage

import (
	"context"
	"io"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/registryx/registryx/internal/config"
)

// FSDriver stores blob payloads on a local (or in-memory, for tests) afero
// filesystem. It exists for development and test environments that don't
// want to stand up MinIO.
type FSDriver struct {
	fs   afero.Fs
	root string
}

func NewFSDriver(cfg *config.Config) (*FSDriver, error) {
	fs := afero.NewOsFs()
	if err := fs.MkdirAll(cfg.FSRoot, 0o755); err != nil {
		return nil, err
	}
	return &FSDriver{fs: fs, root: cfg.FSRoot}, nil
}

// NewMemFSDriver backs an FSDriver with an in-memory afero filesystem, for
// unit tests that want a real Driver without touching disk.
func NewMemFSDriver() *FSDriver {
	return &FSDriver{fs: afero.NewMemMapFs(), root: "/"}
}

func (d *FSDriver) path(key string) string {
	return filepath.Join(d.root, filepath.FromSlash(key))
}

func (d *FSDriver) Writer(_ context.Context, path string) (io.WriteCloser, error) {
	full := d.path(path)
	if err := d.fs.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, err
	}
	return d.fs.Create(full)
}

func (d *FSDriver) Reader(_ context.Context, path string) (io.ReadCloser, error) {
	return d.fs.Open(d.path(path))
}

func (d *FSDriver) Stat(_ context.Context, path string) (int64, error) {
	info, err := d.fs.Stat(d.path(path))
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (d *FSDriver) Copy(ctx context.Context, src, dst string) error {
	r, err := d.Reader(ctx, src)
	if err != nil {
		return err
	}
	defer r.Close()

	w, err := d.Writer(ctx, dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (d *FSDriver) Delete(_ context.Context, path string) error {
	exists, err := afero.Exists(d.fs, d.path(path))
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	return d.fs.Remove(d.path(path))
}
