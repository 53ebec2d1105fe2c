package storage

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/registryx/registryx/internal/config"
)

// S3Driver stores blob payloads in an S3-compatible object store (MinIO in
// development, any S3-compatible provider in production).
type S3Driver struct {
	client *minio.Client
	bucket string
}

func NewS3Driver(cfg *config.Config) (*S3Driver, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioUser, cfg.MinioPass, ""),
		Secure: cfg.MinioSecure,
	})
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{}); err != nil {
		exists, existsErr := client.BucketExists(ctx, cfg.MinioBucket)
		if existsErr != nil || !exists {
			return nil, err
		}
	}

	return &S3Driver{client: client, bucket: cfg.MinioBucket}, nil
}

func (d *S3Driver) Writer(ctx context.Context, path string) (io.WriteCloser, error) {
	r, w := io.Pipe()
	done := make(chan error, 1)

	go func() {
		_, err := d.client.PutObject(ctx, d.bucket, path, r, -1, minio.PutObjectOptions{})
		if err != nil {
			r.CloseWithError(err)
			done <- err
			return
		}
		r.Close()
		done <- nil
	}()

	return &syncWriter{writer: w, done: done}, nil
}

// syncWriter blocks Close until the background PutObject has finished, so
// callers observe a completed, durable write before moving on.
type syncWriter struct {
	writer *io.PipeWriter
	done   chan error
}

func (sw *syncWriter) Write(p []byte) (int, error) { return sw.writer.Write(p) }

func (sw *syncWriter) Close() error {
	if err := sw.writer.Close(); err != nil {
		return err
	}
	return <-sw.done
}

func (d *S3Driver) Reader(ctx context.Context, path string) (io.ReadCloser, error) {
	if _, err := d.client.StatObject(ctx, d.bucket, path, minio.StatObjectOptions{}); err != nil {
		return nil, err
	}
	return d.client.GetObject(ctx, d.bucket, path, minio.GetObjectOptions{})
}

func (d *S3Driver) Stat(ctx context.Context, path string) (int64, error) {
	info, err := d.client.StatObject(ctx, d.bucket, path, minio.StatObjectOptions{})
	if err != nil {
		return 0, err
	}
	return info.Size, nil
}

func (d *S3Driver) Copy(ctx context.Context, src, dst string) error {
	_, err := d.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: d.bucket, Object: dst},
		minio.CopySrcOptions{Bucket: d.bucket, Object: src},
	)
	return err
}

func (d *S3Driver) Delete(ctx context.Context, path string) error {
	return d.client.RemoveObject(ctx, d.bucket, path, minio.RemoveObjectOptions{})
}
