// Package imagestore uploads trip images to an object storage provider.
package imagestore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"
)

var ErrNotConfigured = errors.New("image storage is not configured")

type Uploader interface {
	// Upload stores the content of r and returns its public URL.
	Upload(ctx context.Context, r io.Reader, filename string, size int64, contentType string) (string, error)
	Delete(ctx context.Context, url string) error
}

// File is one pending upload.
type File struct {
	Filename    string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// UploadAll uploads files concurrently and returns their URLs in input order.
// When any upload fails the ones that succeeded are deleted again and the
// first error is returned.
func UploadAll(ctx context.Context, u Uploader, files []File) ([]string, error) {
	urls := make([]string, len(files))

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			rc, err := f.Open()
			if err != nil {
				return fmt.Errorf("open %s: %w", f.Filename, err)
			}
			defer rc.Close()

			url, err := u.Upload(gctx, rc, f.Filename, f.Size, f.ContentType)
			if err != nil {
				return fmt.Errorf("upload %s: %w", f.Filename, err)
			}
			urls[i] = url
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		// gctx is cancelled by now.
		for _, url := range urls {
			if url != "" {
				_ = u.Delete(context.WithoutCancel(ctx), url)
			}
		}
		return nil, err
	}
	return urls, nil
}

// DeleteAll removes every URL and returns the errors joined.
func DeleteAll(ctx context.Context, u Uploader, urls []string) error {
	var errs []error
	for _, url := range urls {
		if err := u.Delete(ctx, url); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", url, err))
		}
	}
	return errors.Join(errs...)
}

// Disabled is used when no provider is configured.
type Disabled struct{}

func (Disabled) Upload(context.Context, io.Reader, string, int64, string) (string, error) {
	return "", ErrNotConfigured
}

func (Disabled) Delete(context.Context, string) error { return nil }
