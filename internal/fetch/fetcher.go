package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/DjordjeVuckovic/editorial-hub/internal/domain"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultParallelism = 4
	defaultTimeout     = 60 * time.Second
)

// BlobReader is the read side of the blob store.
type BlobReader interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// Fetcher opens attachment bytes from the blob store, or over http for linked files.
type Fetcher struct {
	blobs       BlobReader
	http        *http.Client
	parallelism int
	maxSize     int64
}

type Option func(f *Fetcher)

// WithPrivateNetworks lets linked attachments point at loopback, private and
// link-local addresses. Off by default.
func WithPrivateNetworks() Option {
	return func(f *Fetcher) {
		f.http = newHttpClient(true)
	}
}

// WithHttpClient replaces the guarded default client as is.
func WithHttpClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.http = c
	}
}

func WithParallelism(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.parallelism = n
		}
	}
}

func WithMaxSize(n int64) Option {
	return func(f *Fetcher) {
		f.maxSize = n
	}
}

func New(blobs BlobReader, opts ...Option) *Fetcher {
	f := &Fetcher{
		blobs:       blobs,
		http:        newHttpClient(false),
		parallelism: DefaultParallelism,
		maxSize:     50 << 20,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Fetcher) Open(ctx context.Context, att domain.Attachment) (io.ReadCloser, error) {
	if att.StoragePath != "" {
		return f.blobs.Get(ctx, att.StoragePath)
	}
	if att.PublicURL == "" {
		return nil, domain.ErrAttachmentLocation
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, att.PublicURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	res, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", att.PublicURL, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		_ = res.Body.Close()
		return nil, fmt.Errorf("fetch %s: unexpected status %d", att.PublicURL, res.StatusCode)
	}
	return res.Body, nil
}

// Read loads the whole attachment, bounded by the max size.
func (f *Fetcher) Read(ctx context.Context, att domain.Attachment) ([]byte, error) {
	rc, err := f.Open(ctx, att)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rc.Close(); err != nil {
			slog.Warn("Failed to close attachment reader", "attachment", att.ID, "error", err)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(rc, f.maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > f.maxSize {
		return nil, fmt.Errorf("attachment %s exceeds %d bytes", att.ID, f.maxSize)
	}
	return data, nil
}

// Each calls fn for every attachment with bounded parallelism. A failing
// attachment is logged and skipped; Each only fails when ctx is done.
// fn may be called concurrently.
func (f *Fetcher) Each(ctx context.Context, atts []domain.Attachment, fn func(i int, att domain.Attachment, data []byte) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.parallelism)

	for i, att := range atts {
		g.Go(func() error {
			data, err := f.Read(gctx, att)
			if err == nil {
				err = fn(i, att, data)
			}
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				slog.Warn("Skipping attachment", "attachment", att.ID, "filename", att.Filename, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}
