package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// driver
	_ "gocloud.dev/blob/gcsblob"  // gs:// driver
	_ "gocloud.dev/blob/memblob"  // mem:// driver
	_ "gocloud.dev/blob/s3blob"   // s3:// driver

	"github.com/withObsrvr/ride-bookings-pipeline/internal/table"
)

var (
	// ErrLoad wraps every failure to produce a table from a location.
	ErrLoad = errors.New("load failed")

	// ErrUnsupportedFormat is returned for extensions the decoder cannot read.
	ErrUnsupportedFormat = errors.New("unsupported input format")
)

// TableSource reads a delimited dataset into a record table.
type TableSource interface {
	Load(ctx context.Context, location string) (*table.Table, error)
	Close() error
}

// BucketOpener opens a gocloud bucket from its URL.
type BucketOpener func(ctx context.Context, bucketURL string) (*blob.Bucket, error)

// Loader reads local paths and bucket URLs (file://, gs://, s3://, mem://).
type Loader struct {
	decoder    *Decoder
	openBucket BucketOpener
	log        *slog.Logger
}

// Option customizes a Loader.
type Option func(*Loader)

// WithBucketOpener replaces blob.OpenBucket, mainly for tests backed by memblob.
func WithBucketOpener(open BucketOpener) Option {
	return func(l *Loader) { l.openBucket = open }
}

// NewLoader creates a loader with its own decoder.
func NewLoader(opts ...Option) (*Loader, error) {
	decoder, err := NewDecoder()
	if err != nil {
		return nil, fmt.Errorf("create decoder: %w", err)
	}
	l := &Loader{
		decoder:    decoder,
		openBucket: blob.OpenBucket,
		log:        slog.With("component", "source"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Load reads and decodes the dataset at location.
func (l *Loader) Load(ctx context.Context, location string) (*table.Table, error) {
	if strings.TrimSpace(location) == "" {
		return nil, fmt.Errorf("%w: empty input location", ErrLoad)
	}

	data, err := l.read(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrLoad, location, err)
	}

	t, err := l.decoder.Decode(location, data)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrLoad, location, err)
	}

	l.log.Debug("dataset loaded",
		"location", location,
		"bytes", len(data),
		"rows", t.Len(),
		"columns", t.Width(),
	)
	return t, nil
}

func (l *Loader) read(ctx context.Context, location string) ([]byte, error) {
	bucketURL, key, ok, err := splitBucketLocation(location)
	if err != nil {
		return nil, err
	}
	if !ok {
		return readLocal(location)
	}

	bucket, err := l.openBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}
	defer bucket.Close()

	data, err := bucket.ReadAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return data, nil
}

// splitBucketLocation turns a bucket URL into the gocloud bucket URL and the
// object key. Plain filesystem paths return ok=false. A file URL must be
// absolute (file:///path or file://localhost/path).
func splitBucketLocation(location string) (bucketURL, key string, ok bool, err error) {
	u, perr := url.Parse(location)
	if perr != nil {
		return "", "", false, nil
	}

	switch u.Scheme {
	case "file":
		if u.Host != "" && u.Host != "localhost" {
			return "", "", false, fmt.Errorf("file URL %s names host %q: use file:///absolute/path", location, u.Host)
		}
		dir, file := path.Split(u.Path)
		return "file://" + dir, file, true, nil
	case "gs", "s3", "mem":
		bucketURL = u.Scheme + "://" + u.Host
		if u.RawQuery != "" {
			bucketURL += "?" + u.RawQuery
		}
		return bucketURL, strings.TrimPrefix(u.Path, "/"), true, nil
	default:
		return "", "", false, nil
	}
}

// Close releases decoder resources.
func (l *Loader) Close() error {
	if l.decoder != nil {
		l.decoder.Close()
	}
	return nil
}

var _ TableSource = (*Loader)(nil)
