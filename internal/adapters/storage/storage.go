// Package storage keeps uploaded attempt videos on the local filesystem.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrTooLarge is returned when an upload exceeds the configured limit.
var ErrTooLarge = errors.New("upload too large")

// Object describes a stored file.
type Object struct {
	// URL is the relative location recorded with the video, e.g. "videos/12_<uuid>.mp4".
	URL  string
	Size int64
}

// Local stores files under a root directory.
type Local struct {
	root     string
	urlBase  string
	maxBytes int64
}

// Option configures Local.
type Option func(*Local)

// WithMaxBytes bounds a single upload. Zero or less means unbounded.
func WithMaxBytes(n int64) Option {
	return func(l *Local) { l.maxBytes = n }
}

// NewLocal returns a store writing under root. The directory is created on
// first use.
func NewLocal(root string, opts ...Option) *Local {
	l := &Local{root: root, urlBase: filepath.Base(filepath.Clean(root))}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Save writes r under a generated name derived from attemptID and the
// extension of filename. Partial files are removed on failure.
func (l *Local) Save(ctx context.Context, attemptID int64, filename string, r io.Reader) (Object, error) {
	if err := os.MkdirAll(l.root, 0o755); err != nil {
		return Object{}, fmt.Errorf("create video dir: %w", err)
	}

	name := fmt.Sprintf("%d_%s%s", attemptID, uuid.NewString(), safeExt(filename))
	dst := filepath.Join(l.root, name)
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return Object{}, fmt.Errorf("create video file: %w", err)
	}

	size, err := l.copy(ctx, f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return Object{}, err
	}
	return Object{URL: path.Join(l.urlBase, name), Size: size}, nil
}

func (l *Local) copy(ctx context.Context, w io.Writer, r io.Reader) (int64, error) {
	src := r
	if l.maxBytes > 0 {
		src = io.LimitReader(r, l.maxBytes+1)
	}
	n, err := io.Copy(w, ctxReader{ctx: ctx, r: src})
	if err != nil {
		return n, fmt.Errorf("write video: %w", err)
	}
	if l.maxBytes > 0 && n > l.maxBytes {
		return n, ErrTooLarge
	}
	return n, nil
}

// safeExt keeps a short alphanumeric extension of the client file name.
func safeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) < 2 || len(ext) > 8 {
		return ""
	}
	for _, c := range ext[1:] {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ""
		}
	}
	return ext
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
