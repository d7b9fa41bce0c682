// Package file opens GeoJSON inputs from the local filesystem.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Local is a file on disk. Files ending in .gz/.gzip or .zst/.zstd are
// decompressed transparently.
type Local struct {
	Path string
}

// Name returns the path; table names are derived from it.
func (l Local) Name() string { return l.Path }

// Size returns the on-disk (compressed) size, or -1 when unknown.
func (l Local) Size() int64 {
	fi, err := os.Stat(l.Path)
	if err != nil {
		return -1
	}
	return fi.Size()
}

// Open opens the file for reading. It may be called more than once; each call
// returns an independent reader.
func (l Local) Open(ctx context.Context) (io.ReadCloser, error) {
	return l.OpenWrapped(ctx, nil)
}

// OpenWrapped is Open with an optional wrapper applied to the raw file
// before decompression, e.g. a progress counter.
func (l Local) OpenWrapped(ctx context.Context, wrap func(io.Reader) io.Reader) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(l.Path)
	if err != nil {
		return nil, err
	}
	var raw io.Reader = f
	if wrap != nil {
		raw = wrap(f)
	}

	switch compression(l.Path) {
	case "gzip":
		zr, err := gzip.NewReader(raw)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("open gzip %s: %w", l.Path, err)
		}
		return &readCloser{Reader: zr, close: func() error {
			zerr := zr.Close()
			if err := f.Close(); err != nil {
				return err
			}
			return zerr
		}}, nil
	case "zstd":
		zr, err := zstd.NewReader(raw)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("open zstd %s: %w", l.Path, err)
		}
		return &readCloser{Reader: zr, close: func() error {
			zr.Close()
			return f.Close()
		}}, nil
	default:
		return &readCloser{Reader: raw, close: f.Close}, nil
	}
}

func compression(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return "gzip"
	case ".zst", ".zstd":
		return "zstd"
	default:
		return ""
	}
}

type readCloser struct {
	io.Reader
	close func() error
}

func (r *readCloser) Close() error { return r.close() }
