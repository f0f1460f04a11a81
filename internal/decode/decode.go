// Package decode gives every corpus shard a uniform decoded-byte view,
// whatever compression it happens to be stored under.
package decode

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Kind is the compression codec of a shard, resolved once from its
// file extension.
type Kind int

const (
	None Kind = iota // plain text, identity pass-through
	Gzip             // multi-member gzip stream
	Zstd             // zstd frames
)

func (k Kind) String() string {
	switch k {
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	default:
		return "none"
	}
}

// KindOf returns the codec implied by the path's extension.
func KindOf(path string) Kind {
	switch filepath.Ext(path) {
	case ".gz":
		return Gzip
	case ".zst":
		return Zstd
	default:
		return None
	}
}

// stream pairs a decoding reader with the resources it holds open.
type stream struct {
	io.Reader
	closeFn func() error
}

func (s *stream) Close() error { return s.closeFn() }

// Open opens the shard at path and returns a reader of its decoded
// bytes. The codec is chosen by extension; a shard whose header fails
// structural validation returns an error here so the caller can skip
// it without touching the rest of the batch.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	switch KindOf(path) {
	case Gzip:
		// The gzip reader consumes multi-member streams by default,
		// which breach dumps produced by concatenation rely on.
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gzip %s: %w", path, err)
		}
		return &stream{Reader: zr, closeFn: func() error {
			zr.Close()
			return f.Close()
		}}, nil
	case Zstd:
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("zstd %s: %w", path, err)
		}
		return &stream{Reader: zr, closeFn: func() error {
			zr.Close()
			return f.Close()
		}}, nil
	default:
		return f, nil
	}
}

// ReadAll decodes the entire shard into memory. Used by the
// shard-locator fast path and by the large-file scanner, which needs
// compressed shards fully decoded before it can chunk them.
func ReadAll(path string) ([]byte, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return data, nil
}
