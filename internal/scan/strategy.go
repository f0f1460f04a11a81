package scan

import (
	"bytes"
	"os"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/aazar/breachscan/internal/decode"
)

// Large-file thresholds. Past mmapThreshold a plain shard is mapped
// instead of copied through read buffers; past superChunkThreshold the
// in-memory view is additionally split into super-chunks matched
// concurrently.
const (
	mmapThreshold       = 64 << 20
	superChunkThreshold = 512 << 20
	superChunkSize      = 128 << 20
)

// scanLarge handles shards past the mmap threshold. Compressed shards
// are not seekable, so they are decoded fully into memory first; plain
// shards get a read-only mapping, falling back to buffered streaming
// if the kernel refuses.
func (s *Scanner) scanLarge(path string, size int64, kind decode.Kind) error {
	if kind != decode.None {
		data, err := decode.ReadAll(path)
		if err != nil {
			return err
		}
		s.scanBuffer(data)
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return s.scanStream(f, size)
	}
	defer unix.Munmap(data)

	s.scanBuffer(data)
	return nil
}

// scanBuffer matches a complete in-memory view of a shard. Very large
// views are split into line-aligned super-chunks evaluated in
// parallel; stripes inside each super-chunk then run sequentially so
// the pool is never oversubscribed.
func (s *Scanner) scanBuffer(data []byte) {
	if len(data) == 0 {
		return
	}
	if len(data) < superChunkThreshold {
		matchBlock(data, s.q, s.cfg.StripeSize, s.cfg.StripeHeadroom, s.cfg.Workers, s.sink.Emit)
		return
	}

	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for _, c := range superChunks(data, superChunkSize) {
		c := c
		g.Go(func() error {
			matchBlock(data[c.start:c.end], s.q, s.cfg.StripeSize, s.cfg.StripeHeadroom, 1, s.sink.Emit)
			return nil
		})
	}
	_ = g.Wait()
}

// superChunks partitions data into spans of roughly size bytes, each
// boundary pulled back to the previous line terminator so no
// super-chunk splits a line. A line longer than a whole super-chunk
// pushes the boundary forward to wherever it ends instead.
func superChunks(data []byte, size int) []span {
	var spans []span
	start := 0
	for start < len(data) {
		end := start + size
		if end >= len(data) {
			end = len(data)
		} else if i := bytes.LastIndexByte(data[start:end], '\n'); i >= 0 {
			end = start + i + 1
		} else if i := bytes.IndexByte(data[end:], '\n'); i >= 0 {
			end += i + 1
		} else {
			end = len(data)
		}
		spans = append(spans, span{start, end})
		start = end
	}
	return spans
}
