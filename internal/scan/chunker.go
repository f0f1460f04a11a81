package scan

import (
	"bytes"
	"io"
)

// Read buffer tiers. Small shards get small buffers; very large ones
// read multiple megabytes at a time.
const (
	minReadBuffer = 64 << 10
	maxReadBuffer = 4 << 20
)

// readBufferSize picks a read size for a shard of the given byte
// length. Unknown sizes (size <= 0, e.g. a compressed stream) get the
// middle tier.
func readBufferSize(size int64) int {
	switch {
	case size <= 0:
		return 1 << 20
	case size < 1<<20:
		return minReadBuffer
	case size < 256<<20:
		return 1 << 20
	default:
		return maxReadBuffer
	}
}

// Chunker turns an unbounded decoded byte stream into blocks that end
// exactly at a line terminator, so downstream matching never sees a
// split line. The unterminated tail of each read is carried over and
// prepended to the next; at end of stream a non-empty carry is flushed
// as a final, possibly unterminated block.
//
// A Chunker is owned by exactly one file task and is not safe for
// concurrent use. Returned blocks remain valid after subsequent calls.
type Chunker struct {
	r     io.Reader
	buf   []byte
	carry []byte
	done  bool
}

// NewChunker returns a Chunker reading from r in bufSize-byte reads.
func NewChunker(r io.Reader, bufSize int) *Chunker {
	if bufSize <= 0 {
		bufSize = minReadBuffer
	}
	return &Chunker{r: r, buf: make([]byte, bufSize)}
}

// Next returns the next line-safe block, or io.EOF once the stream and
// any carry-over are exhausted.
func (c *Chunker) Next() ([]byte, error) {
	for {
		if c.done {
			if len(c.carry) > 0 {
				blk := c.carry
				c.carry = nil
				return blk, nil
			}
			return nil, io.EOF
		}

		n, err := c.r.Read(c.buf)
		if n > 0 {
			c.carry = append(c.carry, c.buf[:n]...)
		}
		if err == io.EOF {
			c.done = true
		} else if err != nil {
			return nil, err
		}

		if i := bytes.LastIndexByte(c.carry, '\n'); i >= 0 {
			blk := c.carry[:i+1]
			// The carry must not alias the emitted block: later
			// appends would overwrite bytes the matcher still holds.
			c.carry = append([]byte(nil), c.carry[i+1:]...)
			return blk, nil
		}
		// No terminator yet; keep accumulating.
	}
}
