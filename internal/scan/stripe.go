package scan

import (
	"bytes"

	"golang.org/x/sync/errgroup"
)

// Stripe sizing. A block is cut into stripes of roughly targetStripe
// bytes; each boundary slides forward at most stripeHeadroom bytes to
// land on a line terminator. Lines longer than the headroom widen the
// stripe to wherever they end rather than ever cutting mid-line.
const (
	targetStripe   = 256 << 10
	stripeHeadroom = 4 << 10
)

// span is a half-open byte range within a block.
type span struct {
	start, end int
}

// stripeSpans partitions block into line-aligned spans. The spans
// cover the block with no gap and no overlap, and every boundary but
// the last sits just past a '\n', so no line is seen by two stripes.
func stripeSpans(block []byte, target, headroom int) []span {
	if target <= 0 {
		target = targetStripe
	}
	if headroom <= 0 {
		headroom = stripeHeadroom
	}

	var spans []span
	start := 0
	for start < len(block) {
		end := start + target
		if end >= len(block) {
			spans = append(spans, span{start, len(block)})
			break
		}
		if block[end-1] != '\n' {
			limit := end + headroom
			if limit > len(block) {
				limit = len(block)
			}
			if i := bytes.IndexByte(block[end:limit], '\n'); i >= 0 {
				end += i + 1
			} else if i := bytes.IndexByte(block[limit:], '\n'); i >= 0 {
				// Line outruns the headroom window: widen until it
				// ends instead of splitting it.
				end = limit + i + 1
			} else {
				end = len(block)
			}
		}
		spans = append(spans, span{start, end})
		start = end
	}
	return spans
}

// matchStripe returns every matching line within the stripe,
// terminator appended, concatenated into one buffer.
func (q Query) matchStripe(stripe []byte) []byte {
	if len(q.patterns) == 1 {
		return matchStripeSingle(stripe, q.patterns[0])
	}
	return q.matchStripeAND(stripe)
}

// matchStripeSingle scans for occurrences of one pattern and recovers
// each enclosing line. The search resumes past the last emitted line,
// so a line holding the pattern more than once is emitted exactly once.
func matchStripeSingle(stripe, pat []byte) []byte {
	var out []byte
	off := 0
	for off < len(stripe) {
		i := bytes.Index(stripe[off:], pat)
		if i < 0 {
			break
		}
		i += off
		start := bytes.LastIndexByte(stripe[:i], '\n') + 1
		end := bytes.IndexByte(stripe[i:], '\n')
		if end < 0 {
			end = len(stripe)
		} else {
			end += i
		}
		out = append(out, stripe[start:end]...)
		out = append(out, '\n')
		off = end + 1
	}
	return out
}

// matchStripeAND splits the stripe into lines and keeps each line that
// contains every pattern.
func (q Query) matchStripeAND(stripe []byte) []byte {
	var out []byte
	for len(stripe) > 0 {
		var line []byte
		if i := bytes.IndexByte(stripe, '\n'); i >= 0 {
			line = stripe[:i]
			stripe = stripe[i+1:]
		} else {
			line = stripe
			stripe = nil
		}
		if q.MatchLine(line) {
			out = append(out, line...)
			out = append(out, '\n')
		}
	}
	return out
}

// matchBlock stripes the block and evaluates the stripes in parallel,
// handing each stripe's matches to emit as one buffer. emit must be
// safe for concurrent use. parallelism bounds the number of stripe
// goroutines in flight (<= 0 means unbounded).
func matchBlock(block []byte, q Query, target, headroom, parallelism int, emit func([]byte)) {
	spans := stripeSpans(block, target, headroom)
	if len(spans) == 0 {
		return
	}
	if len(spans) == 1 {
		if m := q.matchStripe(block[spans[0].start:spans[0].end]); len(m) > 0 {
			emit(m)
		}
		return
	}

	var g errgroup.Group
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for _, s := range spans {
		s := s
		g.Go(func() error {
			if m := q.matchStripe(block[s.start:s.end]); len(m) > 0 {
				emit(m)
			}
			return nil
		})
	}
	_ = g.Wait() // stripe matching cannot fail
}
