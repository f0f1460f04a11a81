package scan

import (
	"bytes"
	"io"
	"sync"
	"sync/atomic"
)

// sinkDepth bounds how many match buffers may sit between producers
// and the writer before producers block.
const sinkDepth = 256

// Sink fans match buffers from many concurrent producers into a single
// writer. The channel is bounded, so a slow sink backpressures the
// scan instead of buffering it in memory. Ownership of a buffer passes
// to the Sink on Emit; producers must not touch it afterwards.
type Sink struct {
	ch    chan []byte
	done  chan struct{}
	w     io.Writer
	err   error
	lines atomic.Int64

	closeOnce sync.Once
}

// NewSink starts the consumer goroutine writing to w.
func NewSink(w io.Writer) *Sink {
	s := &Sink{
		ch:   make(chan []byte, sinkDepth),
		done: make(chan struct{}),
		w:    w,
	}
	go s.drain()
	return s
}

func (s *Sink) drain() {
	defer close(s.done)
	for buf := range s.ch {
		if s.err != nil {
			// A partially-written result set must not look complete.
			// Stop writing, keep draining so producers can finish.
			continue
		}
		if _, err := s.w.Write(buf); err != nil {
			s.err = err
			continue
		}
		s.lines.Add(int64(bytes.Count(buf, []byte{'\n'})))
	}
}

// Emit hands a buffer of matched lines to the consumer, blocking while
// the conduit is full.
func (s *Sink) Emit(buf []byte) {
	if len(buf) == 0 {
		return
	}
	s.ch <- buf
}

// Lines returns the number of match lines written so far.
func (s *Sink) Lines() int64 {
	return s.lines.Load()
}

// Close signals that no producer will emit again, waits for the
// consumer to finish draining, and reports the first write error.
// Callers must guarantee all producers have returned before Close.
func (s *Sink) Close() error {
	s.closeOnce.Do(func() { close(s.ch) })
	<-s.done
	return s.err
}
