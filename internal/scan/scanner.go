// Package scan implements the streaming corpus scanner: worker-pool
// fan-out over shard files, line-safe chunking of decoded streams,
// parallel stripe matching, and the bounded output pipeline.
package scan

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/aazar/breachscan/internal/decode"
)

// Config configures a corpus scan.
type Config struct {
	Root           string         // corpus root directory
	Workers        int            // worker pool size, 0 = NumCPU-1
	ReadBuffer     int            // read buffer override, 0 = adaptive
	StripeSize     int            // stripe target override, 0 = default
	StripeHeadroom int            // stripe headroom override, 0 = default
	Logger         zerolog.Logger // logger
}

// Scanner walks a corpus root and matches every shard against one
// query, streaming matches into a Sink.
type Scanner struct {
	cfg  Config
	q    Query
	sink *Sink
	log  zerolog.Logger

	filesDone   atomic.Int64
	filesFailed atomic.Int64
}

// New returns a Scanner over cfg.Root for q, emitting into sink.
func New(cfg Config, q Query, sink *Sink) *Scanner {
	if cfg.Workers <= 0 {
		// Leave one CPU of headroom for the output consumer.
		cfg.Workers = runtime.NumCPU() - 1
		if cfg.Workers < 1 {
			cfg.Workers = 1
		}
	}
	return &Scanner{
		cfg:  cfg,
		q:    q,
		sink: sink,
		log:  cfg.Logger,
	}
}

// Run validates the corpus root, walks it, and scans every file across
// the worker pool. Per-shard failures are contained; Run only fails on
// a bad root or an unwalkable tree.
func (s *Scanner) Run(ctx context.Context) error {
	info, err := os.Stat(s.cfg.Root)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("corpus root %s is not a directory", s.cfg.Root)
	}
	if s.q.PatternCount() == 0 {
		return fmt.Errorf("no search pattern given")
	}

	files, err := listShards(s.cfg.Root)
	if err != nil {
		return fmt.Errorf("walk %s: %w", s.cfg.Root, err)
	}

	s.log.Info().
		Int("files", len(files)).
		Int("workers", s.cfg.Workers).
		Str("root", s.cfg.Root).
		Msg("scanning corpus")

	start := time.Now()
	progressDone := make(chan struct{})
	go s.logProgress(start, len(files), progressDone)

	fileChan := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range fileChan {
				if err := s.scanFile(path); err != nil {
					// A corrupt or unreadable shard among thousands
					// must not abort or spam the run.
					s.filesFailed.Add(1)
					s.log.Debug().Err(err).Str("file", path).Msg("shard skipped")
				}
				s.filesDone.Add(1)
			}
		}()
	}

dispatch:
	for _, path := range files {
		select {
		case <-ctx.Done():
			break dispatch
		case fileChan <- path:
		}
	}
	close(fileChan)
	wg.Wait()
	close(progressDone)

	elapsed := time.Since(start)
	s.log.Info().
		Int64("files", s.filesDone.Load()).
		Int64("failed", s.filesFailed.Load()).
		Int64("matches", s.sink.Lines()).
		Dur("elapsed", elapsed).
		Float64("files_per_sec", float64(s.filesDone.Load())/elapsed.Seconds()).
		Msg("scan complete")

	return ctx.Err()
}

// scanFile scans one shard, choosing the I/O strategy by size.
func (s *Scanner) scanFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	size := info.Size()
	if size == 0 {
		return nil
	}

	if size >= mmapThreshold {
		return s.scanLarge(path, size, decode.KindOf(path))
	}

	r, err := decode.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()
	return s.scanStream(r, size)
}

// scanStream runs the buffered chunk-and-match path over one decoded
// stream.
func (s *Scanner) scanStream(r io.Reader, size int64) error {
	bufSize := s.cfg.ReadBuffer
	if bufSize <= 0 {
		bufSize = readBufferSize(size)
	}

	ck := NewChunker(r, bufSize)
	for {
		blk, err := ck.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		matchBlock(blk, s.q, s.cfg.StripeSize, s.cfg.StripeHeadroom, s.cfg.Workers, s.sink.Emit)
	}
}

// logProgress reports scan progress every 10 seconds until done closes.
func (s *Scanner) logProgress(start time.Time, total int, done <-chan struct{}) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			scanned := s.filesDone.Load()
			elapsed := time.Since(start)
			s.log.Info().
				Int64("scanned", scanned).
				Int("total", total).
				Int64("matches", s.sink.Lines()).
				Float64("files_per_sec", float64(scanned)/elapsed.Seconds()).
				Msg("scan progress")
		}
	}
}

// listShards collects every regular file under root. The walk is a
// thin collaborator: it only yields paths, all scanning decisions
// happen per shard.
func listShards(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
