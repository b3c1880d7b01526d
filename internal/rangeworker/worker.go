// Package rangeworker implements the producer side of the pipeline: one
// worker issues a single HTTP range GET and emits one pipeline.Chunk per
// fresh chunk in its assigned range, skipping chunks already present in its
// bitmap snapshot.
//
// Connect and read timeouts are enforced directly on top of net/http rather
// than through a third-party HTTP client, since they need independent
// deadlines for the connect phase and for each individual body read.
package rangeworker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/RoaringBitmap/roaring"

	"github.com/jaskaranSM/rangedl/internal/pipeline"
)

// Config describes one range worker's assignment.
type Config struct {
	ID            int
	URL           string
	RangeStart    int64 // inclusive
	RangeEnd      int64 // inclusive
	ChunkSize     int64
	ChunkCount    int // number of chunks this worker must emit, after trimming
	IsLastWorker  bool
	Bitmap        *roaring.Bitmap // immutable snapshot captured at coordinator startup
	Queue         pipeline.Queue
	Client        *http.Client
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// Worker downloads one contiguous byte range.
type Worker struct {
	cfg Config
}

// New constructs a Worker from cfg.
func New(cfg Config) *Worker {
	return &Worker{cfg: cfg}
}

// Run issues the range GET and streams chunks from the response body. It
// returns nil on success (including the trivial case where the worker's
// range was already fully trimmed away) and a non-nil error on any I/O
// failure, timeout, or short read — all of which are fatal to the run.
func (w *Worker) Run(ctx context.Context) error {
	c := w.cfg

	// Trimming may have covered this worker's entire range.
	if c.RangeStart >= c.RangeEnd {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return fmt.Errorf("rangeworker[%d]: malformed url: %w", c.ID, err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", c.RangeStart, c.RangeEnd))

	resp, err := doWithConnectTimeout(ctx, c.Client, req, c.ConnectTimeout)
	if err != nil {
		return fmt.Errorf("rangeworker[%d]: connect: %w", c.ID, err)
	}
	defer resp.Body.Close()

	return w.download(ctx, resp.Body)
}

// doWithConnectTimeout races client.Do against connectTimeout, independent
// of how long the body subsequently takes to read — body reads are timed
// out separately by readWithDeadline.
func doWithConnectTimeout(ctx context.Context, client *http.Client, req *http.Request, connectTimeout time.Duration) (*http.Response, error) {
	type result struct {
		resp *http.Response
		err  error
	}
	done := make(chan result, 1)

	go func() {
		resp, err := client.Do(req)
		done <- result{resp, err}
	}()

	select {
	case res := <-done:
		return res.resp, res.err
	case <-time.After(connectTimeout):
		return nil, fmt.Errorf("timed out after %s establishing connection", connectTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// download reads body chunk by chunk, starting at startIdx = RangeStart /
// ChunkSize, for ChunkCount iterations, skipping any chunk already present
// in the bitmap snapshot and enqueueing every fresh one.
func (w *Worker) download(ctx context.Context, body io.Reader) error {
	c := w.cfg
	startIdx := int(c.RangeStart / c.ChunkSize)
	endIdx := startIdx + c.ChunkCount

	readUpTo := c.ChunkSize

	for i := startIdx; i < endIdx; i++ {
		fileOffset := int64(i) * c.ChunkSize
		thisChunkSize := readUpTo

		if c.IsLastWorker && i == endIdx-1 {
			thisChunkSize = (c.RangeEnd + 1) - fileOffset
		}

		if c.Bitmap.Contains(uint32(i)) {
			if err := discardN(ctx, body, thisChunkSize, c.ReadTimeout); err != nil {
				return fmt.Errorf("rangeworker[%d]: skip chunk %d: %w", c.ID, i, err)
			}
			continue
		}

		buf := make([]byte, thisChunkSize)
		if err := readFull(ctx, body, buf, c.ReadTimeout); err != nil {
			return fmt.Errorf("rangeworker[%d]: read chunk %d: %w", c.ID, i, err)
		}

		chunk := pipeline.Chunk{Data: buf, FileOffset: fileOffset, Index: i}
		select {
		case c.Queue <- chunk:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
