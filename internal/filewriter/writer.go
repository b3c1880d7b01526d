// Package filewriter implements the single writer worker: it dequeues
// chunks, writes each to the destination file at its offset, updates the
// chunk-accounting metadata, and flushes the side-car.
package filewriter

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jaskaranSM/rangedl/internal/chunkmeta"
	"github.com/jaskaranSM/rangedl/internal/pipeline"
)

// ProgressFunc is invoked exactly once per chunk written; onIncrease is true
// only when that chunk made the integer completion percent strictly
// increase, so callers can print a progress line only when it would
// actually change.
type ProgressFunc func(bytesWritten int64, percent int, onIncrease bool)

// Config configures one writer worker run.
type Config struct {
	File           *os.File
	Metadata       *chunkmeta.Metadata
	SideCarPath    string
	Queue          pipeline.Queue
	DequeueTimeout time.Duration
	Progress       ProgressFunc
}

// Writer is the sole mutator of the destination file and its metadata.
type Writer struct {
	cfg Config
}

// New constructs a Writer.
func New(cfg Config) *Writer {
	return &Writer{cfg: cfg}
}

// Run dequeues exactly cfg.Metadata.ChunksRemaining() chunks (the count
// fixed at construction time) and writes each to disk. A dequeue timeout or
// any I/O failure is fatal and returned immediately; the file is not closed
// here, that remains the coordinator's responsibility since the same
// *os.File may still be in use by the caller for cleanup.
func (w *Writer) Run(ctx context.Context) error {
	c := w.cfg
	iterations := c.Metadata.ChunksRemaining()

	for i := 0; i < iterations; i++ {
		chunk, err := pipeline.DequeueWithTimeout(ctx, c.Queue, c.DequeueTimeout)
		if err != nil {
			return fmt.Errorf("filewriter: dequeue: %w", err)
		}

		if err := w.writeChunk(chunk); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeChunk(chunk pipeline.Chunk) error {
	c := w.cfg
	previousPercent := c.Metadata.Percent()

	if _, err := c.File.WriteAt(chunk.Data, chunk.FileOffset); err != nil {
		return fmt.Errorf("filewriter: write chunk %d at offset %d: %w", chunk.Index, chunk.FileOffset, err)
	}

	c.Metadata.Mark(chunk.Index)
	c.Metadata.Persist(c.SideCarPath)

	currentPercent := c.Metadata.Percent()
	increased := currentPercent > previousPercent

	if c.Progress != nil {
		c.Progress(int64(len(chunk.Data)), currentPercent, increased)
	}
	return nil
}
