// Package coordinator is the run supervisor: it probes the target,
// partitions and trims byte ranges, launches the range workers and the
// writer, awaits completion, and decides whether the run succeeded.
package coordinator

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"

	"github.com/detailyang/go-fallocate"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jaskaranSM/rangedl/internal/chunkmeta"
	"github.com/jaskaranSM/rangedl/internal/dlconfig"
	"github.com/jaskaranSM/rangedl/internal/filewriter"
	"github.com/jaskaranSM/rangedl/internal/pipeline"
	"github.com/jaskaranSM/rangedl/internal/rangeworker"
	"github.com/jaskaranSM/rangedl/internal/urlsource"
)

// State is the whole-run state machine:
// Init -> Probing -> Running -> {Succeeded, Failed}.
type State int

const (
	StateInit State = iota
	StateProbing
	StateRunning
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateProbing:
		return "Probing"
	case StateRunning:
		return "Running"
	case StateSucceeded:
		return "Succeeded"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Coordinator owns one download run from construction to cleanup.
type Coordinator struct {
	urls   []string
	opts   dlconfig.Options
	diag   *logrus.Logger
	listen Listener

	gid   string
	state State

	mu       sync.Mutex
	firstErr error
	failOnce sync.Once
	cancel   context.CancelFunc
}

// New constructs a Coordinator for the given mirror URLs. diag and listener
// may be nil; a nil listener behaves as NoopListener.
func New(urls []string, opts dlconfig.Options, diag *logrus.Logger, listener Listener) *Coordinator {
	if listener == nil {
		listener = NoopListener{}
	}
	if diag == nil {
		diag = logrus.New()
		diag.SetOutput(os.Stderr)
	}
	return &Coordinator{
		urls:   urls,
		opts:   opts,
		diag:   diag,
		listen: listener,
		gid:    uuid.NewString(),
		state:  StateInit,
	}
}

// State reports the current point in the run's lifecycle.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Run executes one full download: probe, construct, partition, launch,
// await, cleanup. It returns the first fatal error encountered, if any.
func (c *Coordinator) Run(ctx context.Context) error {
	if len(c.urls) == 0 {
		c.listen.OnFailed(ErrNoURLs)
		return ErrNoURLs
	}

	runCtx, cancel := context.WithTimeout(ctx, c.opts.OverallRunTimeout)
	defer cancel()
	runCtx, c.cancel = context.WithCancel(runCtx)
	defer c.cancel()

	c.setState(StateProbing)
	httpClient := &http.Client{}
	contentLength, err := probeContentLength(runCtx, httpClient, c.urls[0])
	if err != nil {
		c.setState(StateFailed)
		c.listen.OnFailed(err)
		return err
	}
	if contentLength <= 0 {
		c.setState(StateFailed)
		c.listen.OnFailed(ErrContentLengthUnknown)
		return ErrContentLengthUnknown
	}

	destPath := c.opts.DestPath
	if destPath == "" {
		destPath, err = urlsource.DestinationPath(c.urls[0])
		if err != nil {
			c.setState(StateFailed)
			c.listen.OnFailed(err)
			return err
		}
	}

	connections := ClampConnections(contentLength, c.opts.Connections, c.opts.MinBytesPerConnection)
	c.listen.OnStart(connections)

	file, err := os.OpenFile(destPath, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		c.setState(StateFailed)
		err = fmt.Errorf("coordinator: open destination %s: %w", destPath, err)
		c.listen.OnFailed(err)
		return err
	}

	if c.opts.Fallocate {
		if err := fallocate.Fallocate(file, 0, contentLength); err != nil {
			c.diag.WithError(err).WithField("gid", c.gid).Debug("coordinator: fallocate not supported, continuing without preallocation")
		}
	}

	chunkCount := ChunkCount(contentLength, c.opts.ChunkSize)
	meta := chunkmeta.LoadOrNew(destPath, chunkCount, c.diag)
	bitmapSnapshot := meta.SnapshotBitmap()

	queue := pipeline.NewQueue(c.opts.QueueCapacity)

	ranges := Partition(chunkCount, connections, c.opts.ChunkSize, contentLength)
	for i := range ranges {
		ranges[i] = TrimPrefix(ranges[i], c.opts.ChunkSize, bitmapSnapshot)
	}

	c.setState(StateRunning)

	var wg sync.WaitGroup
	wg.Add(connections + 1)

	for _, wr := range ranges {
		wr := wr
		workerURL := c.urls[wr.WorkerID%len(c.urls)]
		c.listen.OnWorkerStart(wr.WorkerID, wr.ByteStart, wr.ByteEnd, workerURL)

		go func() {
			defer wg.Done()
			worker := rangeworker.New(rangeworker.Config{
				ID:             wr.WorkerID,
				URL:            workerURL,
				RangeStart:     wr.ByteStart,
				RangeEnd:       wr.ByteEnd,
				ChunkSize:      c.opts.ChunkSize,
				ChunkCount:     wr.ChunkCount,
				IsLastWorker:   wr.IsLastWorker,
				Bitmap:         bitmapSnapshot,
				Queue:          queue,
				Client:         httpClient,
				ConnectTimeout: c.opts.ConnectTimeout,
				ReadTimeout:    c.opts.ReadTimeout,
			})
			if err := worker.Run(runCtx); err != nil {
				c.fail(err)
				return
			}
			c.listen.OnWorkerDone(wr.WorkerID)
		}()
	}

	go func() {
		defer wg.Done()
		writer := filewriter.New(filewriter.Config{
			File:           file,
			Metadata:       meta,
			SideCarPath:    destPath,
			Queue:          queue,
			DequeueTimeout: c.opts.WriterDequeueTimeout,
			Progress: func(bytesWritten int64, percent int, onIncrease bool) {
				c.listen.OnChunkWritten(bytesWritten, percent)
				if onIncrease {
					c.listen.OnProgress(percent)
				}
			},
		})
		if err := writer.Run(runCtx); err != nil {
			c.fail(err)
		}
	}()

	wg.Wait()

	if err := c.firstFailure(); err != nil {
		file.Close()
		c.setState(StateFailed)
		c.listen.OnFailed(err)
		return err
	}

	if err := file.Close(); err != nil {
		c.setState(StateFailed)
		err = fmt.Errorf("coordinator: close destination: %w", err)
		c.listen.OnFailed(err)
		return err
	}

	if err := chunkmeta.Remove(destPath); err != nil {
		c.setState(StateFailed)
		c.listen.OnFailed(err)
		return err
	}

	c.setState(StateSucceeded)
	c.listen.OnComplete()
	return nil
}

// fail records the first fatal error, idempotently, and cancels the pool —
// only the first call has any effect, so the run always reports the
// earliest failure instead of whichever goroutine happened to lose the race.
func (c *Coordinator) fail(err error) {
	c.failOnce.Do(func() {
		c.mu.Lock()
		c.firstErr = err
		c.mu.Unlock()
		if c.cancel != nil {
			c.cancel()
		}
	})
}

func (c *Coordinator) firstFailure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.firstErr
}

func probeContentLength(ctx context.Context, client *http.Client, url string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("coordinator: malformed url %q: %w", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("coordinator: probe %q: %w", url, err)
	}
	defer resp.Body.Close()

	length, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
	if err != nil {
		return 0, nil // treated as "zero or unknown" by the caller
	}
	return length, nil
}
