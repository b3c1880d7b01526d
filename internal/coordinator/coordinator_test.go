package coordinator

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaskaranSM/rangedl/internal/chunkmeta"
	"github.com/jaskaranSM/rangedl/internal/dlconfig"
)

// rangeEchoServer answers a plain GET (the coordinator's probe) with a
// Content-Length header and no Range semantics, and answers any GET
// carrying a Range header with the requested slice of content as 206.
func rangeEchoServer(t *testing.T, content []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rangeHeader := r.Header.Get("Range")
		if rangeHeader == "" {
			w.Header().Set("Content-Length", fmt.Sprintf("%d", len(content)))
			w.WriteHeader(http.StatusOK)
			return
		}
		var start, end int64
		_, err := fmt.Sscanf(rangeHeader, "bytes=%d-%d", &start, &end)
		require.NoError(t, err)
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(content[start : end+1])
	}))
}

func testOpts(destPath string) dlconfig.Options {
	return dlconfig.Options{
		Connections:           2,
		ChunkSize:             1024,
		QueueCapacity:         10,
		MinBytesPerConnection: 1,
		ConnectTimeout:        2 * time.Second,
		ReadTimeout:           2 * time.Second,
		WriterDequeueTimeout:  5 * time.Second,
		OverallRunTimeout:     10 * time.Second,
		DestPath:              destPath,
		Fallocate:             false,
	}
}

func TestCoordinatorFreshDownload(t *testing.T) {
	content := make([]byte, 4*1024)
	for i := range content {
		content[i] = byte(i)
	}
	srv := rangeEchoServer(t, content)
	defer srv.Close()

	dir := t.TempDir()
	destPath := filepath.Join(dir, "out.bin")

	c := New([]string{srv.URL}, testOpts(destPath), nil, nil)
	err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, c.State())

	got, err := os.ReadFile(destPath)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	_, err = os.Stat(destPath + chunkmeta.TempSuffix)
	assert.True(t, os.IsNotExist(err), "side-car should be removed on success")
}

func TestCoordinatorResumesFromExistingSideCar(t *testing.T) {
	content := make([]byte, 4*1024)
	for i := range content {
		content[i] = byte(i)
	}
	srv := rangeEchoServer(t, content)
	defer srv.Close()

	dir := t.TempDir()
	destPath := filepath.Join(dir, "out.bin")

	// Pre-seed the destination file with chunks 0 and 1 already correct on
	// disk, and a matching side-car marking them done, as if a prior run
	// crashed after writing them.
	partial := make([]byte, 4*1024)
	copy(partial[:2*1024], content[:2*1024])
	require.NoError(t, os.WriteFile(destPath, partial, 0o600))

	meta := chunkmeta.New(4)
	meta.Mark(0)
	meta.Mark(1)
	meta.Persist(destPath)

	c := New([]string{srv.URL}, testOpts(destPath), nil, nil)
	err := c.Run(context.Background())
	require.NoError(t, err)

	got, err := os.ReadFile(destPath)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestCoordinatorPropagatesWorkerTimeout(t *testing.T) {
	content := make([]byte, 4*1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") == "" {
			w.Header().Set("Content-Length", fmt.Sprintf("%d", len(content)))
			w.WriteHeader(http.StatusOK)
			return
		}
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(content)
	}))
	defer srv.Close()

	dir := t.TempDir()
	destPath := filepath.Join(dir, "out.bin")

	opts := testOpts(destPath)
	opts.ConnectTimeout = 20 * time.Millisecond

	c := New([]string{srv.URL}, opts, nil, nil)
	err := c.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateFailed, c.State())
}

func TestCoordinatorRejectsEmptyURLList(t *testing.T) {
	c := New(nil, testOpts(""), nil, nil)
	err := c.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoURLs)
}
