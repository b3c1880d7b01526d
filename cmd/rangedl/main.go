// Command rangedl is the CLI entrypoint: a single cobra root command that
// resolves its positional argument into one or more mirror URLs, builds a
// coordinator.Coordinator from flags (and an optional YAML config file),
// and runs one download to completion.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jaskaranSM/rangedl/internal/coordinator"
	"github.com/jaskaranSM/rangedl/internal/dlconfig"
	"github.com/jaskaranSM/rangedl/internal/progressui"
	"github.com/jaskaranSM/rangedl/internal/rlog"
	"github.com/jaskaranSM/rangedl/internal/urlsource"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath            string
		connections           int
		chunkSize             int64
		queueCapacity         int
		minBytesPerConnection int64
		connectTimeout        time.Duration
		readTimeout           time.Duration
		writerTimeout         time.Duration
		runTimeout            time.Duration
		destPath              string
		fallocate             bool
		noProgressBar         bool
		verbose               bool
	)

	cmd := &cobra.Command{
		Use:   "rangedl <URL|URL-LIST-FILE> [MAX-CONCURRENT-CONNECTIONS]",
		Short: "A resumable, parallel HTTP range downloader",
		Long: `rangedl downloads a file over one or more HTTP mirrors using concurrent
byte-range requests, and can resume an interrupted download from the
chunk-accounting side-car it leaves next to the destination file.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := dlconfig.LoadFile(configPath, dlconfig.Defaults())
			if err != nil {
				return err
			}

			opts.Fallocate = fallocate
			opts.ShowProgressBar = !noProgressBar
			if destPath != "" {
				opts.DestPath = destPath
			}
			if chunkSize > 0 {
				opts.ChunkSize = chunkSize
			}
			if queueCapacity > 0 {
				opts.QueueCapacity = queueCapacity
			}
			if minBytesPerConnection > 0 {
				opts.MinBytesPerConnection = minBytesPerConnection
			}
			if connectTimeout > 0 {
				opts.ConnectTimeout = connectTimeout
			}
			if readTimeout > 0 {
				opts.ReadTimeout = readTimeout
			}
			if writerTimeout > 0 {
				opts.WriterDequeueTimeout = writerTimeout
			}
			if runTimeout > 0 {
				opts.OverallRunTimeout = runTimeout
			}

			if len(args) == 2 {
				n, err := parsePositiveInt(args[1])
				if err != nil {
					return fmt.Errorf("invalid MAX-CONCURRENT-CONNECTIONS: %w", err)
				}
				opts.Connections = n
			} else if connections > 0 {
				opts.Connections = connections
			}

			urls, err := urlsource.Resolve(args[0])
			if err != nil {
				return err
			}

			diag := rlog.NewDiagLogger(verbose)
			ui := rlog.NewUILogger(os.Stdout)
			errOut := rlog.NewUILogger(os.Stderr)
			listener := progressui.New(ui, errOut, opts.ShowProgressBar)

			c := coordinator.New(urls, opts, diag, listener)
			return c.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "optional YAML config file overlaying the defaults")
	cmd.Flags().IntVar(&connections, "connections", 0, "number of concurrent range workers (overridden by the positional argument)")
	cmd.Flags().Int64Var(&chunkSize, "chunk-size", 0, "bytes per accounting chunk (0 = use default)")
	cmd.Flags().IntVar(&queueCapacity, "queue-capacity", 0, "pipeline queue capacity in chunks (0 = use default)")
	cmd.Flags().Int64Var(&minBytesPerConnection, "min-bytes-per-connection", 0, "minimum bytes each worker must own before clamping connections down (0 = use default)")
	cmd.Flags().DurationVar(&connectTimeout, "connect-timeout", 0, "per-worker connect timeout (0 = use default)")
	cmd.Flags().DurationVar(&readTimeout, "read-timeout", 0, "per-worker read timeout (0 = use default)")
	cmd.Flags().DurationVar(&writerTimeout, "writer-timeout", 0, "writer dequeue timeout (0 = use default)")
	cmd.Flags().DurationVar(&runTimeout, "run-timeout", 0, "overall run timeout (0 = use default)")
	cmd.Flags().StringVar(&destPath, "dest", "", "destination file path (default: derived from the URL)")
	cmd.Flags().BoolVar(&fallocate, "fallocate", true, "pre-allocate the destination file to the full content length")
	cmd.Flags().BoolVar(&noProgressBar, "no-progress-bar", false, "suppress the progress bar, keep the plain-text status lines")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose diagnostic logging")

	return cmd
}

func parsePositiveInt(s string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be a positive integer, got %q", s)
	}
	return n, nil
}
