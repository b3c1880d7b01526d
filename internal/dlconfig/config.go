// Package dlconfig holds every tunable constant of the download pipeline.
// None of them are hard-coded in the core packages; all of them default to
// the reference values below and can be overridden by flags or a config
// file.
package dlconfig

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Reference default values for every tunable.
const (
	DefaultChunkSize             int64 = 64 * 1024       // 65 536 bytes
	DefaultQueueCapacity               = 1000
	DefaultMinBytesPerConnection int64 = 1024 * 1024      // 1 048 576 bytes
	DefaultConnectTimeout              = 25 * time.Second
	DefaultReadTimeout                 = 20 * time.Second
	DefaultWriterDequeueTimeout        = 2 * time.Minute
	DefaultOverallRunTimeout           = 24 * time.Hour
)

// Options configures one download run end to end. Every field has a
// reference default applied by Defaults.
type Options struct {
	Connections            int           `yaml:"connections"`
	ChunkSize               int64         `yaml:"chunk_size"`
	QueueCapacity           int           `yaml:"queue_capacity"`
	MinBytesPerConnection   int64         `yaml:"min_bytes_per_connection"`
	ConnectTimeout          time.Duration `yaml:"connect_timeout"`
	ReadTimeout             time.Duration `yaml:"read_timeout"`
	WriterDequeueTimeout    time.Duration `yaml:"writer_dequeue_timeout"`
	OverallRunTimeout       time.Duration `yaml:"overall_run_timeout"`
	DestPath                string        `yaml:"dest_path"`
	Fallocate               bool          `yaml:"fallocate"`
	ShowProgressBar         bool          `yaml:"show_progress_bar"`
}

// Defaults returns an Options populated with every reference default value.
func Defaults() Options {
	return Options{
		Connections:           1,
		ChunkSize:             DefaultChunkSize,
		QueueCapacity:         DefaultQueueCapacity,
		MinBytesPerConnection: DefaultMinBytesPerConnection,
		ConnectTimeout:        DefaultConnectTimeout,
		ReadTimeout:           DefaultReadTimeout,
		WriterDequeueTimeout:  DefaultWriterDequeueTimeout,
		OverallRunTimeout:     DefaultOverallRunTimeout,
		Fallocate:             true,
		ShowProgressBar:       true,
	}
}

// LoadFile reads an optional YAML config file and overlays it onto base,
// leaving zero-valued fields in the file untouched in base. A missing file
// is not an error; the caller typically passes an empty path to skip this
// entirely.
func LoadFile(path string, base Options) (Options, error) {
	if path == "" {
		return base, nil
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return base, nil
	}
	if err != nil {
		return base, fmt.Errorf("dlconfig: read config file %s: %w", path, err)
	}

	var overlay Options
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return base, fmt.Errorf("dlconfig: parse config file %s: %w", path, err)
	}

	merged := base
	if overlay.Connections != 0 {
		merged.Connections = overlay.Connections
	}
	if overlay.ChunkSize != 0 {
		merged.ChunkSize = overlay.ChunkSize
	}
	if overlay.QueueCapacity != 0 {
		merged.QueueCapacity = overlay.QueueCapacity
	}
	if overlay.MinBytesPerConnection != 0 {
		merged.MinBytesPerConnection = overlay.MinBytesPerConnection
	}
	if overlay.ConnectTimeout != 0 {
		merged.ConnectTimeout = overlay.ConnectTimeout
	}
	if overlay.ReadTimeout != 0 {
		merged.ReadTimeout = overlay.ReadTimeout
	}
	if overlay.WriterDequeueTimeout != 0 {
		merged.WriterDequeueTimeout = overlay.WriterDequeueTimeout
	}
	if overlay.OverallRunTimeout != 0 {
		merged.OverallRunTimeout = overlay.OverallRunTimeout
	}
	if overlay.DestPath != "" {
		merged.DestPath = overlay.DestPath
	}
	return merged, nil
}
