package build

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jrick/logrotate/rotator"
)

const (
	// DefaultMaxLogFiles is how many rotated log files are kept on disk
	// when the daemon does not override it.
	DefaultMaxLogFiles = 10

	// DefaultMaxLogFileSize is the rotation threshold in megabytes.
	DefaultMaxLogFileSize = 20

	// DefaultLogFilename is the log file name used when none is
	// configured.
	DefaultLogFilename = "timerd.log"
)

// LogRotatorConfig holds the knobs for the daemon's log file rotation.
type LogRotatorConfig struct {
	// LogDir is the directory log files are written into.
	LogDir string

	// MaxLogFiles caps how many rotated files are kept; 0 keeps a single
	// unbounded file.
	MaxLogFiles int

	// MaxLogFileSize is the size in megabytes at which the current file
	// is rotated out.
	MaxLogFileSize int

	// Filename overrides DefaultLogFilename when non-empty.
	Filename string
}

// RotatingLogWriter is an io.Writer over a jrick/logrotate rotator: writes
// go through a pipe into a background goroutine that handles size-based
// rotation and gzip-compresses rotated files.
type RotatingLogWriter struct {
	// feed is the write end of the pipe into the rotator goroutine.
	feed *io.PipeWriter

	// rot performs the size-triggered file rotation.
	rot *rotator.Rotator
}

// NewRotatingLogWriter creates an uninitialized writer; call
// InitLogRotator before the first Write.
func NewRotatingLogWriter() *RotatingLogWriter {
	return &RotatingLogWriter{}
}

// InitLogRotator creates the log directory, sets up rotation per cfg, and
// starts the rotator goroutine.
func (w *RotatingLogWriter) InitLogRotator(cfg *LogRotatorConfig) error {
	filename := cfg.Filename
	if filename == "" {
		filename = DefaultLogFilename
	}

	logFile := filepath.Join(cfg.LogDir, filename)
	if err := os.MkdirAll(filepath.Dir(logFile), 0o700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	// The rotator takes its threshold in KB; the config speaks MB.
	var err error
	w.rot, err = rotator.New(
		logFile,
		int64(cfg.MaxLogFileSize*1024),
		false,
		cfg.MaxLogFiles,
	)
	if err != nil {
		return fmt.Errorf("failed to create file rotator: %w", err)
	}

	w.rot.SetCompressor(gzip.NewWriter(nil), ".gz")

	// The rotator consumes the read end of a pipe on its own goroutine.
	// Its errors can only go to stderr, since the rotator itself is the
	// log destination.
	pr, pw := io.Pipe()
	go func() {
		if err := w.rot.Run(pr); err != nil {
			_, _ = fmt.Fprintf(
				os.Stderr,
				"failed to run file rotator: %v\n", err,
			)
		}
	}()

	w.feed = pw

	return nil
}

// Write feeds b to the rotator. Before InitLogRotator the write is
// silently discarded, so wiring the writer into a logger early is safe.
func (w *RotatingLogWriter) Write(b []byte) (int, error) {
	if w.feed != nil {
		return w.feed.Write(b)
	}

	return len(b), nil
}

// Close closes the pipe's write end, letting the rotator goroutine flush
// and exit.
func (w *RotatingLogWriter) Close() error {
	if w.feed != nil {
		return w.feed.Close()
	}

	return nil
}
