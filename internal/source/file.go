package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/rankflow/internal/domain"
	"github.com/bft-labs/rankflow/pkg/log"
)

// DefaultPollInterval is the follow-mode fallback when no write event arrives.
const DefaultPollInterval = 500 * time.Millisecond

// ErrBadLine is returned for a line that is not a list of numbers.
var ErrBadLine = errors.New("source: malformed sample line")

// FileConfig configures a FileReader.
type FileConfig struct {
	Path string

	// Offset is the byte position to start reading from.
	Offset int64

	// Follow waits for appended data at end of file instead of ending.
	Follow bool

	// PollInterval re-checks the file when no write event arrives.
	PollInterval time.Duration

	Logger log.Logger
}

// FileReader reads windows from a text file, one row per line.
type FileReader struct {
	cfg    FileConfig
	logger log.Logger

	f       *os.File
	r       *bufio.Reader
	watcher *fsnotify.Watcher

	offset   int64
	pending  string
	finished bool
}

// NewFileReader creates a reader; the file is opened by Start.
func NewFileReader(cfg FileConfig) *FileReader {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &FileReader{
		cfg:    cfg,
		logger: log.With(cfg.Logger, log.String("component", "file_reader"), log.String("path", cfg.Path)),
	}
}

// Start opens the file, seeks to the configured offset and, in follow mode,
// starts watching it.
func (r *FileReader) Start(ctx context.Context) error {
	f, err := os.Open(r.cfg.Path)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrOpenFailed, err)
	}
	if r.cfg.Offset > 0 {
		if _, err := f.Seek(r.cfg.Offset, io.SeekStart); err != nil {
			f.Close()
			return fmt.Errorf("%w: seek %s: %v", domain.ErrOpenFailed, r.cfg.Path, err)
		}
	}
	r.f = f
	r.r = bufio.NewReader(f)
	r.offset = r.cfg.Offset

	if r.cfg.Follow {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			r.logger.Warn("file watch unavailable, polling", log.Err(err))
			return nil
		}
		if err := w.Add(r.cfg.Path); err != nil {
			w.Close()
			r.logger.Warn("file watch unavailable, polling", log.Err(err))
			return nil
		}
		r.watcher = w
	}
	return nil
}

// Offset returns the byte offset just past the last row handed out.
func (r *FileReader) Offset() int64 {
	return r.offset
}

// Path returns the file being read.
func (r *FileReader) Path() string {
	return r.cfg.Path
}

// Get reads windowSize rows. If the file ends first, the rows read so far
// are returned once as a partial window and the next call returns io.EOF.
func (r *FileReader) Get(ctx context.Context, windowSize int) (domain.Window, error) {
	if r.r == nil || r.finished {
		return domain.Window{}, io.EOF
	}

	rows := make([]domain.Row, 0, windowSize)
	for len(rows) < windowSize {
		line, err := r.readLine(ctx)
		if errors.Is(err, io.EOF) {
			r.finished = true
			if len(rows) == 0 {
				return domain.Window{}, io.EOF
			}
			r.logger.Debug("partial window at end of file", log.Int("rows", len(rows)), log.Int("window", windowSize))
			return domain.Window{Rows: rows, SampleRate: domain.DefaultSampleRate, Partial: true}, nil
		}
		if err != nil {
			return domain.Window{}, err
		}

		row, err := ParseRow(line)
		if err != nil {
			return domain.Window{}, fmt.Errorf("%s at offset %d: %w", r.cfg.Path, r.offset, err)
		}
		if row == nil {
			continue
		}
		rows = append(rows, row)
	}
	return domain.Window{Rows: rows, SampleRate: domain.DefaultSampleRate}, nil
}

// readLine returns the next complete line. Without Follow a final line
// lacking its newline still counts; with Follow it waits for the rest.
func (r *FileReader) readLine(ctx context.Context) (string, error) {
	for {
		chunk, err := r.r.ReadString('\n')
		r.pending += chunk
		if err == nil {
			line := r.pending
			r.offset += int64(len(line))
			r.pending = ""
			return line, nil
		}
		if !errors.Is(err, io.EOF) {
			return "", err
		}
		if !r.cfg.Follow {
			if r.pending == "" {
				return "", io.EOF
			}
			line := r.pending
			r.offset += int64(len(line))
			r.pending = ""
			return line, nil
		}
		if err := r.waitForData(ctx); err != nil {
			return "", err
		}
	}
}

func (r *FileReader) waitForData(ctx context.Context) error {
	timer := time.NewTimer(r.cfg.PollInterval)
	defer timer.Stop()

	var events <-chan fsnotify.Event
	var errs <-chan error
	if r.watcher != nil {
		events = r.watcher.Events
		errs = r.watcher.Errors
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Has(fsnotify.Write) {
				return nil
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				r.logger.Warn("followed file went away", log.String("op", ev.Op.String()))
				return io.EOF
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			r.logger.Warn("file watch error", log.Err(err))
		}
	}
}

// Stop closes the file and the watcher.
func (r *FileReader) Stop() error {
	var errs []error
	if r.watcher != nil {
		errs = append(errs, r.watcher.Close())
		r.watcher = nil
	}
	if r.f != nil {
		errs = append(errs, r.f.Close())
		r.f = nil
	}
	r.r = nil
	return errors.Join(errs...)
}

// ParseRow parses one whitespace-separated line. A blank line yields nil.
func ParseRow(line string) (domain.Row, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, nil
	}
	row := make(domain.Row, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: field %d %q", ErrBadLine, i, f)
		}
		row[i] = v
	}
	return row, nil
}
