// Package sink provides the durable handoff between pipeline stages:
// append-only JSONL files (one record per line) plus a scanner that
// tolerates a truncated final line.
package sink

import (
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/Zeppelin-and-Pails/Victualiser/errors"
)

// StdioPath selects stdin/stdout instead of a file
const StdioPath = "-"

// Writer appends records to a JSONL sink, one line per record.
// The zero value is not usable; construct with NewWriter.
type Writer struct {
	path   string
	file   *os.File
	stdout bool
}

// NewWriter opens an append-only sink at path. The path "-" writes to
// stdout, which is never closed by Close.
func NewWriter(path string) (*Writer, error) {
	if path == StdioPath {
		return &Writer{path: path, file: os.Stdout, stdout: true}, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.WrapFatal(err, "Writer", "NewWriter", "sink directory creation")
		}
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.WrapFatal(err, "Writer", "NewWriter", "sink open")
	}

	return &Writer{path: path, file: file}, nil
}

// Path returns the sink path
func (w *Writer) Path() string {
	return w.path
}

// Append writes one record line to the sink. The line bytes are written
// verbatim followed by a newline. A broken pipe means the downstream
// consumer is gone and surfaces as ErrConsumerGone.
func (w *Writer) Append(line []byte) error {
	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')

	if _, err := w.file.Write(buf); err != nil {
		if isBrokenPipe(err) {
			return errors.WrapTransient(errors.ErrConsumerGone, "Writer", "Append", "sink write")
		}
		return errors.WrapFatal(err, "Writer", "Append", "sink write")
	}
	return nil
}

// Sync flushes the sink to stable storage
func (w *Writer) Sync() error {
	if w.stdout {
		return nil
	}
	if err := w.file.Sync(); err != nil {
		return errors.WrapTransient(err, "Writer", "Sync", "sink sync")
	}
	return nil
}

// Close closes the underlying file. Closing a stdout writer is a no-op.
func (w *Writer) Close() error {
	if w.stdout {
		return nil
	}
	if err := w.file.Close(); err != nil {
		return errors.WrapTransient(err, "Writer", "Close", "sink close")
	}
	return nil
}

// IsConsumerGone reports whether err indicates the downstream consumer
// closed its end of the pipe.
func IsConsumerGone(err error) bool {
	return stderrors.Is(err, errors.ErrConsumerGone) || isBrokenPipe(err)
}

func isBrokenPipe(err error) bool {
	return stderrors.Is(err, syscall.EPIPE) || stderrors.Is(err, io.ErrClosedPipe)
}

// Open opens a sink for reading. The path "-" reads from stdin.
func Open(path string) (io.ReadCloser, error) {
	if path == StdioPath {
		return io.NopCloser(os.Stdin), nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapFatal(err, "sink", "Open", "sink open")
	}
	return file, nil
}
