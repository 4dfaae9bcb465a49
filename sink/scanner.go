package sink

import (
	"bufio"
	"io"

	"github.com/Zeppelin-and-Pails/Victualiser/errors"
)

// Scanner reads one record line at a time from a JSONL sink.
//
// A final line that ends without a newline is surfaced with Truncated()
// reporting true: the producer may have been interrupted mid-write, so
// callers that fail to parse a truncated tail should treat it as end of
// data rather than an error.
type Scanner struct {
	reader    *bufio.Reader
	line      []byte
	lineNum   int
	truncated bool
	err       error
	done      bool
}

// NewScanner wraps r for line-at-a-time reading
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{
		// 1MB buffer covers the largest records the providers emit
		reader: bufio.NewReaderSize(r, 1024*1024),
	}
}

// Scan advances to the next line. It returns false at end of input or on
// a read error; check Err() to distinguish.
func (s *Scanner) Scan() bool {
	if s.done {
		return false
	}

	line, err := s.reader.ReadBytes('\n')
	switch {
	case err == nil:
		s.line = line[:len(line)-1]
		s.lineNum++
		return true
	case err == io.EOF:
		s.done = true
		if len(line) > 0 {
			// No trailing newline: the tail may be a complete record
			// or a partial write cut off mid-line.
			s.line = line
			s.lineNum++
			s.truncated = true
			return true
		}
		return false
	default:
		s.done = true
		s.err = errors.WrapFatal(err, "Scanner", "Scan", "sink read")
		return false
	}
}

// Bytes returns the current line without its trailing newline.
// The returned slice is only valid until the next Scan call.
func (s *Scanner) Bytes() []byte {
	return s.line
}

// Line returns the 1-based number of the current line
func (s *Scanner) Line() int {
	return s.lineNum
}

// Truncated reports whether the current line is the unterminated tail of
// the input.
func (s *Scanner) Truncated() bool {
	return s.truncated
}

// Err returns the first read error encountered, if any
func (s *Scanner) Err() error {
	return s.err
}
