package sink

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zeppelin-and-Pails/Victualiser/errors"
)

func TestWriterAppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.jsonl")

	writer, err := NewWriter(path)
	require.NoError(t, err)

	require.NoError(t, writer.Append([]byte(`{"text":"first"}`)))
	require.NoError(t, writer.Append([]byte(`{"text":"second"}`)))
	require.NoError(t, writer.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\"text\":\"first\"}\n{\"text\":\"second\"}\n", string(content))
}

func TestWriterAppendModePreservesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"text\":\"old\"}\n"), 0o644))

	writer, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, writer.Append([]byte(`{"text":"new"}`)))
	require.NoError(t, writer.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\"text\":\"old\"}\n{\"text\":\"new\"}\n", string(content))
}

func TestWriterCreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "raw.jsonl")

	writer, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, writer.Append([]byte("{}")))
	require.NoError(t, writer.Close())

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestWriterStdout(t *testing.T) {
	writer, err := NewWriter(StdioPath)
	require.NoError(t, err)
	assert.Equal(t, StdioPath, writer.Path())

	// Closing the stdout sink must never close os.Stdout
	require.NoError(t, writer.Close())
	require.NoError(t, writer.Sync())
}

func TestIsConsumerGone(t *testing.T) {
	assert.True(t, IsConsumerGone(errors.ErrConsumerGone))
	assert.True(t, IsConsumerGone(syscall.EPIPE))
	assert.True(t, IsConsumerGone(fmt.Errorf("write: %w", io.ErrClosedPipe)))
	assert.True(t, IsConsumerGone(
		errors.WrapTransient(errors.ErrConsumerGone, "Writer", "Append", "sink write")))

	assert.False(t, IsConsumerGone(nil))
	assert.False(t, IsConsumerGone(fmt.Errorf("disk full")))
}

func TestWriterBrokenPipeSurfacesConsumerGone(t *testing.T) {
	read, write, err := os.Pipe()
	require.NoError(t, err)
	require.NoError(t, read.Close())

	writer := &Writer{path: StdioPath, file: write, stdout: true}
	appendErr := writer.Append([]byte(`{"text":"nobody home"}`))

	require.Error(t, appendErr)
	assert.True(t, IsConsumerGone(appendErr))
	assert.True(t, errors.IsTransient(appendErr))
	require.NoError(t, write.Close())
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.jsonl"))
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}

func TestScannerReadsLines(t *testing.T) {
	input := "{\"a\":1}\n{\"b\":2}\n"
	scanner := NewScanner(strings.NewReader(input))

	require.True(t, scanner.Scan())
	assert.Equal(t, `{"a":1}`, string(scanner.Bytes()))
	assert.Equal(t, 1, scanner.Line())
	assert.False(t, scanner.Truncated())

	require.True(t, scanner.Scan())
	assert.Equal(t, `{"b":2}`, string(scanner.Bytes()))
	assert.Equal(t, 2, scanner.Line())

	assert.False(t, scanner.Scan())
	assert.NoError(t, scanner.Err())
}

func TestScannerTruncatedTail(t *testing.T) {
	input := "{\"a\":1}\n{\"b\":"
	scanner := NewScanner(strings.NewReader(input))

	require.True(t, scanner.Scan())
	assert.False(t, scanner.Truncated())

	require.True(t, scanner.Scan())
	assert.Equal(t, `{"b":`, string(scanner.Bytes()))
	assert.True(t, scanner.Truncated())

	assert.False(t, scanner.Scan())
	assert.NoError(t, scanner.Err())
}

func TestScannerCompleteTailWithoutNewline(t *testing.T) {
	scanner := NewScanner(strings.NewReader(`{"a":1}`))

	require.True(t, scanner.Scan())
	assert.Equal(t, `{"a":1}`, string(scanner.Bytes()))
	// Flagged truncated even though the JSON happens to be complete;
	// callers decide by attempting a parse
	assert.True(t, scanner.Truncated())
}

func TestScannerEmptyInput(t *testing.T) {
	scanner := NewScanner(strings.NewReader(""))
	assert.False(t, scanner.Scan())
	assert.NoError(t, scanner.Err())
	assert.Equal(t, 0, scanner.Line())
}

func TestScannerEmptyLines(t *testing.T) {
	scanner := NewScanner(strings.NewReader("\n\n"))

	require.True(t, scanner.Scan())
	assert.Empty(t, scanner.Bytes())
	require.True(t, scanner.Scan())
	assert.False(t, scanner.Scan())
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, fmt.Errorf("device error")
}

func TestScannerReadError(t *testing.T) {
	scanner := NewScanner(failingReader{})

	assert.False(t, scanner.Scan())
	require.Error(t, scanner.Err())
	assert.True(t, errors.IsFatal(scanner.Err()))
}
