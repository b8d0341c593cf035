// Package iox holds small I/O helpers shared by the CLI, adapters and tests.
package iox

import (
	"io"
	"os"
)

// StdioPath names standard input or output in path arguments.
const StdioPath = "-"

// DiscardClose closes c and drops the error. For defers where a close
// failure cannot be acted on:
//
//	defer iox.DiscardClose(f)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a func that closes c, for t.Cleanup registration.
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// DiscardErr calls fn and drops its error (Flush, Sync).
func DiscardErr(fn func() error) { _ = fn() }

// OpenInput opens path for reading. StdioPath yields stdin, which is
// never closed by the returned closer.
func OpenInput(path string) (io.ReadCloser, error) {
	if path == StdioPath || path == "" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

// CreateOutput creates path for writing. StdioPath yields stdout, which is
// never closed by the returned closer.
func CreateOutput(path string) (io.WriteCloser, error) {
	if path == StdioPath || path == "" {
		return nopWriteCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
