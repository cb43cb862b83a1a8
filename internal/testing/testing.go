// package testing contains shared test doubles for the CLI, the remote
// client and the exporters
package testing

import (
	"errors"
	"io"
	"net/http"
	"os"
	"testing"

	"github.com/charmbracelet/log"
)

// ErrWriteFailed is what the failing writers return.
var ErrWriteFailed = errors.New("write failed")

// DiscardLogger returns a logger that writes nowhere.
func DiscardLogger() *log.Logger {
	return log.New(io.Discard)
}

// FWriter fails every write, standing in for a closed terminal or a full disk.
type FWriter struct{}

func (f *FWriter) Write(p []byte) (int, error) {
	return 0, ErrWriteFailed
}

// LimitedWriter passes the first maxWrites writes to target and fails the rest.
// Exporters and the CLI use it to fail partway through a board.
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (int, error) {
	if l.written >= l.maxWrites {
		return 0, ErrWriteFailed
	}
	l.written++
	return l.target.Write(p)
}

// NewLimitedWriter starts the count at written.
func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// RoundTripper answers every request of the remote client with one canned
// response or error.
type RoundTripper struct {
	response *http.Response
	err      error
}

func NewRoundTripper(r *http.Response, e error) *RoundTripper {
	return &RoundTripper{response: r, err: e}
}

func (m *RoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// ReadFixture reads a file the test depends on and fails the test when it cannot.
func ReadFixture(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", path, err)
	}
	return string(content)
}
