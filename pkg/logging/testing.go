package logging

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

// TestLogger creates a test logger that captures output
type TestLogger struct {
	*zerolog.Logger
	Buffer *syncBuffer
}

// syncBuffer guards the capture buffer; provider runs log concurrently.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

// NewTestLogger creates a new test logger that captures output
func NewTestLogger(t testing.TB) *TestLogger {
	t.Helper()

	buf := &syncBuffer{}
	oldLevel := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.TraceLevel)

	logger := zerolog.New(buf).
		Level(zerolog.TraceLevel).
		With().
		Timestamp().
		Logger()

	t.Cleanup(func() {
		zerolog.SetGlobalLevel(oldLevel)
	})

	return &TestLogger{
		Logger: &logger,
		Buffer: buf,
	}
}

// Output returns the captured log output as a string
func (tl *TestLogger) Output() string {
	return tl.Buffer.String()
}

// Lines returns the captured log output as individual lines
func (tl *TestLogger) Lines() []string {
	output := strings.TrimSpace(tl.Output())
	if output == "" {
		return []string{}
	}
	return strings.Split(output, "\n")
}

// Contains checks if the log output contains the given string
func (tl *TestLogger) Contains(substr string) bool {
	return strings.Contains(tl.Output(), substr)
}

// Count returns the number of log entries
func (tl *TestLogger) Count() int {
	return len(tl.Lines())
}

// Clear clears the captured log output
func (tl *TestLogger) Clear() {
	tl.Buffer.Reset()
}

// NewNopLogger creates a logger that discards all output (useful for tests)
func NewNopLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

// DisableLoggingForTest disables logging for the duration of a test
func DisableLoggingForTest(t testing.TB) {
	t.Helper()

	original := *Default()
	SetDefault(zerolog.Nop())

	t.Cleanup(func() {
		SetDefault(original)
	})
}

// CaptureLoggingForTest captures logging output for the duration of a test
func CaptureLoggingForTest(t testing.TB) *TestLogger {
	t.Helper()

	original := *Default()
	testLogger := NewTestLogger(t)
	SetDefault(*testLogger.Logger)

	t.Cleanup(func() {
		SetDefault(original)
	})

	return testLogger
}
