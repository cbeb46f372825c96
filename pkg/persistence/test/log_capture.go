package test

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/tigerroll/surfin-persistence/pkg/persistence/support/util/logger"
)

// LogCapture collects everything written through the logger package.
type LogCapture struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (c *LogCapture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

// String returns the captured output.
func (c *LogCapture) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// Contains reports whether the captured output contains substr.
func (c *LogCapture) Contains(substr string) bool {
	return strings.Contains(c.String(), substr)
}

// Count returns how many times substr appears in the captured output.
func (c *LogCapture) Count(substr string) int {
	return strings.Count(c.String(), substr)
}

// CaptureLogs redirects the logger to a LogCapture at DEBUG level until the test ends.
// Tests using it must not run in parallel.
func CaptureLogs(t *testing.T) *LogCapture {
	t.Helper()
	c := &LogCapture{}
	prevLevel := logger.Level()
	prevOut := logger.SetOutput(c)
	logger.SetLogLevel("DEBUG")
	t.Cleanup(func() {
		logger.RestoreOutput(prevOut)
		logger.SetLevel(prevLevel)
	})
	return c
}
