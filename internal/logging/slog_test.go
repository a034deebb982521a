// internal/logging/slog_test.go
package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetup_DebugLevel(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(&buf, "debug", nil)

	m.Logger().Debug("debug msg")
	m.Logger().Info("info msg")

	output := buf.String()
	assert.Contains(t, output, "debug msg")
	assert.Contains(t, output, "info msg")
}

func TestSetup_InfoLevel_FiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(&buf, "info", nil)

	m.Logger().Debug("should be filtered")
	m.Logger().Info("should appear")

	output := buf.String()
	assert.NotContains(t, output, "should be filtered")
	assert.Contains(t, output, "should appear")
}

func TestSetup_ReplacesLogger(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	m := NewSlogManager()

	m.Setup(&buf1, "info", nil)
	m.Logger().Info("first")

	m.Setup(&buf2, "info", nil)
	m.Logger().Info("second")

	assert.Contains(t, buf1.String(), "first")
	assert.NotContains(t, buf1.String(), "second", "old file should not receive new logs")
	assert.Contains(t, buf2.String(), "second")
}

func TestSetup_ExtraHandlersReceiveRecords(t *testing.T) {
	var buf bytes.Buffer
	capture := NewCaptureHandler()

	m := NewSlogManager()
	m.Setup(&buf, "info", nil, capture)

	m.Logger().Warn("engine trouble")
	m.Logger().Info("routine")

	recs := capture.Records()
	assert.Len(t, recs, 1, "capture handler should only see Warn and above")
	assert.Equal(t, "engine trouble", recs[0].Message)
	assert.Contains(t, buf.String(), "routine")
}

func TestLogger_BeforeSetupReturnsDefault(t *testing.T) {
	m := NewSlogManager()
	assert.NotNil(t, m.Logger())
}

func TestFlush_NoProvider(t *testing.T) {
	m := NewSlogManager()
	m.Setup(&bytes.Buffer{}, "info", nil)
	assert.NoError(t, m.Flush(context.Background()))
}

func TestContextHandlerInjectsAttrs(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewTextHandler(&buf, nil)
	armed := 2
	h := NewContextHandler(inner, func() []slog.Attr {
		return []slog.Attr{slog.Int("armedFaults", armed)}
	})

	slog.New(h).Info("checking state")

	assert.Contains(t, buf.String(), "armedFaults=2")
}
