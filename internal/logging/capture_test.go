// internal/logging/capture_test.go
package logging

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCaptureHandler_MatchesPatterns(t *testing.T) {
	h := NewCaptureHandler("style failed", "duplicate")
	logger := slog.New(h)

	logger.Warn("style failed to load")
	logger.Error("duplicate layer id rejected")
	logger.Warn("unrelated warning")
	logger.Info("style failed to load") // below Warn, ignored

	recs := h.Records()
	assert.Len(t, recs, 2)
	assert.Equal(t, "style failed to load", recs[0].Message)
	assert.Equal(t, slog.LevelError, recs[1].Level)
}

func TestCaptureHandler_NoPatternsCapturesAllWarnings(t *testing.T) {
	h := NewCaptureHandler()
	logger := slog.New(h)

	logger.Warn("anything")
	logger.Error("everything")

	assert.Len(t, h.Records(), 2)
}

func TestCaptureHandler_Reset(t *testing.T) {
	h := NewCaptureHandler()
	slog.New(h).Warn("leftover")
	h.Reset()
	assert.Empty(t, h.Records())
}

func TestCaptureHandler_RecordsIsSnapshot(t *testing.T) {
	h := NewCaptureHandler()
	logger := slog.New(h)

	logger.Warn("one")
	snap := h.Records()
	logger.Warn("two")

	assert.Len(t, snap, 1)
	assert.Len(t, h.Records(), 2)
}
