// internal/logging/capture.go
package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// CapturedRecord is one log record held by a CaptureHandler.
type CapturedRecord struct {
	Level   slog.Level
	Message string
}

// CaptureHandler records Warn-and-above log records whose message
// matches one of the watched patterns. Tests and the harness promote
// captured records to hard failures, so a silently logged engine error
// can never pass a run.
type CaptureHandler struct {
	mu       sync.Mutex
	patterns []string
	records  []CapturedRecord
}

// NewCaptureHandler watches for the given substrings. With no patterns
// it captures every Warn-and-above record.
func NewCaptureHandler(patterns ...string) *CaptureHandler {
	return &CaptureHandler{patterns: patterns}
}

// Enabled captures only Warn and above.
func (h *CaptureHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelWarn
}

// Handle records the message if it matches a watched pattern.
func (h *CaptureHandler) Handle(_ context.Context, r slog.Record) error {
	if !h.matches(r.Message) {
		return nil
	}
	h.mu.Lock()
	h.records = append(h.records, CapturedRecord{Level: r.Level, Message: r.Message})
	h.mu.Unlock()
	return nil
}

// WithAttrs returns the handler unchanged; capture keys off messages.
func (h *CaptureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

// WithGroup returns the handler unchanged.
func (h *CaptureHandler) WithGroup(string) slog.Handler { return h }

// Records returns a snapshot of everything captured so far.
func (h *CaptureHandler) Records() []CapturedRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]CapturedRecord, len(h.records))
	copy(out, h.records)
	return out
}

// Reset clears captured records, usually between test cases.
func (h *CaptureHandler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = nil
}

func (h *CaptureHandler) matches(msg string) bool {
	if len(h.patterns) == 0 {
		return true
	}
	for _, p := range h.patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
