// internal/logging/gelf.go
package logging

import (
	"fmt"
	"log/slog"

	"github.com/Graylog2/go-gelf/gelf"
)

// NewGELFHandler connects to a Graylog endpoint and returns a handler
// that ships each record there as a GELF message. The writer chunks
// over UDP, so a dead Graylog never blocks logging.
func NewGELFHandler(addr string, level string) (slog.Handler, error) {
	w, err := gelf.NewWriter(addr)
	if err != nil {
		return nil, fmt.Errorf("gelf writer for %s: %w", addr, err)
	}
	lvl := parseLevel(level)
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}), nil
}
