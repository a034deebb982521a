// internal/provider/errors.go
package provider

import "fmt"

// DuplicateSourceError is returned when a source id is already registered.
type DuplicateSourceError struct {
	ID string
}

func (e *DuplicateSourceError) Error() string {
	return fmt.Sprintf("source %q already exists", e.ID)
}

// DuplicateLayerError is returned when a layer id is already registered.
type DuplicateLayerError struct {
	ID string
}

func (e *DuplicateLayerError) Error() string {
	return fmt.Sprintf("layer %q already exists", e.ID)
}

// MissingSourceError is returned when a layer references a source id that
// is not present on the handle.
type MissingSourceError struct {
	LayerID  string
	SourceID string
}

func (e *MissingSourceError) Error() string {
	return fmt.Sprintf("layer %q references missing source %q", e.LayerID, e.SourceID)
}

// NotFoundError is returned by removal operations when the target id is
// absent. Kind is "layer" or "source".
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// EngineError represents an engine-level failure (create failure, style
// load failure) as surfaced by the real engine or an injected fault.
type EngineError struct {
	Op     string
	Reason string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine %s failed: %s", e.Op, e.Reason)
}
