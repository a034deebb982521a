package streaming

import (
	"encoding/json"

	"github.com/hazmap/simkit/pkg/core"
)

// Message type constants for the engine-bridge and harness event protocols.
const (
	TypeCreateMap    = "create_map"
	TypeAddSource    = "add_source"
	TypeAddLayer     = "add_layer"
	TypeRemoveSource = "remove_source"
	TypeRemoveLayer  = "remove_layer"
	TypeMapEvent     = "map_event"
	TypeFaultArmed   = "fault_armed"
	TypeFaultCleared = "fault_cleared"
	TypeFaultHit     = "fault_hit"
	TypeStateReset   = "state_reset"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the bridge's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// CreateMapPayload carries initial map options.
type CreateMapPayload struct {
	Container string          `json:"container"`
	Options   core.MapOptions `json:"options"`
}

// AddSourcePayload carries a source registration.
type AddSourcePayload struct {
	ID         string                `json:"id"`
	Definition core.SourceDefinition `json:"definition"`
}

// AddLayerPayload carries a layer registration.
type AddLayerPayload struct {
	Definition core.LayerDefinition `json:"definition"`
}

// RemovePayload carries a source or layer removal by id.
type RemovePayload struct {
	ID string `json:"id"`
}

// MapEventPayload carries a provider event to stream subscribers.
type MapEventPayload struct {
	Event core.MapEvent `json:"event"`
}

// FaultPayload carries a fault category and descriptor summary.
type FaultPayload struct {
	Category string `json:"category"`
	Kind     string `json:"kind"`
	Detail   string `json:"detail,omitempty"`
}
