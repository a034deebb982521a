// internal/fault/catalog.go
package fault

import (
	"fmt"
	"time"
)

// Category groups related failure domains. At most one fault may be active
// per category at any time.
type Category string

const (
	CategoryExternalAPI Category = "external-api"
	CategoryMapEngine   Category = "map-engine"
	CategoryData        Category = "data"
	CategoryUI          Category = "ui"
	CategoryEnvironment Category = "environment"
	CategoryPerformance Category = "performance"
	CategoryIntegration Category = "integration"
)

// Categories lists all known fault categories in a stable order.
var Categories = []Category{
	CategoryExternalAPI,
	CategoryMapEngine,
	CategoryData,
	CategoryUI,
	CategoryEnvironment,
	CategoryPerformance,
	CategoryIntegration,
}

// Descriptor is one reproducible failure condition. Each variant carries
// the minimum fields needed to reproduce the real failure.
type Descriptor interface {
	Category() Category
	Kind() string
}

// Engine failure kinds consulted by the map providers.
const (
	EngineStyleLoadFailure  = "style-load-failure"
	EngineCreateFailure     = "create-failure"
	EngineDuplicateLayerID  = "duplicate-layer-id"
	EngineDuplicateSourceID = "duplicate-source-id"
)

// Data failure modes consulted by the fixture store.
const (
	DataMalformedPayload = "malformed-payload"
	DataChecksumMismatch = "checksum-mismatch"
)

// HTTPFault simulates an external API responding with the given status.
type HTTPFault struct {
	Status int `json:"status"`
}

func (f HTTPFault) Category() Category { return CategoryExternalAPI }
func (f HTTPFault) Kind() string       { return fmt.Sprintf("http-%d", f.Status) }

// EngineFault simulates a map-engine failure of the named kind.
type EngineFault struct {
	FailureKind string `json:"kind"`
}

func (f EngineFault) Category() Category { return CategoryMapEngine }
func (f EngineFault) Kind() string       { return f.FailureKind }

// DataFault simulates malformed or inconsistent data.
type DataFault struct {
	Mode string `json:"mode"`
}

func (f DataFault) Category() Category { return CategoryData }
func (f DataFault) Kind() string       { return f.Mode }

// UIFault simulates a failure at a UI boundary surface.
type UIFault struct {
	Surface string `json:"surface"`
}

func (f UIFault) Category() Category { return CategoryUI }
func (f UIFault) Kind() string       { return "ui-" + f.Surface }

// EnvironmentFault simulates a missing or invalid environment setting.
type EnvironmentFault struct {
	Variable string `json:"variable"`
}

func (f EnvironmentFault) Category() Category { return CategoryEnvironment }
func (f EnvironmentFault) Kind() string       { return "env-" + f.Variable }

// PerformanceFault injects artificial latency into an operation.
type PerformanceFault struct {
	Delay time.Duration `json:"delay"`
}

func (f PerformanceFault) Category() Category { return CategoryPerformance }
func (f PerformanceFault) Kind() string       { return "delay" }

// IntegrationFault simulates a cross-service integration failure.
type IntegrationFault struct {
	Service string `json:"service"`
	Mode    string `json:"mode"`
}

func (f IntegrationFault) Category() Category { return CategoryIntegration }
func (f IntegrationFault) Kind() string       { return f.Service + "-" + f.Mode }

// CatalogEntry documents one known fault for harness listings.
type CatalogEntry struct {
	Category    Category `json:"category"`
	Kind        string   `json:"kind"`
	Description string   `json:"description"`
}

// Catalog is the static table of faults tests can arm. Arming descriptors
// outside this table is allowed; the catalog exists for discovery.
var Catalog = []CatalogEntry{
	{CategoryExternalAPI, "http-500", "feed API returns 500 Internal Server Error"},
	{CategoryExternalAPI, "http-503", "feed API returns 503 Service Unavailable"},
	{CategoryExternalAPI, "http-429", "feed API returns 429 Too Many Requests"},
	{CategoryMapEngine, EngineStyleLoadFailure, "style load fires an error event instead of style.load"},
	{CategoryMapEngine, EngineCreateFailure, "map creation fails with an engine error"},
	{CategoryMapEngine, EngineDuplicateLayerID, "next layer addition fails as a duplicate id"},
	{CategoryMapEngine, EngineDuplicateSourceID, "next source addition fails as a duplicate id"},
	{CategoryData, DataMalformedPayload, "fixture payload fails to decode"},
	{CategoryData, DataChecksumMismatch, "fixture checksum does not match stored payload"},
	{CategoryUI, "ui-panel", "dashboard panel boundary reports a render failure"},
	{CategoryEnvironment, "env-missing", "required environment setting is absent"},
	{CategoryPerformance, "delay", "operation completes only after an injected delay"},
	{CategoryIntegration, "feed-timeout", "upstream feed integration times out"},
}

// CatalogFor returns the catalog entries for one category.
func CatalogFor(cat Category) []CatalogEntry {
	entries := make([]CatalogEntry, 0, 4)
	for _, e := range Catalog {
		if e.Category == cat {
			entries = append(entries, e)
		}
	}
	return entries
}
