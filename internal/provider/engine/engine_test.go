// internal/provider/engine/engine_test.go
package engine

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazmap/simkit/internal/provider"
	"github.com/hazmap/simkit/pkg/core"
	"github.com/hazmap/simkit/pkg/streaming"
)

// bridgeServer upgrades to WebSocket, records received envelopes, acks
// create_map and answers it with a style.load map event.
func bridgeServer(t *testing.T) (*httptest.Server, *messageLog) {
	t.Helper()
	ml := &messageLog{}

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}

			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			ml.add(env)

			if env.Type == streaming.TypeCreateMap {
				ack := streaming.AckMessage{Type: "ack", For: env.Type}
				data, _ := json.Marshal(ack)
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}

				evPayload, _ := json.Marshal(streaming.MapEventPayload{
					Event: core.MapEvent{Name: core.EventStyleLoad},
				})
				evt, _ := json.Marshal(streaming.Envelope{Type: streaming.TypeMapEvent, Payload: evPayload})
				if err := c.WriteMessage(ws.TextMessage, evt); err != nil {
					return
				}
			}
		}
	}))

	return srv, ml
}

type messageLog struct {
	mu       sync.Mutex
	messages []streaming.Envelope
}

func (m *messageLog) add(env streaming.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, env)
}

func (m *messageLog) all() []streaming.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]streaming.Envelope, len(m.messages))
	copy(cp, m.messages)
	return cp
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestCreateSendsCreateMapAndBecomesReady(t *testing.T) {
	srv, ml := bridgeServer(t)
	defer srv.Close()

	p := New(Config{URL: wsURL(srv), Secret: "test"})
	h, err := p.Create("map-root", core.MapOptions{Style: "hazmap://styles/base"})
	require.NoError(t, err)
	defer p.Close()

	loaded := make(chan struct{})
	var once sync.Once
	h.On(core.EventStyleLoad, func(core.MapEvent) { once.Do(func() { close(loaded) }) })

	select {
	case <-loaded:
	case <-time.After(2 * time.Second):
		// The bridge pushed style.load right after the ack; it may have
		// arrived before On registered, in which case StyleLoaded already
		// flipped.
		require.True(t, h.StyleLoaded(), "expected style.load from the bridge")
	}

	msgs := ml.all()
	require.NotEmpty(t, msgs)
	assert.Equal(t, streaming.TypeCreateMap, msgs[0].Type)

	var payload streaming.CreateMapPayload
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &payload))
	assert.Equal(t, "map-root", payload.Container)
	assert.Equal(t, "hazmap://styles/base", payload.Options.Style)
}

func TestMutationsStreamToBridge(t *testing.T) {
	srv, ml := bridgeServer(t)
	defer srv.Close()

	p := New(Config{URL: wsURL(srv), Secret: "s"})
	h, err := p.Create("map-root", core.MapOptions{})
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, h.AddSource("sensors", core.SourceDefinition{Type: "geojson"}))
	require.NoError(t, h.AddLayer(core.LayerDefinition{ID: "dots", Type: "circle", Source: "sensors"}))
	require.NoError(t, h.RemoveLayer("dots"))
	require.NoError(t, h.RemoveSource("sensors"))

	// Give the fire-and-forget messages a moment to arrive.
	time.Sleep(50 * time.Millisecond)

	types := make(map[string]int)
	for _, m := range ml.all() {
		types[m.Type]++
	}
	assert.Equal(t, 1, types[streaming.TypeCreateMap])
	assert.Equal(t, 1, types[streaming.TypeAddSource])
	assert.Equal(t, 1, types[streaming.TypeAddLayer])
	assert.Equal(t, 1, types[streaming.TypeRemoveLayer])
	assert.Equal(t, 1, types[streaming.TypeRemoveSource])
}

func TestLocalMirrorEnforcesContract(t *testing.T) {
	srv, _ := bridgeServer(t)
	defer srv.Close()

	p := New(Config{URL: wsURL(srv), Secret: "s"})
	h, err := p.Create("map-root", core.MapOptions{})
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, h.AddSource("sensors", core.SourceDefinition{Type: "geojson"}))

	var dup *provider.DuplicateSourceError
	require.True(t, errors.As(h.AddSource("sensors", core.SourceDefinition{Type: "geojson"}), &dup))

	var missing *provider.MissingSourceError
	require.True(t, errors.As(h.AddLayer(core.LayerDefinition{ID: "l", Type: "fill", Source: "nope"}), &missing))

	var notFound *provider.NotFoundError
	require.True(t, errors.As(h.RemoveLayer("ghost"), &notFound))

	require.NoError(t, h.AddLayer(core.LayerDefinition{ID: "l", Type: "fill", Source: "sensors"}))
	got, ok := h.GetLayer("l")
	require.True(t, ok)
	assert.Equal(t, "fill", got.Type)
	assert.Len(t, h.GetStyle().Layers, 1)
}

func TestGetStyleReturnsDeepCopy(t *testing.T) {
	srv, _ := bridgeServer(t)
	defer srv.Close()

	p := New(Config{URL: wsURL(srv), Secret: "s"})
	h, err := p.Create("map-root", core.MapOptions{})
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, h.AddSource("zones", core.SourceDefinition{Type: "geojson", Data: json.RawMessage(`{}`)}))
	require.NoError(t, h.AddLayer(core.LayerDefinition{
		ID:     "zones-fill",
		Type:   "fill",
		Source: "zones",
		Paint:  map[string]any{"fill-opacity": 0.5},
	}))

	snap := h.GetStyle()
	snap.Layers[0].Paint["fill-opacity"] = 99
	snap.Layers[0].ID = "mutated"
	src := snap.Sources["zones"]
	src.Data[0] = 'X'

	fresh := h.GetStyle()
	assert.Equal(t, 0.5, fresh.Layers[0].Paint["fill-opacity"])
	assert.Equal(t, "zones-fill", fresh.Layers[0].ID)
	assert.Equal(t, json.RawMessage(`{}`), fresh.Sources["zones"].Data)

	got, ok := h.GetLayer("zones-fill")
	require.True(t, ok)
	got.Paint["fill-opacity"] = 1
	fresh2, _ := h.GetLayer("zones-fill")
	assert.Equal(t, 0.5, fresh2.Paint["fill-opacity"])
}

func TestCreateFailsWhenBridgeUnreachable(t *testing.T) {
	p := New(Config{URL: "ws://127.0.0.1:1", Secret: "s"})
	_, err := p.Create("map-root", core.MapOptions{})

	var engineErr *provider.EngineError
	require.True(t, errors.As(err, &engineErr))
	assert.Equal(t, "create", engineErr.Op)
}
