// internal/harness/server.go

// Package harness exposes the control surface external automation uses
// to drive a simkit process: HTTP JSON endpoints for commands and state
// queries plus a WebSocket stream of map and fault events. It is wired
// only by cmd/simkit; library code never starts it.
package harness

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/hazmap/simkit/internal/dispatcher"
	"github.com/hazmap/simkit/internal/fault"
	"github.com/hazmap/simkit/internal/handlers"
	"github.com/hazmap/simkit/internal/monitor"
	"github.com/hazmap/simkit/pkg/core"
	"github.com/hazmap/simkit/pkg/streaming"
)

// Server is the harness control server.
type Server struct {
	addr    string
	disp    *dispatcher.Dispatcher
	mon     *monitor.Service
	log     zerolog.Logger
	router  *gin.Engine
	httpSrv *http.Server

	wsMu    sync.RWMutex
	clients map[*wsClient]struct{}
}

// New builds a Server routing commands through the dispatcher. mon may
// be nil; the status endpoint then reports only registered commands.
func New(addr string, disp *dispatcher.Dispatcher, mon *monitor.Service, log zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		addr:    addr,
		disp:    disp,
		mon:     mon,
		log:     log,
		clients: make(map[*wsClient]struct{}),
	}

	r := gin.New()
	r.Use(s.accessLog(), gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/status", s.handleStatus)
	r.GET("/state", s.command(handlers.CmdMapState))
	r.POST("/map", s.command(handlers.CmdCreateMap))
	r.DELETE("/map", s.command(handlers.CmdDestroyMap))

	r.GET("/faults", s.command(handlers.CmdListFaults))
	r.POST("/faults", s.command(handlers.CmdSetFault))
	r.DELETE("/faults", s.command(handlers.CmdResetFaults))
	r.DELETE("/faults/:category", s.clearFault)
	r.GET("/faults/catalog", s.command(handlers.CmdFaultCatalog))

	r.POST("/scenarios/generate", s.command(handlers.CmdGenerateScenario))
	r.POST("/scenarios/load", s.command(handlers.CmdLoadScenario))
	r.POST("/commands/:command", s.rawCommand)

	r.GET("/events", s.handleEvents)

	s.router = r
	return s
}

// Router exposes the underlying handler for tests.
func (s *Server) Router() http.Handler { return s.router }

// Start begins serving. It blocks until the listener fails or Shutdown
// is called.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info().Str("addr", s.addr).Msg("harness control server listening")
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the listener and disconnects event-stream clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.wsMu.Lock()
	for c := range s.clients {
		c.close()
		delete(s.clients, c)
	}
	s.wsMu.Unlock()

	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("harness request")
	}
}

func (s *Server) handleStatus(c *gin.Context) {
	if s.mon == nil {
		c.JSON(http.StatusOK, gin.H{"commands": s.disp.Commands()})
		return
	}
	c.JSON(http.StatusOK, s.mon.Snapshot())
}

// command adapts one fixed dispatcher command to an HTTP handler. The
// request body, if any, becomes the event payload.
func (s *Server) command(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.dispatch(c, name, nil)
	}
}

// rawCommand dispatches an arbitrary registered command by name, the
// generic escape hatch for harnesses driving commands the fixed routes
// do not cover.
func (s *Server) rawCommand(c *gin.Context) {
	name := c.Param("command")
	if !s.disp.HasHandler(name) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown command: " + name})
		return
	}
	s.dispatch(c, name, nil)
}

func (s *Server) clearFault(c *gin.Context) {
	payload, _ := json.Marshal(map[string]string{"category": c.Param("category")})
	s.dispatch(c, handlers.CmdClearFault, payload)
}

func (s *Server) dispatch(c *gin.Context, name string, payload json.RawMessage) {
	if payload == nil && c.Request.Body != nil {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		payload = body
	}

	result, err := s.disp.Dispatch(dispatcher.Event{
		Command:   name,
		Payload:   payload,
		Timestamp: time.Now(),
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if result == nil {
		result = gin.H{"ok": true}
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

// PublishMapEvent pushes a provider event to every connected stream
// client. Providers are attached via their Subscribe tap in cmd/simkit.
func (s *Server) PublishMapEvent(ev core.MapEvent) {
	payload, err := json.Marshal(streaming.MapEventPayload{Event: ev})
	if err != nil {
		s.log.Error().Err(err).Msg("encoding map event")
		return
	}
	s.broadcast(streaming.Envelope{Type: streaming.TypeMapEvent, Payload: payload})
}

// ObserveFaults attaches the server to a fault registry so arm, clear,
// hit and reset activity streams to connected clients.
func (s *Server) ObserveFaults(reg *fault.Registry) {
	reg.OnChange(func(cat fault.Category, d fault.Descriptor, armed bool) {
		if armed {
			detail, _ := json.Marshal(d)
			s.PublishFault(streaming.TypeFaultArmed, string(cat), d.Kind(), string(detail))
			return
		}
		s.PublishFault(streaming.TypeFaultCleared, string(cat), "", "")
	})
	reg.OnHit(func(cat fault.Category, kind string) {
		s.PublishFault(streaming.TypeFaultHit, string(cat), kind, "")
	})
	reg.OnReset(func() {
		s.PublishFault(streaming.TypeStateReset, "", "", "")
	})
}

// PublishFault pushes a fault armed/hit notification to stream clients.
func (s *Server) PublishFault(msgType, category, kind, detail string) {
	payload, err := json.Marshal(streaming.FaultPayload{
		Category: category,
		Kind:     kind,
		Detail:   detail,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("encoding fault event")
		return
	}
	s.broadcast(streaming.Envelope{Type: msgType, Payload: payload})
}

func (s *Server) broadcast(env streaming.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		s.log.Error().Err(err).Msg("encoding event envelope")
		return
	}

	s.wsMu.RLock()
	defer s.wsMu.RUnlock()
	for c := range s.clients {
		c.send(data)
	}
}
