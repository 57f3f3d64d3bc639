// Package health exposes the fleet's per-symbol sync state over HTTP,
// using the same gin router/HTTP server setup as the rest of the fleet.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MNS-Vic/marketprism-sub006/exchanges/booksync"
	"github.com/MNS-Vic/marketprism-sub006/internal/log"
)

// StatsSource is the capability the health server depends on - satisfied
// by *manager.Manager, narrowed so handlers can be tested without a real
// fleet.
type StatsSource interface {
	StatsAll() []booksync.StatsView
	Stats(exchange, symbol string) (booksync.StatsView, bool)
}

// symbolStatus is the wire shape of one symbol's entry in the status
// response.
type symbolStatus struct {
	Exchange       string `json:"exchange"`
	Symbol         string `json:"symbol"`
	Phase          string `json:"phase"`
	LastUpdateID   int64  `json:"last_update_id"`
	UpdatesApplied uint64 `json:"updates_applied"`
	GapsDetected   uint64 `json:"gaps_detected"`
	Resyncs        uint64 `json:"resyncs"`
	BufferSize     int    `json:"buffer_size"`
	LastEventTime  string `json:"last_event_time,omitempty"`
}

func toStatus(v booksync.StatsView) symbolStatus {
	s := symbolStatus{
		Exchange:       v.Exchange,
		Symbol:         v.Symbol,
		Phase:          v.Phase.String(),
		LastUpdateID:   v.LastUpdateID,
		UpdatesApplied: v.Stats.UpdatesApplied,
		GapsDetected:   v.Stats.GapsDetected,
		Resyncs:        v.Stats.Resyncs,
		BufferSize:     v.BufferSize,
	}
	if !v.LastEventTime.IsZero() {
		s.LastEventTime = v.LastEventTime.UTC().Format(time.RFC3339Nano)
	}
	return s
}

// Server is the health/status HTTP server.
type Server struct {
	router *gin.Engine
	http   *http.Server
	source StatsSource
}

// New constructs a Server bound to addr, backed by source for fleet
// state.
func New(addr string, source StatsSource) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{router: router, source: source}
	router.GET("/healthz", s.handleLiveness)
	router.GET("/status", s.handleStatusAll)
	router.GET("/status/:exchange/:symbol", s.handleStatusOne)

	s.http = &http.Server{Addr: addr, Handler: router}
	return s
}

func (s *Server) handleLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatusAll(c *gin.Context) {
	views := s.source.StatsAll()
	out := make([]symbolStatus, len(views))
	for i, v := range views {
		out[i] = toStatus(v)
	}
	c.JSON(http.StatusOK, gin.H{"symbols": out})
}

func (s *Server) handleStatusOne(c *gin.Context) {
	exchange := c.Param("exchange")
	sym := c.Param("symbol")
	v, ok := s.source.Stats(exchange, sym)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "symbol not tracked"})
		return
	}
	c.JSON(http.StatusOK, toStatus(v))
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf(log.HealthMgr, "health server stopped: %v", err)
		}
	}()
}

// Shutdown gracefully stops the server, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
