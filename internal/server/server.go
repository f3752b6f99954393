package server

import (
	"errors"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/perillaroc/nwpc-system-time-line-tool/internal/aggregator"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/filter"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/hub"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/situation"
	"github.com/perillaroc/nwpc-system-time-line-tool/internal/sink"
)

// Server holds the Gin engine and dependencies for the dashboard API.
type Server struct {
	engine     *gin.Engine
	hub        *hub.Hub
	aggregator *aggregator.Aggregator
	source     sink.Source
	calculator *situation.Calculator
	gatherer   prometheus.Gatherer
	log        *zap.Logger
	port       string
}

// Config collects the server dependencies.
type Config struct {
	Hub        *hub.Hub
	Aggregator *aggregator.Aggregator
	Source     sink.Source
	Calculator *situation.Calculator
	Gatherer   prometheus.Gatherer // defaults to prometheus.DefaultGatherer
	Log        *zap.Logger
	Port       string
}

// New creates the dashboard server.
func New(cfg Config) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	// Disable automatic redirects that cause 301 issues.
	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false

	s := &Server{
		engine:     engine,
		hub:        cfg.Hub,
		aggregator: cfg.Aggregator,
		source:     cfg.Source,
		calculator: cfg.Calculator,
		gatherer:   cfg.Gatherer,
		log:        cfg.Log,
		port:       cfg.Port,
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.calculator == nil {
		s.calculator = situation.NewCalculator(nil)
	}

	s.setupRoutes()
	return s
}

// Handler exposes the engine, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		stats := s.aggregator.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"status":        "ok",
			"uptime":        stats.Uptime,
			"files_watched": stats.FilesWatched,
			"eps":           stats.EPS,
			"dropped_lines": stats.DroppedLines,
		})
	})

	s.engine.GET("/api/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.aggregator.Snapshot())
	})

	s.engine.GET("/api/situations", s.handleSituations)

	s.engine.GET("/ws", s.handleWebSocket)

	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	// pprof profiling endpoints.
	s.engine.GET("/debug/pprof/", gin.WrapF(pprof.Index))
	s.engine.GET("/debug/pprof/cmdline", gin.WrapF(pprof.Cmdline))
	s.engine.GET("/debug/pprof/profile", gin.WrapF(pprof.Profile))
	s.engine.GET("/debug/pprof/symbol", gin.WrapF(pprof.Symbol))
	s.engine.GET("/debug/pprof/trace", gin.WrapF(pprof.Trace))
	s.engine.GET("/debug/pprof/allocs", gin.WrapH(pprof.Handler("allocs")))
	s.engine.GET("/debug/pprof/heap", gin.WrapH(pprof.Handler("heap")))
	s.engine.GET("/debug/pprof/goroutine", gin.WrapH(pprof.Handler("goroutine")))
}

// handleSituations computes the daily situations of one node over
// [begin, end) from the records held by the source.
//
//	GET /api/situations?node=/suite/task&begin=2018-10-10&end=2018-10-14[&records=true]
func (s *Server) handleSituations(c *gin.Context) {
	node := c.Query("node")
	if node == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "node is required"})
		return
	}
	begin, err := time.Parse(time.DateOnly, c.Query("begin"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "begin must be YYYY-MM-DD"})
		return
	}
	end, err := time.Parse(time.DateOnly, c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must be YYYY-MM-DD"})
		return
	}
	if s.source == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no record source configured"})
		return
	}

	ctx := c.Request.Context()
	records, err := s.source.Records(ctx, filter.CollectionWindow(begin, end))
	if err != nil {
		s.log.Error("load records", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	situations, err := s.calculator.GetSituations(ctx, records, node, begin, end)
	switch {
	case errors.Is(err, situation.ErrInvalidRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if c.Query("records") != "true" {
		for i := range situations {
			situations[i].Records = nil
		}
	}
	c.JSON(http.StatusOK, gin.H{"node": node, "situations": situations})
}

// Start runs the server. Blocks until the server is stopped.
func (s *Server) Start() error {
	return s.engine.Run(":" + s.port)
}
