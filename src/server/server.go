package server

import (
	"fmt"
	"strings"
	"sync"

	"umap-replay/src/cluster"
	"umap-replay/src/interfaces"
	"umap-replay/src/logger"
	"umap-replay/src/models"
	"umap-replay/src/playback"
	"umap-replay/src/timecache"
	"umap-replay/src/timerange"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// ReplayServer
// -----------------------------------------------------------------------------

// ReplayServer is the control-and-publish surface: REST endpoints drive the
// playback core, and per-step frames go out to websocket subscribers.
type ReplayServer struct {
	Config    *models.MConfig
	Logger    *logger.Logger
	Backend   interfaces.IBackendClient
	Clusters  *cluster.Store
	Scheduler *playback.Scheduler
	Resolver  *timerange.Resolver
	Times     *timecache.TimeCache
	Store     interfaces.IFrameStore // nil when history persistence is disabled
	engine    *gin.Engine

	// WebSocket clients
	clients    map[*Client]struct{}
	broadcast  chan *models.MPlaybackFrame // Strongly typed and Buffered Queue
	register   chan *Client
	unregister chan *Client

	// Local cache
	latestFrame *models.MPlaybackFrame
	stateMutex  sync.RWMutex
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewReplayServer(
	cfg *models.MConfig,
	log *logger.Logger,
	backend interfaces.IBackendClient,
	clusters *cluster.Store,
	scheduler *playback.Scheduler,
	resolver *timerange.Resolver,
	times *timecache.TimeCache,
	store interfaces.IFrameStore,
) *ReplayServer {
	// Set Gin mode
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &ReplayServer{
		Config:    cfg,
		Logger:    log,
		Backend:   backend,
		Clusters:  clusters,
		Scheduler: scheduler,
		Resolver:  resolver,
		Times:     times,
		Store:     store,
		engine:    gin.Default(),
		clients:   make(map[*Client]struct{}),
		// Buffered channel so Publish never blocks a fetch goroutine
		broadcast:  make(chan *models.MPlaybackFrame, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}

	// Add CORS Middleware
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// setup web routes
	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *ReplayServer) setupRoutes() {
	// REST API endpoints
	s.engine.GET("/api/health", s.getHealth)
	s.engine.GET("/api/config", s.getConfig)
	s.engine.GET("/api/instruments", s.getInstruments)
	s.engine.GET("/api/instrument/:id/info", s.getInstrumentInfo)
	s.engine.POST("/api/instruments/select", s.postSelectInstruments)
	s.engine.POST("/api/clusters/generate", s.postGenerateClusters)
	s.engine.POST("/api/playback/range", s.postRange)
	s.engine.POST("/api/playback/skip", s.postSkip)
	s.engine.POST("/api/playback/play", s.postPlay)
	s.engine.POST("/api/playback/pause", s.postPause)
	s.engine.POST("/api/playback/stop", s.postStop)
	s.engine.GET("/api/history", s.getHistory)
	s.engine.GET("/api/calendar/:date", s.getCalendarDate)

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

func (s *ReplayServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)

	go s.handleWebsockets()

	return s.engine.Run(addr)
}

// -----------------------------------------------------------------------------

func (s *ReplayServer) Stop() error {
	// Clean shutdown
	close(s.broadcast)
	close(s.register)
	close(s.unregister)
	return nil
}
