package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"volley-club/internal/config"
	"volley-club/internal/game"

	"github.com/go-chi/chi/v5"
)

// Server is the HTTP API server with the spectator WebSocket feed.
type Server struct {
	engine      *game.Engine
	cfg         config.ServerConfig
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
}

// NewServer creates the API server for engine.
//
// IMPORTANT: The spectator hub does NOT start until Start() is called.
// For testing HTTP endpoints without WebSocket support, use NewRouter() directly.
func NewServer(engine *game.Engine, cfg config.ServerConfig) *Server {
	s := &Server{
		engine: engine,
		cfg:    cfg,
		wsHub:  NewWebSocketHub(NewOriginChecker(cfg.AllowedOrigins), cfg.MaxSpectators),
	}

	s.rateLimiter = NewIPRateLimiter(RateLimitConfigFor(cfg))

	s.router = NewRouter(RouterConfig{
		Engine:         engine,
		RateLimiter:    s.rateLimiter,
		CORSOrigins:    cfg.AllowedOrigins,
		DisableLogging: !cfg.RequestLogging,
	})

	// The spectator feed needs the hub instance, so it is not part of NewRouter
	s.router.Get("/ws", s.wsHub.HandleWebSocket)

	return s
}

// Hub returns the spectator hub so the engine's event hook can feed it
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Start begins the HTTP server AND starts the spectator broadcast. It
// blocks until the listener fails or Shutdown is called.
func (s *Server) Start(addr string) error {
	go s.wsHub.Run()
	s.wsHub.StartBroadcastLoop(s.engine, s.cfg.BroadcastHz)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("🌐 API server starting on %s", addr)
	log.Printf("👀 Spectator feed: ws://localhost%s/ws", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Router returns the HTTP handler for use with httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

// Shutdown stops accepting requests, closes spectators and stops workers.
func (s *Server) Shutdown(ctx context.Context) {
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Printf("⚠️ API shutdown: %v", err)
		}
	}
	s.wsHub.Stop()
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
}
