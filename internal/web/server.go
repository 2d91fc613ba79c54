package web

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hpungsan/chatbox/internal/config"
	"github.com/hpungsan/chatbox/internal/metrics"
	"github.com/hpungsan/chatbox/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Server is the ChatBox web UI.
type Server struct {
	http    *http.Server
	handler *Handlers
	logger  *zap.Logger
}

// NewServer creates and configures the HTTP server for the ChatBox web UI.
func NewServer(ctrl *session.Controller, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics, version, bind string, port int) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("web")

	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("failed to create template sub-FS: %w", err)
	}
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("failed to create static sub-FS: %w", err)
	}

	h := newHandlers(ctrl, NewRenderer(templateSub, version, logger), logger)
	engine := newEngine(h, cfg, logger, m, staticSub)

	return &Server{
		http: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", bind, port),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		handler: h,
		logger:  logger,
	}, nil
}

// newEngine builds the gin router with middleware and all routes.
func newEngine(h *Handlers, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics, static fs.FS) *gin.Engine {
	engine := gin.New()
	engine.Use(recovery(logger), requestLogger(logger, m), securityHeaders())
	if cfg != nil {
		if mw := corsMiddleware(cfg.CORSOrigins); mw != nil {
			engine.Use(mw)
		}
	}

	engine.GET("/", h.HandleWorkspace)
	engine.POST("/prompt", h.HandlePrompt)
	engine.POST("/tab/:tab", h.HandleSelectTab)
	engine.GET("/export/:kind", h.HandleExport)
	engine.GET("/schematic.png", h.HandleSchematic)
	engine.GET("/api/state", h.HandleState)
	engine.GET("/healthz", h.HandleHealth)
	engine.GET("/metrics", gin.WrapH(m.Handler()))
	engine.StaticFS("/static", http.FS(static))

	engine.NoRoute(h.HandleNotFound)
	return engine
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.http.Addr
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM
// or when ctx is cancelled. In-flight generations are waited for.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.ListenAndServe()
	}()

	s.logger.Info("ChatBox UI running", zap.String("url", "http://"+s.http.Addr))
	if strings.Contains(s.http.Addr, "0.0.0.0") || strings.Contains(s.http.Addr, "::") {
		s.logger.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		s.handler.wait()
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := s.http.Shutdown(shutdownCtx)
		s.handler.cancel()
		s.handler.wait()
		return err
	}
}

// Close stops background generations started through the UI and waits for them.
func (s *Server) Close() {
	s.handler.cancel()
	s.handler.wait()
}

// background tracks generations started by POST /prompt so shutdown can wait for them.
type background struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newBackground() *background {
	ctx, cancel := context.WithCancel(context.Background())
	return &background{ctx: ctx, cancel: cancel}
}

func (b *background) track(done <-chan struct{}) {
	if done == nil {
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		<-done
	}()
}
