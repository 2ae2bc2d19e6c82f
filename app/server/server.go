package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"assistant/app/api"
	"assistant/app/middleware"
	"assistant/config"
	"assistant/loader/service"

	"github.com/gofiber/fiber/v2"
	requestlog "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	listenAddr string
	cfg        config.Config
	logger     *slog.Logger
	components *Components
	app        *fiber.App
	watcher    *service.Service

	// ctx scopes background work started by Run; Stop cancels it.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewServer(ctx context.Context, cfg config.Config) (*Server, error) {
	logger := slog.Default()

	components, err := Build(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		listenAddr: cfg.Server.Addr,
		cfg:        cfg,
		logger:     logger,
		components: components,
	}
	s.app = s.routes()
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if cfg.Loader.WatchDir != "" {
		s.watcher, err = service.New(service.Config{
			WatchDir:   cfg.Loader.WatchDir,
			ArchiveDir: cfg.Loader.ArchiveDir,
			BadDir:     cfg.Loader.BadDir,
			SettleTime: cfg.Loader.SettleTime,
			Workers:    cfg.Loader.Workers,
			Logger:     logger,
		}, components.Registry, components.Indexer)
		if err != nil {
			s.cancel()
			components.Close()
			return nil, err
		}
	}
	return s, nil
}

// App exposes the router, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) routes() *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: api.ErrorHandler,
		// multipart framing on top of the largest allowed file
		BodyLimit: s.cfg.Server.UploadMaxBytes + 1<<20,
	})
	app.Use(recover.New())
	app.Use(requestlog.New())

	var (
		c               = s.components
		checkHandler    = api.NewCheckHandler(c.Embedder, c.Store)
		chatHandler     = api.NewChatHandler(c.Orchestrator)
		fileHandler     = api.NewFileHandler(c.Indexer, c.Registry, c.URLs, int64(s.cfg.Server.UploadMaxBytes))
		settingsHandler = api.NewSettingsHandler(c.Personas)
		limit           = middleware.RateLimit(s.cfg.Server.RateLimitMax, s.cfg.Server.RateLimitWindow)
		apiv1           = app.Group("/api/v1")
		admin           = apiv1.Group("/admin")
	)

	app.Get("/health", checkHandler.HandleHealthy)

	apiv1.Post("/chat", limit, chatHandler.HandleChat)
	apiv1.Post("/upload", limit, fileHandler.HandleUpload)
	apiv1.Post("/upload_url", limit, fileHandler.HandleUploadURL)
	apiv1.Delete("/delete_context/:filename", fileHandler.HandleDelete)
	apiv1.Get("/documents/count", checkHandler.HandleCount)

	admin.Post("/preview_context", limit, chatHandler.HandlePreview)
	admin.Get("/settings", settingsHandler.HandleGetSettings)
	admin.Put("/settings", settingsHandler.HandleSetSettings)

	if middleware.StaticAvailable(s.cfg.Server.StaticDir) {
		app.Use(middleware.PlugStatic("/"))
		app.Static("/", s.cfg.Server.StaticDir)
	} else {
		s.logger.Info("static directory not found, frontend disabled", "dir", s.cfg.Server.StaticDir)
	}

	return app
}

// Run starts the watcher, if configured, and serves HTTP until Stop. It
// returns the listener error when the server cannot start; the caller still
// has to Stop to release the watcher and the stores.
func (s *Server) Run() error {
	if s.watcher != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.watcher.Run(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("ingest watcher stopped", "error", err)
			}
		}()
	}

	s.logger.Info("server starting", "addr", s.listenAddr)
	if err := s.app.Listen(s.listenAddr); err != nil {
		return fmt.Errorf("listen on %s: %w", s.listenAddr, err)
	}
	return nil
}

func (s *Server) Stop() {
	if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		s.logger.Error("http shutdown", "error", err)
	}
	s.cancel()
	s.wg.Wait()

	if err := s.components.Close(); err != nil {
		s.logger.Error("closing resources", "error", err)
	}
	s.logger.Info("server stopped")
}
