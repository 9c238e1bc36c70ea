package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/itakecare/leazr-docgen/config"
	"github.com/itakecare/leazr-docgen/logger"
)

// multipartOverhead is allowed on top of the upload limit for form framing.
const multipartOverhead = 1 << 20

// Server owns the fiber application.
type Server struct {
	app    *fiber.App
	cfg    config.ServerConfig
	logger *zap.Logger
}

// New builds the application and registers every route.
func New(cfg config.ServerConfig, deps Deps, log *zap.Logger) *Server {
	log = logger.OrNop(log).Named("api")
	s := &Server{
		app: fiber.New(fiber.Config{
			AppName:               cfg.AppName,
			DisableStartupMessage: true,
			BodyLimit:             int(deps.MaxUploadSize) + multipartOverhead,
		}),
		cfg:    cfg,
		logger: log,
	}

	s.app.Use(recover.New())
	s.app.Use(requestid.New())
	s.app.Use(accessLog(log))

	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})

	v1 := s.app.Group("/api/v1")
	for _, h := range []Handler{
		&DocumentHandler{generator: deps.Generator},
		&TemplateHandler{
			templates: deps.Templates,
			blobs:     deps.Blobs,
			maxUpload: deps.MaxUploadSize,
			logger:    log,
		},
	} {
		h.RegisterRoutes(v1)
	}
	return s
}

// App exposes the fiber application, mainly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves until Shutdown is called.
func (s *Server) Listen() error {
	s.logger.Info("listening", zap.String("address", s.cfg.Address()))
	return s.app.Listen(s.cfg.Address())
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func accessLog(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		fields := []zap.Field{
			zap.String("request_id", c.GetRespHeader(fiber.HeaderXRequestID)),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("latency", time.Since(start)),
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		log.Info("request", fields...)
		return err
	}
}
