package api

import (
	"github.com/cuemby/confsync/pkg/log"
	"github.com/cuemby/confsync/pkg/metrics"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
)

// HTTPServer serves health, readiness, metrics and status over HTTP
type HTTPServer struct {
	app    *fiber.App
	status func() StatusView
	logger zerolog.Logger
}

// NewHTTPServer creates the HTTP surface. The status view comes from the
// gRPC server so both report the same document.
func NewHTTPServer(api *Server) *HTTPServer {
	hs := &HTTPServer{
		status: api.statusView,
		logger: log.WithComponent("http"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "confsync",
		DisableStartupMessage: true,
		ErrorHandler:          hs.errorHandler,
	})
	app.Use(recover.New())

	app.Get("/health", hs.healthHandler)
	app.Get("/ready", hs.readyHandler)
	app.Get("/live", hs.liveHandler)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	app.Get("/v1/status", hs.statusHandler)

	hs.app = app
	return hs
}

// Start listens on addr until Shutdown
func (hs *HTTPServer) Start(addr string) error {
	hs.logger.Info().Str("addr", addr).Msg("HTTP listening")
	return hs.app.Listen(addr)
}

// Shutdown stops the HTTP server
func (hs *HTTPServer) Shutdown() error {
	return hs.app.Shutdown()
}

// healthHandler reports every registered component; any unhealthy one
// turns the response into a 503
func (hs *HTTPServer) healthHandler(c *fiber.Ctx) error {
	health := metrics.GetHealth()
	code := fiber.StatusOK
	if health.Status != metrics.StatusHealthy {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(health)
}

// readyHandler only looks at raft, storage and api
func (hs *HTTPServer) readyHandler(c *fiber.Ctx) error {
	readiness := metrics.GetReadiness()
	code := fiber.StatusOK
	if readiness.Status != metrics.StatusReady {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(readiness)
}

func (hs *HTTPServer) liveHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "alive",
		"uptime": metrics.Uptime().String(),
	})
}

func (hs *HTTPServer) statusHandler(c *fiber.Ctx) error {
	return c.JSON(hs.status())
}

func (hs *HTTPServer) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	hs.logger.Warn().
		Int("status", code).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Err(err).
		Msg("HTTP request failed")
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
