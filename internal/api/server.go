package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"mediabot/backend"
)

const webhookBodyLimit = 1 << 20 // 1 MiB; Telegram updates are small

// Server is the HTTP ingress: the Telegram webhook and liveness probes.
type Server struct {
	app *fiber.App
	svc *backend.ServiceContext
}

// NewServer creates a new HTTP server bound to svc.
func NewServer(svc *backend.ServiceContext) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "mediabot",
		ServerHeader:          "mediabot",
		BodyLimit:             webhookBodyLimit,
		DisableStartupMessage: true,
	})

	server := &Server{
		app: app,
		svc: svc,
	}

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))

	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	s.app.Get("/", s.handleRoot)
	s.app.Get("/healthz", s.handleHealth)
	s.app.Post("/webhook", s.handleWebhook)
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the HTTP server
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits up to timeout for
// in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	return s.app.ShutdownWithTimeout(timeout)
}
