// Package api exposes the reconciliation engine over HTTP.
package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/mindthegap/mindthegap/internal/reconcile"
	"github.com/mindthegap/mindthegap/internal/service"
)

// Server wires the reconciliation handlers into a Fiber app. Authentication
// and session handling live in front of this service; user identity arrives
// as a path parameter.
type Server struct {
	app        *fiber.App
	storage    service.Storage
	maintainer *reconcile.Maintainer
}

// NewServer builds the HTTP server around a storage and maintainer pair.
func NewServer(storage service.Storage, maintainer *reconcile.Maintainer) *Server {
	s := &Server{
		app: fiber.New(fiber.Config{
			AppName:               "mindthegap",
			DisableStartupMessage: true,
		}),
		storage:    storage,
		maintainer: maintainer,
	}

	s.app.Use(recover.New())

	v1 := s.app.Group("/api/v1")
	v1.Get("/users/:userID/periods/:label/estimate/preview", s.previewEstimate)
	v1.Post("/users/:userID/periods/:label/estimate/apply", s.applyEstimate)
	v1.Get("/users/:userID/summaries", s.listSummaries)

	return s
}

// Listen serves until the listener fails or the app is shut down.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the underlying Fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
