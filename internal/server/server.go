// Package server exposes the lifecycle hooks and the SSO form to the host
// application over HTTP.
package server

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"proctor-sync/internal/hooks"
	"proctor-sync/internal/logx"
)

// FormRenderer produces the SSO hand-off form for a user.
type FormRenderer interface {
	Form(ctx context.Context, userID int64) (string, error)
}

type Server struct {
	Hooks      *hooks.Registry
	SSO        FormRenderer
	HookSecret string
	// Metrics is served at /metrics when set.
	Metrics http.Handler
	// Health reports readiness of the backing stores.
	Health  func(ctx context.Context) error
	AppName string
	// Logger is attached to every request context when set.
	Logger *slog.Logger

	wg sync.WaitGroup
}

// App builds the fiber application.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      s.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})
	app.Use(recover.New())
	if s.Logger != nil {
		app.Use(func(c fiber.Ctx) error {
			c.SetContext(logx.WithContext(c.Context(), s.Logger))
			return c.Next()
		})
	}
	app.Use(requestLogger())

	app.Get("/healthz", s.health)
	if s.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(s.Metrics))
	}
	app.Get("/sso/form", s.ssoForm)

	h := app.Group("/hooks", s.requireSecret)
	h.Post("/content-viewed", s.contentViewed)
	h.Post("/save", s.saveTriggered)
	h.Post("/provision", s.provisionNow)
	return app
}

// Wait blocks until dispatched hook handlers have returned.
func (s *Server) Wait() { s.wg.Wait() }

// dispatch runs the handlers after the response is sent. The request context
// is gone by then, so handlers get a detached one that keeps the logger.
func (s *Server) dispatch(c fiber.Ctx, ev hooks.Event) {
	ctx := context.WithoutCancel(c.Context())
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Hooks.Dispatch(ctx, ev)
	}()
}

func (s *Server) requireSecret(c fiber.Ctx) error {
	if s.HookSecret == "" {
		return c.Next()
	}
	got := c.Get("X-Hook-Secret")
	if subtle.ConstantTimeCompare([]byte(got), []byte(s.HookSecret)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	return c.Next()
}

func (s *Server) health(c fiber.Ctx) error {
	if s.Health != nil {
		if err := s.Health(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unhealthy", "error": err.Error()})
		}
	}
	return c.JSON(fiber.Map{"status": "healthy"})
}

func (s *Server) contentViewed(c fiber.Ctx) error {
	var body struct {
		PostID   int64 `json:"postId"`
		ViewerID int64 `json:"viewerId"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if body.PostID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "postId is required"})
	}
	s.dispatch(c, hooks.ContentViewed{PostID: body.PostID, ViewerID: body.ViewerID})
	return c.SendStatus(fiber.StatusAccepted)
}

func (s *Server) saveTriggered(c fiber.Ctx) error {
	var body struct {
		Keys []string `json:"keys"`
	}
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
		}
	}
	s.dispatch(c, hooks.SaveTriggered{Keys: body.Keys})
	return c.SendStatus(fiber.StatusAccepted)
}

func (s *Server) provisionNow(c fiber.Ctx) error {
	s.dispatch(c, hooks.ScheduledTick{At: time.Now()})
	return c.SendStatus(fiber.StatusAccepted)
}

// ssoForm never reports failure to the browser: without a form the page
// simply shows nothing.
func (s *Server) ssoForm(c fiber.Ctx) error {
	c.Type("html", "utf-8")
	if s.SSO == nil {
		return c.SendString("")
	}
	id, err := strconv.ParseInt(c.Query("userId"), 10, 64)
	if err != nil || id <= 0 {
		return c.SendString("")
	}
	html, err := s.SSO.Form(c.Context(), id)
	if err != nil {
		logx.FromContext(c.Context()).Warn("sso form unavailable", "user_id", id, "error", err)
		return c.SendString("")
	}
	return c.SendString(html)
}

func requestLogger() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		logx.FromContext(c.Context()).Debug("http request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"duration", time.Since(start).String())
		return err
	}
}
