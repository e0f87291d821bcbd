package httpserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/voicepartnerai/platform/internal/app"
	"github.com/voicepartnerai/platform/internal/config"
	publicroutes "github.com/voicepartnerai/platform/internal/httpserver/public"
	userroutes "github.com/voicepartnerai/platform/internal/httpserver/user"
)

// Server wraps the Fiber app and configuration.
type Server struct {
	app       *fiber.App
	cfg       *config.Config
	container *app.Container
}

// New constructs a server with baseline middleware and all route groups
// registered: health probes, metrics, the user (JWT) surface, and the public
// (API key) surface.
func New(container *app.Container) (*Server, error) {
	if container == nil {
		return nil, errors.New("dependency container is required")
	}
	cfg := container.Config
	if cfg == nil {
		return nil, errors.New("container missing config")
	}

	fiberApp := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ServerHeader:          "voicepartner-platform",
		BodyLimit:             cfg.Server.BodyLimitMB * 1024 * 1024,
		ReadTimeout:           cfg.Server.ReadHeaderTimeout,
		ReadBufferSize:        4 * 1024,
		WriteBufferSize:       4 * 1024,
	})

	fiberApp.Use(requestid.New())
	fiberApp.Use(logger.New())
	fiberApp.Use(recover.New())

	if obs := container.Observability; obs != nil {
		fiberApp.Use(metricsMiddleware(container))
		if obs.TracerProvider() != nil {
			fiberApp.Use(tracingMiddleware())
		}
		if handler := obs.PrometheusHandler(); handler != nil {
			fiberApp.Get("/metrics", adaptor.HTTPHandler(handler))
		}
	}

	fiberApp.Get("/healthz", healthHandler(container))
	userroutes.Register(fiberApp, container)
	publicroutes.Register(fiberApp, container)

	return &Server{app: fiberApp, cfg: cfg, container: container}, nil
}

// Listen blocks until context cancellation or a fatal listen error occurs.
func (s *Server) Listen(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listen(s.cfg.Server.ListenAddr)
	}()

	select {
	case <-ctx.Done():
		timeout := s.cfg.Server.GracefulShutdownDelay
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err := s.app.ShutdownWithContext(shutdownCtx)
		if err == nil {
			err = <-errCh
		}
		return err
	case err := <-errCh:
		return err
	}
}

func metricsMiddleware(container *app.Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		container.Observability.RecordHTTPRequest(
			c.UserContext(), c.Method(), matchedRoute(c),
			c.Response().StatusCode(), time.Since(start),
		)
		return err
	}
}

func tracingMiddleware() fiber.Handler {
	tracer := otel.Tracer("voicepartner-platform/http")
	return func(c *fiber.Ctx) error {
		spanCtx, span := tracer.Start(c.UserContext(), c.Method()+" "+c.Path())
		defer span.End()
		c.SetUserContext(spanCtx)

		err := c.Next()

		status := c.Response().StatusCode()
		span.SetAttributes(
			attribute.String("http.method", c.Method()),
			attribute.String("http.route", matchedRoute(c)),
			attribute.Int("http.status_code", status),
		)
		switch {
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case status >= 500:
			span.SetStatus(codes.Error, fmt.Sprintf("status %d", status))
		default:
			span.SetStatus(codes.Ok, "OK")
		}
		return err
	}
}

func matchedRoute(c *fiber.Ctx) string {
	if r := c.Route(); r != nil && r.Path != "" {
		return r.Path
	}
	return c.Path()
}

// healthHandler probes postgres and redis with a bounded timeout. The
// endpoint always answers 200; "degraded" in the body is what monitors key on.
func healthHandler(container *app.Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()

		checks := make(map[string]fiber.Map)
		overall := "ok"
		record := func(name string, probe func(context.Context) error) {
			start := time.Now()
			err := probe(ctx)
			check := fiber.Map{
				"status":     "ok",
				"latency_ms": time.Since(start).Milliseconds(),
			}
			if err != nil {
				check["status"] = "error"
				check["error"] = err.Error()
				overall = "degraded"
			}
			checks[name] = check
		}

		if container.DBPool != nil {
			record("postgres", container.DBPool.Ping)
		}
		if container.Redis != nil {
			record("redis", func(ctx context.Context) error {
				return container.Redis.Ping(ctx).Err()
			})
		}

		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": overall,
			"checks": checks,
		})
	}
}
