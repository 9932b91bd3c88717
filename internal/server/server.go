package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/vaultkeep/vaultkeep/internal/config"
	"github.com/vaultkeep/vaultkeep/internal/routes"
)

// Server wraps the Fiber application and shared dependencies.
type Server struct {
	app *fiber.App
	cfg config.Config
}

// Options carries the optional backing services; nil fields fall back to
// in-process implementations.
type Options struct {
	DB        *pgxpool.Pool
	Cache     *redis.Client
	NATS      *nats.Conn
	JetStream jetstream.JetStream
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(cfg config.Config, opts Options, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	deps := routes.Deps{
		Cfg:       cfg,
		DB:        opts.DB,
		Cache:     opts.Cache,
		NATS:      opts.NATS,
		JetStream: opts.JetStream,
		Registry:  registry,
		Logger:    logger,
	}
	if err := routes.Setup(app, deps); err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: cfg}, nil
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
