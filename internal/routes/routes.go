package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/vaultkeep/vaultkeep/internal/auth"
	"github.com/vaultkeep/vaultkeep/internal/config"
	"github.com/vaultkeep/vaultkeep/internal/funding"
	"github.com/vaultkeep/vaultkeep/internal/ledger"
	"github.com/vaultkeep/vaultkeep/internal/logging"
	"github.com/vaultkeep/vaultkeep/internal/middleware"
	"github.com/vaultkeep/vaultkeep/internal/notification"
	"github.com/vaultkeep/vaultkeep/internal/observability"
	"github.com/vaultkeep/vaultkeep/internal/pda"
	"github.com/vaultkeep/vaultkeep/internal/vault"
)

// Deps aggregates shared dependencies required to wire routes. DB, Cache,
// NATS and JetStream are optional in development.
type Deps struct {
	Cfg       config.Config
	DB        *pgxpool.Pool
	Cache     *redis.Client
	NATS      *nats.Conn
	JetStream jetstream.JetStream
	Registry  *prometheus.Registry
	Logger    *slog.Logger

	// Ledger overrides the backend chosen from DB. Tests use it to seed balances.
	Ledger ledger.Ledger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDevelopment() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	if d.Registry == nil {
		d.Registry = prometheus.NewRegistry()
	}

	programID, err := programIdentity(d.Cfg)
	if err != nil {
		return err
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	// Health and metrics
	RegisterHealthRoutes(app, d)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})))

	// Services and handlers
	rent := ledger.Rent{LamportsPerByteYear: d.Cfg.RentLamportsPerByteYear, ExemptionYears: d.Cfg.RentExemptionYears}
	ledgerBackend := d.Ledger
	switch {
	case ledgerBackend != nil:
	case d.DB != nil:
		ledgerBackend = ledger.NewPostgresLedger(d.DB, rent)
	default:
		ledgerBackend = ledger.NewInMemory(rent)
	}

	var notifier notification.Notifier = notification.NewLoggerNotifier(d.Logger)
	if d.JetStream != nil {
		notifier = notification.NewNATSNotifier(d.JetStream)
	}
	metrics := observability.NewMetrics(d.Registry)

	vaultSvc := vault.NewService(ledgerBackend, vault.NewProgram(programID), notifier, metrics, d.Logger)
	fundingSvc, err := funding.NewService(ledgerBackend, funding.CapPolicy{Max: d.Cfg.AirdropMaxLamports}, notifier, metrics, d.Logger)
	if err != nil {
		return err
	}

	vaultHandler := vault.NewHandler(vaultSvc)
	accountHandler := ledger.NewHandler(ledgerBackend)
	fundingHandler := funding.NewHandler(fundingSvc)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c.UserContext()),
			"program":    programID.String(),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Idempotency runs after authentication so reservations are scoped to
	// the verified signer.
	signed := []fiber.Handler{
		middleware.SignatureAuth(auth.NewVerifier(d.Cfg.AuthMaxSkew)),
		middleware.SignerRateLimit(d.Cache, d.Cfg.RateLimitPerMinute),
	}
	if d.Cache != nil {
		signed = append(signed, middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	RegisterVaultRoutes(api, vaultHandler, accountHandler, signed...)

	// Operator routes
	if gate := auth.NewOperatorGate(d.Cfg.OperatorKeyHash); gate != nil {
		operator := []fiber.Handler{middleware.OperatorOnly(gate)}
		if d.Cache != nil {
			operator = append(operator, middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
		}
		RegisterFundingRoutes(api, fundingHandler, operator...)
	} else {
		d.Logger.Info("faucet disabled: OPERATOR_KEY_HASH not set")
	}

	d.Logger.Info("vault program ready", slog.String("program", programID.String()))
	return nil
}

func programIdentity(cfg config.Config) (pda.Address, error) {
	if cfg.ProgramID == "" {
		return pda.AddressFromName(cfg.DefaultProgramName()), nil
	}
	id, err := pda.ParseAddress(cfg.ProgramID)
	if err != nil {
		return pda.Address{}, fmt.Errorf("invalid PROGRAM_ID: %w", err)
	}
	return id, nil
}
