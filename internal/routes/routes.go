package routes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/IBM/sarama"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/payhasly/account_service/internal/account"
	"github.com/payhasly/account_service/internal/auth"
	"github.com/payhasly/account_service/internal/config"
	"github.com/payhasly/account_service/internal/events"
	"github.com/payhasly/account_service/internal/middleware"
	"github.com/payhasly/account_service/internal/telemetry"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Producer sarama.SyncProducer
	Logger   *slog.Logger
	Metrics  *telemetry.Metrics
	// Gatherer backs /metrics; prometheus.DefaultGatherer when nil.
	Gatherer prometheus.Gatherer
	// Publisher overrides the backend selected by Cfg.EventBackend.
	Publisher events.Publisher
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	publisher, err := newPublisher(d)
	if err != nil {
		return err
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	// Services and handlers
	var accountRepo account.Repository
	if d.DB != nil {
		accountRepo = account.NewPostgresRepository(d.DB, d.Metrics)
	} else {
		d.Logger.Warn("DATABASE_URL not set, accounts are kept in memory")
		accountRepo = account.NewMemoryRepository()
	}

	var refreshStore auth.RefreshStore
	if d.Cache != nil {
		refreshStore = auth.NewRedisRefreshStore(d.Cache)
	} else {
		d.Logger.Warn("REDIS_URL not set, refresh tokens are kept in memory")
		refreshStore = auth.NewMemoryRefreshStore()
	}

	issuer := auth.NewIssuer(auth.IssuerConfig{
		AccessSecret:  []byte(d.Cfg.JWTSecret),
		RefreshSecret: []byte(d.Cfg.RefreshSecret),
		Issuer:        d.Cfg.TokenIssuer,
		AccessTTL:     d.Cfg.AccessTokenTTL,
		RefreshTTL:    d.Cfg.RefreshTokenTTL,
	})
	hooks := account.DefaultHooks(auth.NewBcryptHasher(d.Cfg.BcryptCost), publisher)
	accountSvc := account.NewService(accountRepo, hooks, d.Logger, d.Metrics)

	tokenSvc := auth.NewService(issuer, refreshStore, d.Metrics).
		WithClaimsLoader(accountClaims(accountSvc))

	accountHandler := account.NewHandler(accountSvc, tokenSvc, d.Logger)
	authHandler := auth.NewHandler(tokenSvc)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// A replayed signup never hands out the tokens of the first response.
	idempotency := middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger,
		middleware.RedactFields("accessToken", "refreshToken", "expiresIn"))
	RegisterAccountRoutes(api, accountHandler, middleware.JWTAuth(tokenSvc), idempotency)
	RegisterAuthRoutes(api, authHandler)

	return nil
}

// accountClaims reads token claims from the stored account so a refreshed
// pair follows phone and admin changes.
func accountClaims(svc *account.Service) auth.ClaimsLoader {
	return func(ctx context.Context, id string) (auth.Claims, error) {
		acc, err := svc.Get(ctx, id)
		if err != nil {
			if errors.Is(err, account.ErrAccountNotFound) {
				return auth.Claims{}, auth.ErrUnknownAccount
			}
			return auth.Claims{}, err
		}
		return auth.Claims{ID: acc.ID, Phone: acc.Phone, IsAdmin: acc.IsAdmin}, nil
	}
}

// newPublisher selects the lifecycle event backend and wraps it with metrics.
func newPublisher(d Deps) (events.Publisher, error) {
	if d.Publisher != nil {
		return events.Instrumented(d.Publisher, d.Metrics), nil
	}

	var pub events.Publisher
	switch d.Cfg.EventBackend {
	case "redis":
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when EVENT_BACKEND=redis")
		}
		pub = events.NewRedisStreamPublisher(d.Cache, d.Cfg.EventExchange, 0)
	case "kafka":
		if d.Producer == nil {
			return nil, fmt.Errorf("kafka producer is required when EVENT_BACKEND=kafka")
		}
		pub = events.NewKafkaPublisher(d.Producer, d.Cfg.EventExchange, d.Logger)
	case "", "log":
		pub = events.NewLogPublisher(d.Logger)
	default:
		return nil, fmt.Errorf("unsupported EVENT_BACKEND %q", d.Cfg.EventBackend)
	}
	return events.Instrumented(pub, d.Metrics), nil
}
