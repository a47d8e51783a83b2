package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/kasa-pay/kasa_pay/internal/auth"
	"github.com/kasa-pay/kasa_pay/internal/config"
	"github.com/kasa-pay/kasa_pay/internal/directory"
	"github.com/kasa-pay/kasa_pay/internal/identity"
	"github.com/kasa-pay/kasa_pay/internal/ledger"
	"github.com/kasa-pay/kasa_pay/internal/middleware"
	"github.com/kasa-pay/kasa_pay/internal/notification"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Notifier notification.Notifier
	Logger   *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Memory fallbacks are a development convenience only.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	// Backends: Postgres when configured, in-memory otherwise.
	var (
		store        ledger.Store
		identityRepo identity.Repository
		dir          ledger.Directory
	)
	if d.DB != nil {
		store = ledger.NewPostgresStore(d.DB, d.Cfg.LockTimeout)
		identityRepo = identity.NewPostgresRepository(d.DB)
		dir = directory.NewPostgres(d.DB)
	} else {
		memStore := ledger.NewMemoryStore()
		memRepo := identity.NewMemoryRepository()
		store = memStore
		identityRepo = memRepo
		dir = directory.NewMemory(memRepo, memStore)
	}

	engine := ledger.NewEngine(store, dir, d.Notifier)
	identitySvc := identity.NewService(identityRepo, store, d.Cfg.Currency)
	authSvc := auth.NewService(d.Cfg)

	authHandler := auth.NewHandler(identitySvc, authSvc)
	walletHandler := ledger.NewHandler(engine, store)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes. Login shares the per-IP throttle with registration.
	rateLimiter := middleware.RateLimit(d.Cache, d.Cfg.RateLimitPerMin)
	RegisterAuthRoutes(api, authHandler, rateLimiter)

	// Protected routes.
	protected := api.Group("", middleware.JWTAuth(authSvc))
	protected.Get("/me", func(c *fiber.Ctx) error {
		uid, _ := c.Locals("user_id").(string)
		if uid == "" {
			return c.SendStatus(http.StatusUnauthorized)
		}
		user, err := identityRepo.FindByID(c.UserContext(), uid)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "user not found")
		}
		return c.JSON(fiber.Map{
			"user_id":    user.ID,
			"email":      user.Email,
			"full_name":  user.FullName,
			"created_at": user.CreatedAt,
		})
	})

	var walletMiddlewares []fiber.Handler
	walletMiddlewares = append(walletMiddlewares, rateLimiter)
	if d.Cache != nil {
		walletMiddlewares = append(walletMiddlewares, middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	RegisterWalletRoutes(protected, walletHandler, walletMiddlewares...)

	return nil
}
