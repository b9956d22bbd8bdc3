package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/docuhub/portal/internal/auth"
	"github.com/docuhub/portal/internal/company"
	"github.com/docuhub/portal/internal/config"
	"github.com/docuhub/portal/internal/identity"
	"github.com/docuhub/portal/internal/metrics"
	"github.com/docuhub/portal/internal/middleware"
	"github.com/docuhub/portal/internal/notification"
)

// APIPrefix is where the collaborator API is mounted.
const APIPrefix = "/api"

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg     config.Server
	DB      *pgxpool.Pool
	Cache   *redis.Client
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// Notifier delivers OTP codes; defaults to the logging notifier.
	Notifier notification.Notifier
}

// Setup configures middlewares and all stub API routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Notifier == nil {
		d.Notifier = notification.NewLoggerNotifier(d.Logger)
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger, d.Metrics))

	RegisterHealthRoutes(app, d)

	var (
		accountRepo identity.Repository
		companyRepo company.Repository
		noticeStore notification.Store
		codes       auth.CodeStore
	)
	if d.DB != nil {
		accountRepo = identity.NewPostgresRepository(d.DB)
		companyRepo = company.NewPostgresRepository(d.DB)
		noticeStore = notification.NewPostgresStore(d.DB)
	} else {
		accountRepo = identity.NewMemoryRepository()
		companyRepo = company.NewMemoryRepository()
		noticeStore = notification.NewMemoryStore()
	}
	if d.Cache != nil {
		codes = auth.NewRedisCodeStore(d.Cache, d.Cfg.OTPTTL)
	} else {
		codes = auth.NewMemoryCodeStore(d.Cfg.OTPTTL)
	}

	accounts := identity.NewService(accountRepo, d.Cfg.AutoApprove)
	companies := company.NewService(companyRepo)
	notices := notification.NewService(noticeStore, nil)
	tokens := auth.NewService(d.Cfg.JWTSecret, d.Cfg.TokenTTL)

	seed := company.DefaultSeed
	if d.Cfg.SeedFile != "" {
		entries, err := company.LoadSeed(d.Cfg.SeedFile)
		if err != nil {
			return err
		}
		seed = entries
	}
	seedCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := companies.Seed(seedCtx, seed); err != nil {
		return err
	}

	authHandler := auth.NewHandler(auth.HandlerDeps{
		Accounts:  accounts,
		Tokens:    tokens,
		Codes:     codes,
		Companies: companies,
		Notices:   notices,
		Notifier:  d.Notifier,
		Metrics:   d.Metrics,
		Logger:    d.Logger,
		LoginOTP:  d.Cfg.LoginOTP,
	})
	companyHandler := company.NewHandler(companies, notices, d.Metrics, d.Logger)
	noticeHandler := notification.NewHandler(notices)
	identityHandler := identity.NewHandler(accounts)

	api := app.Group(APIPrefix)
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	RegisterAuthRoutes(api, authHandler, middleware.LoginRateLimit(d.Cache, 5))
	api.Get("/companies/approved", companyHandler.Approved)
	RegisterAdminRoutes(api, identityHandler, d.Cfg.AdminKey)

	// Protected routes
	bearer := middleware.BearerAuth(tokens, accounts)
	RegisterCompanyRoutes(api, companyHandler, bearer, d)
	RegisterNotificationRoutes(api, noticeHandler, bearer)

	return nil
}
