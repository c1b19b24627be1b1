package routes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/wallet_engine/internal/config"
	"github.com/congo-pay/wallet_engine/internal/ledger"
	"github.com/congo-pay/wallet_engine/internal/middleware"
	"github.com/congo-pay/wallet_engine/internal/notification"
	"github.com/congo-pay/wallet_engine/internal/wallet"
)

const startupProbeTimeout = 5 * time.Second

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	store, err := newStore(d)
	if err != nil {
		return err
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	svc := wallet.NewService(store, newNotifier(d), walletConfig(d.Cfg), d.Logger)
	handler := wallet.NewHandler(svc, d.Logger, wallet.HandlerConfig{
		RequestTimeout:     d.Cfg.RequestTimeout,
		HideInternalErrors: d.Cfg.IsProduction(),
	})
	limiter := middleware.WalletRateLimit(d.Cache, d.Cfg.RateLimitPerMinute, d.Logger)

	RegisterWalletRoutes(app.Group("/api/wallet"), handler, limiter)

	logWallets(svc, d.Logger)
	return nil
}

func newStore(d Deps) (ledger.Store, error) {
	if d.DB != nil {
		return ledger.NewPostgresStore(d.DB), nil
	}
	if !d.Cfg.IsDevelopment() {
		return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
	}
	d.Logger.Warn("no database configured, using in-memory store")
	store := ledger.NewInMemory()
	for _, e := range ledger.DefaultSeed() {
		ledger.SeedWallet(store, e.Customer, e.Balance)
	}
	return store, nil
}

func newNotifier(d Deps) notification.Notifier {
	notifiers := notification.Multi{notification.NewLoggerNotifier(d.Logger)}
	if d.Cache != nil {
		notifiers = append(notifiers, notification.NewRedisNotifier(d.Cache, d.Cfg.NotifyChannel))
	}
	return notifiers
}

func walletConfig(cfg config.Config) wallet.Config {
	return wallet.Config{
		MinDeposit:        cfg.MinDeposit,
		MaxDeposit:        cfg.MaxDeposit,
		MinWithdrawal:     cfg.MinWithdrawal,
		MaxWithdrawal:     cfg.MaxWithdrawal,
		DoubleSubmitGuard: cfg.DoubleSubmitGuard,
		DefaultPageSize:   cfg.DefaultPageSize,
		MaxPageSize:       cfg.MaxPageSize,
		ConflictRetries:   cfg.ConflictRetries,
		IsolationLevel:    ledger.IsolationLevel(cfg.IsolationLevel),
	}
}

// logWallets reports the wallets known at startup. A failure here is not fatal.
func logWallets(svc *wallet.Service, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), startupProbeTimeout)
	defer cancel()

	wallets, err := svc.ListWallets(ctx)
	if err != nil {
		logger.Warn("list wallets", "error", err)
		return
	}
	ids := make([]int64, 0, len(wallets))
	for _, w := range wallets {
		ids = append(ids, w.ID)
	}
	logger.Info("wallets available", "count", len(wallets), "ids", ids)
}
