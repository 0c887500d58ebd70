package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sudo-init-do/timebank/internal/admin"
	"github.com/sudo-init-do/timebank/internal/alerts"
	"github.com/sudo-init-do/timebank/internal/auth"
	cache "github.com/sudo-init-do/timebank/internal/cache/redis"
	"github.com/sudo-init-do/timebank/internal/config"
	"github.com/sudo-init-do/timebank/internal/db"
	"github.com/sudo-init-do/timebank/internal/engine"
	"github.com/sudo-init-do/timebank/internal/marketplace"
	"github.com/sudo-init-do/timebank/internal/messaging"
	mware "github.com/sudo-init-do/timebank/internal/middleware"
	"github.com/sudo-init-do/timebank/internal/store/postgres"
	"github.com/sudo-init-do/timebank/internal/utils"
	"github.com/sudo-init-do/timebank/internal/wallet"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a TOML config file")
	pflag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("fatal", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := db.Init(ctx, cfg.Database, logger); err != nil {
		return err
	}
	defer db.Close()
	st := postgres.New(db.Conn)

	rdb, err := cache.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
	queue := asynq.NewClient(redisOpt)
	defer queue.Close()

	hub := messaging.NewHub(st, logger)
	eng := engine.New(st,
		engine.WithLogger(logger),
		engine.WithHoursOverride(cfg.Engine.AllowHoursOverride),
		engine.WithNotifier(hub),
		engine.WithNotifier(alerts.NewDispatcher(queue, logger, cfg.Alerts.MaxRetry)),
	)
	utils.ConfigureJWT(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL.Duration)

	e := newServer(cfg, logger, eng, hub, cache.NewIdempotencyStore(rdb, cfg.Server.IdempotencyTTL.Duration))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", slog.Int("port", cfg.Server.Port))
		if err := e.Start(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if cfg.Alerts.Enabled {
		worker := alerts.NewWorker(redisOpt, cfg.Alerts.Concurrency, alerts.PostgresInbox{}, logger)
		g.Go(func() error { return worker.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
		defer cancel()
		logger.Info("shutting down")
		return e.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func newServer(cfg *config.Config, logger *slog.Logger, eng *engine.Engine, hub *messaging.Hub, idem mware.IdempotencyStore) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	httpLog := logger.With(slog.String("component", "http"))
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
				httpLog.LogAttrs(c.Request().Context(), slog.LevelError, "request", attrs...)
				return nil
			}
			httpLog.LogAttrs(c.Request().Context(), slog.LevelInfo, "request", attrs...)
			return nil
		},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/ready", func(c echo.Context) error {
		if err := db.Conn.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "db unreachable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	})

	authGroup := e.Group("/auth")
	authGroup.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.Server.RateLimit))))
	authGroup.POST("/signup", auth.Signup)
	authGroup.POST("/login", auth.Login)
	authGroup.POST("/admin/bootstrap", auth.BootstrapAdmin(cfg.Auth.BootstrapSecret))

	market := marketplace.NewHandler(eng)
	e.GET("/public/listings", market.ListListings)

	api := e.Group("")
	api.Use(mware.JWTMiddleware)
	api.Use(mware.ActiveOnly(auth.IsActive))
	api.Use(mware.Idempotency(idem, logger))

	api.GET("/auth/me", auth.Me)
	market.Register(api)

	wallets := wallet.NewHandler(eng)
	api.GET("/wallet/balance", wallets.Balance)
	api.GET("/wallet/transactions", wallets.Transactions)

	api.GET("/notifications", alerts.ListNotifications)
	api.POST("/notifications/:id/read", alerts.MarkNotificationRead)

	api.GET("/handshakes/:id/ws", hub.HandshakeWS)
	threads := messaging.NewThreads(hub, messaging.PostgresMessages{}, alerts.PostgresInbox{}, logger)
	api.GET("/handshakes/:id/messages", threads.ListMessages)
	api.POST("/handshakes/:id/messages", threads.SendMessage)
	api.GET("/handshakes/:id/messages/unread", threads.UnreadCount)
	api.POST("/handshakes/:id/messages/:message_id/read", threads.MarkMessageRead)

	adm := api.Group("/admin")
	adm.Use(mware.AdminGuard)
	admins := admin.NewHandler(eng)
	adm.GET("/stats", admin.Stats)
	adm.GET("/users", admin.ListUsers)
	adm.POST("/users/:id/suspend", admin.SuspendUser)
	adm.POST("/users/:id/activate", admin.ActivateUser)
	adm.POST("/users/:id/promote", admin.PromoteAdmin)
	adm.POST("/users/:id/demote", admin.DemoteAdmin)
	adm.GET("/handshakes", admin.ListHandshakes)
	adm.POST("/listings/:id/close", admins.CloseListing)
	adm.GET("/ledger/accounts", wallet.AdminListAccounts)
	adm.GET("/ledger/entries", wallet.AdminListEntries)
	adm.GET("/ledger/users/:id", wallets.AdminUserTransactions)

	return e
}
