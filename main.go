package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"github.com/padraicbc/usertokenapi/config"
	"github.com/padraicbc/usertokenapi/db"
	"github.com/padraicbc/usertokenapi/handlers"
	applog "github.com/padraicbc/usertokenapi/logger"
	mw "github.com/padraicbc/usertokenapi/middleware"
)

func main() {
	cfg := config.Load()
	logger, err := applog.New(cfg.LogLevel, cfg.Debug)
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, logger)
	stop()
	if err != nil {
		logger.Error("exiting", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

// run opens the store, serves until ctx is cancelled and closes the store
// on every return path.
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	bdb, err := db.Setup(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer bdb.Close()

	if cfg.ReadOnly {
		logger.Info("store opened read-only; schema init and seeding disabled")
	} else {
		err := db.InitSchema(ctx, bdb, db.InitOptions{
			MaxRetries:  cfg.InitMaxRetries,
			RetryDelay:  cfg.InitRetryDelay,
			CreateIndex: cfg.CreateIndex,
			Logger:      logger,
		})
		if err != nil {
			return fmt.Errorf("store initialization: %w", err)
		}
	}

	e := newServer(cfg, logger, bdb)

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	go func() {
		if err := start(e, cfg, logger); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server exited", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	return nil
}

// newServer builds the router with all middleware and routes.
func newServer(cfg *config.Config, logger *zap.Logger, bdb *bun.DB) *echo.Echo {
	h := handlers.New(bdb, logger, handlers.Options{
		SeedBatchSize: cfg.SeedBatchSize,
		SeedUserCount: cfg.SeedUserCount,
		ReadOnly:      cfg.ReadOnly,
		BypassUser:    cfg.VerifyBypassUser,
	})

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handlers.ErrorHandler(logger)

	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogError:     true,
		LogRequestID: true,
		LogLatency:   true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.Int("status", v.Status),
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.String("request_id", v.RequestID),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			switch {
			case v.Status >= 500:
				logger.Error("http request", fields...)
			case v.Status >= 400:
				logger.Warn("http request", fields...)
			default:
				logger.Info("http request", fields...)
			}
			return nil
		},
	}))
	e.Use(echomw.Recover())
	if cfg.RequestTimeout > 0 {
		// Pass deadline errors through so handlers keep their own status.
		e.Use(echomw.ContextTimeoutWithConfig(echomw.ContextTimeoutConfig{
			Timeout: cfg.RequestTimeout,
			ErrorHandler: func(err error, c echo.Context) error {
				return err
			},
		}))
	}
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"*", "Authorization"},
	}))

	// Public
	e.GET("/health", h.Health)
	e.GET("/ready", h.Ready)
	e.POST("/api/auth/get-user-token", h.GetUserToken)

	// Seeding – guarded by an admin token when ADMIN_TOKEN_SECRET is set
	admin := mw.AdminJWT(cfg.AdminKey())
	e.POST("/setup-database/:count", h.SetupDatabase, admin)
	e.GET("/api/auth/create-db", h.CreateDB, admin)

	return e
}

// start serves plain HTTP, or HTTPS via autocert when TLS domains are configured.
func start(e *echo.Echo, cfg *config.Config, logger *zap.Logger) error {
	if len(cfg.TLSDomains) == 0 {
		logger.Info("starting server",
			zap.String("addr", cfg.Port),
			zap.String("driver", cfg.DBDriver),
			zap.Bool("read_only", cfg.ReadOnly),
		)
		return e.Start(cfg.Port)
	}

	autoTLS := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		Cache:      autocert.DirCache(".cache"),
		HostPolicy: autocert.HostWhitelist(cfg.TLSDomains...),
	}

	s := &http.Server{
		Addr:         ":443",
		Handler:      e,
		TLSConfig:    autoTLS.TLSConfig(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
	logger.Info("starting tls server", zap.Strings("domains", cfg.TLSDomains))
	return e.StartServer(s)
}
