package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	trmcontext "github.com/avito-tech/go-transaction-manager/trm/v2/context"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/nanmu42/gzip"
	"github.com/podilnyk/monojar/internal/auth"
	"github.com/podilnyk/monojar/internal/config"
	"github.com/podilnyk/monojar/internal/models/admin"
	"github.com/podilnyk/monojar/internal/monobank"
	"github.com/podilnyk/monojar/internal/reconcile"
	"github.com/podilnyk/monojar/internal/system"
	"github.com/podilnyk/monojar/migrations"
	"github.com/podilnyk/monojar/pkg/accesslog"
	"github.com/podilnyk/monojar/pkg/logger"
	"github.com/podilnyk/monojar/pkg/unzip"
	"github.com/pressly/goose/v3"
	sqldblogger "github.com/simukti/sqldb-logger"
)

// Version indicates the current version of the application.
var Version = "1.0.0"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Server run context.
	serverCtx, serverStopCtx := context.WithCancel(context.Background())
	defer serverStopCtx()

	// Load application configurations.
	cfg := config.MustLoad()

	// Create root logger tagged with server version.
	logger := logger.New(cfg).With(serverCtx, "version", Version)

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to open the database: %w", err)
	}

	// Log every query to the database.
	db = sqldblogger.OpenDriver(cfg.DSN, db.Driver(), logger)

	// Check connectivity and DSN correctness.
	if err = db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to the database: %w", err)
	}

	// Close connection.
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error(err)
		}
		_ = logger.Sync()
	}()

	// Apply embedded migrations.
	goose.SetBaseFS(migrations.FS)
	if err = goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err = goose.Up(db, "."); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Create default transaction manager for database/sql package.
	trManager := manager.Must(
		trmsql.NewDefaultFactory(db),
		manager.WithCtxManager(trmcontext.DefaultManager),
	)

	// Init repository for auth service.
	authRepo, err := auth.NewRepository(db, trmsql.DefaultCtxGetter, logger)
	if err != nil {
		return fmt.Errorf("failed to init auth repository: %w", err)
	}

	// Init auth service.
	authService, err := auth.NewService(authRepo, trManager, logger, cfg)
	if err != nil {
		return fmt.Errorf("failed to init auth service: %w", err)
	}

	// Monobank personal API client shared by the reconcile and system
	// services.
	bank := monobank.New(cfg, logger)

	// Init repository for reconcile service.
	reconcileRepo, err := reconcile.NewRepository(db, trmsql.DefaultCtxGetter, logger)
	if err != nil {
		return fmt.Errorf("failed to init reconcile repository: %w", err)
	}

	// Init reconcile service.
	reconcileService, err := reconcile.NewService(reconcileRepo, bank, trManager, logger, cfg)
	if err != nil {
		return fmt.Errorf("failed to init reconcile service: %w", err)
	}

	// Init system service.
	systemService, err := system.NewService(bank, logger)
	if err != nil {
		return fmt.Errorf("failed to init system service: %w", err)
	}

	// Background ledger ingester. Runs only when jars are configured.
	var worker *reconcile.Worker
	if len(cfg.Monobank.Jars) > 0 {
		worker, err = reconcile.NewWorker(reconcileService, cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to init ingest worker: %w", err)
		}
		worker.Run()
	}

	// Create root router.
	router := initRootRouter(logger)

	// Init and group handlers for auth routes.
	authHandlers := auth.HandlerWithOptions(authService, auth.ChiServerOptions{
		BaseURL:    "/api/v1",
		BaseRouter: router,
		PermissionMiddlewares: []auth.MiddlewareFunc{
			authService.Middleware,
			authService.RequireCapability(admin.PermissionsManage),
		},
		ErrorHandlerFunc: auth.ErrorHandlerFunc,
	})

	// Init handlers for reconcile routes. Order mutations additionally
	// require the write capability.
	recHandlers := reconcile.HandlerWithOptions(
		reconcile.NewHandlers(reconcileService),
		reconcile.ChiServerOptions{
			BaseURL:     "/api/v1",
			BaseRouter:  router,
			Middlewares: []reconcile.MiddlewareFunc{authService.Middleware},
			OrderWriteMiddlewares: []reconcile.MiddlewareFunc{
				authService.RequireCapability(admin.OrdersWrite),
			},
			ErrorHandlerFunc: reconcile.ErrorHandlerFunc,
		})

	// Init handlers for system routes.
	sysHandlers := system.HandlerWithOptions(
		system.NewHandlers(systemService),
		system.ChiServerOptions{
			BaseURL:          "/api/v1",
			BaseRouter:       router,
			Middlewares:      []system.MiddlewareFunc{authService.Middleware},
			ErrorHandlerFunc: system.ErrorHandlerFunc,
		})

	router.Handle("/api/v1", authHandlers)
	router.Handle("/api/v1", recHandlers)
	router.Handle("/api/v1", sysHandlers)

	// Build HTTP server.
	hs := &http.Server{
		Addr:              cfg.HTTPServer.Address,
		ReadHeaderTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:       cfg.HTTPServer.IdleTimeout,
		Handler:           router,
	}

	// Graceful shutdown.
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT,
			syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)

		signal := <-sig

		logger.With(serverCtx, "signal", signal.String()).
			Infof("Shutting down server with %s timeout",
				cfg.HTTPServer.ShutdownTimeout)

		if worker != nil {
			worker.Stop()
		}
		if err = hs.Shutdown(serverCtx); err != nil {
			logger.Errorf("graceful shutdown failed: %s", err)
		}
		serverStopCtx()
	}()

	// Start the HTTP server with graceful shutdown.
	logger.Infof("Server %v is running at %v", Version, cfg.HTTPServer.Address)
	if err = hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("run server failed: %w", err)
	}

	// Wait for server context to be stopped or force exit if timeout exceeded.
	select {
	case <-serverCtx.Done():
	case <-time.After(cfg.HTTPServer.ShutdownTimeout):
		return errors.New("graceful shutdown timed out.. forcing exit")
	}

	return nil
}

func initRootRouter(logger logger.Logger) *chi.Mux {
	router := chi.NewRouter()
	router.Use(accesslog.Handler(logger))
	router.Use(middleware.Recoverer)
	router.Use(gzip.DefaultHandler().WrapHandler)
	router.Use(unzip.Middleware(logger))

	return router
}
