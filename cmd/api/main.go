package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banpacifico/core-api/internal/config"
	"github.com/banpacifico/core-api/internal/handler"
	"github.com/banpacifico/core-api/internal/idempotency"
	"github.com/banpacifico/core-api/internal/ledger"
	"github.com/banpacifico/core-api/internal/logging"
	"github.com/banpacifico/core-api/internal/middleware"
	"github.com/banpacifico/core-api/internal/repository"
	"github.com/banpacifico/core-api/internal/risk"
	"github.com/banpacifico/core-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("banpacifico-core", cfg.LogLevel, cfg.AppEnv)

	db, err := connectDB(cfg)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := repository.RunMigrations(db, cfg.MigrationsURL); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	accounts := repository.NewAccountRepository(db)
	beneficiaries := repository.NewBeneficiaryRepository(db)
	transactions := repository.NewTransactionRepository(db)
	events := repository.NewTransactionEventRepository(db)
	operations := repository.NewOperationRepository(db)
	holds := repository.NewHoldRepository(db)

	ldg := ledger.New(accounts, holds)
	guard := idempotency.NewGuard(db)
	classifier := risk.NewClassifier(transactions, cfg)
	fees := service.NewFeeTable(cfg)

	transfers := service.NewTransferService(db, accounts, beneficiaries, transactions,
		events, operations, ldg, guard, classifier, fees, cfg)
	approvals := service.NewApprovalService(db, accounts, beneficiaries, transactions,
		events, operations, ldg)
	accountSvc := service.NewAccountService(accounts)
	beneficiarySvc := service.NewBeneficiaryService(beneficiaries)

	healthHandler := handler.NewHealthHandler(db)
	accountHandler := handler.NewAccountHandler(accountSvc)
	beneficiaryHandler := handler.NewBeneficiaryHandler(beneficiarySvc)
	transferHandler := handler.NewTransferHandler(transfers)
	operationHandler := handler.NewOperationHandler(approvals)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler.Liveness)
	mux.HandleFunc("GET /health/ready", healthHandler.Readiness)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/v1/accounts", accountHandler.List)
	api.HandleFunc("GET /api/v1/accounts/{id}", accountHandler.Get)
	api.HandleFunc("PATCH /api/v1/accounts/{id}/status", accountHandler.UpdateStatus)

	api.HandleFunc("GET /api/v1/beneficiaries", beneficiaryHandler.List)
	api.HandleFunc("POST /api/v1/beneficiaries", beneficiaryHandler.Create)
	api.HandleFunc("GET /api/v1/beneficiaries/{id}", beneficiaryHandler.Get)
	api.HandleFunc("PATCH /api/v1/beneficiaries/{id}", beneficiaryHandler.Update)
	api.HandleFunc("DELETE /api/v1/beneficiaries/{id}", beneficiaryHandler.Delete)

	api.HandleFunc("POST /api/v1/transfers/precheck", transferHandler.Precheck)
	api.HandleFunc("POST /api/v1/transfers", transferHandler.Execute)
	api.HandleFunc("GET /api/v1/transactions/{id}", transferHandler.Get)
	api.HandleFunc("POST /api/v1/transactions/{id}/cancel", transferHandler.Cancel)

	api.HandleFunc("GET /api/v1/operations", operationHandler.List)
	api.HandleFunc("GET /api/v1/operations/{id}", operationHandler.Get)
	api.HandleFunc("POST /api/v1/operations/{id}/verify", operationHandler.Verify)
	api.HandleFunc("POST /api/v1/operations/{id}/approve", operationHandler.Approve)
	api.HandleFunc("POST /api/v1/operations/{id}/reject", operationHandler.Reject)
	api.HandleFunc("POST /api/v1/operations/{id}/block", operationHandler.Block)
	api.HandleFunc("POST /api/v1/operations/{id}/unblock", operationHandler.Unblock)
	api.HandleFunc("POST /api/v1/operations/{id}/complete", operationHandler.Complete)
	api.HandleFunc("POST /api/v1/operations/{id}/notes", operationHandler.AddNote)

	mux.Handle("/api/v1/", middleware.Auth(cfg.JWTSecret)(api))

	var root http.Handler = mux
	root = middleware.Recovery(root)
	root = middleware.Logging(root)
	root = middleware.Tracing(root)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           root,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	scheduler := service.NewScheduler(transfers, time.Duration(cfg.SchedulerIntervalS)*time.Second)
	go scheduler.Run(schedulerCtx)

	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	stopScheduler()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func connectDB(cfg *config.Config) (*sql.DB, error) {
	pool := repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	}

	var db *sql.DB
	var err error
	for i := range 30 {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		db, err = repository.NewPostgresDB(ctx, cfg.DatabaseURL, pool)
		cancel()
		if err == nil {
			return db, nil
		}
		slog.Info("waiting for database", "attempt", i+1)
		time.Sleep(time.Second)
	}
	return nil, fmt.Errorf("connectDB: gave up after 30 attempts: %w", err)
}
