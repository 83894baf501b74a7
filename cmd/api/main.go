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

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Cypherspark/sms-autoresponder/internal/carrier"
	"github.com/Cypherspark/sms-autoresponder/internal/config"
	"github.com/Cypherspark/sms-autoresponder/internal/core"
	httpapi "github.com/Cypherspark/sms-autoresponder/internal/http"
	"github.com/Cypherspark/sms-autoresponder/internal/logger"
	"github.com/Cypherspark/sms-autoresponder/internal/metrics"
	"github.com/Cypherspark/sms-autoresponder/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("exit", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	openCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	store, err := storage.Open(openCtx, cfg, log)
	if err == nil && cfg.AutoMigrate {
		err = store.Migrate(openCtx)
	}
	cancel()
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return err
	}
	defer store.Close()

	sms, err := carrier.New(cfg, log)
	if err != nil {
		return err
	}
	dispatcher := core.NewDispatcher(store.Campaigns, store.Log, sms, core.DispatcherOptions{
		SourceNumber: cfg.SourceNumber,
		SendTimeout:  cfg.CarrierTimeout,
		StoreTimeout: cfg.StoreTimeout,
	}, log)

	srv := httpapi.NewServer(httpapi.Deps{
		Campaigns:  store.Campaigns,
		Log:        store.Log,
		Dispatcher: dispatcher,
		Store:      store,
		Logger:     log,
	})
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      srv.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	if store.Pool != nil {
		poolStats := metrics.NewPGXPoolStats(store.Pool, nil)
		g.Go(func() error {
			poolStats.Start(cfg.PoolStatsInterval, gctx.Done())
			return nil
		})
	}

	g.Go(func() error {
		log.Info("HTTP listening",
			zap.String("addr", server.Addr),
			zap.String("store", store.Driver),
			zap.String("carrier", cfg.CarrierDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		// in-flight webhooks finish their send and log write before the store closes
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
