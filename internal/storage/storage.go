// Package storage selects and opens the configured registry/log backend.
package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Cypherspark/sms-autoresponder/internal/config"
	"github.com/Cypherspark/sms-autoresponder/internal/core"
	"github.com/Cypherspark/sms-autoresponder/internal/db"
	"github.com/Cypherspark/sms-autoresponder/internal/sqlite"
)

// Backend is one opened store. Campaigns and Log share its connection.
type Backend struct {
	Driver    string
	Campaigns core.Registry
	Log       core.MessageLog
	// Pool is set for the postgres driver only.
	Pool *pgxpool.Pool

	ping    func(context.Context) error
	close   func() error
	migrate func(context.Context) error
}

func (b *Backend) Ping(ctx context.Context) error { return b.ping(ctx) }

func (b *Backend) Migrate(ctx context.Context) error { return b.migrate(ctx) }

func (b *Backend) Close() error { return b.close() }

func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Backend, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pg, err := db.Open(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			return nil, &core.StorageError{Op: "open postgres", Err: err}
		}
		logger.Info("store opened", zap.String("driver", cfg.StoreDriver), zap.Int32("max_conns", cfg.DBMaxConns))
		return &Backend{
			Driver:    config.DriverPostgres,
			Campaigns: db.NewCampaignStore(pg),
			Log:       db.NewMessageLogStore(pg),
			Pool:      pg.Pool,
			ping:      pg.Ping,
			close:     func() error { pg.Close(); return nil },
			migrate:   pg.Migrate,
		}, nil

	case config.DriverSQLite:
		lite, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, &core.StorageError{Op: "open sqlite", Err: err}
		}
		logger.Info("store opened", zap.String("driver", cfg.StoreDriver), zap.String("path", cfg.SQLitePath))
		return &Backend{
			Driver:    config.DriverSQLite,
			Campaigns: sqlite.NewCampaignStore(lite),
			Log:       sqlite.NewMessageLogStore(lite),
			ping:      lite.Ping,
			close:     lite.Close,
			migrate:   lite.Migrate,
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
