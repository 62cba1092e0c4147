package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotConfigured indicates the storage pool was not initialised.
var ErrNotConfigured = errors.New("storage: pool not configured")

// Config encapsulates PostgreSQL connectivity for the audit store.
type Config struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// NotificationRecord captures one delivered push for auditing.
type NotificationRecord struct {
	ID       int64
	DeviceID string
	AlertID  string
	Symbol   string
	Title    string
	Body     string
	SentAt   time.Time
}

// NotificationStore defines operations for notification auditing.
type NotificationStore interface {
	InsertNotification(ctx context.Context, rec NotificationRecord) (NotificationRecord, error)
	ListRecentNotifications(ctx context.Context, limit int) ([]NotificationRecord, error)
	DeleteNotificationsBefore(ctx context.Context, olderThan time.Time) error
}

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}
