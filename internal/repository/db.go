package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB 数据库连接池封装
type DB struct {
	Pool *pgxpool.Pool
}

// New 创建数据库连接
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	// 连接池配置
	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// 测试连接
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close 关闭连接池
func (db *DB) Close() {
	db.Pool.Close()
}

// Migrate 执行数据库迁移
func (db *DB) Migrate(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := db.Pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}
	return nil
}

var migrations = []string{
	migrationCreateTripLogs,
	migrationAddPredictionToTripLogs,
}

// 数据库迁移 SQL
const migrationCreateTripLogs = `
CREATE TABLE IF NOT EXISTS trip_logs (
    id UUID PRIMARY KEY,
    session_id VARCHAR(64) NOT NULL,
    user_id VARCHAR(255) NOT NULL DEFAULT '',
    transport_mode VARCHAR(16) NOT NULL,
    kind VARCHAR(16) NOT NULL,
    server_trip_id VARCHAR(255),
    distance_km DOUBLE PRECISION NOT NULL DEFAULT 0,
    emission_kg DOUBLE PRECISION NOT NULL,
    duration_seconds BIGINT,
    data JSONB NOT NULL DEFAULT '{}',
    path JSONB,
    started_at TIMESTAMP WITH TIME ZONE,
    completed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_trip_logs_user_id ON trip_logs(user_id);
CREATE INDEX IF NOT EXISTS idx_trip_logs_completed_at ON trip_logs(completed_at);
`

const migrationAddPredictionToTripLogs = `
ALTER TABLE trip_logs ADD COLUMN IF NOT EXISTS predicted_mode VARCHAR(16);
`
