package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/langchou/tripgazer/internal/models"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// TripLogRepository 行程归档仓库
type TripLogRepository struct {
	db *DB
}

// NewTripLogRepository 创建行程归档仓库
func NewTripLogRepository(db *DB) *TripLogRepository {
	return &TripLogRepository{db: db}
}

const tripLogColumns = `id, session_id, user_id, transport_mode, kind, server_trip_id, distance_km, emission_kg,
	duration_seconds, predicted_mode, data, path, started_at, completed_at`

// Create 写入归档记录，ID 为空时自动生成
func (r *TripLogRepository) Create(ctx context.Context, log *models.TripLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}

	query := `
		INSERT INTO trip_logs (` + tripLogColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		log.ID,
		log.SessionID,
		log.UserID,
		log.TransportMode,
		log.Kind,
		log.ServerTripID,
		log.DistanceKm,
		log.EmissionKg,
		log.DurationSeconds,
		log.PredictedMode,
		log.Data,
		log.Path,
		log.StartedAt,
		log.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert trip log: %w", err)
	}
	return nil
}

// GetByID 获取归档记录
func (r *TripLogRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.TripLog, error) {
	query := `SELECT ` + tripLogColumns + ` FROM trip_logs WHERE id = $1`

	log, err := scanTripLog(r.db.Pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get trip log by id: %w", err)
	}
	return log, nil
}

// ListByUser 获取用户的归档列表，按完成时间倒序
func (r *TripLogRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.TripLog, error) {
	query := `
		SELECT ` + tripLogColumns + `
		FROM trip_logs
		WHERE user_id = $1
		ORDER BY completed_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list trip logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.TripLog
	for rows.Next() {
		log, err := scanTripLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trip log: %w", err)
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trip logs: %w", err)
	}
	return logs, nil
}

func scanTripLog(row pgx.Row) (*models.TripLog, error) {
	log := &models.TripLog{}
	err := row.Scan(
		&log.ID,
		&log.SessionID,
		&log.UserID,
		&log.TransportMode,
		&log.Kind,
		&log.ServerTripID,
		&log.DistanceKm,
		&log.EmissionKg,
		&log.DurationSeconds,
		&log.PredictedMode,
		&log.Data,
		&log.Path,
		&log.StartedAt,
		&log.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return log, nil
}
