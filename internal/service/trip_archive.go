package service

import (
	"context"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/langchou/tripgazer/internal/models"
	"github.com/langchou/tripgazer/internal/trip"
)

// archiveIfCompleted 已保存的行程写入本地归档，每次完成只写一次
func (s *TripService) archiveIfCompleted(ctx context.Context, id string, sess *tripSession) {
	if s.archive == nil {
		return
	}

	snap := sess.trip.State()
	if !snap.IsCompleted {
		return
	}

	sess.archiveMu.Lock()
	defer sess.archiveMu.Unlock()
	if sess.archived {
		return
	}

	log := s.tripLog(snap)
	if err := s.archive.Create(ctx, log); err != nil {
		s.logger.Error("Failed to archive trip", zap.String("trip_id", id), zap.Error(err))
		return
	}
	sess.archived = true
	s.logger.Info("Trip archived",
		zap.String("trip_id", id),
		zap.String("log_id", log.ID.String()),
		zap.Float64("emission_kg", log.EmissionKg))
}

// tripLog 由快照生成归档记录
func (s *TripService) tripLog(snap trip.Snapshot) *models.TripLog {
	now := s.now()
	log := &models.TripLog{
		ID:            uuid.New(),
		SessionID:     snap.ID,
		UserID:        snap.UserID,
		TransportMode: string(snap.TransportMode),
		Kind:          string(snap.Kind),
		DistanceKm:    snap.Data.Number("distance"),
		EmissionKg:    snap.Data.Number("emissionKg"),
		Data:          models.TripData(snap.Data),
		CompletedAt:   now,
	}

	if live := snap.Live; live != nil {
		if live.TripID != "" {
			serverID := live.TripID
			log.ServerTripID = &serverID
		}
		if len(live.Path) > 0 {
			log.Path = models.Path(live.Path)
		}
		if live.StartedAt != nil {
			started := *live.StartedAt
			log.StartedAt = &started
			ended := now
			if live.EndedAt != nil {
				ended = *live.EndedAt
			}
			seconds := int64(math.Round(ended.Sub(started).Seconds()))
			log.DurationSeconds = &seconds
		}
		if live.LastPrediction != nil {
			predicted := live.LastPrediction.Mode
			log.PredictedMode = &predicted
		}
	}
	return log
}
