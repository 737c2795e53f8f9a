package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TripData 行程表单数据（JSONB）
type TripData map[string]any

// Value 实现 driver.Valuer 接口，用于存储到数据库
func (d TripData) Value() (driver.Value, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d)
}

// Scan 实现 sql.Scanner 接口，用于从数据库读取
func (d *TripData) Scan(value interface{}) error {
	if value == nil {
		*d = TripData{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, d)
	case string:
		return json.Unmarshal([]byte(v), d)
	case map[string]any:
		*d = v
		return nil
	default:
		return fmt.Errorf("unsupported trip data type %T", value)
	}
}

// Path GPS 轨迹 [lat, lng]（JSONB）
type Path [][2]float64

// Value 实现 driver.Valuer 接口
func (p Path) Value() (driver.Value, error) {
	if p == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(p)
}

// Scan 实现 sql.Scanner 接口
func (p *Path) Scan(value interface{}) error {
	if value == nil {
		*p = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("unsupported path type %T", value)
	}
}

// TripLog 已完成行程的本地归档
type TripLog struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	SessionID       string     `json:"session_id" db:"session_id"`
	UserID          string     `json:"user_id" db:"user_id"`
	TransportMode   string     `json:"transport_mode" db:"transport_mode"`
	Kind            string     `json:"kind" db:"kind"` // live, manual
	ServerTripID    *string    `json:"server_trip_id,omitempty" db:"server_trip_id"`
	DistanceKm      float64    `json:"distance_km" db:"distance_km"`
	EmissionKg      float64    `json:"emission_kg" db:"emission_kg"`
	DurationSeconds *int64     `json:"duration_seconds,omitempty" db:"duration_seconds"`
	PredictedMode   *string    `json:"predicted_mode,omitempty" db:"predicted_mode"`
	Data            TripData   `json:"data" db:"data"`
	Path            Path       `json:"path,omitempty" db:"path"`
	StartedAt       *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt     time.Time  `json:"completed_at" db:"completed_at"`
}

// EmissionTonnes 排放量（吨）
func (t *TripLog) EmissionTonnes() float64 {
	return t.EmissionKg / 1000
}
