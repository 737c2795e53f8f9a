package carbon

import "github.com/langchou/tripgazer/internal/sensor"

// StartTripRequest 登记服务端行程
type StartTripRequest struct {
	TransportMode string `json:"transportMode"`
	UserID        string `json:"userId"`
}

// EndTripRequest 结束服务端行程
type EndTripRequest struct {
	TripID          string      `json:"tripId"`
	DistanceKm      float64     `json:"distanceKm"`
	DurationSeconds int64       `json:"durationSeconds"`
	FinalPrediction *Prediction `json:"finalPrediction"`
}

// PredictRequest 传感器批次预测请求
type PredictRequest struct {
	SensorDataArray []sensor.Packet `json:"sensorDataArray"`
	TripID          string          `json:"tripId"`
	ExpectedMode    string          `json:"expectedMode"`
	UserID          string          `json:"userId"`
}

// Prediction 出行方式预测
type Prediction struct {
	Mode       string  `json:"mode"`
	Confidence float64 `json:"confidence"`
}

// PredictResponse 预测响应
type PredictResponse struct {
	Success    bool        `json:"success"`
	Prediction *Prediction `json:"prediction"`
}

// apiResponse 通用响应结构
type apiResponse struct {
	Data    any    `json:"data"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}
