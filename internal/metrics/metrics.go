package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 结果标签
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"
)

var (
	// SamplesCaptured 传感器采样次数
	SamplesCaptured = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tripgazer_sensor_samples_captured_total",
		Help: "Total sensor samples captured by live trips",
	})

	// BatchesSent 传感器批次上传，按结果统计
	BatchesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripgazer_sensor_batches_total",
		Help: "Sensor batches sent to the prediction endpoint by result",
	}, []string{"result"})

	// BatchSize 每个批次的采样数
	BatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tripgazer_sensor_batch_size",
		Help:    "Number of samples per sensor batch",
		Buckets: []float64{1, 10, 50, 100, 300, 600},
	})

	// ModeMismatches 预测出行方式与所选方式不一致
	ModeMismatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripgazer_mode_mismatch_total",
		Help: "Predictions disagreeing with the selected transport mode",
	}, []string{"mode", "predicted"})

	// EmissionsRequests 排放计算请求，按出行方式与结果统计
	EmissionsRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripgazer_emissions_requests_total",
		Help: "Emissions calculation attempts by mode and result",
	}, []string{"mode", "result"})

	// TripSaves 行程保存，按出行方式与结果统计
	TripSaves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripgazer_trip_saves_total",
		Help: "Trip save attempts by mode and result",
	}, []string{"mode", "result"})

	// ActiveTrips 服务中托管的行程数
	ActiveTrips = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tripgazer_trips_active",
		Help: "Trip sessions currently hosted by the service",
	})

	// PositionsReceived 上报的定位次数
	PositionsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tripgazer_positions_received_total",
		Help: "Position fixes pushed by devices",
	})
)

// Result 按是否成功返回结果标签
func Result(ok bool) string {
	if ok {
		return ResultSuccess
	}
	return ResultFailure
}
