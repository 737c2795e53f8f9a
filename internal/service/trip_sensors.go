package service

import (
	"github.com/langchou/tripgazer/internal/metrics"
	"github.com/langchou/tripgazer/internal/sensor"
)

// liveFeed 实时行程的传感器数据源
func (s *TripService) liveFeed(id string) (*sensor.Feed, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if sess.live == nil {
		return nil, ErrUnsupported
	}
	return sess.feed, nil
}

// PushPosition 设备上报定位结果
func (s *TripService) PushPosition(id string, pos sensor.Position) error {
	feed, err := s.liveFeed(id)
	if err != nil {
		return err
	}
	metrics.PositionsReceived.Inc()
	feed.PushPosition(pos)
	return nil
}

// PushPositionError 设备上报定位失败
func (s *TripService) PushPositionError(id string, code sensor.ErrorCode, cause string) error {
	feed, err := s.liveFeed(id)
	if err != nil {
		return err
	}
	feed.PushError(sensor.NewGeolocationError(code, cause))
	return nil
}

// PushMotion 设备上报运动传感器读数
func (s *TripService) PushMotion(id string, m sensor.Motion) error {
	feed, err := s.liveFeed(id)
	if err != nil {
		return err
	}
	feed.PushMotion(m)
	return nil
}
