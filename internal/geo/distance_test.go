package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversine(t *testing.T) {
	// 纬度相差 0.01° 约 1.11 km
	d := Haversine(Point{-37.8136, 144.9631}, Point{-37.8036, 144.9631})
	assert.InDelta(t, 1112, d, 5)

	assert.Zero(t, Haversine(Point{1, 1}, Point{1, 1}))
}

func TestPathKm(t *testing.T) {
	assert.Zero(t, PathKm(nil))
	assert.Zero(t, PathKm([]Point{{-37.8, 144.9}}))

	path := []Point{{-37.80, 144.96}, {-37.79, 144.96}}
	first := PathKm(path)
	assert.Greater(t, first, 0.0)
	assert.InDelta(t, 1.11, first, 0.01)

	prev := first
	for i := 0; i < 5; i++ {
		last := path[len(path)-1]
		path = append(path, Point{last[0] + 0.01, last[1]})
		km := PathKm(path)
		assert.GreaterOrEqual(t, km, prev)
		prev = km
	}
}

func TestRoundKm(t *testing.T) {
	assert.Equal(t, 1.23, RoundKm(1.234))
	assert.Equal(t, 1.24, RoundKm(1.235001))
}
