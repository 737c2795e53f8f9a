package sensor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recorder struct {
	mu        sync.Mutex
	positions []Position
	errors    []*GeolocationError
}

func (r *recorder) onPosition(p Position) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.positions = append(r.positions, p)
}

func (r *recorder) onError(err *GeolocationError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.positions), len(r.errors)
}

func TestFeedDeliversInOrder(t *testing.T) {
	feed := NewFeed(zaptest.NewLogger(t))
	rec := &recorder{}

	sub, err := feed.Watch(WatchOptions{HighAccuracy: true}, rec.onPosition, rec.onError)
	require.NoError(t, err)
	defer sub.Cancel()

	for i := 0; i < 5; i++ {
		feed.PushPosition(Position{Lat: float64(i), Lng: 144})
	}

	require.Len(t, rec.positions, 5)
	for i, p := range rec.positions {
		assert.Equal(t, float64(i), p.Lat)
		assert.False(t, p.Timestamp.IsZero())
	}
}

func TestFeedCancelIsIdempotent(t *testing.T) {
	feed := NewFeed(nil)
	rec := &recorder{}

	sub, err := feed.Watch(WatchOptions{}, rec.onPosition, rec.onError)
	require.NoError(t, err)
	assert.Equal(t, 1, feed.Watchers())

	sub.Cancel()
	sub.Cancel()
	assert.Equal(t, 0, feed.Watchers())

	feed.PushPosition(Position{Lat: 1})
	n, _ := rec.counts()
	assert.Zero(t, n)
}

func TestFeedTimeout(t *testing.T) {
	feed := NewFeed(zaptest.NewLogger(t))
	rec := &recorder{}

	sub, err := feed.Watch(WatchOptions{Timeout: 20 * time.Millisecond}, rec.onPosition, rec.onError)
	require.NoError(t, err)
	defer sub.Cancel()

	assert.Eventually(t, func() bool {
		_, n := rec.counts()
		return n >= 2
	}, time.Second, 5*time.Millisecond)

	rec.mu.Lock()
	assert.Equal(t, Timeout, rec.errors[0].Code)
	assert.Equal(t, "Location request timed out. Please try again.", rec.errors[0].Message())
	rec.mu.Unlock()
}

func TestFeedDropsStalePositions(t *testing.T) {
	feed := NewFeed(nil)
	rec := &recorder{}

	sub, err := feed.Watch(WatchOptions{MaximumAge: time.Second}, rec.onPosition, rec.onError)
	require.NoError(t, err)
	defer sub.Cancel()

	feed.PushPosition(Position{Lat: 1, Timestamp: time.Now().Add(-time.Minute)})
	feed.PushPosition(Position{Lat: 2, Timestamp: time.Now()})

	require.Len(t, rec.positions, 1)
	assert.Equal(t, 2.0, rec.positions[0].Lat)
}

func TestFeedZeroMaximumAgeKeepsOldFixes(t *testing.T) {
	feed := NewFeed(nil)
	rec := &recorder{}

	sub, err := feed.Watch(WatchOptions{}, rec.onPosition, rec.onError)
	require.NoError(t, err)
	defer sub.Cancel()

	feed.PushPosition(Position{Lat: 1, Timestamp: time.Now().Add(-time.Hour)})
	feed.PushPosition(Position{Lat: 2})

	require.Len(t, rec.positions, 2)
	assert.Equal(t, 1.0, rec.positions[0].Lat)
}

func TestFeedPushError(t *testing.T) {
	feed := NewFeed(nil)
	rec := &recorder{}

	sub, err := feed.Watch(WatchOptions{}, rec.onPosition, rec.onError)
	require.NoError(t, err)
	defer sub.Cancel()

	feed.PushError(NewGeolocationError(PermissionDenied, "denied"))
	feed.PushError(NewGeolocationError(42, ""))

	require.Len(t, rec.errors, 2)
	assert.Equal(t, "Location access denied. Please enable GPS permissions.", rec.errors[0].Message())
	assert.Equal(t, Unknown, rec.errors[1].Code)
	assert.Equal(t, "An unknown GPS error occurred.", rec.errors[1].Message())
}

func TestFeedMotion(t *testing.T) {
	feed := NewFeed(nil)

	_, ok := feed.Latest()
	assert.False(t, ok)

	sub, err := feed.Start()
	require.NoError(t, err)
	assert.Equal(t, 1, feed.MotionListeners())

	feed.PushMotion(Motion{Acceleration: &Vector{X: 1, Y: 2, Z: 3}})
	m, ok := feed.Latest()
	require.True(t, ok)
	assert.Equal(t, 2.0, m.Acceleration.Y)
	assert.False(t, m.Timestamp.IsZero())

	sub.Cancel()
	sub.Cancel()
	assert.Equal(t, 0, feed.MotionListeners())
}

func TestNewPacket(t *testing.T) {
	at := time.UnixMilli(1700000000000)
	p := NewPacket(at, &Motion{Orientation: &Rotation{Alpha: 90}}, &Position{Lat: -37.8, Lng: 144.9, Accuracy: 5})

	assert.Equal(t, int64(1700000000000), p.Timestamp)
	assert.Equal(t, 90.0, p.Orientation.Alpha)
	require.NotNil(t, p.GPS)
	assert.Equal(t, -37.8, p.GPS.Lat)

	empty := NewPacket(at, nil, nil)
	assert.Nil(t, empty.GPS)
	assert.Nil(t, empty.Acceleration)
}
