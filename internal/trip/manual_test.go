package trip

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langchou/tripgazer/internal/modes"
	"github.com/langchou/tripgazer/internal/state"
)

func TestManualStartTrip(t *testing.T) {
	backend := &fakeBackend{}
	trip, log := newManual(t, modes.Bus, backend)

	assert.True(t, trip.StartTrip(context.Background(), ""))
	s := trip.State()
	assert.True(t, s.IsActive)
	assert.Equal(t, state.StateEditing, s.Phase)
	assert.Zero(t, backend.requests())
	assert.True(t, log.hasPayload("message"))
}

func TestManualEndTripNeverSaves(t *testing.T) {
	backend := &fakeBackend{emissionKg: 500}
	trip, log := newManual(t, modes.Metro, backend)

	trip.StartTrip(context.Background(), testCred)
	trip.UpdateField("distance", 12.0)

	require.True(t, trip.EndTrip(context.Background(), testCred))
	s := trip.State()
	assert.False(t, s.IsActive)
	assert.False(t, s.IsCompleted)
	assert.Equal(t, state.StateCalculated, s.Phase)
	assert.Equal(t, 1, backend.calcCalls)
	assert.Zero(t, backend.saveCalls)
	assert.True(t, log.hasPayload("calculated"))

	require.True(t, trip.SaveTrip(context.Background(), testCred))
	s = trip.State()
	assert.True(t, s.IsCompleted)
	assert.Equal(t, state.StateCompleted, s.Phase)
	assert.Equal(t, map[string]any{"transportMode": "metro", "distanceKm": 12.0, "emissionKg": 500.0}, backend.lastSave)
}

func TestManualEditAfterSave(t *testing.T) {
	backend := &fakeBackend{emissionKg: 500}
	trip, _ := newManual(t, modes.Metro, backend)

	trip.StartTrip(context.Background(), testCred)
	trip.UpdateField("distance", 12.0)
	require.True(t, trip.EndTrip(context.Background(), testCred))
	require.True(t, trip.SaveTrip(context.Background(), testCred))
	require.True(t, trip.State().IsCompleted)

	trip.UpdateField("distance", 20.0)
	s := trip.State()
	assert.Equal(t, state.StateEditing, s.Phase)
	assert.False(t, s.IsCompleted)

	require.True(t, trip.EndTrip(context.Background(), testCred))
	require.True(t, trip.SaveTrip(context.Background(), testCred))
	assert.Equal(t, 2, backend.saveCalls)
	assert.Equal(t, 20.0, backend.lastSave["distanceKm"])
	assert.Equal(t, state.StateCompleted, trip.State().Phase)
}

func TestManualRestartAfterSave(t *testing.T) {
	backend := &fakeBackend{emissionKg: 500}
	trip, _ := newManual(t, modes.Metro, backend)

	trip.StartTrip(context.Background(), testCred)
	trip.UpdateField("distance", 12.0)
	require.True(t, trip.EndTrip(context.Background(), testCred))
	require.True(t, trip.SaveTrip(context.Background(), testCred))

	require.True(t, trip.StartTrip(context.Background(), testCred))
	s := trip.State()
	assert.True(t, s.IsActive)
	assert.False(t, s.IsCompleted)
	assert.Equal(t, state.StateEditing, s.Phase)
}

func TestManualEndTripCalculationFails(t *testing.T) {
	backend := &fakeBackend{}
	trip, _ := newManual(t, modes.Car, backend)

	trip.StartTrip(context.Background(), "")
	assert.False(t, trip.EndTrip(context.Background(), ""))
	s := trip.State()
	assert.True(t, s.IsActive)
	assert.Zero(t, backend.calcCalls)
}

func TestValidateField(t *testing.T) {
	trip, _ := newManual(t, modes.Car, &fakeBackend{})

	assert.False(t, trip.ValidateField("vehicleMake", ""))
	assert.Equal(t, "vehicleMake is required", trip.State().Manual.FieldErrors["vehicleMake"])

	assert.False(t, trip.ValidateField("distance", ""))
	assert.Equal(t, "Distance per Trip (km) is required", trip.State().Manual.FieldErrors["distance"])

	assert.False(t, trip.ValidateField("trips", 0.0))
	assert.Equal(t, "Trips per Week must be at least 1", trip.State().Manual.FieldErrors["trips"])

	assert.False(t, trip.ValidateField("distance", -3.0))
	assert.Equal(t, "Distance per Trip (km) must be at least 0", trip.State().Manual.FieldErrors["distance"])

	assert.True(t, trip.ValidateField("distance", 4.0))
	assert.NotContains(t, trip.State().Manual.FieldErrors, "distance")
}

func TestValidateFieldCustomRule(t *testing.T) {
	trip, _ := newManual(t, modes.Flight, &fakeBackend{})

	assert.False(t, trip.ValidateField("passengers", 0.5))
	assert.Equal(t, "Must have at least 1 passenger", trip.State().Manual.FieldErrors["passengers"])

	assert.True(t, trip.ValidateField("passengers", "2"))
}

func TestUpdateFieldAndCanCalculate(t *testing.T) {
	trip, log := newManual(t, modes.Car, &fakeBackend{})
	assert.False(t, trip.CanCalculate())

	trip.UpdateField("vehicleMake", "Toyota")
	trip.UpdateField("vehicleModel", "Corolla")
	assert.False(t, trip.CanCalculate())

	assert.False(t, trip.UpdateField("distance", 0.0))
	assert.False(t, trip.CanCalculate())

	assert.True(t, trip.UpdateField("distance", 8.0))
	assert.True(t, trip.CanCalculate())

	updates := log.ofType(EventDataUpdate)
	last := updates[len(updates)-1]
	assert.Equal(t, 8.0, last.Payload["distance"])
	assert.Equal(t, map[string]string{}, last.Payload["fieldErrors"])
}

func TestUpdateFieldsBatch(t *testing.T) {
	trip, _ := newManual(t, modes.Flight, &fakeBackend{})

	ok := trip.UpdateFields(modes.Data{"fromAirport": "SYD", "toAirport": "MEL", "passengers": 0.0})
	assert.False(t, ok)
	assert.Contains(t, trip.State().Manual.FieldErrors, "passengers")

	assert.True(t, trip.UpdateFields(modes.Data{"passengers": 2.0}))
	assert.True(t, trip.CanCalculate())
}

func TestManualValidateMergesFieldErrors(t *testing.T) {
	trip, _ := newManual(t, modes.Bus, &fakeBackend{})

	trip.UpdateData(modes.Data{"distance": 5.0})
	trip.mu.Lock()
	trip.fieldErrors["distance"] = "stale field error"
	trip.mu.Unlock()

	assert.False(t, trip.Validate())
	assert.Equal(t, "stale field error", trip.State().Errors["distance"])
}

func TestCanSaveAndResetForm(t *testing.T) {
	trip, log := newManual(t, modes.Tram, &fakeBackend{emissionKg: 20})
	assert.False(t, trip.CanSave())

	trip.UpdateField("distance", 2.0)
	require.True(t, trip.CalculateEmissions(context.Background(), ""))
	assert.True(t, trip.CanSave())

	trip.ResetForm()
	s := trip.State()
	assert.False(t, trip.CanSave())
	assert.False(t, s.Manual.FormTouched)
	assert.Empty(t, s.Manual.FieldErrors)
	assert.Equal(t, modes.Data{"distance": 0.0}, s.Data)
	assert.Equal(t, state.StateIdle, s.Phase)
	assert.True(t, log.hasPayload("formReset"))
}

func TestFieldValueCoercion(t *testing.T) {
	trip, _ := newManual(t, modes.Flight, &fakeBackend{})

	trip.UpdateData(modes.Data{"passengers": "3", "roundTrip": "yes", "fromAirport": "SYD"})
	assert.Equal(t, 3.0, trip.FieldValue("passengers"))
	assert.Equal(t, true, trip.FieldValue("roundTrip"))
	assert.Equal(t, "SYD", trip.FieldValue("fromAirport"))

	trip.UpdateData(modes.Data{"passengers": "many"})
	assert.Equal(t, 0.0, trip.FieldValue("passengers"))
}

func TestFormConfigAndSummary(t *testing.T) {
	trip, _ := newManual(t, modes.Car, &fakeBackend{})

	cfg := trip.FormConfig()
	assert.Equal(t, modes.Car, cfg.TransportMode)
	assert.Equal(t, []string{"distance", "vehicleMake", "vehicleModel"}, cfg.Required)
	assert.Equal(t, []string{modes.PluginCarAPI}, cfg.Plugins)

	assert.True(t, trip.IsFieldReadonly("distance"))
	assert.False(t, trip.IsFieldReadonly("trips"))
	assert.False(t, trip.IsFieldReadonly("vehicleMake"))

	trip.UpdateField("trips", 0.0)
	summary := trip.Summary()
	assert.Equal(t, "manual", summary.Mode)
	require.Contains(t, summary.FormData, "trips")
	require.NotNil(t, summary.FormData["trips"].Error)
	assert.Equal(t, "Trips per Week must be at least 1", *summary.FormData["trips"].Error)
	assert.Nil(t, summary.FormData["extraLoad"].Error)
	assert.True(t, summary.FormData["distance"].Readonly)
}
