package trip

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langchou/tripgazer/internal/api/carbon"
	"github.com/langchou/tripgazer/internal/modes"
)

func TestBaseLifecycleIsAbstract(t *testing.T) {
	b, err := newBase(modes.Car, "user-1", KindManual, &Options{})
	require.NoError(t, err)

	assert.PanicsWithError(t, "startTrip() must be implemented by a concrete trip", func() {
		b.StartTrip(context.Background(), testCred)
	})
	assert.PanicsWithError(t, "endTrip() must be implemented by a concrete trip", func() {
		b.EndTrip(context.Background(), testCred)
	})
}

func TestUnknownMode(t *testing.T) {
	_, err := NewManualTrip("boat", "user-1", Options{})
	var unknown *modes.UnknownModeError
	assert.True(t, errors.As(err, &unknown))

	_, err = NewLiveTrip("boat", "user-1", Options{})
	assert.True(t, errors.As(err, &unknown))
}

func TestInitializeDataIsDeterministic(t *testing.T) {
	trip, _ := newManual(t, modes.Car, &fakeBackend{})

	first := trip.initializeData()
	second := trip.initializeData()
	assert.Equal(t, first, second)
	assert.Equal(t, first, trip.State().Data)

	trip.UpdateData(modes.Data{"distance": 42.0, "vehicleMake": "Mazda"})
	assert.Equal(t, 42.0, trip.State().Data["distance"])

	trip.Reset()
	state := trip.State()
	assert.Equal(t, first, state.Data)
	assert.Nil(t, state.Emission)
	assert.False(t, state.IsActive)
	assert.False(t, state.IsCompleted)
	assert.Empty(t, state.Errors)
}

func TestValidateCar(t *testing.T) {
	trip, _ := newManual(t, modes.Car, &fakeBackend{})

	trip.UpdateData(modes.Data{"distance": float64(0), "vehicleMake": "Toyota", "vehicleModel": "Corolla"})
	assert.False(t, trip.Validate())
	assert.Contains(t, trip.State().Errors, "distance")

	trip.UpdateData(modes.Data{"distance": 5.0, "trips": 2.0})
	assert.True(t, trip.Validate())
	assert.Empty(t, trip.State().Errors)
}

func TestValidateRequiredMessage(t *testing.T) {
	trip, _ := newManual(t, modes.Car, &fakeBackend{})

	trip.UpdateData(modes.Data{"distance": 5.0})
	assert.False(t, trip.Validate())
	errs := trip.State().Errors
	assert.Equal(t, "vehicleMake is required", errs["vehicleMake"])
	assert.Equal(t, "vehicleModel is required", errs["vehicleModel"])
}

func TestValidateFlightAirports(t *testing.T) {
	for _, data := range []modes.Data{
		{"fromAirport": "SYD", "toAirport": "SYD"},
		{"fromAirport": "SYD", "toAirport": "SYD", "passengers": 3.0, "flightClass": "business"},
	} {
		trip, _ := newManual(t, modes.Flight, &fakeBackend{})
		trip.UpdateData(data)
		assert.False(t, trip.Validate())
		assert.Equal(t, "From and To airports must be different", trip.State().Errors[modes.AirportsRule])
	}
}

func TestCustomRuleSkipsUndefinedKeys(t *testing.T) {
	trip, _ := newManual(t, modes.Car, &fakeBackend{})
	trip.mu.Lock()
	delete(trip.data, "trips")
	trip.mu.Unlock()

	trip.UpdateData(modes.Data{"distance": 5.0, "vehicleMake": "Toyota", "vehicleModel": "Corolla"})
	assert.True(t, trip.Validate())
}

func TestCalculateEmissionsScenario(t *testing.T) {
	backend := &fakeBackend{emissionKg: 2000}
	trip, log := newManual(t, modes.Car, backend)

	trip.UpdateData(modes.Data{"distance": 10.0, "trips": 1.0, "vehicleMake": "Toyota", "vehicleModel": "Corolla"})
	require.True(t, trip.Validate())
	require.True(t, trip.CalculateEmissions(context.Background(), ""))

	state := trip.State()
	require.NotNil(t, state.Emission)
	assert.Equal(t, 2.0, *state.Emission)
	assert.Equal(t, 2000.0, state.Data["emissionKg"])
	assert.Equal(t, *state.Emission, state.Data.Number("emissionKg")/1000)
	assert.False(t, state.Loading)

	assert.Equal(t, "/emissions/car/emissions", backend.lastPath)
	assert.Equal(t, map[string]any{"vehicleMake": "Toyota", "vehicleModel": "Corolla", "distanceKm": 10.0}, backend.lastCalc)

	var loading []bool
	for _, ev := range log.ofType(EventStateChange) {
		if v, ok := ev.Payload["loading"].(bool); ok {
			loading = append(loading, v)
		}
	}
	assert.Equal(t, []bool{true, false}, loading)
}

func TestCalculateEmissionsValidationFailure(t *testing.T) {
	backend := &fakeBackend{emissionKg: 1}
	trip, log := newManual(t, modes.Bus, backend)

	assert.False(t, trip.CalculateEmissions(context.Background(), testCred))
	assert.Zero(t, backend.requests())

	ev, ok := log.lastError()
	require.True(t, ok)
	assert.Equal(t, "Validation failed", ev.Title)
	assert.Equal(t, "Distance must be greater than 0", ev.Errors["distance"])
}

func TestCalculateEmissionsFailure(t *testing.T) {
	cases := map[string]error{
		"network": &carbon.NetworkError{Op: "calculate emissions", Status: 500, Message: "Upstream down"},
		"format":  carbon.ErrInvalidResponseFormat,
	}

	for name, calcErr := range cases {
		t.Run(name, func(t *testing.T) {
			backend := &fakeBackend{calcErr: calcErr}
			trip, log := newManual(t, modes.Bus, backend)
			trip.UpdateData(modes.Data{"distance": 3.0})

			assert.False(t, trip.CalculateEmissions(context.Background(), ""))

			state := trip.State()
			assert.Nil(t, state.Emission)
			assert.False(t, state.Loading)
			assert.NotContains(t, state.Data, "emissionKg")

			ev, ok := log.lastError()
			require.True(t, ok)
			assert.Equal(t, "Failed to calculate emissions", ev.Title)
			assert.Equal(t, carbon.Detail(calcErr), ev.Detail)
		})
	}
}

func TestSaveTripRequiresCredential(t *testing.T) {
	backend := &fakeBackend{emissionKg: 100}
	trip, log := newManual(t, modes.Bus, backend)
	trip.UpdateData(modes.Data{"distance": 3.0})
	require.True(t, trip.CalculateEmissions(context.Background(), ""))

	assert.False(t, trip.SaveTrip(context.Background(), ""))
	assert.Zero(t, backend.saveCalls)

	ev, ok := log.lastError()
	require.True(t, ok)
	assert.Equal(t, "Authentication required", ev.Title)
	assert.Equal(t, "You must be logged in to save trips", ev.Detail)
	assert.False(t, trip.State().IsCompleted)
}

func TestSaveTripRequiresEmission(t *testing.T) {
	backend := &fakeBackend{}
	trip, log := newManual(t, modes.Bus, backend)

	assert.False(t, trip.SaveTrip(context.Background(), testCred))
	assert.Zero(t, backend.requests())

	ev, ok := log.lastError()
	require.True(t, ok)
	assert.Equal(t, "No data to save", ev.Title)
}

func TestSaveTripFailureKeepsIncomplete(t *testing.T) {
	backend := &fakeBackend{emissionKg: 100, saveErr: &carbon.NetworkError{Op: "log emission", Status: 401, Message: "Invalid token"}}
	trip, log := newManual(t, modes.Tram, backend)
	trip.UpdateData(modes.Data{"distance": 3.0})
	require.True(t, trip.CalculateEmissions(context.Background(), testCred))

	assert.False(t, trip.SaveTrip(context.Background(), testCred))
	state := trip.State()
	assert.False(t, state.IsCompleted)
	assert.False(t, state.Loading)

	ev, _ := log.lastError()
	assert.Equal(t, "Failed to save trip", ev.Title)
	assert.Equal(t, "Invalid token", ev.Detail)
}

func TestSaveTripFlightStampsDate(t *testing.T) {
	clk := newClock()
	backend := &fakeBackend{emissionKg: 250}
	log := &eventLog{}
	opts := testOptions(t, backend, log)
	opts.Now = clk.Now

	trip, err := NewManualTrip(modes.Flight, "user-1", opts)
	require.NoError(t, err)
	defer trip.Destroy()

	trip.UpdateData(modes.Data{"fromAirport": "SYD", "toAirport": "MEL"})
	require.True(t, trip.CalculateEmissions(context.Background(), testCred))
	require.True(t, trip.SaveTrip(context.Background(), testCred))

	assert.Equal(t, "2024-05-01T08:00:00Z", backend.lastSave["date"])
	assert.Equal(t, "flight", backend.lastSave["transportMode"])
	assert.Equal(t, 250.0, backend.lastSave["emissionKg"])
	assert.NotContains(t, trip.State().Data, "date")
	assert.True(t, trip.State().IsCompleted)
	assert.True(t, log.hasPayload("manualSaved"))
}

func TestLoadPlugins(t *testing.T) {
	trip, log := newManual(t, modes.Car, &fakeBackend{})

	var order []string
	car := &stubPlugin{id: modes.PluginCarAPI, order: &order}
	flight := &stubPlugin{id: modes.PluginFlightAPI, order: &order}

	trip.LoadPlugins(context.Background(), map[string]Plugin{
		modes.PluginCarAPI:    car,
		modes.PluginFlightAPI: flight,
	})

	assert.Equal(t, []string{modes.PluginCarAPI}, order)
	assert.Equal(t, []string{modes.PluginCarAPI}, trip.State().Plugins)

	p, ok := trip.Plugin(modes.PluginCarAPI)
	assert.True(t, ok)
	assert.Same(t, car, p)
	_, ok = trip.Plugin(modes.PluginFlightAPI)
	assert.False(t, ok)

	updates := log.ofType(EventDataUpdate)
	require.NotEmpty(t, updates)
	assert.Equal(t, modes.PluginCarAPI, updates[len(updates)-1].Payload["pluginReady"])

	trip.Destroy()
	assert.True(t, car.destroyed)
	assert.False(t, flight.destroyed)
	assert.Empty(t, trip.State().Plugins)
}

func TestLoadPluginsMissingIsNonFatal(t *testing.T) {
	trip, _ := newManual(t, modes.Flight, &fakeBackend{})

	trip.LoadPlugins(context.Background(), nil)
	assert.Empty(t, trip.State().Plugins)

	trip.UpdateData(modes.Data{"fromAirport": "SYD", "toAirport": "MEL"})
	assert.True(t, trip.Validate())
}

func TestDestroyedTripIgnoresOperations(t *testing.T) {
	backend := &fakeBackend{emissionKg: 5}
	trip, _ := newManual(t, modes.Bus, backend)
	trip.UpdateData(modes.Data{"distance": 1.0})

	trip.Destroy()
	trip.Destroy()

	assert.False(t, trip.CalculateEmissions(context.Background(), testCred))
	assert.False(t, trip.SaveTrip(context.Background(), testCred))
	assert.Zero(t, backend.requests())
}
