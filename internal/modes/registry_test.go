package modes

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAllModes(t *testing.T) {
	for _, mode := range All() {
		t.Run(string(mode), func(t *testing.T) {
			cfg, err := Get(mode)
			require.NoError(t, err)

			assert.Equal(t, mode, cfg.Mode)
			assert.NotEmpty(t, cfg.Fields)
			assert.NotEmpty(t, cfg.Validation.Required)
			assert.NotNil(t, cfg.SavePayload)
			assert.NotNil(t, cfg.EmissionsPayload)
			assert.Equal(t, "/emissions/"+string(mode)+"/emissions", cfg.API.Emissions)
			assert.Equal(t, "POST", cfg.API.Method)
		})
	}
}

func TestGetUnknownMode(t *testing.T) {
	cfg, err := Get("boat")
	assert.Nil(t, cfg)

	var unknown *UnknownModeError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, Mode("boat"), unknown.Mode)
	assert.Equal(t, "unknown transport mode: boat", err.Error())
}

func TestAllOrder(t *testing.T) {
	assert.Equal(t, []Mode{Car, Flight, Bus, Metro, Tram}, All())

	modes := All()
	modes[0] = "boat"
	assert.Equal(t, Car, All()[0])
}

func TestPayloadsArePure(t *testing.T) {
	inputs := map[Mode]Data{
		Car: {
			"distance": 12.5, "trips": float64(2), "extraLoad": "none",
			"vehicleMake": "Toyota", "vehicleModel": "Corolla", "emissionKg": 2.1,
		},
		Flight: {
			"fromAirport": "SYD", "toAirport": "MEL", "passengers": float64(1),
			"flightClass": "economy", "roundTrip": false, "emissionKg": 150.0,
			"date": "2024-01-01T00:00:00Z",
		},
		Bus:   {"distance": 3.2, "emissionKg": 0.3},
		Metro: {"distance": 8.0},
		Tram:  {"distance": 1.1},
	}

	for mode, data := range inputs {
		t.Run(string(mode), func(t *testing.T) {
			cfg, err := Get(mode)
			require.NoError(t, err)

			before := data.Clone()

			save1 := cfg.SavePayload(data)
			save2 := cfg.SavePayload(data)
			calc1 := cfg.EmissionsPayload(data)
			calc2 := cfg.EmissionsPayload(data)

			assert.Equal(t, save1, save2)
			assert.Equal(t, calc1, calc2)
			assert.Equal(t, before, data)
			assert.Equal(t, string(mode), save1["transportMode"])
		})
	}
}

func TestPayloadOmitsAbsentKeys(t *testing.T) {
	cfg, err := Get(Metro)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"transportMode": "metro"}, cfg.SavePayload(Data{}))
	assert.Equal(t, map[string]any{"distanceKm": 4.0}, cfg.EmissionsPayload(Data{"distance": 4.0}))
}

func TestFlightSavePayloadCarriesDate(t *testing.T) {
	cfg, err := Get(Flight)
	require.NoError(t, err)
	assert.True(t, cfg.StampSaveDate)
	assert.False(t, cfg.GPS.Enabled)

	out := cfg.SavePayload(Data{"fromAirport": "SYD", "toAirport": "MEL", "date": "2024-05-01T10:00:00Z"})
	assert.Equal(t, "2024-05-01T10:00:00Z", out["date"])
	assert.Equal(t, "SYD", out["fromAirport"])
}

func TestValidatePlugins(t *testing.T) {
	assert.NoError(t, ValidatePlugins(Car, []string{PluginCarAPI, PluginFlightAPI}))
	assert.NoError(t, ValidatePlugins(Bus, nil))

	err := ValidatePlugins(Flight, []string{PluginCarAPI})
	var missing *MissingPluginsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{PluginFlightAPI}, missing.Missing)
	assert.Contains(t, err.Error(), "flightAPI")

	var unknown *UnknownModeError
	assert.True(t, errors.As(ValidatePlugins("boat", nil), &unknown))
}

func TestDefaultData(t *testing.T) {
	car, err := Get(Car)
	require.NoError(t, err)
	assert.Equal(t, Data{"distance": float64(0), "trips": float64(1), "extraLoad": "none"}, car.DefaultData())

	flight, err := Get(Flight)
	require.NoError(t, err)
	assert.Equal(t, Data{"passengers": float64(1), "flightClass": "economy", "roundTrip": false}, flight.DefaultData())

	assert.Equal(t, car.DefaultData(), car.DefaultData())
}

func TestCustomRules(t *testing.T) {
	car, err := Get(Car)
	require.NoError(t, err)

	distance, ok := car.Validation.Rule("distance")
	require.True(t, ok)
	assert.Equal(t, "Distance must be greater than 0", distance.Check(float64(0)))
	assert.Empty(t, distance.Check(5.0))

	trips, ok := car.Validation.Rule("trips")
	require.True(t, ok)
	assert.Equal(t, "Must have at least 1 trip per week", trips.Check(float64(0)))
	assert.Empty(t, trips.Check("2"))

	flight, err := Get(Flight)
	require.NoError(t, err)
	airports, ok := flight.Validation.Rule(AirportsRule)
	require.True(t, ok)
	assert.Equal(t, "From and To airports must be different", airports.CheckData(Data{"fromAirport": "SYD", "toAirport": "SYD"}))
	assert.Empty(t, airports.CheckData(Data{"fromAirport": "SYD", "toAirport": "MEL"}))
}

func TestTruthy(t *testing.T) {
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy(""))
	assert.False(t, Truthy(float64(0)))
	assert.False(t, Truthy(false))
	assert.True(t, Truthy("0"))
	assert.True(t, Truthy(0.1))
	assert.True(t, Truthy(true))
}
