package modes

import "time"

func ptr(f float64) *float64 { return &f }

var order = []Mode{Car, Flight, Bus, Metro, Tram}

// registry 在进程启动时构建，之后不再修改
var registry = map[Mode]*Config{
	Car: {
		Mode: Car,
		Name: "Car",
		Icon: "🚗",
		API:  API{Emissions: "/emissions/car/emissions", Method: "POST"},
		Fields: []Field{
			// 由 GPS 填充
			{Key: "distance", Type: FieldNumber, Label: "Distance per Trip (km)", Required: true, Min: ptr(0), Readonly: true},
			{Key: "trips", Type: FieldNumber, Label: "Trips per Week", Required: true, Min: ptr(1), Default: float64(1)},
			{Key: "extraLoad", Type: FieldSelect, Label: "Extra Load", Default: "none", Options: []Option{
				{Value: "none", Label: "None"},
				{Value: "caravan", Label: "Caravan"},
				{Value: "boat", Label: "Boat"},
				{Value: "trailer-light", Label: "Trailer (Light)"},
				{Value: "trailer-medium", Label: "Trailer (Medium)"},
				{Value: "trailer-heavy", Label: "Trailer (Heavy)"},
			}},
		},
		Validation: Validation{
			Required: []string{"distance", "vehicleMake", "vehicleModel"},
			Custom: []Rule{
				{Key: "distance", Check: positiveDistance},
				{Key: "trips", Check: atLeastOne("Must have at least 1 trip per week")},
			},
		},
		Plugins: []string{PluginCarAPI},
		GPS:     GPS{Enabled: true, UpdateInterval: time.Second, Accuracy: "high"},
		SavePayload: func(d Data) map[string]any {
			return payload{"transportMode": string(Car)}.
				copy(d, "vehicleMake", "vehicleMake").
				copy(d, "vehicleModel", "vehicleModel").
				copy(d, "distanceKm", "distance").
				copy(d, "trips", "trips").
				copy(d, "extraLoad", "extraLoad").
				copy(d, "emissionKg", "emissionKg")
		},
		EmissionsPayload: func(d Data) map[string]any {
			return payload{}.
				copy(d, "vehicleMake", "vehicleMake").
				copy(d, "vehicleModel", "vehicleModel").
				copy(d, "distanceKm", "distance")
		},
	},

	Flight: {
		Mode: Flight,
		Name: "Flight",
		Icon: "✈️",
		API:  API{Emissions: "/emissions/flight/emissions", Method: "POST"},
		Fields: []Field{
			{Key: "passengers", Type: FieldNumber, Label: "Number of Passengers", Required: true, Min: ptr(1), Default: float64(1)},
			{Key: "flightClass", Type: FieldSelect, Label: "Flight Class", Default: "economy", Options: []Option{
				{Value: "economy", Label: "Economy"},
				{Value: "premium-economy", Label: "Premium Economy"},
				{Value: "business", Label: "Business"},
				{Value: "first", Label: "First Class"},
			}},
			{Key: "roundTrip", Type: FieldCheckbox, Label: "Round Trip", Default: false},
		},
		Validation: Validation{
			Required: []string{"fromAirport", "toAirport", "passengers"},
			Custom: []Rule{
				{Key: "passengers", Check: atLeastOne("Must have at least 1 passenger")},
				{Key: AirportsRule, CheckData: distinctAirports},
			},
		},
		Plugins: []string{PluginFlightAPI},
		// 航班不使用 GPS 追踪
		GPS:           GPS{Enabled: false},
		StampSaveDate: true,
		SavePayload: func(d Data) map[string]any {
			return payload{"transportMode": string(Flight)}.
				copy(d, "emissionKg", "emissionKg").
				copy(d, "passengers", "passengers").
				copy(d, "flightClass", "flightClass").
				copy(d, "roundTrip", "roundTrip").
				copy(d, "fromAirport", "fromAirport").
				copy(d, "toAirport", "toAirport").
				copy(d, "date", "date")
		},
		EmissionsPayload: func(d Data) map[string]any {
			return payload{}.
				copy(d, "fromAirport", "fromAirport").
				copy(d, "toAirport", "toAirport").
				copy(d, "passengers", "passengers").
				copy(d, "flightClass", "flightClass").
				copy(d, "roundTrip", "roundTrip")
		},
	},

	Bus:   transitConfig(Bus, "Bus", "🚌", "Bus Distance Travelled (km)"),
	Metro: transitConfig(Metro, "Metro", "🚇", "Metro Distance Travelled (km)"),
	Tram:  transitConfig(Tram, "Tram", "🚋", "Tram Distance Travelled (km)"),
}

// transitConfig 公共交通（只需要距离）
func transitConfig(mode Mode, name, icon, label string) *Config {
	return &Config{
		Mode: mode,
		Name: name,
		Icon: icon,
		API:  API{Emissions: "/emissions/" + string(mode) + "/emissions", Method: "POST"},
		Fields: []Field{
			{Key: "distance", Type: FieldNumber, Label: label, Required: true, Min: ptr(0), Readonly: true},
		},
		Validation: Validation{
			Required: []string{"distance"},
			Custom: []Rule{
				{Key: "distance", Check: positiveDistance},
			},
		},
		Plugins: []string{},
		GPS:     GPS{Enabled: true, UpdateInterval: time.Second, Accuracy: "high"},
		SavePayload: func(d Data) map[string]any {
			return payload{"transportMode": string(mode)}.
				copy(d, "distanceKm", "distance").
				copy(d, "emissionKg", "emissionKg")
		},
		EmissionsPayload: func(d Data) map[string]any {
			return payload{}.copy(d, "distanceKm", "distance")
		},
	}
}

// Get 获取出行方式配置
func Get(mode Mode) (*Config, error) {
	cfg, ok := registry[mode]
	if !ok {
		return nil, &UnknownModeError{Mode: mode}
	}
	return cfg, nil
}

// All 按注册顺序返回全部出行方式
func All() []Mode {
	out := make([]Mode, len(order))
	copy(out, order)
	return out
}

// ValidatePlugins 检查出行方式所需插件是否全部可用
func ValidatePlugins(mode Mode, available []string) error {
	cfg, err := Get(mode)
	if err != nil {
		return err
	}

	have := make(map[string]bool, len(available))
	for _, id := range available {
		have[id] = true
	}

	var missing []string
	for _, id := range cfg.Plugins {
		if !have[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return &MissingPluginsError{Mode: mode, Missing: missing}
	}
	return nil
}

func positiveDistance(v any) string {
	if n, ok := ToNumber(v); ok && n > 0 {
		return ""
	}
	return "Distance must be greater than 0"
}

func atLeastOne(msg string) func(any) string {
	return func(v any) string {
		if n, ok := ToNumber(v); ok && n >= 1 {
			return ""
		}
		return msg
	}
}

func distinctAirports(d Data) string {
	if d.Equal("fromAirport", "toAirport") {
		return "From and To airports must be different"
	}
	return ""
}

// payload 请求体投影，未定义的字段不输出
type payload map[string]any

func (p payload) copy(d Data, to, from string) payload {
	if v, ok := d[from]; ok {
		p[to] = v
	}
	return p
}
