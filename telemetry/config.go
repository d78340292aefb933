package telemetry

// Config configures the telemetry system: whether it is on at all, the
// service name attached to every span/log line, where spans are exported,
// and the trace sampling rate.
type Config struct {
	Enabled      bool
	ServiceName  string
	Endpoint     string // OTLP/gRPC collector address; ignored in dev (stdout exporter)
	SamplingRate float64
}

// Profile is a pre-configured Config for a deployment environment.
type Profile string

const (
	ProfileDevelopment Profile = "development"
	ProfileProduction  Profile = "production"
)

// Profiles contains the pre-configured profiles: development traces
// everything to stdout, production samples lightly and ships to a
// collector.
var Profiles = map[Profile]Config{
	ProfileDevelopment: {
		Enabled:      true,
		ServiceName:  "cascaderouter",
		SamplingRate: 1.0,
	},
	ProfileProduction: {
		Enabled:      true,
		ServiceName:  "cascaderouter",
		Endpoint:     "otel-collector:4317",
		SamplingRate: 0.05,
	},
}

// UseProfile returns the named profile, defaulting to development.
func UseProfile(profile Profile) Config {
	if c, ok := Profiles[profile]; ok {
		return c
	}
	return Profiles[ProfileDevelopment]
}

// WithOverrides applies non-zero fields of overrides onto c, returning the
// merged Config.
func (c Config) WithOverrides(overrides Config) Config {
	if overrides.ServiceName != "" {
		c.ServiceName = overrides.ServiceName
	}
	if overrides.Endpoint != "" {
		c.Endpoint = overrides.Endpoint
	}
	if overrides.SamplingRate > 0 {
		c.SamplingRate = overrides.SamplingRate
	}
	return c
}
