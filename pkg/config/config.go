package config

import "context"

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	WaitForServices   string  // duration to wait for other services to be ready
	LogLevel          string  // sets the log level (zap log level values)
	LogFormat         string  // text vs json
	LogFilter         string  // zapfilter rules applied to the log output
	ReferenceData     string  // path to a yaml file replacing the embedded reference data
	EnableTelemetry   bool    // enable telemetry
	TelemetryEndpoint string  // endpoint for telemetry
	TelemetryExporter string  // otlp or stdout
	ProfilingPort     int     // port for profiling
	ServerAddr        string  // listen addr for the API server (h2c)
	TLSCertFile       string  // if set together with TLSKeyFile the server uses TLS
	TLSKeyFile        string  // private key for TLSCertFile
	TLSCAFile         string  // CA used to verify client certificates (optional)
	NatsURL           string  // if set, prediction runs are published to this NATS server
	NatsSubjectPrefix string  // subject prefix for published runs
	NatsKVBucket      string  // if set, the latest run per circuit is stored in this KV bucket
	ServerURL         string  // base url of a running API server (client commands)
	Circuit           string  // circuit used by predict commands
	ModelType         string  // performance, ml or hybrid
	MLModel           string  // linear, ridge, rf, gbm
	MLWeight          float64 // weight of the ml estimate in hybrid mode
	Weather           string  // dry, damp or wet
	UsePerformance    bool    // if false, the ml estimate is used exclusively
	Seed              int64   // seed for the jitter source, 0 means unseeded
	OutputFormat      string  // table or json
)

// Config holds the configuration values which are used by the application
type Config struct {
	DebugWire bool // if true, every send on a prediction stream is logged
}

type contextKey struct{}

func NewContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(contextKey{}).(*Config); ok {
		return cfg
	}
	return &Config{}
}
