package telemetry

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error"`

	// Format is json or console.
	Format string `yaml:"format" validate:"omitempty,oneof=json console"`

	// Output is stdout, stderr or a file path.
	Output string `yaml:"output"`
}

// TracingConfig selects the span exporter.
type TracingConfig struct {
	// Exporter is none, stdout, otlp-http or otlp-grpc.
	Exporter string `yaml:"exporter" validate:"omitempty,oneof=none stdout otlp-http otlp-grpc"`

	// Endpoint is the collector address for the OTLP exporters.
	Endpoint string `yaml:"endpoint" validate:"required_if=Exporter otlp-http,required_if=Exporter otlp-grpc"`
}

// MetricsConfig configures the Prometheus listener.
type MetricsConfig struct {
	Namespace string `yaml:"namespace"`

	// Listen is the address serving /metrics. Empty disables the listener.
	Listen string `yaml:"listen" validate:"omitempty,hostname_port"`
}

// DefaultLoggingConfig logs warnings and above to stderr in console format.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:  "warn",
		Format: "console",
		Output: "stderr",
	}
}
