// Package config loads client settings from an optional YAML file and the
// environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/stefanpenner/ghclient/pkg/githubapi"
	"github.com/stefanpenner/ghclient/pkg/lifecycle"
	"github.com/stefanpenner/ghclient/pkg/telemetry"
	"github.com/stefanpenner/ghclient/pkg/versioncheck"
)

// Environment variables read by Load.
const (
	EnvGHToken        = "GH_TOKEN"
	EnvGitHubToken    = "GITHUB_TOKEN"
	EnvHost           = "GH_HOST"
	EnvLogLevel       = "GHCLIENT_LOG_LEVEL"
	EnvNoVersionCheck = "GHCLIENT_NO_VERSION_CHECK"
)

type Config struct {
	Host      string `yaml:"host" validate:"required,hostname|hostname_port"`
	UserAgent string `yaml:"user_agent"`
	// Token is only ever read from the environment.
	Token string `yaml:"-"`

	Timeout         time.Duration `yaml:"timeout" validate:"gte=0"`
	CacheDir        string        `yaml:"cache_dir"`
	MaxConcurrency  int           `yaml:"max_concurrency" validate:"gte=1,lte=100"`
	RequestsPerHour int           `yaml:"requests_per_hour" validate:"gte=0"`

	VersionCheck versioncheck.Config    `yaml:"version_check"`
	Poll         lifecycle.Config        `yaml:"poll"`
	Logging      telemetry.LoggingConfig `yaml:"logging"`
	Tracing      telemetry.TracingConfig `yaml:"tracing"`
	Metrics      telemetry.MetricsConfig `yaml:"metrics"`
}

func Default() *Config {
	return &Config{
		Host:           githubapi.DefaultHost,
		UserAgent:      githubapi.DefaultUserAgent,
		Timeout:        githubapi.DefaultTimeout,
		MaxConcurrency: 10,
		VersionCheck: versioncheck.Config{
			ModuleName: "ghclient",
		},
		Poll:    lifecycle.Config{Interval: lifecycle.MinInterval},
		Logging: telemetry.DefaultLoggingConfig(),
		Tracing: telemetry.TracingConfig{Exporter: "none"},
	}
}

// Load reads path over the defaults when it is set, applies the environment
// and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "reading config %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parsing config %s", path)
		}
	}

	cfg.ApplyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides settings from environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	for _, key := range []string{EnvGHToken, EnvGitHubToken} {
		if token := strings.TrimSpace(getenv(key)); token != "" {
			c.Token = token
			break
		}
	}
	if host := strings.TrimSpace(getenv(EnvHost)); host != "" {
		c.Host = host
	}
	if level := strings.TrimSpace(getenv(EnvLogLevel)); level != "" {
		c.Logging.Level = strings.ToLower(level)
	}
	if raw := strings.TrimSpace(getenv(EnvNoVersionCheck)); raw != "" {
		disabled, err := strconv.ParseBool(raw)
		c.VersionCheck.Disabled = err != nil || disabled
	}
}

func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	return nil
}

// ClientOptions maps the settings onto githubapi client options.
func (c *Config) ClientOptions() []githubapi.Option {
	opts := []githubapi.Option{
		githubapi.WithHost(c.Host),
		githubapi.WithUserAgent(c.UserAgent),
		githubapi.WithDefaultTimeout(c.Timeout),
		githubapi.WithMaxConcurrency(c.MaxConcurrency),
		githubapi.WithRequestsPerHour(c.RequestsPerHour),
	}
	if c.CacheDir != "" {
		opts = append(opts, githubapi.WithCacheDir(c.CacheDir))
	}
	return opts
}
