package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/stefanpenner/ghclient/pkg/config"
	"github.com/stefanpenner/ghclient/pkg/githubapi"
	"github.com/stefanpenner/ghclient/pkg/telemetry"
	"github.com/stefanpenner/ghclient/pkg/tui"
	"github.com/stefanpenner/ghclient/pkg/versioncheck"
)

type rootFlags struct {
	configFile  string
	host        string
	logLevel    string
	metricsAddr string
}

// app holds everything built from the loaded configuration for one command
// invocation.
type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	client    *githubapi.Client
	scheduler *versioncheck.Scheduler
	tracer    *sdktrace.TracerProvider
	metrics   *http.Server
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}
	a := &app{}

	cmd := &cobra.Command{
		Use:           "ghclient",
		Short:         "Talk to the GitHub GraphQL and REST APIs",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context(), flags)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.shutdown(cmd.Context())
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&flags.host, "host", "", "GitHub host (overrides config and GH_HOST)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: trace, debug, info, warn or error")
	cmd.PersistentFlags().StringVar(&flags.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	cmd.AddCommand(
		newGraphQLCommand(a),
		newCodespaceCommand(a),
		newVersionCheckCommand(a),
	)
	return cmd
}

func (a *app) setup(ctx context.Context, flags *rootFlags) error {
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return err
	}
	if flags.host != "" {
		cfg.Host = flags.host
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	if flags.metricsAddr != "" {
		cfg.Metrics.Listen = flags.metricsAddr
	}
	if cfg.VersionCheck.CurrentVersion == "" {
		cfg.VersionCheck.CurrentVersion = version
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	a.logger, err = telemetry.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}

	a.tracer, err = telemetry.NewTracerProvider(ctx, cfg.Tracing, "ghclient", version)
	if err != nil {
		return err
	}

	recorder, err := a.recorder()
	if err != nil {
		return err
	}

	a.scheduler = versioncheck.New(cfg.VersionCheck,
		versioncheck.WithLogger(telemetry.Component(a.logger, "versioncheck")),
		versioncheck.WithAdvisor(tui.AdvisoryPrinter(os.Stderr)),
	)
	a.scheduler.CheckIfDue(ctx)

	opts := append(cfg.ClientOptions(),
		githubapi.WithLogger(telemetry.Component(a.logger, "githubapi")),
		githubapi.WithRecorder(recorder),
		githubapi.WithVersionChecker(a.scheduler),
	)
	a.client = githubapi.NewClient(githubapi.NewContext(cfg.Token), opts...)
	return nil
}

// recorder combines the OTel meter with a Prometheus registry when a metrics
// listener is configured.
func (a *app) recorder() (telemetry.Recorder, error) {
	otelRecorder, err := telemetry.NewOTelRecorder()
	if err != nil {
		return nil, err
	}
	if a.cfg.Metrics.Listen == "" {
		return otelRecorder, nil
	}

	prom, err := telemetry.NewPrometheusRecorder(a.cfg.Metrics)
	if err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", a.cfg.Metrics.Listen)
	if err != nil {
		return nil, errors.Wrapf(err, "listening on %s", a.cfg.Metrics.Listen)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", prom.Handler())
	a.metrics = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.metrics.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Msg("metrics listener stopped")
		}
	}()
	a.logger.Info().Str("addr", listener.Addr().String()).Msg("serving metrics")

	return telemetry.MultiRecorder{otelRecorder, prom}, nil
}

func (a *app) shutdown(ctx context.Context) error {
	if a.scheduler != nil {
		// Report a check that already finished; an unfinished one is dropped.
		a.scheduler.Result()
		a.scheduler.Close()
	}

	var errs error
	if a.metrics != nil {
		errs = errors.CombineErrors(errs, a.metrics.Shutdown(ctx))
	}
	if a.tracer != nil {
		errs = errors.CombineErrors(errs, a.tracer.Shutdown(ctx))
	}
	return errs
}
