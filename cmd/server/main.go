// Radtriage grades medical imaging studies by severity with an AI classifier
// and keeps a ranked, annotatable history of the results.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/linnemanlabs/go-core/cfg"
	"github.com/linnemanlabs/go-core/health"
	"github.com/linnemanlabs/go-core/httpmw"
	"github.com/linnemanlabs/go-core/httpserver"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/metrics"
	"github.com/linnemanlabs/go-core/opshttp"
	"github.com/linnemanlabs/go-core/otelx"
	"github.com/linnemanlabs/go-core/prof"
	v "github.com/linnemanlabs/go-core/version"

	rc "github.com/linnemanlabs/radtriage/internal/cfg"
	"github.com/linnemanlabs/radtriage/internal/notify/slack"
	"github.com/linnemanlabs/radtriage/internal/triage"
)

const (
	appName   = "radtriage"
	component = "server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal error:", err)
		os.Exit(1)
	}
}

// settings groups the flag-backed config of every package main wires.
type settings struct {
	app    rc.Config
	http   httpserver.Config
	httpmw httpmw.Config
	log    log.Config
	ops    opshttp.Config
	prof   prof.Config
	trace  otelx.Config
}

func (s *settings) register(fs *flag.FlagSet) {
	s.app.RegisterFlags(fs)
	s.http.RegisterFlags(fs)
	s.httpmw.RegisterFlags(fs)
	s.log.RegisterFlags(fs)
	s.ops.RegisterFlags(fs)
	s.prof.RegisterFlags(fs)
	s.trace.RegisterFlags(fs)
}

func (s *settings) validate() error {
	if err := errors.Join(
		s.app.Validate(),
		s.http.Validate(),
		s.httpmw.Validate(),
		s.log.Validate(),
		s.ops.Validate(),
		s.prof.Validate(),
		s.trace.Validate(),
	); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if s.app.APIPort == s.ops.Port {
		return fmt.Errorf("http and admin ports must differ (both %d)", s.app.APIPort)
	}
	return nil
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v.AppName = appName
	v.Component = component
	vi := v.Get()

	var s settings
	s.register(flag.CommandLine)
	showVersion := flag.Bool("V", false, "Print version+build information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (%s) %s (commit=%s, commit_date=%s, build_id=%s, build_date=%s, go=%s, dirty=%v)\n",
			vi.AppName, vi.Component, vi.Version, vi.Commit, vi.CommitDate, vi.BuildId, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty,
		)
		return nil
	}

	// env fills only flags left unset on the command line
	cfg.FillFromEnv(flag.CommandLine, "RADTRIAGE_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})
	if err := s.validate(); err != nil {
		return err
	}

	lg, err := log.New(s.log.ToOptions(v.AppName))
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = lg.Sync() }()

	L := lg.With("component", vi.Component)
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "starting radtriage",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_id", vi.BuildId,
		"go_version", vi.GoVersion,
		"http_port", s.app.APIPort,
		"admin_port", s.ops.Port,
		"classifier", s.app.Classifier,
		"storage_backend", s.app.StorageBackend,
		"max_upload_mb", s.app.MaxUploadMB,
		"critical_threshold", s.app.CriticalThreshold,
		"enable_tracing", s.trace.EnableTracing,
		"enable_pyroscope", s.prof.EnablePyroscope,
	)

	profOpts := s.prof.ToOptions()
	profOpts.AppName = v.AppName
	profOpts.Tags = map[string]string{
		"app":       v.AppName,
		"component": v.Component,
		"version":   vi.Version,
		"commit":    vi.Commit,
		"build_id":  vi.BuildId,
	}
	stopProf, profErr := prof.Start(ctx, profOpts)
	if profErr != nil {
		L.Error(ctx, profErr, "pyroscope start failed", "pyro_server", s.prof.PyroServer)
	}

	traceOpts := s.trace.ToOptions()
	traceOpts.Service = v.AppName
	traceOpts.Component = v.Component
	traceOpts.Version = v.Version
	shutdownOtel, err := otelx.Init(ctx, traceOpts)
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}

	m := metrics.New()
	m.SetBuildInfoFromVersion(v.AppName, component, &vi)
	m.SetProfilingActive(profErr == nil && s.prof.EnablePyroscope)

	if err := observeQueries(m.Registry()); err != nil {
		return err
	}
	triageMetrics := triage.NewMetrics(m.Registry())

	store, closeStore, err := openStore(ctx, &s.app, L)
	if err != nil {
		return err
	}
	defer closeStore()

	blobs, err := openBlobStore(ctx, &s.app, L)
	if err != nil {
		return err
	}

	classifier, closeClassifier, err := newClassifier(ctx, &s.app, L)
	if err != nil {
		return fmt.Errorf("classifier init: %w", err)
	}
	defer closeClassifier()

	var svcOpts []triage.Option
	if s.app.SlackWebhookURL != "" {
		svcOpts = append(svcOpts, triage.WithNotifier(slack.New(s.app.SlackWebhookURL, L), s.app.CriticalThreshold))
		L.Info(ctx, "critical finding notifications enabled", "notifier", "slack", "threshold", s.app.CriticalThreshold)
	}
	svc := triage.NewService(
		blobs,
		triage.NewAdapter(classifier, triage.SeverityPrompt, L),
		triage.NewGateway(store, L, triageMetrics),
		L,
		triageMetrics,
		svcOpts...,
	)

	// readiness fails once draining starts or the result store is unreachable
	var gate health.ShutdownGate
	readiness := health.All(gate.Probe(), storeProbe(store))
	liveness := health.Fixed(true, "")

	opsOpts := s.ops.ToOptions()
	opsOpts.Metrics = m.Handler()
	opsOpts.Health = liveness
	opsOpts.Readiness = readiness
	opsOpts.UseRecoverMW = true
	opsOpts.OnPanic = m.IncHttpPanic

	// ops listener is for internal monitoring only; it rejects public and forwarded clients
	opsStop, err := opshttp.Start(ctx, L, opsOpts)
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		return err
	}

	h := newAPIHandler(apiDeps{
		logger:         L,
		svc:            svc,
		healthz:        health.HealthzHandler(liveness),
		readyz:         health.ReadyzHandler(readiness),
		maxUploadBytes: s.app.MaxUploadBytes(),
		trustedHops:    s.httpmw.TrustedProxyHops,
		instrument:     m.Middleware,
	})

	apiOpts, err := s.http.ToOptions()
	if err != nil {
		L.Error(ctx, err, "invalid http config")
		_ = opsStop(context.Background())
		return err
	}
	apiStop, err := httpserver.Start(ctx, fmt.Sprintf(":%d", s.app.APIPort), h, L, apiOpts)
	if err != nil {
		L.Error(ctx, err, "failed to start api http listener")
		_ = opsStop(context.Background())
		return err
	}

	if err := sdNotify(sdReady); err != nil && !errors.Is(err, errNoNotifySocket) {
		L.Warn(ctx, "systemd readiness notification failed", "error", err)
	}

	<-ctx.Done()
	L.Info(context.Background(), "shutdown signal received")
	_ = sdNotify(sdStopping)

	gate.Set("draining")
	waitDrain(L, time.Duration(s.app.DrainSeconds)*time.Second)

	stoppers := []stopper{
		{"api http server", apiStop},
		{"ops http server", opsStop},
	}
	if shutdownOtel != nil {
		stoppers = append(stoppers, stopper{"otel", shutdownOtel})
	}
	stopAll(L, time.Duration(s.app.ShutdownBudgetSeconds)*time.Second, stoppers)

	if stopProf != nil {
		stopProf()
	}

	L.Info(context.Background(), "shutdown complete")
	return nil
}
