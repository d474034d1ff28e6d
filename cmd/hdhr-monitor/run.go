// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/daemon"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/hdhr"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/log"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/platform/httpx"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/scheduler"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/settings"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/storageapi"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/telemetry"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/validate"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/version"
)

func run(cmd *cobra.Command, o *options) error {
	if o.showVersion {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), version.String())
		return err
	}
	level, err := o.validate()
	if err != nil {
		return configError(err)
	}

	log.Configure(log.Config{
		Level:   level,
		Format:  o.logFormat,
		Output:  cmd.OutOrStdout(),
		Service: version.Name,
		Version: version.Version,
		File:    o.logFile,
	})
	defer func() { _ = log.Close() }()
	logger := log.WithComponent("main")

	if o.dryRun {
		logger.Warn().
			Str(log.FieldEvent, "dry_run.enabled").
			Msg("This is a dry-run. No recordings will be deleted, even if log messages indicate that they are.")
	}

	ctx := cmd.Context()
	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        o.otelExporter != "",
		ServiceName:    version.Name,
		ServiceVersion: version.Version,
		ExporterType:   o.otelExporter,
		Endpoint:       o.otelEndpoint,
		SamplingRate:   1,
	})
	if err != nil {
		return configError(err)
	}
	shutdownTracing := sync.OnceValue(func() error {
		return tp.Shutdown(context.Background())
	})
	defer func() { _ = shutdownTracing() }()

	holder := settings.NewHolder(o.confFile, o.overrides(cmd))
	if _, err := holder.Load(); err != nil {
		return configError(err)
	}

	var clientOpts []httpx.Option
	if tp.Enabled() {
		clientOpts = append(clientOpts, httpx.WithTracing())
	}
	api := storageapi.New(httpx.NewClient(0, clientOpts...), storageapi.Options{})

	sched := scheduler.New(scheduler.Deps{
		Discoverer: hdhr.NewDiscoverer(),
		API:        api,
		Settings:   holder,
		Selector:   hdhr.Selector{Requests: o.devices, Resolver: net.DefaultResolver},
	}, scheduler.Options{
		DryRun:           o.dryRun,
		StopAfterReports: o.stopAfterReports,
		StatusFile:       o.statusFile,
	})
	if err := sched.Init(ctx); err != nil {
		return err
	}

	if o.listRecordings {
		return sched.ListRecordings(ctx, cmd.OutOrStdout())
	}

	mgr, err := daemon.NewManager(daemon.Deps{
		Logger:      log.WithComponent("daemon"),
		MetricsAddr: o.metricsListen,
		Status:      sched,
	})
	if err != nil {
		return err
	}
	mgr.RegisterShutdownHook("telemetry", func(context.Context) error {
		return shutdownTracing()
	})

	err = daemon.NewApp(logger, mgr, sched, holder).Run(ctx)
	if !errors.Is(err, scheduler.ErrRestartRequired) {
		return err
	}
	restarter := daemon.Restarter{Logger: logger}
	if rerr := restarter.Restart(ctx, err); rerr != nil {
		if ctx.Err() != nil {
			return nil
		}
		return errors.Join(err, rerr)
	}
	return nil
}

// validate checks the ambient options and returns the resolved log level.
// An empty level leaves the logger at its default.
func (o *options) validate() (string, error) {
	v := validate.New()
	o.logFormat, _ = v.OneOf("log-format", o.logFormat, []string{"json", "console"})
	if o.otelExporter != "" {
		o.otelExporter, _ = v.OneOf("otel-exporter", o.otelExporter, []string{"grpc", "http"})
	}
	var level string
	if l := o.logLevel(); l != "" {
		level, _ = v.LogLevel("log-level", l)
	} else if env := os.Getenv("LOG_LEVEL"); env != "" {
		level, _ = v.LogLevel("LOG_LEVEL", env)
	}
	return level, v.Err()
}
