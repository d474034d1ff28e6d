// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/hdhr"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/log"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/settings"
	"github.com/jmattroberts/hdhr-disk-space-monitor/internal/version"
)

type options struct {
	devices       []string
	confFile      string
	interval      int
	count         int
	gigabytesFree float64
	percentFree   float64
	deletePolicy  string
	watchedFirst  bool
	watchedOffset int

	listRecordings   bool
	dryRun           bool
	showVersion      bool
	stopAfterReports bool
	quiet            bool
	verbose          bool
	logLevelName     string

	logFile       string
	logFormat     string
	statusFile    string
	metricsListen string
	otelExporter  string
	otelEndpoint  string
}

// execute runs the command line and returns the process exit status.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o := &options{}
	ran := false
	cmd := newRootCommand(o, func(cmd *cobra.Command) error {
		ran = true
		return run(cmd, o)
	})
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	if !ran {
		// Flag and argument errors; cobra has not run the command.
		_, _ = fmt.Fprintf(stderr, "Error: %v\nRun '%s --help' for usage.\n", err, version.Name)
		return exitConfig
	}

	code := exitCode(err)
	if code != exitOK {
		logger := log.WithComponent("main")
		logger.Error().
			Err(err).
			Str(log.FieldEvent, "process.exit").
			Int("exit_code", code).
			Msg(exitMessage(err))
	}
	return code
}

func exitMessage(err error) string {
	switch {
	case errors.Is(err, hdhr.ErrDuplicateDevice):
		return fmt.Sprintf("Specified devices are not unique. This can be caused by using %q alongside explicit device IDs.", hdhr.SelectDiscover)
	case errors.Is(err, hdhr.ErrDeviceNotFound):
		return "Requested device not found"
	case errors.Is(err, hdhr.ErrNoDevices):
		return "No devices found to monitor"
	case exitCode(err) == exitConfig:
		return "Invalid configuration"
	default:
		return "Unexpected failure"
	}
}

func newRootCommand(o *options, runE func(*cobra.Command) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.Name,
		Short: "Monitor and maintain free disk space on HDHomeRun storage devices",
		Long: "Reports disk space utilization of HDHomeRun storage devices and, when a\n" +
			"minimum free space is configured, deletes recordings to maintain it.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runE(cmd)
		},
	}

	f := cmd.Flags()
	f.SortFlags = false
	f.StringSliceVarP(&o.devices, "device-id", "d", nil,
		fmt.Sprintf("ID, IP address, or hostname of device(s) to monitor; repeatable. Default is %q which discovers all storage devices on the local network", hdhr.SelectDiscover))
	f.StringVarP(&o.confFile, "conf-file", "f", "", "Path to configuration file (.yaml, .yml or .toml)")
	f.IntVarP(&o.interval, "interval", "i", settings.DefaultInterval, "Number of seconds between space utilization reports")
	f.IntVarP(&o.count, "count", "c", 0, "Number of space utilization reports to print before stopping; 0 disables reports. Default is to continue forever")
	f.Float64VarP(&o.gigabytesFree, "gigabytes-free", "g", 0, "Minimum number of gigabytes (GB) of free disk space to maintain")
	f.Float64VarP(&o.percentFree, "percent-free", "p", 0, "Minimum percentage of free disk space to maintain")
	f.StringVarP(&o.deletePolicy, "delete-policy", "s", settings.DefaultDeletePolicy,
		fmt.Sprintf("Order in which recordings are deleted to maintain free space: %s", strings.Join(settings.DeletePolicies, ", ")))
	f.BoolVarP(&o.watchedFirst, "watched-first", "w", settings.DefaultWatchedFirst, "Delete watched recordings first, before applying the delete policy")
	f.IntVarP(&o.watchedOffset, "watched-offset", "o", settings.DefaultWatchedOffset, "Seconds remaining at the end of a recording below which it counts as watched")
	f.BoolVarP(&o.listRecordings, "list-recordings", "l", false, "List recordings in the order they would be deleted, then exit")
	f.BoolVarP(&o.dryRun, "dry-run", "n", false, "Run without deleting any recordings")
	f.BoolVarP(&o.showVersion, "version", "V", false, "Show version number and exit")
	f.BoolVarP(&o.stopAfterReports, "stop-after-reports", "t", false, "Stop once every device has printed its reports")
	f.BoolVarP(&o.quiet, "quiet", "q", false, "Suppress all messages except warnings and errors")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "Print more informational messages")

	f.StringVar(&o.logLevelName, "log-level", "", "Log level: debug, info, warn or error. Defaults to LOG_LEVEL, then info")
	f.StringVar(&o.logFile, "log-file", "", "Also write logs to this file, rotated by size")
	f.StringVar(&o.logFormat, "log-format", "json", "Log format: json or console")
	f.StringVar(&o.statusFile, "status-file", "", "Write the latest device status to this JSON file")
	f.StringVar(&o.metricsListen, "metrics-listen", "", "Serve /metrics, /healthz and /status on this address")
	f.StringVar(&o.otelExporter, "otel-exporter", "", "Export traces over OTLP: grpc or http")
	f.StringVar(&o.otelEndpoint, "otel-endpoint", "", "OTLP collector endpoint")

	_ = f.MarkHidden("stop-after-reports")
	cmd.MarkFlagsMutuallyExclusive("gigabytes-free", "percent-free")
	cmd.MarkFlagsMutuallyExclusive("quiet", "verbose", "log-level")
	return cmd
}

// overrides returns the settings given explicitly on the command line.
func (o *options) overrides(cmd *cobra.Command) settings.Overrides {
	changed := cmd.Flags().Changed
	var ov settings.Overrides
	if changed("delete-policy") {
		policy := strings.ToLower(strings.TrimSpace(o.deletePolicy))
		ov.DeletePolicy = &policy
	}
	if changed("watched-first") {
		ov.WatchedFirst = &o.watchedFirst
	}
	if changed("interval") {
		ov.Interval = &o.interval
	}
	if changed("count") {
		ov.Count = &o.count
	}
	if changed("gigabytes-free") {
		ov.GigabytesFree = &o.gigabytesFree
	}
	if changed("percent-free") {
		ov.PercentFree = &o.percentFree
	}
	if changed("watched-offset") {
		ov.WatchedOffset = &o.watchedOffset
	}
	return ov
}

func (o *options) logLevel() string {
	switch {
	case o.quiet:
		return "warn"
	case o.verbose:
		return "debug"
	default:
		return o.logLevelName
	}
}
