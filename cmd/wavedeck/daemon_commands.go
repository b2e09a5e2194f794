package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"wavedeck/internal/daemon"
	"wavedeck/internal/daemonctl"
	"wavedeck/internal/deps"
	"wavedeck/internal/ipc"
	"wavedeck/internal/jobs"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var startLogLevel string
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the wavedeck daemon in the background",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonctl.LaunchOptions{ConfigPath: ctx.configPath(), LogLevel: startLogLevel},
				10*time.Second,
			)
			if err != nil {
				return err
			}

			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(stdout, "Daemon already running (pid %d)\n", result.PID)
			}
			return nil
		},
	}
	startCmd.Flags().StringVar(&startLogLevel, "log-level", "", "Override the configured log level for the daemon")

	var grace time.Duration
	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the wavedeck daemon, letting a running job finish first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			result, err := daemonctl.Stop(ctx.socketPath(), cfg.PIDPath(), grace)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(stdout, "Daemon (pid %d) did not exit in %s; killed\n", result.PID, grace)
				return nil
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}
	stopCmd.Flags().DurationVar(&grace, "grace", 35*time.Second, "How long to wait for a running job before killing the daemon")

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, job, and dependency status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ipc.Dial(ctx.socketPath())
			if err != nil {
				if statusJSON {
					return writeJSON(cmd, daemon.Status{Running: false})
				}
				renderOfflineStatus(cmd.OutOrStdout(), deps.CheckBinaries(deps.Requirements(ctx.configValue())))
				return nil
			}
			defer client.Close()

			resp, err := client.Status()
			if err != nil {
				return err
			}
			if statusJSON {
				return writeJSON(cmd, resp.Status)
			}
			renderDaemonStatus(cmd.OutOrStdout(), resp.Status)
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")

	return []*cobra.Command{startCmd, stopCmd, statusCmd}
}

func renderOfflineStatus(out io.Writer, statuses []deps.Status) {
	colorize := shouldColorize(out)
	writeLines(out, renderSectionHeader("Daemon", colorize))
	fmt.Fprintln(out, renderStatusLine("Daemon", statusError, "Not running", colorize))
	fmt.Fprintln(out)
	writeLines(out, renderSectionHeader("Dependencies", colorize))
	writeLines(out, dependencyLines(statuses, colorize))
}

func renderDaemonStatus(out io.Writer, status daemon.Status) {
	colorize := shouldColorize(out)

	writeLines(out, renderSectionHeader("Daemon", colorize))
	fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d, up %s)", status.PID, status.Uptime.Round(time.Second)), colorize))
	if status.APIAddress != "" {
		fmt.Fprintln(out, renderStatusLine("API", statusInfo, status.APIAddress, colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("API", statusWarn, "Disabled", colorize))
	}
	if status.Pitch.Available {
		fmt.Fprintln(out, renderStatusLine("Pitch", statusOK, status.Pitch.Capability, colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Pitch", statusWarn, status.Pitch.Capability, colorize))
	}
	kind, message := jobStatusLine(status.Job)
	fmt.Fprintln(out, renderStatusLine("Job", kind, message, colorize))
	fmt.Fprintln(out, renderStatusLine("Output root", statusInfo, status.OutputRoot, colorize))
	if status.LastAcquired != "" {
		fmt.Fprintln(out, renderStatusLine("Last acquired", statusInfo, status.LastAcquired, colorize))
	}
	fmt.Fprintln(out)

	writeLines(out, renderSectionHeader("Dependencies", colorize))
	writeLines(out, dependencyLines(status.Dependencies, colorize))

	if len(status.Runners) == 0 {
		return
	}
	fmt.Fprintln(out)
	writeLines(out, renderSectionHeader("Runners", colorize))
	rows := make([][]string, 0, len(status.Runners))
	for _, runner := range status.Runners {
		rows = append(rows, []string{string(runner.Kind), yesNo(runner.Ready), runner.Detail})
	}
	fmt.Fprint(out, renderTable([]string{"Kind", "Ready", "Detail"}, rows, nil))
}

func jobStatusLine(snapshot jobs.Snapshot) (statusKind, string) {
	switch {
	case snapshot.Status == jobs.StatusRunning && snapshot.Job != nil:
		return statusInfo, fmt.Sprintf("Running %s %s (%s)", snapshot.Job.Kind, shortID(snapshot.Job.ID), snapshot.Elapsed.Round(time.Second))
	case snapshot.Status == jobs.StatusFailed:
		return statusError, "Failed; result waiting for poll"
	case snapshot.Status == jobs.StatusSucceeded:
		return statusOK, "Succeeded; result waiting for poll"
	default:
		return statusInfo, "Idle"
	}
}

func shortID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
