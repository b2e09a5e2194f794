package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"wavedeck/internal/ipc"
	"wavedeck/internal/jobs"
)

type submitOptions struct {
	wait    bool
	timeout time.Duration
	json    bool
}

func (o *submitOptions) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&o.wait, "wait", "w", false, "Wait for the job to finish and print its result")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 0, "Give up waiting after this long (0 waits indefinitely)")
	cmd.Flags().BoolVar(&o.json, "json", false, "Output as JSON")
}

func newJobCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newAcquireCommand(ctx),
		newTranscodeCommand(ctx),
		newSeparateCommand(ctx),
		newPitchCommand(ctx),
	}
}

func newAcquireCommand(ctx *commandContext) *cobra.Command {
	var opts submitOptions
	cmd := &cobra.Command{
		Use:   "acquire <url>",
		Short: "Download audio from a URL into the output root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := jobs.Params{Source: strings.TrimSpace(args[0])}
			return submitJob(cmd, ctx, jobs.KindAcquire, params, opts)
		},
	}
	opts.bind(cmd)
	return cmd
}

func newTranscodeCommand(ctx *commandContext) *cobra.Command {
	var opts submitOptions
	var format string
	cmd := &cobra.Command{
		Use:   "transcode <file>",
		Short: "Convert an audio file to another format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := absolutePath(args[0])
			if err != nil {
				return err
			}
			params := jobs.Params{File: file, Format: strings.TrimSpace(format)}
			return submitJob(cmd, ctx, jobs.KindTranscode, params, opts)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "Target format extension (defaults to the configured format)")
	opts.bind(cmd)
	return cmd
}

func newSeparateCommand(ctx *commandContext) *cobra.Command {
	var opts submitOptions
	var model string
	cmd := &cobra.Command{
		Use:   "separate [file]",
		Short: "Split a track into stems (defaults to the last acquired file)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := jobs.Params{Model: strings.TrimSpace(model)}
			if len(args) == 1 {
				file, err := absolutePath(args[0])
				if err != nil {
					return err
				}
				params.File = file
			}
			return submitJob(cmd, ctx, jobs.KindSeparate, params, opts)
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "", "Separation model (defaults to the configured model)")
	opts.bind(cmd)
	return cmd
}

func newPitchCommand(ctx *commandContext) *cobra.Command {
	var opts submitOptions
	var amount float64
	var correct bool
	cmd := &cobra.Command{
		Use:   "pitch <file>",
		Short: "Shift a file by semitones, or pull it toward the configured scale with --correct",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := absolutePath(args[0])
			if err != nil {
				return err
			}
			params := jobs.Params{File: file, Correction: correct}
			if cmd.Flags().Changed("amount") {
				params.Amount = &amount
			}
			return submitJob(cmd, ctx, jobs.KindPitch, params, opts)
		},
	}
	cmd.Flags().Float64VarP(&amount, "amount", "a", 0, "Semitones to shift, or correction strength 0-10 with --correct")
	cmd.Flags().BoolVar(&correct, "correct", false, "Correct toward the configured scale instead of shifting")
	opts.bind(cmd)
	return cmd
}

func newPollCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Collect the result of the last job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Poll()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp.Result)
				}
				return printResult(cmd.OutOrStdout(), resp.Result)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func submitJob(cmd *cobra.Command, ctx *commandContext, kind jobs.Kind, params jobs.Params, opts submitOptions) error {
	return ctx.withClient(func(client *ipc.Client) error {
		resp, err := client.Submit(ipc.SubmitRequest{Kind: string(kind), Params: params})
		if err != nil {
			return err
		}
		switch resp.Status {
		case ipc.SubmitAccepted:
		case ipc.SubmitBusy:
			return fmt.Errorf("daemon is busy: %s", resp.Error)
		default:
			return fmt.Errorf("%s rejected (%s): %s", kind, resp.ErrorKind, resp.Error)
		}

		out := cmd.OutOrStdout()
		if !opts.wait {
			if opts.json {
				return writeJSON(cmd, resp)
			}
			fmt.Fprintf(out, "Submitted %s job %s\n", resp.Job.Kind, shortID(resp.Job.ID))
			fmt.Fprintln(out, "Run `wavedeck poll` to collect the result")
			return nil
		}

		waited, err := client.Wait(opts.timeout)
		if err != nil {
			return err
		}
		if waited.TimedOut {
			return fmt.Errorf("%s job %s still running after %s; collect it later with `wavedeck poll`", kind, shortID(resp.Job.ID), opts.timeout)
		}
		polled, err := client.Poll()
		if err != nil {
			return err
		}
		result := polled.Result
		if result.Status == jobs.StatusIdle {
			// Another client collected it first.
			result = waited.Result
		}
		if opts.json {
			return writeJSON(cmd, result)
		}
		return printResult(out, result)
	})
}

// printResult renders a polled result and returns an error for failed jobs
// so the process exits non-zero.
func printResult(out io.Writer, result jobs.Result) error {
	switch result.Status {
	case jobs.StatusIdle:
		fmt.Fprintln(out, "No job result available")
		return nil
	case jobs.StatusRunning:
		if result.Job != nil {
			fmt.Fprintf(out, "Job %s (%s) is still running\n", shortID(result.Job.ID), result.Job.Kind)
		} else {
			fmt.Fprintln(out, "A job is still running")
		}
		return nil
	case jobs.StatusFailed:
		kind := "job"
		if result.Job != nil {
			kind = string(result.Job.Kind)
		}
		return fmt.Errorf("%s failed (%s): %s", kind, result.ErrorKind, result.Error)
	}

	label := "Job"
	if result.Job != nil {
		label = fmt.Sprintf("%s job %s", result.Job.Kind, shortID(result.Job.ID))
	}
	fmt.Fprintf(out, "%s succeeded in %s\n", label, result.Duration.Round(time.Millisecond))
	if result.Output == nil {
		return nil
	}
	if result.Output.File != "" {
		fmt.Fprintf(out, "Output: %s\n", result.Output.File)
	}
	if result.Output.Mode != "" {
		fmt.Fprintf(out, "Mode: %s\n", result.Output.Mode)
	}
	if len(result.Output.Stems) > 0 {
		fmt.Fprint(out, renderStemTable(result.Output.Stems))
	}
	return nil
}

func renderStemTable(stems jobs.StemMap) string {
	names := make([]string, 0, len(stems))
	for name := range stems {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{name, stems[name]})
	}
	return renderTable([]string{"Stem", "File"}, rows, nil)
}
