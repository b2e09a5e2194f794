package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"wavedeck/internal/ipc"
)

func newStemsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	stemsCmd := &cobra.Command{
		Use:   "stems",
		Short: "List stems from the last separation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Stems()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if len(resp.Stems) == 0 {
					fmt.Fprintln(out, "No stems available; run `wavedeck separate` first")
					return nil
				}
				if resp.Source != "" {
					fmt.Fprintf(out, "Source: %s\n", resp.Source)
				}
				fmt.Fprint(out, renderStemTable(resp.Stems))
				return nil
			})
		},
	}
	stemsCmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	saveCmd := &cobra.Command{
		Use:   "save <stem>",
		Short: "Copy a stem from the last separation into the output root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SaveStem(strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if resp.Error != "" {
					return fmt.Errorf("save stem (%s): %s", resp.ErrorKind, resp.Error)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", resp.Path)
				return nil
			})
		},
	}
	stemsCmd.AddCommand(saveCmd)
	return stemsCmd
}
