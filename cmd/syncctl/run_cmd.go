package main

import (
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetsync/internal/core"
)

type runOutput struct {
	Success bool                       `json:"success"`
	RunID   string                     `json:"runId"`
	Results map[string]core.SyncResult `json:"results"`
	Errors  []core.RowError            `json:"errors"`
}

func (c *cli) newRunCmd() *cobra.Command {
	var (
		sheet   string
		mode    string
		runID   string
		confirm bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sync one sheet, or every registered sheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := core.ParseMode(mode)
			if err != nil {
				return err
			}
			if m == core.ModeFullReset && !confirm {
				return core.ErrConfirmationRequired
			}

			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := core.ContextWithTrigger(cmd.Context(), core.TriggerCLI)
			opts := core.SyncOptions{Mode: m, RunID: runID}

			results := map[string]core.SyncResult{}
			if sheet != "" {
				res, err := a.Service.SyncSheet(ctx, sheet, opts)
				if err != nil {
					return err
				}
				results[sheet] = res
			} else {
				if results, err = a.Service.SyncAll(ctx, opts); err != nil {
					return err
				}
			}

			out := runOutput{
				Success: core.AllSucceeded(results),
				Results: results,
				Errors:  core.FlattenErrors(results),
			}
			for _, res := range results {
				out.RunID = res.RunID
				break
			}
			if err := c.writeJSON(out); err != nil {
				return err
			}

			for _, res := range results {
				if res.Status == core.RunFailed {
					return errRunFailed
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet key (default: all registered sheets)")
	cmd.Flags().StringVar(&mode, "mode", "incremental", "Sync mode: incremental or full_reset")
	cmd.Flags().StringVar(&runID, "run-id", "", "Run id (default: generated)")
	cmd.Flags().BoolVar(&confirm, "confirm", false, "Confirm a full_reset run")
	return cmd
}
