package main

import (
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetsync/internal/core"
)

func (c *cli) newValidateCmd() *cobra.Command {
	var (
		limit int
		all   bool
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Compare the primary sheet with stored records",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Service.ValidateAgainstStore(cmd.Context(), core.ValidateOptions{
				SampleLimit: limit,
				IncludeAll:  all,
			})
			if err != nil {
				return err
			}
			if err := c.writeJSON(report); err != nil {
				return err
			}
			if !report.OK {
				return errDriftDetected
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Rows to compare (default: SYNC_VALIDATE_SAMPLE)")
	cmd.Flags().BoolVar(&all, "all", false, "Compare every row")
	return cmd
}

func (c *cli) newStatusCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recent runs and staleness",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			return c.writeJSON(a.Service.Status(cmd.Context(), limit))
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Recent runs to list (default: SYNC_RECENT_RUNS)")
	return cmd
}

func (c *cli) newSheetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sheets",
		Short: "List registered sheets",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			return c.writeJSON(a.Service.ListSheets())
		},
	}
}
