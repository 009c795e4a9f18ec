package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetsync/internal/app"
	"github.com/JonMunkholm/sheetsync/internal/config"
	"github.com/JonMunkholm/sheetsync/internal/logging"
)

var (
	errRunFailed     = errors.New("one or more sheets failed")
	errDriftDetected = errors.New("sheet and store disagree")
)

type loadConfigFunc func() (*config.Config, error)

// cli carries what every subcommand needs: a config loader and the writer
// for JSON output.
type cli struct {
	load loadConfigFunc
	out  io.Writer
}

func newRootCmd(load loadConfigFunc, out io.Writer) *cobra.Command {
	c := &cli{load: load, out: out}

	cmd := &cobra.Command{
		Use:           "syncctl",
		Short:         "Run and inspect spreadsheet to database syncs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(c.newRunCmd())
	cmd.AddCommand(c.newValidateCmd())
	cmd.AddCommand(c.newStatusCmd())
	cmd.AddCommand(c.newSheetsCmd())
	return cmd
}

// open loads configuration, logs to stderr and wires the engine.
func (c *cli) open(ctx context.Context) (*app.App, error) {
	cfg, err := c.load()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format))
	return app.New(ctx, cfg)
}

func (c *cli) writeJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
