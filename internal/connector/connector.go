// Package connector provides upstream sources for sheet rows: Google Sheets,
// an xlsx workbook, a directory of CSV exports and a static in-memory source.
package connector

import (
	"context"
	"fmt"
	"os"

	"github.com/JonMunkholm/sheetsync/internal/config"
	"github.com/JonMunkholm/sheetsync/internal/core"
)

// NewFactory returns the connector factory for the configured source kind.
// The factory yields a nil connector when the source is not configured, which
// the orchestrator reports as sync unavailable.
func NewFactory(cfg config.SourceConfig) core.ConnectorFactory {
	switch cfg.Kind {
	case config.SourceXLSX:
		return func(ctx context.Context) (core.Connector, error) {
			if cfg.WorkbookPath == "" {
				return nil, nil
			}
			return NewWorkbook(cfg.WorkbookPath), nil
		}
	case config.SourceCSV:
		return func(ctx context.Context) (core.Connector, error) {
			if cfg.CSVDir == "" {
				return nil, nil
			}
			return NewCSVDir(cfg.CSVDir), nil
		}
	default:
		return func(ctx context.Context) (core.Connector, error) {
			if cfg.SpreadsheetID == "" || !cfg.HasGoogleCredentials() {
				return nil, nil
			}
			creds, err := googleCredentials(cfg)
			if err != nil {
				return nil, err
			}
			return NewGoogle(ctx, cfg.SpreadsheetID, creds)
		}
	}
}

func googleCredentials(cfg config.SourceConfig) ([]byte, error) {
	if cfg.CredentialsJSON != "" {
		return []byte(cfg.CredentialsJSON), nil
	}
	data, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read google credentials: %w", err)
	}
	return data, nil
}
