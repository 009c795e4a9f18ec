package connector

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/JonMunkholm/sheetsync/internal/core"
)

// Google reads whole tabs of one spreadsheet through the Sheets v4 API.
// Cells are read as FORMATTED_VALUE, the text a user sees in the sheet.
type Google struct {
	svc           *sheets.Service
	spreadsheetID string
}

// NewGoogle authenticates with a service-account key and returns a
// read-only connector. Extra client options are applied after the
// credentials.
func NewGoogle(ctx context.Context, spreadsheetID string, credentialsJSON []byte, opts ...option.ClientOption) (*Google, error) {
	var clientOpts []option.ClientOption
	if len(credentialsJSON) > 0 {
		conf, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsReadonlyScope)
		if err != nil {
			return nil, fmt.Errorf("parse google credentials: %w", err)
		}
		clientOpts = append(clientOpts, option.WithHTTPClient(conf.Client(ctx)))
	}
	clientOpts = append(clientOpts, opts...)

	svc, err := sheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Google{svc: svc, spreadsheetID: spreadsheetID}, nil
}

// FetchRows reads the tab named by the sheet title. The first row is the
// header.
func (g *Google) FetchRows(ctx context.Context, def core.SheetDefinition) ([]core.SheetRow, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(g.spreadsheetID, quoteTab(def.Title)).
		ValueRenderOption("FORMATTED_VALUE").
		MajorDimension("ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("read tab %q: %w", def.Title, err)
	}

	if len(resp.Values) == 0 {
		return []core.SheetRow{}, nil
	}
	body := make([]gridRow, 0, len(resp.Values)-1)
	for i, cells := range resp.Values[1:] {
		body = append(body, gridRow{number: i + 2, cells: cells})
	}
	return buildRows(resp.Values[0], body), nil
}

// quoteTab renders a tab title as an A1 range covering the whole tab.
func quoteTab(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}
