package connector

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/sheetsync/internal/core"
)

// Workbook reads tabs from a local .xlsx export of the spreadsheet. The file
// is reopened on every fetch so a replaced export is picked up.
type Workbook struct {
	path string
}

// NewWorkbook returns a connector reading the workbook at path.
func NewWorkbook(path string) *Workbook {
	return &Workbook{path: path}
}

// FetchRows reads the worksheet whose name equals the sheet title.
func (w *Workbook) FetchRows(ctx context.Context, def core.SheetDefinition) ([]core.SheetRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := excelize.OpenFile(w.path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	idx, err := f.GetSheetIndex(def.Title)
	if err != nil || idx < 0 {
		return nil, fmt.Errorf("workbook %s has no sheet %q", w.path, def.Title)
	}

	grid, err := f.GetRows(def.Title)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", def.Title, err)
	}
	return fromStrings(grid), nil
}
