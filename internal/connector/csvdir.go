package connector

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/JonMunkholm/sheetsync/internal/core"
)

// CSVDir reads <dir>/<sheet key>.csv exports.
type CSVDir struct {
	dir string
}

// NewCSVDir returns a connector reading exports from dir.
func NewCSVDir(dir string) *CSVDir {
	return &CSVDir{dir: dir}
}

// FetchRows parses the export of one sheet. A leading BOM is stripped and
// invalid UTF-8 is replaced, so exports from desktop spreadsheet apps load.
func (c *CSVDir) FetchRows(ctx context.Context, def core.SheetDefinition) ([]core.SheetRow, error) {
	path := filepath.Join(c.dir, def.Key+".csv")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer f.Close()

	return readCSV(ctx, f)
}

func readCSV(ctx context.Context, r io.Reader) ([]core.SheetRow, error) {
	cr := csv.NewReader(transform.NewReader(r, unicode.UTF8BOM.NewDecoder()))
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false

	var header []any
	var body []gridRow
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}

		line, _ := cr.FieldPos(0)
		if header == nil {
			header = stringsToAny(record)
			continue
		}
		body = append(body, gridRow{number: line, cells: stringsToAny(record)})
	}

	if header == nil {
		return []core.SheetRow{}, nil
	}
	return buildRows(header, body), nil
}
