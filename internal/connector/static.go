package connector

import (
	"context"
	"sync"

	"github.com/JonMunkholm/sheetsync/internal/core"
)

// Static serves rows held in memory. Row numbers start at 2, as if row 1
// were the header.
type Static struct {
	mu    sync.Mutex
	rows  map[string][]core.RawRow
	fails map[string]error
	calls map[string]int
}

// NewStatic returns an empty static source.
func NewStatic() *Static {
	return &Static{
		rows:  make(map[string][]core.RawRow),
		fails: make(map[string]error),
		calls: make(map[string]int),
	}
}

// Set replaces the rows of a sheet.
func (s *Static) Set(sheetKey string, rows ...core.RawRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[sheetKey] = rows
	delete(s.fails, sheetKey)
}

// Fail makes fetches of a sheet return err.
func (s *Static) Fail(sheetKey string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fails[sheetKey] = err
}

// Calls returns how many times a sheet was fetched.
func (s *Static) Calls(sheetKey string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[sheetKey]
}

// Factory returns a factory that always yields s.
func (s *Static) Factory() core.ConnectorFactory {
	return func(context.Context) (core.Connector, error) { return s, nil }
}

func (s *Static) FetchRows(ctx context.Context, def core.SheetDefinition) ([]core.SheetRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[def.Key]++
	if err := s.fails[def.Key]; err != nil {
		return nil, err
	}

	rows := s.rows[def.Key]
	out := make([]core.SheetRow, len(rows))
	for i, r := range rows {
		values := make(core.RawRow, len(r))
		for k, v := range r {
			values[k] = v
		}
		out[i] = core.SheetRow{Number: i + 2, Values: values}
	}
	return out, nil
}
