package core

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ValidateOptions bounds a drift check. SampleLimit <= 0 uses the service
// default; IncludeAll compares every parsed row.
type ValidateOptions struct {
	SampleLimit int
	IncludeAll  bool
}

// ValidationSample is the comparison of one sheet row with its stored record.
type ValidationSample struct {
	Row        int         `json:"row"`
	ExternalID string      `json:"externalId"`
	Found      bool        `json:"found"`
	Deleted    bool        `json:"deleted"`
	Match      bool        `json:"match"`
	Mismatches []FieldDiff `json:"mismatches,omitempty"`
}

// ValidationReport is the outcome of ValidateAgainstStore. OK is false on
// any disagreement between the sheet and the store.
type ValidationReport struct {
	OK         bool               `json:"ok"`
	Sheet      string             `json:"sheet"`
	Checked    int                `json:"checked"`
	Mismatched int                `json:"mismatched"`
	RowErrors  int                `json:"rowErrors"`
	Samples    []ValidationSample `json:"samples"`
	CheckedAt  time.Time          `json:"checkedAt"`
}

// ValidateAgainstStore re-fetches the primary sheet and compares a sample
// of its rows field by field with the stored records. It is read-only.
func (s *Service) ValidateAgainstStore(ctx context.Context, opts ValidateOptions) (ValidationReport, error) {
	def, ok := Primary()
	if !ok {
		return ValidationReport{}, ErrNoPrimarySheet
	}

	conn, err := s.connector(ctx)
	if err != nil {
		return ValidationReport{}, err
	}

	limit := opts.SampleLimit
	if limit <= 0 {
		limit = s.opts.ValidateSample
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	rows, err := conn.FetchRows(fetchCtx, def)
	cancel()
	if err != nil {
		return ValidationReport{}, fmt.Errorf("fetch sheet %s: %w", def.Key, err)
	}

	report := ValidationReport{Sheet: def.Key, Samples: []ValidationSample{}}
	records, rowErrs := parseBatch(def, rows)
	report.RowErrors = len(rowErrs)

	for _, p := range records {
		if !opts.IncludeAll && report.Checked >= limit {
			break
		}

		sample, err := s.compareRow(ctx, p)
		if err != nil {
			return ValidationReport{}, err
		}
		report.Checked++
		if !sample.Match {
			report.Mismatched++
		}
		report.Samples = append(report.Samples, sample)
	}

	report.OK = report.Mismatched == 0
	report.CheckedAt = s.now().UTC()
	return report, nil
}

func (s *Service) compareRow(ctx context.Context, p ParsedRow) (ValidationSample, error) {
	sample := ValidationSample{Row: p.Number, ExternalID: p.Record.ExternalID}

	stored, err := s.store.ServiceByExternalID(ctx, p.Record.ExternalID)
	if errors.Is(err, ErrNotFound) {
		return sample, nil
	}
	if err != nil {
		return sample, fmt.Errorf("load %s: %w", p.Record.ExternalID, err)
	}

	sample.Found = true
	sample.Deleted = !stored.Active()
	sample.Mismatches = p.Record.Diff(stored.Record)
	sample.Match = !sample.Deleted && len(sample.Mismatches) == 0
	return sample, nil
}
