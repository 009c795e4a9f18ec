package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RawRow is one fetched row keyed by header text. Values are whatever the
// connector produced: usually strings, sometimes numbers or time.Time.
type RawRow map[string]any

// SheetRow is a RawRow together with its 1-based row number in the source.
type SheetRow struct {
	Number int
	Values RawRow
}

// Connector pulls the rows of one sheet from the upstream source.
type Connector interface {
	FetchRows(ctx context.Context, sheet SheetDefinition) ([]SheetRow, error)
}

// ConnectorFactory builds a connector for a run. It returns a nil Connector
// and a nil error when upstream credentials are not configured.
type ConnectorFactory func(ctx context.Context) (Connector, error)

// ServiceRecord is the canonical form of one service appointment row.
type ServiceRecord struct {
	ExternalID   string        `json:"externalId"`
	Date         *CalendarDate `json:"date"`
	Time         *string       `json:"time"`
	VesselName   string        `json:"vesselName"`
	Address      string        `json:"address"`
	Location     string        `json:"location"`
	Description  string        `json:"description"`
	ContactName  *string       `json:"contactName"`
	ContactPhone *string       `json:"contactPhone"`
	Status       ServiceStatus `json:"status"`
}

// FieldDiff is one field that differs between two records.
type FieldDiff struct {
	Field string `json:"field"`
	Sheet string `json:"sheet"`
	Store string `json:"store"`
}

// Diff lists the fields where r (the sheet side) differs from stored.
// An empty result means the records are equivalent.
func (r ServiceRecord) Diff(stored ServiceRecord) []FieldDiff {
	var diffs []FieldDiff
	add := func(field, a, b string) {
		if a != b {
			diffs = append(diffs, FieldDiff{Field: field, Sheet: a, Store: b})
		}
	}

	add(FieldExternalID, r.ExternalID, stored.ExternalID)
	add(FieldDate, dateString(r.Date), dateString(stored.Date))
	add(FieldTime, deref(r.Time), deref(stored.Time))
	add(FieldVesselName, r.VesselName, stored.VesselName)
	add(FieldAddress, r.Address, stored.Address)
	add(FieldLocation, r.Location, stored.Location)
	add(FieldDescription, r.Description, stored.Description)
	add(FieldContactName, deref(r.ContactName), deref(stored.ContactName))
	add(FieldContactPhone, deref(r.ContactPhone), deref(stored.ContactPhone))
	add(FieldStatus, string(r.Status), string(stored.Status))
	return diffs
}

func dateString(d *CalendarDate) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Origin tells sheet-sourced records apart from manually created ones.
type Origin string

const (
	OriginSheet  Origin = "SHEET"
	OriginManual Origin = "MANUAL"
)

// StoredService is a service record as persisted by a Store.
type StoredService struct {
	ID        string
	SheetKey  string
	Origin    Origin
	Record    ServiceRecord
	DeletedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Active reports whether the record has not been soft-deleted.
func (s StoredService) Active() bool {
	return s.DeletedAt == nil
}

// Mode selects how a run reconciles the sheet against the store.
type Mode string

const (
	ModeIncremental Mode = "incremental"
	ModeFullReset   Mode = "full_reset"
)

// ParseMode accepts the mode names used by triggers. Empty means incremental.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "incremental":
		return ModeIncremental, nil
	case "full_reset", "full-reset", "full":
		return ModeFullReset, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// SyncType is the audit label for the mode: FULL or INCREMENTAL.
func (m Mode) SyncType() string {
	if m == ModeFullReset {
		return "FULL"
	}
	return "INCREMENTAL"
}

// RunStatus is the outcome recorded for a run.
type RunStatus string

const (
	RunSuccess RunStatus = "SUCCESS"
	RunPartial RunStatus = "PARTIAL"
	RunFailed  RunStatus = "FAILED"
)

// RowErrorKind classifies a recorded error.
type RowErrorKind string

const (
	ErrorKindFetch       RowErrorKind = "FETCH"
	ErrorKindValidation  RowErrorKind = "VALIDATION"
	ErrorKindPersistence RowErrorKind = "PERSISTENCE"
)

// RowError is one recorded failure. Row is the source row number, or 0 for
// run-level failures such as a failed fetch.
type RowError struct {
	Sheet      string       `json:"sheet"`
	Row        int          `json:"row"`
	ExternalID string       `json:"externalId,omitempty"`
	Kind       RowErrorKind `json:"kind"`
	Message    string       `json:"message"`
}

func (e RowError) Error() string {
	if e.Row == 0 {
		return fmt.Sprintf("%s: %s", e.Sheet, e.Message)
	}
	return fmt.Sprintf("%s row %d: %s", e.Sheet, e.Row, e.Message)
}

// SyncResult is the outcome of one sheet run.
type SyncResult struct {
	Sheet      string     `json:"sheet"`
	RunID      string     `json:"runId"`
	Mode       Mode       `json:"mode"`
	Status     RunStatus  `json:"status"`
	Success    bool       `json:"success"`
	Created    int        `json:"created"`
	Updated    int        `json:"updated"`
	Deleted    int        `json:"deleted"`
	Skipped    int        `json:"skipped"`
	Unchanged  int        `json:"unchanged"`
	Errors     []RowError `json:"errors"`
	DurationMs int64      `json:"durationMs"`
}

// RunLog is the persisted, append-only audit row for one sheet run.
type RunLog struct {
	ID         string     `json:"id"`
	RunID      string     `json:"runId"`
	SheetName  string     `json:"sheetName"`
	SyncType   string     `json:"syncType"`
	Status     RunStatus  `json:"status"`
	Created    int        `json:"recordsCreated"`
	Updated    int        `json:"recordsUpdated"`
	Deleted    int        `json:"recordsDeleted"`
	Skipped    int        `json:"recordsSkipped"`
	DurationMs int64      `json:"durationMs"`
	Errors     []RowError `json:"errors"`
	Trigger    string     `json:"trigger,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// RunSummary is the in-process view of the most recent run.
type RunSummary struct {
	RunID      string    `json:"runId"`
	Sheet      string    `json:"sheet"`
	Mode       Mode      `json:"mode"`
	Status     RunStatus `json:"status"`
	Created    int       `json:"created"`
	Updated    int       `json:"updated"`
	Deleted    int       `json:"deleted"`
	Skipped    int       `json:"skipped"`
	ErrorCount int       `json:"errorCount"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	DurationMs int64     `json:"durationMs"`
}
