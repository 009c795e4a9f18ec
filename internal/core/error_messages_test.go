package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "wrapped sync unavailable",
			err:         fmt.Errorf("sync all: %w", ErrSyncUnavailable),
			wantCode:    "SYNC001",
			wantMessage: "Sync is unavailable because the spreadsheet source is not configured",
		},
		{
			name:        "wrapped unknown sheet",
			err:         fmt.Errorf("%w: nope", ErrUnknownSheet),
			wantCode:    "SYNC002",
			wantMessage: "Unknown sheet",
		},
		{
			name:        "too many runs",
			err:         ErrTooManyRuns,
			wantCode:    "SYNC003",
			wantMessage: "Other sync runs are in progress",
		},
		{
			name:        "confirmation required",
			err:         ErrConfirmationRequired,
			wantCode:    "SYNC004",
			wantMessage: "Full reset was not confirmed",
		},
		{
			name:        "manual record",
			err:         fmt.Errorf("apply row: %w", errManualRecord),
			wantCode:    "ROW004",
			wantMessage: "This record was created manually and is not overwritten by the sheet",
		},
		{
			name:        "upstream fetch failure",
			err:         errors.New("fetch rows: googleapi: Error 403"),
			wantCode:    "SYNC010",
			wantMessage: "The spreadsheet could not be read",
		},
		{
			name:        "duplicate key",
			err:         errors.New("ERROR: duplicate key value violates unique constraint"),
			wantCode:    "DB001",
			wantMessage: "A record with this ID already exists",
		},
		{
			name:        "connection refused",
			err:         errors.New("dial tcp: connection refused"),
			wantCode:    "DB004",
			wantMessage: "Unable to connect to database",
		},
		{
			name:        "sqlite busy",
			err:         errors.New("sqlite3: database is locked"),
			wantCode:    "DB007",
			wantMessage: "Database was busy with conflicting operations",
		},
		{
			name:        "row missing id",
			err:         errors.New("services row 4: missing external id"),
			wantCode:    "ROW001",
			wantMessage: "Row has no external id",
		},
		{
			name:        "config validation",
			err:         errors.New("validation failed:\n  - DATABASE_URL is required"),
			wantCode:    "CFG001",
			wantMessage: "The service configuration is invalid",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
		{
			name:        "case insensitive matching",
			err:         errors.New("DUPLICATE KEY value violates"),
			wantCode:    "DB001",
			wantMessage: "A record with this ID already exists",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(ErrTooManyRuns)

	expected := "Other sync runs are in progress (Code: SYNC003). Please wait a moment and try again"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error is not user facing",
			err:  nil,
			want: false,
		},
		{
			name: "sentinel is user facing",
			err:  ErrSyncUnavailable,
			want: true,
		},
		{
			name: "unknown error is not user facing",
			err:  errors.New("random internal error xyz"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsUserFacing(tt.err)
			if got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := NewUserError(nil); got != nil {
			t.Errorf("NewUserError(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		techErr := fmt.Errorf("sync: %w", ErrUnknownSheet)
		userErr := NewUserError(techErr)

		if userErr.Error() != "Unknown sheet" {
			t.Errorf("Error() = %q, want user message", userErr.Error())
		}
		if !errors.Is(userErr, ErrUnknownSheet) {
			t.Error("Unwrap() should expose the original error")
		}
	})
}
