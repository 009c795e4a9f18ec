// Package core error codes.
//
// # Error Codes Reference
//
// User-facing errors carry a stable code that operators can quote when
// reporting a problem. Codes are grouped by category:
//
// # Sync Errors (SYNC001-SYNC099)
//
//	SYNC001 - Sync unavailable: upstream credentials are not configured
//	          Action: Configure the spreadsheet source and restart the service
//	SYNC002 - Unknown sheet: the sheet key is not registered
//	          Action: List sheets with GET /api/sheets
//	SYNC003 - Busy: every run slot is occupied
//	          Action: Wait a moment and try again
//	SYNC004 - Confirmation required: full reset was not confirmed
//	          Action: Resend the request with confirm=true
//	SYNC005 - Invalid mode: mode is not incremental or full_reset
//	SYNC006 - No sheets: nothing is registered to validate against
//	SYNC010 - Upstream fetch failed
//	          Action: Check spreadsheet sharing and credentials
//	SYNC011 - Request cancelled
//	SYNC012 - Request timed out
//
// # Row Errors (ROW001-ROW099)
//
//	ROW001 - Missing external id
//	ROW002 - Unparseable date
//	ROW003 - Duplicate external id in one fetch
//	ROW004 - External id belongs to a manually created record
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key
//	DB002 - Unique constraint
//	DB004 - Connection refused
//	DB005 - Connection reset
//	DB006 - Timeout
//	DB007 - Deadlock or busy database
//	DB008 - Record not found
//
// # Auth Errors (AUTH001-AUTH099)
//
//	AUTH001 - Invalid cron secret
//	AUTH002 - Admin role required
//	AUTH003 - Cron secret not configured
//
// # Configuration Errors (CFG001-CFG099)
//
//	CFG001 - Invalid configuration
//	CFG002 - Sheet registry file could not be loaded
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check the service logs for the original error.
//
// # Matching
//
// Sentinel errors are matched with errors.Is first. Remaining errors are
// matched case-insensitively by substring; the first matching pattern wins,
// so specific patterns come before general ones.
package core

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

// Sentinel-backed messages.
var (
	msgSyncUnavailable = UserMessage{
		Message: "Sync is unavailable because the spreadsheet source is not configured",
		Action:  "Configure the spreadsheet source and restart the service",
		Code:    "SYNC001",
	}
	msgUnknownSheet = UserMessage{
		Message: "Unknown sheet",
		Action:  "List the registered sheets and use one of their keys",
		Code:    "SYNC002",
	}
	msgTooManyRuns = UserMessage{
		Message: "Other sync runs are in progress",
		Action:  "Please wait a moment and try again",
		Code:    "SYNC003",
	}
	msgConfirmationRequired = UserMessage{
		Message: "Full reset was not confirmed",
		Action:  "Resend the request with confirm=true",
		Code:    "SYNC004",
	}
	msgInvalidMode = UserMessage{
		Message: "Invalid sync mode",
		Action:  "Use incremental or full_reset",
		Code:    "SYNC005",
	}
	msgNoPrimarySheet = UserMessage{
		Message: "No sheet is registered",
		Action:  "Register a sheet definition before validating",
		Code:    "SYNC006",
	}
	msgDuplicateRecord = UserMessage{
		Message: "A record with this ID already exists",
		Action:  "Run the sync again; the row will be updated",
		Code:    "DB001",
	}
	msgNotFound = UserMessage{
		Message: "Record not found",
		Action:  "Check the identifier and try again",
		Code:    "DB008",
	}
)

type errorSentinel struct {
	target error
	msg    UserMessage
}

var errorSentinels = []errorSentinel{
	{ErrSyncUnavailable, msgSyncUnavailable},
	{ErrUnknownSheet, msgUnknownSheet},
	{ErrTooManyRuns, msgTooManyRuns},
	{ErrConfirmationRequired, msgConfirmationRequired},
	{ErrInvalidMode, msgInvalidMode},
	{ErrNoPrimarySheet, msgNoPrimarySheet},
	{errManualRecord, UserMessage{
		Message: "This record was created manually and is not overwritten by the sheet",
		Action:  "Change the external id in the sheet or remove the manual record",
		Code:    "ROW004",
	}},
	{ErrDuplicateRecord, msgDuplicateRecord},
	{ErrNotFound, msgNotFound},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Sync
	{
		pattern: "fetch rows",
		msg: UserMessage{
			Message: "The spreadsheet could not be read",
			Action:  "Check spreadsheet sharing and credentials",
			Code:    "SYNC010",
		},
	},
	{
		pattern: "fetch sheet",
		msg: UserMessage{
			Message: "The spreadsheet could not be read",
			Action:  "Check spreadsheet sharing and credentials",
			Code:    "SYNC010",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "SYNC011",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try again later or sync a single sheet",
			Code:    "SYNC012",
		},
	},

	// Rows
	{
		pattern: "missing external id",
		msg: UserMessage{
			Message: "Row has no external id",
			Action:  "Fill in the id column for this row",
			Code:    "ROW001",
		},
	},
	{
		pattern: "unparseable date",
		msg: UserMessage{
			Message: "Row has a date that could not be read",
			Action:  "Use DD.MM.YYYY or YYYY-MM-DD",
			Code:    "ROW002",
		},
	},
	{
		pattern: "duplicate external id",
		msg: UserMessage{
			Message: "The same external id appears more than once in the sheet",
			Action:  "Make every id in the sheet unique",
			Code:    "ROW003",
		},
	},

	// Database
	{
		pattern: "duplicate key",
		msg:     msgDuplicateRecord,
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Check the sheet for duplicate ids",
			Code:    "DB002",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},
	{
		pattern: "database is locked",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},

	// Auth
	{
		pattern: "invalid cron secret",
		msg: UserMessage{
			Message: "The cron secret is missing or wrong",
			Action:  "Send the configured secret in the X-Cron-Secret header",
			Code:    "AUTH001",
		},
	},
	{
		pattern: "admin role required",
		msg: UserMessage{
			Message: "This action requires the admin role",
			Action:  "Ask an administrator to run it",
			Code:    "AUTH002",
		},
	},
	{
		pattern: "cron secret not configured",
		msg: UserMessage{
			Message: "Scheduled sync is disabled on this server",
			Action:  "Set CRON_SECRET and restart the service",
			Code:    "AUTH003",
		},
	},

	// Configuration
	{
		pattern: "validation failed",
		msg: UserMessage{
			Message: "The service configuration is invalid",
			Action:  "Fix the listed settings and restart",
			Code:    "CFG001",
		},
	},
	{
		pattern: "registry file",
		msg: UserMessage{
			Message: "The sheet registry file could not be loaded",
			Action:  "Check SHEETS_REGISTRY_FILE and its YAML syntax",
			Code:    "CFG002",
		},
	},

	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
	{
		pattern: "invalid request body",
		msg: UserMessage{
			Message: "The request body could not be read",
			Action:  "Send a JSON object such as {\"sheet\": \"services\", \"mode\": \"incremental\"}",
			Code:    "REQ001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	msg := MapError(fmt.Errorf("sync services: %w", ErrUnknownSheet))
//	// msg.Code == "SYNC002"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, s := range errorSentinels {
		if errors.Is(err, s.target) {
			return s.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
