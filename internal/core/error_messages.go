// Error Codes Reference
//
// This file maps conversion errors to user-facing messages carrying a code
// that users can quote to support.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: upload exceeds the configured size limit
//	          Action: Split the spreadsheet into smaller files
//	          Patterns: "request body too large"
//
//	FILE002 - No file: no file was selected
//	          Action: Choose an .xlsx file to convert
//	          Sentinel: ErrNoFile
//
//	FILE003 - Wrong extension: only .xlsx files are accepted
//	          Action: Save the spreadsheet as an Excel workbook (.xlsx)
//	          Sentinel: ErrBadExtension
//
//	FILE004 - Unreadable workbook: the file could not be opened as a workbook
//	          Action: Re-save the file in Excel and try again
//	          Sentinel: ErrUnreadableWorkbook
//
// # Conversion Errors (CONV001-CONV099)
//
//	CONV001 - No data rows: the sheet has a header but no rows
//	          Action: Add at least one catalog row below the header
//	          Sentinel: marc.ErrNoDataRows
//
//	CONV002 - Serialization failure: the MARC file could not be produced
//	          Action: Please try again or contact support
//	          Sentinel: ErrSerialization
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL001 - System busy: too many conversions in progress
//	         Sentinel: ErrTooManyConversions
//	UPL002 - Request cancelled
//	         Sentinel: context.Canceled
//	UPL003 - Request timeout
//	         Sentinel: context.DeadlineExceeded
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests
//	          Patterns: "rate limit"
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error. Check the server log for the request id.
//
// Sentinels are matched with errors.Is before any pattern. Patterns are
// matched case-insensitively and the first match wins.

package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/xlsx2marc/internal/marc"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgFileTooLarge = UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Split the spreadsheet into smaller files",
		Code:    "FILE001",
	}
	msgNoFile = UserMessage{
		Message: "Upload failed: No file selected.",
		Action:  "Choose an .xlsx file to convert",
		Code:    "FILE002",
	}
	msgBadExtension = UserMessage{
		Message: "Only .xlsx files are allowed.",
		Action:  "Save the spreadsheet as an Excel workbook (.xlsx)",
		Code:    "FILE003",
	}
	msgUnreadable = UserMessage{
		Message: "Error loading file",
		Action:  "Re-save the file in Excel and try again",
		Code:    "FILE004",
	}
	msgNoDataRows = UserMessage{
		Message: "No data rows in Excel file.",
		Action:  "Add at least one catalog row below the header",
		Code:    "CONV001",
	}
	msgSerialization = UserMessage{
		Message: "Error generating MRK file.",
		Action:  "Please try again or contact support",
		Code:    "CONV002",
	}
	msgBusy = UserMessage{
		Message: "System is busy processing other conversions",
		Action:  "Please wait a moment and try again",
		Code:    "UPL001",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL002",
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or check your connection",
		Code:    "UPL003",
	}
	msgRateLimited = UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}
)

// errorSentinels is checked in order with errors.Is.
var errorSentinels = []struct {
	target error
	msg    UserMessage
}{
	{ErrNoFile, msgNoFile},
	{ErrBadExtension, msgBadExtension},
	{ErrUnreadableWorkbook, msgUnreadable},
	{marc.ErrNoDataRows, msgNoDataRows},
	{ErrSerialization, msgSerialization},
	{ErrTooManyConversions, msgBusy},
	{context.Canceled, msgCancelled},
	{context.DeadlineExceeded, msgTimeout},
}

// errorPatterns maps lowercase error text fragments to messages for errors
// that do not carry a sentinel, such as those from net/http.
var errorPatterns = []struct {
	pattern string
	msg     UserMessage
}{
	{"request body too large", msgFileTooLarge},
	{"rate limit", msgRateLimited},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// If nothing matches, a generic fallback message with code ERR000 is
// returned.
//
// Example:
//
//	msg := MapError(fmt.Errorf("upload: %w", ErrBadExtension))
//	// msg.Code == "FILE003"
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

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something other than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// IsInputError reports whether err rejects the caller's input rather than
// signalling a server fault.
func IsInputError(err error) bool {
	return errors.Is(err, ErrNoFile) ||
		errors.Is(err, ErrBadExtension) ||
		errors.Is(err, ErrUnreadableWorkbook) ||
		errors.Is(err, marc.ErrNoDataRows)
}
