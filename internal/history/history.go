// Package history records metadata about finished conversions.
//
// Only run metadata is stored: file names, language, counts, outcome and
// client details. Converted records are never persisted.
package history

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/xlsx2marc/internal/marc"
)

// Status is the outcome of a conversion.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Entry describes one conversion attempt.
type Entry struct {
	ID         uuid.UUID  `json:"id"`
	SourceFile string     `json:"source_file"`
	OutputFile string     `json:"output_file,omitempty"`
	Language   string     `json:"language"`
	Status     Status     `json:"status"`
	ErrorCode  string     `json:"error_code,omitempty"`
	Stats      marc.Stats `json:"stats"`
	IPAddress  string     `json:"ip_address,omitempty"`
	UserAgent  string     `json:"user_agent,omitempty"`
	DurationMS int64      `json:"duration_ms"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Store persists conversion entries.
type Store interface {
	Record(ctx context.Context, e Entry) error
	// Recent returns at most limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)
}
