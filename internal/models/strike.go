package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	StrikeReasonMissedHourlyLog       = "missed_hourly_log"
	StrikeReasonInsufficientDutyHours = "insufficient_duty_hours"
	StrikeReasonExcessiveBreak        = "excessive_break"
	StrikeReasonOther                 = "other"
)

const (
	SeverityWarning = "warning"
	SeverityMinor   = "minor"
	SeverityMajor   = "major"
)

// ValidStrikeReason reports whether reason is one of the fixed enum values.
func ValidStrikeReason(reason string) bool {
	switch reason {
	case StrikeReasonMissedHourlyLog, StrikeReasonInsufficientDutyHours,
		StrikeReasonExcessiveBreak, StrikeReasonOther:
		return true
	}
	return false
}

type Strike struct {
	ID                uuid.UUID  `json:"id"`
	UserID            uuid.UUID  `json:"user_id"`
	Reason            string     `json:"reason"`
	Description       string     `json:"description"`
	Date              time.Time  `json:"date"`
	IsActive          bool       `json:"is_active"`
	StrikeCountAtTime int        `json:"strike_count_at_time"`
	Severity          string     `json:"severity"`
	DutySessionID     *uuid.UUID `json:"duty_session_id,omitempty"`
	HourlyLogID       *uuid.UUID `json:"hourly_log_id,omitempty"`
	ResolutionNotes   *string    `json:"resolution_notes,omitempty"`
	ResolvedBy        *uuid.UUID `json:"resolved_by,omitempty"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

type CreateStrikeRequest struct {
	UserID        uuid.UUID  `json:"user_id"`
	Reason        string     `json:"reason"`
	Description   string     `json:"description"`
	DutySessionID *uuid.UUID `json:"duty_session_id,omitempty"`
	HourlyLogID   *uuid.UUID `json:"hourly_log_id,omitempty"`
}

type ResolveStrikeRequest struct {
	ResolutionNotes string `json:"resolution_notes"`
}
