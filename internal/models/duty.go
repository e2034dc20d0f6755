package models

import (
	"time"

	"github.com/google/uuid"
)

type DutySession struct {
	ID                   uuid.UUID  `json:"id"`
	UserID               uuid.UUID  `json:"user_id"`
	StartedAt            time.Time  `json:"started_at"`
	EndedAt              *time.Time `json:"ended_at,omitempty"`
	TotalDurationMinutes *int       `json:"total_duration_minutes,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

// IsActive reports whether the session is still running.
func (s *DutySession) IsActive() bool {
	return s.EndedAt == nil
}

type HourlyLog struct {
	ID               uuid.UUID  `json:"id"`
	DutySessionID    uuid.UUID  `json:"duty_session_id"`
	UserID           uuid.UUID  `json:"user_id"`
	PreviousHourWork string     `json:"previous_hour_work"`
	NextHourPlan     string     `json:"next_hour_plan"`
	BreakStartedAt   *time.Time `json:"break_started_at,omitempty"`
	BreakEndedAt     *time.Time `json:"break_ended_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// HasOpenBreak reports whether a break was started but not yet ended.
func (l *HourlyLog) HasOpenBreak() bool {
	return l.BreakStartedAt != nil && l.BreakEndedAt == nil
}

type SubmitLogRequest struct {
	PreviousHourWork string `json:"previous_hour_work"`
	NextHourPlan     string `json:"next_hour_plan"`
}

type EditLogRequest struct {
	PreviousHourWork string `json:"previous_hour_work"`
	NextHourPlan     string `json:"next_hour_plan"`
}

// DutySummary is the duration/eligibility view of one session.
type DutySummary struct {
	SessionID    uuid.UUID `json:"session_id"`
	TotalMinutes int       `json:"total_minutes"`
	BreakMinutes int       `json:"break_minutes"`
	MeetsMinimum bool      `json:"meets_minimum"`
}

// BreakResult is returned when a break is closed.
type BreakResult struct {
	LogID           uuid.UUID `json:"log_id"`
	DurationMinutes int       `json:"duration_minutes"`
	ExceededLimit   bool      `json:"exceeded_limit"`
}

// MissedLogCandidate is one gap between adjacent hourly logs that exceeded
// the missed-log threshold.
type MissedLogCandidate struct {
	SessionID    uuid.UUID `json:"session_id"`
	UserID       uuid.UUID `json:"user_id"`
	GapMinutes   int       `json:"gap_minutes"`
	ExpectedTime time.Time `json:"expected_time"`
}
