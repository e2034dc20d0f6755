package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"dutywatch-backend/internal/models"
)

// nominalCadence is the target spacing between hourly logs.
const nominalCadence = 60 * time.Minute

// CadenceService enforces the hourly-log cadence: it validates submissions
// against a tolerance window around the expected time and detects missed
// logs retroactively.
type CadenceService struct {
	sessions     dutySessionStore
	logs         hourlyLogStore
	strikes      violationReporter
	gate         suspensionGate
	clock        Clock
	tolerance    time.Duration
	gapThreshold time.Duration
	editWindow   time.Duration
}

func NewCadenceService(
	sessions dutySessionStore,
	logs hourlyLogStore,
	strikes violationReporter,
	gate suspensionGate,
	clock Clock,
	toleranceMinutes int,
	gapThresholdMinutes int,
	editWindowMinutes int,
) *CadenceService {
	return &CadenceService{
		sessions:     sessions,
		logs:         logs,
		strikes:      strikes,
		gate:         gate,
		clock:        clock,
		tolerance:    time.Duration(toleranceMinutes) * time.Minute,
		gapThreshold: time.Duration(gapThresholdMinutes) * time.Minute,
		editWindow:   time.Duration(editWindowMinutes) * time.Minute,
	}
}

// NextDue reports when the caller's next hourly log is expected, with the
// accepted window around it.
type NextDue struct {
	SessionID    uuid.UUID `json:"session_id"`
	ExpectedAt   time.Time `json:"expected_at"`
	WindowOpens  time.Time `json:"window_opens"`
	WindowCloses time.Time `json:"window_closes"`
}

func (s *CadenceService) NextDue(ctx context.Context, userID uuid.UUID) (*NextDue, error) {
	session, err := s.sessions.GetActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Message: "No active duty session"}
		}
		return nil, err
	}

	logs, err := s.logs.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	expected := expectedNextLog(session, logs)
	return &NextDue{
		SessionID:    session.ID,
		ExpectedAt:   expected,
		WindowOpens:  expected.Add(-s.tolerance),
		WindowCloses: expected.Add(s.tolerance),
	}, nil
}

// Submit validates and records an hourly log for the caller's active session.
// A rejected submission is a validation outcome, not a strike; strikes come
// only from the retroactive gap scan.
func (s *CadenceService) Submit(ctx context.Context, userID uuid.UUID, req models.SubmitLogRequest) (*models.HourlyLog, error) {
	if err := s.gate.EnsureNotSuspended(ctx, userID); err != nil {
		return nil, err
	}

	fieldErrors := make(map[string]string)
	if req.PreviousHourWork == "" {
		fieldErrors["previous_hour_work"] = "A short note on the previous hour is required"
	}
	if req.NextHourPlan == "" {
		fieldErrors["next_hour_plan"] = "A plan for the next hour is required"
	}
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	session, err := s.sessions.GetActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Message: "No active duty session"}
		}
		return nil, err
	}

	logs, err := s.logs.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	expected := expectedNextLog(session, logs)
	if !withinWindow(expected, now, s.tolerance) {
		return nil, &ValidationError{Fields: map[string]string{
			"submitted_at": fmt.Sprintf(
				"Hourly log must be submitted between %s and %s",
				expected.Add(-s.tolerance).Format(time.RFC3339),
				expected.Add(s.tolerance).Format(time.RFC3339),
			),
		}}
	}

	entry := &models.HourlyLog{
		DutySessionID:    session.ID,
		UserID:           userID,
		PreviousHourWork: req.PreviousHourWork,
		NextHourPlan:     req.NextHourPlan,
		CreatedAt:        now,
	}
	if err := s.logs.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// Edit corrects a log's text. Only the owner may edit, and only within the
// post-creation window.
func (s *CadenceService) Edit(ctx context.Context, userID, logID uuid.UUID, req models.EditLogRequest) (*models.HourlyLog, error) {
	entry, err := s.logs.GetByID(ctx, logID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Message: "Hourly log not found"}
		}
		return nil, err
	}
	if entry.UserID != userID {
		return nil, &ForbiddenError{Message: "Hourly log belongs to another user"}
	}
	if s.clock.Now().Sub(entry.CreatedAt) > s.editWindow {
		return nil, &EditWindowExpiredError{Window: s.editWindow}
	}

	if req.PreviousHourWork != "" {
		entry.PreviousHourWork = req.PreviousHourWork
	}
	if req.NextHourPlan != "" {
		entry.NextHourPlan = req.NextHourPlan
	}
	if err := s.logs.UpdateText(ctx, entry.ID, entry.PreviousHourWork, entry.NextHourPlan); err != nil {
		return nil, err
	}
	return entry, nil
}

// DetectMissedLogs is the read-only preview: gaps between adjacent logs that
// exceed the threshold, without touching the strike ledger.
func (s *CadenceService) DetectMissedLogs(ctx context.Context, sessionID uuid.UUID) ([]models.MissedLogCandidate, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Message: "Duty session not found"}
		}
		return nil, err
	}

	logs, err := s.logs.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	return missedLogCandidates(session, logs, s.gapThreshold), nil
}

// CommitMissedLogs submits every detected candidate to the strike ledger and
// returns the candidates plus the number of strikes actually created (the
// ledger's 24-hour duplicate suppression may collapse them).
func (s *CadenceService) CommitMissedLogs(ctx context.Context, sessionID uuid.UUID) ([]models.MissedLogCandidate, int, error) {
	candidates, err := s.DetectMissedLogs(ctx, sessionID)
	if err != nil {
		return nil, 0, err
	}

	created := 0
	for _, c := range candidates {
		strike, err := s.strikes.Report(ctx, models.CreateStrikeRequest{
			UserID: c.UserID,
			Reason: models.StrikeReasonMissedHourlyLog,
			Description: fmt.Sprintf("Missed hourly log: %d-minute gap, check-in expected at %s",
				c.GapMinutes, c.ExpectedTime.Format(time.RFC3339)),
			DutySessionID: &c.SessionID,
		})
		if err != nil {
			return candidates, created, err
		}
		if strike != nil {
			created++
		}
	}
	return candidates, created, nil
}

// expectedNextLog anchors the next expectation to the previous log, so a late
// log shifts all subsequent expectations (drifting cadence, by contract).
func expectedNextLog(session *models.DutySession, logs []*models.HourlyLog) time.Time {
	if len(logs) == 0 {
		return session.StartedAt.Add(nominalCadence)
	}
	return logs[len(logs)-1].CreatedAt.Add(nominalCadence)
}

// withinWindow accepts proposed iff expected-tol <= proposed <= expected+tol,
// boundaries inclusive.
func withinWindow(expected, proposed time.Time, tolerance time.Duration) bool {
	diff := proposed.Sub(expected)
	return diff >= -tolerance && diff <= tolerance
}

func missedLogCandidates(session *models.DutySession, logs []*models.HourlyLog, threshold time.Duration) []models.MissedLogCandidate {
	candidates := make([]models.MissedLogCandidate, 0)
	for i := 1; i < len(logs); i++ {
		gap := logs[i].CreatedAt.Sub(logs[i-1].CreatedAt)
		if gap <= threshold {
			continue
		}
		candidates = append(candidates, models.MissedLogCandidate{
			SessionID:    session.ID,
			UserID:       session.UserID,
			GapMinutes:   int(gap.Minutes()),
			ExpectedTime: logs[i-1].CreatedAt.Add(nominalCadence),
		})
	}
	return candidates
}
