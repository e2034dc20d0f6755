package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"dutywatch-backend/internal/models"
)

type dutySessionStore interface {
	Create(ctx context.Context, s *models.DutySession) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.DutySession, error)
	GetActiveByUser(ctx context.Context, userID uuid.UUID) (*models.DutySession, error)
	End(ctx context.Context, id uuid.UUID, endedAt time.Time, totalMinutes int) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.DutySession, error)
}

type hourlyLogStore interface {
	Create(ctx context.Context, l *models.HourlyLog) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.HourlyLog, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.HourlyLog, error)
	UpdateText(ctx context.Context, id uuid.UUID, previousHourWork, nextHourPlan string) error
	SetBreakStart(ctx context.Context, id uuid.UUID, at time.Time) error
	SetBreakEnd(ctx context.Context, id uuid.UUID, at time.Time) error
}

// violationReporter is how duty-side enforcement hands detected violations
// to the strike ledger.
type violationReporter interface {
	Report(ctx context.Context, req models.CreateStrikeRequest) (*models.Strike, error)
}

// suspensionGate blocks duty actions while a suspension is in force.
type suspensionGate interface {
	EnsureNotSuspended(ctx context.Context, userID uuid.UUID) error
}

type gapScanQueue interface {
	EnqueueGapScan(ctx context.Context, sessionID uuid.UUID) error
}

// DutyService owns the duty-session lifecycle and break enforcement.
type DutyService struct {
	sessions        dutySessionStore
	logs            hourlyLogStore
	strikes         violationReporter
	gate            suspensionGate
	queue           gapScanQueue
	clock           Clock
	minDutyMinutes  int
	maxBreakMinutes int
}

func NewDutyService(
	sessions dutySessionStore,
	logs hourlyLogStore,
	strikes violationReporter,
	gate suspensionGate,
	queue gapScanQueue,
	clock Clock,
	minDutyMinutes int,
	maxBreakMinutes int,
) *DutyService {
	return &DutyService{
		sessions:        sessions,
		logs:            logs,
		strikes:         strikes,
		gate:            gate,
		queue:           queue,
		clock:           clock,
		minDutyMinutes:  minDutyMinutes,
		maxBreakMinutes: maxBreakMinutes,
	}
}

// Start opens a new duty session. A user may have at most one active session;
// the partial unique index on duty_sessions enforces this under concurrency.
func (s *DutyService) Start(ctx context.Context, userID uuid.UUID) (*models.DutySession, error) {
	if err := s.gate.EnsureNotSuspended(ctx, userID); err != nil {
		return nil, err
	}

	session := &models.DutySession{
		UserID:    userID,
		StartedAt: s.clock.Now(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		if isUniqueViolation(err) {
			return nil, &ConflictError{Message: "An active duty session already exists for this user"}
		}
		return nil, err
	}
	return session, nil
}

// End closes a session and persists its net duration: gross minutes minus
// the sum of completed break intervals on its hourly logs.
func (s *DutyService) End(ctx context.Context, callerID uuid.UUID, callerRole string, sessionID uuid.UUID) (*models.DutySession, *models.DutySummary, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, &NotFoundError{Message: "Duty session not found"}
		}
		return nil, nil, err
	}

	if session.UserID != callerID && !models.IsElevated(callerRole) {
		return nil, nil, &ForbiddenError{Message: "Only the session owner or core team may end this session"}
	}
	if !session.IsActive() {
		return nil, nil, &InvalidStateError{Message: "Duty session has already ended"}
	}

	endedAt := s.clock.Now()
	if endedAt.Before(session.StartedAt) {
		return nil, nil, &InvalidStateError{Message: "Duty session cannot end before it started"}
	}

	logs, err := s.logs.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, nil, err
	}

	breakMinutes := completedBreakMinutes(logs)
	totalMinutes := int(endedAt.Sub(session.StartedAt).Minutes()) - breakMinutes
	if totalMinutes < 0 {
		totalMinutes = 0
	}

	if err := s.sessions.End(ctx, session.ID, endedAt, totalMinutes); err != nil {
		return nil, nil, err
	}
	session.EndedAt = &endedAt
	session.TotalDurationMinutes = &totalMinutes

	// Kick off the retroactive missed-log scan for the finished session.
	// Queue failures must not fail the end operation.
	if s.queue != nil {
		if err := s.queue.EnqueueGapScan(ctx, session.ID); err != nil {
			log.Printf("duty: failed to enqueue gap scan for session %s: %v", session.ID, err)
		}
	}

	summary := &models.DutySummary{
		SessionID:    session.ID,
		TotalMinutes: totalMinutes,
		BreakMinutes: breakMinutes,
		MeetsMinimum: totalMinutes >= s.minDutyMinutes,
	}
	return session, summary, nil
}

// Active returns the caller's open session.
func (s *DutyService) Active(ctx context.Context, userID uuid.UUID) (*models.DutySession, error) {
	session, err := s.sessions.GetActiveByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Message: "No active duty session"}
		}
		return nil, err
	}
	return session, nil
}

// History pages through the caller's sessions, newest first.
func (s *DutyService) History(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.DutySession, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.sessions.ListByUser(ctx, userID, limit, offset)
}

// Summary reports total and break minutes for a session. Active sessions are
// measured up to the current time.
func (s *DutyService) Summary(ctx context.Context, sessionID uuid.UUID) (*models.DutySummary, error) {
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

	upTo := s.clock.Now()
	if session.EndedAt != nil {
		upTo = *session.EndedAt
	}

	breakMinutes := completedBreakMinutes(logs)
	totalMinutes := int(upTo.Sub(session.StartedAt).Minutes()) - breakMinutes
	if totalMinutes < 0 {
		totalMinutes = 0
	}

	return &models.DutySummary{
		SessionID:    session.ID,
		TotalMinutes: totalMinutes,
		BreakMinutes: breakMinutes,
		MeetsMinimum: totalMinutes >= s.minDutyMinutes,
	}, nil
}

// StartBreak opens a break on an hourly log. Each log carries at most one break.
func (s *DutyService) StartBreak(ctx context.Context, userID, logID uuid.UUID) (*models.HourlyLog, error) {
	entry, err := s.ownedLog(ctx, userID, logID)
	if err != nil {
		return nil, err
	}
	if entry.BreakStartedAt != nil {
		return nil, &InvalidStateError{Message: "A break was already started on this log"}
	}

	now := s.clock.Now()
	if err := s.logs.SetBreakStart(ctx, entry.ID, now); err != nil {
		return nil, err
	}
	entry.BreakStartedAt = &now
	return entry, nil
}

// EndBreak closes the open break on an hourly log. Breaks over the ceiling
// are still persisted; the violation is reported to the strike ledger and
// surfaced to the caller, never reversed.
func (s *DutyService) EndBreak(ctx context.Context, userID, logID uuid.UUID) (*models.BreakResult, error) {
	entry, err := s.ownedLog(ctx, userID, logID)
	if err != nil {
		return nil, err
	}
	if !entry.HasOpenBreak() {
		return nil, &InvalidStateError{Message: "No open break on this log"}
	}

	now := s.clock.Now()
	if err := s.logs.SetBreakEnd(ctx, entry.ID, now); err != nil {
		return nil, err
	}
	entry.BreakEndedAt = &now

	duration := int(now.Sub(*entry.BreakStartedAt).Minutes())
	result := &models.BreakResult{
		LogID:           entry.ID,
		DurationMinutes: duration,
		ExceededLimit:   duration > s.maxBreakMinutes,
	}

	if result.ExceededLimit {
		// Best effort: a ledger failure must not block the break-end result.
		_, reportErr := s.strikes.Report(ctx, models.CreateStrikeRequest{
			UserID:        entry.UserID,
			Reason:        models.StrikeReasonExcessiveBreak,
			Description:   fmt.Sprintf("Break of %d minutes exceeded the %d-minute limit", duration, s.maxBreakMinutes),
			DutySessionID: &entry.DutySessionID,
			HourlyLogID:   &entry.ID,
		})
		if reportErr != nil {
			log.Printf("duty: failed to record excessive_break strike for user %s: %v", entry.UserID, reportErr)
		}
	}

	return result, nil
}

func (s *DutyService) ownedLog(ctx context.Context, userID, logID uuid.UUID) (*models.HourlyLog, error) {
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
	return entry, nil
}

func completedBreakMinutes(logs []*models.HourlyLog) int {
	total := 0
	for _, l := range logs {
		if l.BreakStartedAt != nil && l.BreakEndedAt != nil {
			total += int(l.BreakEndedAt.Sub(*l.BreakStartedAt).Minutes())
		}
	}
	return total
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
