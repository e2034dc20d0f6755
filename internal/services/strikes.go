package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"dutywatch-backend/internal/models"
)

type strikeStore interface {
	// Record atomically applies duplicate suppression, inserts the strike and
	// bumps the user's denormalized counter inside one transaction that holds
	// the user row lock. created is false when the strike was suppressed as a
	// duplicate; newCount is the active count after the call either way.
	Record(ctx context.Context, s *models.Strike, dedupSince time.Time, severityFor func(activeCount int) string) (created bool, newCount int, err error)

	// Resolve deactivates an active strike and decrements the user's counter
	// (floored at zero) in one transaction. pgx.ErrNoRows when the strike is
	// missing or already resolved.
	Resolve(ctx context.Context, strikeID, resolverID uuid.UUID, notes string, at time.Time) (*models.Strike, error)

	GetByID(ctx context.Context, id uuid.UUID) (*models.Strike, error)
	CountActiveByUser(ctx context.Context, userID uuid.UUID) (int, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Strike, error)
}

type userAccountStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetSuspendedUntil(ctx context.Context, userID uuid.UUID, until time.Time) error
	ClearSuspension(ctx context.Context, userID uuid.UUID) error
}

// StrikeService is the strike ledger plus the escalation policy and the
// suspension manager layered on top of it. All mutations of a user's
// strike_count and suspended_until go through here.
type StrikeService struct {
	strikes             strikeStore
	users               userAccountStore
	notifier            Notifier
	clock               Clock
	warningThreshold    int
	suspensionThreshold int
	suspensionDays      int
	dedupWindow         time.Duration
}

func NewStrikeService(
	strikes strikeStore,
	users userAccountStore,
	notifier Notifier,
	clock Clock,
	warningThreshold int,
	suspensionThreshold int,
	suspensionDays int,
	dedupHours int,
) *StrikeService {
	return &StrikeService{
		strikes:             strikes,
		users:               users,
		notifier:            notifier,
		clock:               clock,
		warningThreshold:    warningThreshold,
		suspensionThreshold: suspensionThreshold,
		suspensionDays:      suspensionDays,
		dedupWindow:         time.Duration(dedupHours) * time.Hour,
	}
}

// Report satisfies the violationReporter interface used by the duty and
// cadence services.
func (s *StrikeService) Report(ctx context.Context, req models.CreateStrikeRequest) (*models.Strike, error) {
	return s.Create(ctx, req)
}

// Create records a violation. An active strike with the same (user, reason)
// within the dedup window makes this a no-op returning (nil, nil), so one
// ongoing violation cannot generate a storm of strikes.
func (s *StrikeService) Create(ctx context.Context, req models.CreateStrikeRequest) (*models.Strike, error) {
	fieldErrors := make(map[string]string)
	if !models.ValidStrikeReason(req.Reason) {
		fieldErrors["reason"] = "Reason must be one of: missed_hourly_log, insufficient_duty_hours, excessive_break, other"
	}
	if len(req.Description) > 1000 {
		fieldErrors["description"] = "Description must be at most 1000 characters"
	}
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	if _, err := s.users.GetByID(ctx, req.UserID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Message: "User not found"}
		}
		return nil, err
	}

	now := s.clock.Now()
	strike := &models.Strike{
		UserID:        req.UserID,
		Reason:        req.Reason,
		Description:   req.Description,
		Date:          now,
		IsActive:      true,
		DutySessionID: req.DutySessionID,
		HourlyLogID:   req.HourlyLogID,
		CreatedAt:     now,
	}

	created, newCount, err := s.strikes.Record(ctx, strike, now.Add(-s.dedupWindow), s.severityFor)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, nil
	}

	s.escalate(ctx, req.UserID, newCount)
	return strike, nil
}

// Resolve deactivates a strike. An already-resolved strike is reported the
// same as a missing one.
func (s *StrikeService) Resolve(ctx context.Context, strikeID, resolverID uuid.UUID, notes string) (*models.Strike, error) {
	strike, err := s.strikes.Resolve(ctx, strikeID, resolverID, notes, s.clock.Now())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Message: "Strike not found or already resolved"}
		}
		return nil, err
	}

	s.notifier.NotifyUser(ctx, strike.UserID, "strike_resolved", StrikeResolvedNotice{
		StrikeID:   strike.ID,
		Reason:     strike.Reason,
		ResolvedAt: *strike.ResolvedAt,
	})
	return strike, nil
}

// CountActive is the reconciliation read: the active count derived from the
// strike table itself, not the denormalized counter.
func (s *StrikeService) CountActive(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.strikes.CountActiveByUser(ctx, userID)
}

func (s *StrikeService) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Strike, error) {
	return s.strikes.ListByUser(ctx, userID)
}

func (s *StrikeService) GetByID(ctx context.Context, id uuid.UUID) (*models.Strike, error) {
	strike, err := s.strikes.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Message: "Strike not found"}
		}
		return nil, err
	}
	return strike, nil
}

// severityFor grades a strike by the active count it produces.
func (s *StrikeService) severityFor(activeCount int) string {
	switch {
	case activeCount >= s.suspensionThreshold:
		return models.SeverityMajor
	case activeCount >= s.warningThreshold:
		return models.SeverityMinor
	default:
		return models.SeverityWarning
	}
}

// escalate runs on every strike creation. Counts move by one, so the warning
// fires exactly once, on the strike that crosses the threshold; reaching the
// suspension threshold (or beyond) suspends from the latest violation.
func (s *StrikeService) escalate(ctx context.Context, userID uuid.UUID, activeCount int) {
	switch {
	case activeCount >= s.suspensionThreshold:
		until, err := s.Suspend(ctx, userID, s.suspensionDays)
		if err != nil {
			// The strike itself is already committed; suspension failure
			// surfaces on the next violation.
			return
		}
		notice := SuspensionNotice{UserID: userID, Until: until, ActiveStrikes: activeCount}
		s.notifier.NotifyUser(ctx, userID, "suspension", notice)
		s.notifier.NotifyRole(ctx, models.RoleCoreTeam, "suspension", notice)
	case activeCount == s.warningThreshold:
		notice := WarningNotice{UserID: userID, ActiveStrikes: activeCount, SuspensionAt: s.suspensionThreshold}
		s.notifier.NotifyUser(ctx, userID, "warning", notice)
		s.notifier.NotifyRole(ctx, models.RoleCoreTeam, "warning", notice)
	}
}

// Suspend sets suspended_until = now + days (calendar days).
func (s *StrikeService) Suspend(ctx context.Context, userID uuid.UUID, days int) (time.Time, error) {
	until := s.clock.Now().AddDate(0, 0, days)
	if err := s.users.SetSuspendedUntil(ctx, userID, until); err != nil {
		return time.Time{}, err
	}
	return until, nil
}

// IsSuspended is strict: a suspension ends at exactly suspendedUntil.
func (s *StrikeService) IsSuspended(user *models.User) bool {
	return user.SuspendedUntil != nil && s.clock.Now().Before(*user.SuspendedUntil)
}

// EnsureNotSuspended is the lazy-expiry gate in front of duty actions: a
// lapsed suspension is cleared on the spot, an in-force one is reported with
// its end date.
func (s *StrikeService) EnsureNotSuspended(ctx context.Context, userID uuid.UUID) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &NotFoundError{Message: "User not found"}
		}
		return err
	}
	if user.SuspendedUntil == nil {
		return nil
	}
	if s.clock.Now().Before(*user.SuspendedUntil) {
		return &SuspendedError{Until: *user.SuspendedUntil}
	}
	if err := s.users.ClearSuspension(ctx, userID); err != nil {
		return err
	}
	return nil
}

// ExpireIfLapsed clears a past suspended_until on the given user record.
// Invoked opportunistically, e.g. on login.
func (s *StrikeService) ExpireIfLapsed(ctx context.Context, user *models.User) error {
	if user.SuspendedUntil == nil || s.clock.Now().Before(*user.SuspendedUntil) {
		return nil
	}
	if err := s.users.ClearSuspension(ctx, user.ID); err != nil {
		return err
	}
	user.SuspendedUntil = nil
	return nil
}
