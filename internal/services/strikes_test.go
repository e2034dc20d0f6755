package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"dutywatch-backend/internal/models"
)

func newStrikeFixture(start time.Time) (*StrikeService, *stubStrikeStore, *stubUserStore, *stubNotifier, *fixedClock) {
	strikes := newStubStrikeStore()
	users := newStubUserStore()
	notifier := &stubNotifier{}
	clock := &fixedClock{t: start}
	svc := NewStrikeService(strikes, users, notifier, clock, 3, 5, 7, 24)
	return svc, strikes, users, notifier, clock
}

func TestCreateRejectsUnknownReason(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc, _, users, _, _ := newStrikeFixture(start)
	userID := users.addUser()

	_, err := svc.Create(context.Background(), models.CreateStrikeRequest{
		UserID: userID,
		Reason: "late_to_meeting",
	})
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError for unknown reason, got %v", err)
	}
}

func TestCreateRejectsUnknownUser(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc, _, _, _, _ := newStrikeFixture(start)

	_, err := svc.Create(context.Background(), models.CreateStrikeRequest{
		UserID: uuid.New(),
		Reason: models.StrikeReasonOther,
	})
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestDuplicateSuppressionWithin24Hours(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc, strikes, users, _, clock := newStrikeFixture(start)
	userID := users.addUser()

	req := models.CreateStrikeRequest{UserID: userID, Reason: models.StrikeReasonMissedHourlyLog}

	first, err := svc.Create(context.Background(), req)
	if err != nil || first == nil {
		t.Fatalf("expected first strike created, got strike=%v err=%v", first, err)
	}

	clock.t = start.Add(12 * time.Hour)
	second, err := svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("expected duplicate to be a silent no-op, got %v", err)
	}
	if second != nil {
		t.Fatalf("expected nil strike for a suppressed duplicate")
	}
	if count, _ := strikes.CountActiveByUser(context.Background(), userID); count != 1 {
		t.Fatalf("expected active count unchanged by the duplicate, got %d", count)
	}

	// A different reason is never a duplicate.
	other, err := svc.Create(context.Background(), models.CreateStrikeRequest{
		UserID: userID,
		Reason: models.StrikeReasonExcessiveBreak,
	})
	if err != nil || other == nil {
		t.Fatalf("expected strike with a different reason to be created, got %v", err)
	}

	// Past the window the same reason counts again.
	clock.t = start.Add(25 * time.Hour)
	third, err := svc.Create(context.Background(), req)
	if err != nil || third == nil {
		t.Fatalf("expected strike past the dedup window to be created, got %v", err)
	}
}

func TestWarningFiresExactlyOnceAtThreshold(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc, _, users, notifier, clock := newStrikeFixture(start)
	userID := users.addUser()

	for i := 0; i < 4; i++ {
		clock.t = start.Add(time.Duration(i) * 25 * time.Hour)
		if _, err := svc.Create(context.Background(), models.CreateStrikeRequest{
			UserID: userID,
			Reason: models.StrikeReasonMissedHourlyLog,
		}); err != nil {
			t.Fatalf("unexpected error on strike %d: %v", i+1, err)
		}
	}

	// Warn on crossing 3; the 4th strike must not warn again.
	if got := notifier.countKind("warning"); got != 2 {
		t.Fatalf("expected one warning to user and one to core team, got %d warning messages", got)
	}
}

func TestSuspensionAtThreshold(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc, _, users, notifier, clock := newStrikeFixture(start)
	userID := users.addUser()

	var last *models.Strike
	for i := 0; i < 5; i++ {
		clock.t = start.Add(time.Duration(i) * 25 * time.Hour)
		strike, err := svc.Create(context.Background(), models.CreateStrikeRequest{
			UserID: userID,
			Reason: models.StrikeReasonMissedHourlyLog,
		})
		if err != nil {
			t.Fatalf("unexpected error on strike %d: %v", i+1, err)
		}
		last = strike
	}

	user, _ := users.GetByID(context.Background(), userID)
	if user.SuspendedUntil == nil {
		t.Fatalf("expected user suspended at the fifth strike")
	}
	if !user.SuspendedUntil.Equal(clock.t.AddDate(0, 0, 7)) {
		t.Fatalf("expected suspension to run 7 days from the fifth strike, got %v", *user.SuspendedUntil)
	}
	if notifier.countKind("suspension") != 2 {
		t.Fatalf("expected suspension notices to user and core team")
	}
	if last.Severity != models.SeverityMajor {
		t.Fatalf("expected the fifth strike graded major, got %q", last.Severity)
	}
	if last.StrikeCountAtTime != 5 {
		t.Fatalf("expected strike_count_at_time to include the new strike, got %d", last.StrikeCountAtTime)
	}
}

func TestSeverityGrading(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc, _, _, _, _ := newStrikeFixture(start)

	cases := map[int]string{
		1: models.SeverityWarning,
		2: models.SeverityWarning,
		3: models.SeverityMinor,
		4: models.SeverityMinor,
		5: models.SeverityMajor,
		6: models.SeverityMajor,
	}
	for count, want := range cases {
		if got := svc.severityFor(count); got != want {
			t.Fatalf("severityFor(%d): got %q, want %q", count, got, want)
		}
	}
}

func TestResolveDecrementsAndNotifies(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc, strikes, users, notifier, _ := newStrikeFixture(start)
	userID := users.addUser()
	resolverID := uuid.New()

	strike, err := svc.Create(context.Background(), models.CreateStrikeRequest{
		UserID: userID,
		Reason: models.StrikeReasonOther,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resolved, err := svc.Resolve(context.Background(), strike.ID, resolverID, "Excused absence")
	if err != nil {
		t.Fatalf("unexpected error resolving: %v", err)
	}
	if resolved.IsActive {
		t.Fatalf("expected resolved strike inactive")
	}
	if count, _ := strikes.CountActiveByUser(context.Background(), userID); count != 0 {
		t.Fatalf("expected active count decremented, got %d", count)
	}
	if notifier.countKind("strike_resolved") != 1 {
		t.Fatalf("expected a strike_resolved notification")
	}

	// Resolving again reads as missing.
	_, err = svc.Resolve(context.Background(), strike.ID, resolverID, "again")
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError on double resolve, got %v", err)
	}
}

func TestEnsureNotSuspended(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc, _, users, _, clock := newStrikeFixture(start)
	userID := users.addUser()

	if err := svc.EnsureNotSuspended(context.Background(), userID); err != nil {
		t.Fatalf("expected clean user to pass, got %v", err)
	}

	until := start.Add(48 * time.Hour)
	users.SetSuspendedUntil(context.Background(), userID, until)

	err := svc.EnsureNotSuspended(context.Background(), userID)
	var suspended *SuspendedError
	if !errors.As(err, &suspended) {
		t.Fatalf("expected SuspendedError while in force, got %v", err)
	}
	if !suspended.Until.Equal(until) {
		t.Fatalf("expected error to carry the end date, got %v", suspended.Until)
	}

	// At exactly suspended_until the suspension has ended.
	clock.t = until
	if err := svc.EnsureNotSuspended(context.Background(), userID); err != nil {
		t.Fatalf("expected suspension lapsed at its end instant, got %v", err)
	}
	user, _ := users.GetByID(context.Background(), userID)
	if user.SuspendedUntil != nil {
		t.Fatalf("expected lapsed suspension cleared")
	}
}

func TestExpireIfLapsed(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc, _, users, _, clock := newStrikeFixture(start)
	userID := users.addUser()

	past := start.Add(-time.Hour)
	users.SetSuspendedUntil(context.Background(), userID, past)
	user, _ := users.GetByID(context.Background(), userID)

	if err := svc.ExpireIfLapsed(context.Background(), user); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.SuspendedUntil != nil {
		t.Fatalf("expected in-memory record cleared")
	}
	stored, _ := users.GetByID(context.Background(), userID)
	if stored.SuspendedUntil != nil {
		t.Fatalf("expected stored suspension cleared")
	}

	// A suspension still in force is left alone.
	future := clock.t.Add(time.Hour)
	users.SetSuspendedUntil(context.Background(), userID, future)
	current, _ := users.GetByID(context.Background(), userID)
	if err := svc.ExpireIfLapsed(context.Background(), current); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if current.SuspendedUntil == nil {
		t.Fatalf("expected active suspension untouched")
	}
}
