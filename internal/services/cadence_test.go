package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"dutywatch-backend/internal/models"
)

func newCadenceFixture(start time.Time) (*CadenceService, *stubSessionStore, *stubLogStore, *stubReporter, *fixedClock, *models.DutySession) {
	sessions := newStubSessionStore()
	logs := newStubLogStore()
	reporter := &stubReporter{}
	clock := &fixedClock{t: start}
	svc := NewCadenceService(sessions, logs, reporter, &stubGate{}, clock, 15, 90, 15)

	session := &models.DutySession{UserID: uuid.New(), StartedAt: start}
	sessions.Create(context.Background(), session)
	return svc, sessions, logs, reporter, clock, session
}

func TestExpectedNextLog(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	session := &models.DutySession{StartedAt: start}

	expected := expectedNextLog(session, nil)
	if !expected.Equal(start.Add(time.Hour)) {
		t.Fatalf("expected first log due one hour after session start, got %v", expected)
	}

	// A late log shifts every subsequent expectation with it.
	late := start.Add(74 * time.Minute)
	logs := []*models.HourlyLog{{CreatedAt: late}}
	expected = expectedNextLog(session, logs)
	if !expected.Equal(late.Add(time.Hour)) {
		t.Fatalf("expected next log anchored to previous log, got %v", expected)
	}
}

func TestWithinWindowBoundariesInclusive(t *testing.T) {
	expected := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	tolerance := 15 * time.Minute

	cases := []struct {
		offset time.Duration
		want   bool
	}{
		{-16 * time.Minute, false},
		{-15 * time.Minute, true},
		{0, true},
		{15 * time.Minute, true},
		{16 * time.Minute, false},
	}
	for _, c := range cases {
		if got := withinWindow(expected, expected.Add(c.offset), tolerance); got != c.want {
			t.Fatalf("withinWindow at offset %v: got %v, want %v", c.offset, got, c.want)
		}
	}
}

func TestSubmitWithinWindow(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc, _, _, _, clock, session := newCadenceFixture(start)

	clock.t = start.Add(74 * time.Minute)
	entry, err := svc.Submit(context.Background(), session.UserID, models.SubmitLogRequest{
		PreviousHourWork: "Restocked the supply shelf",
		NextHourPlan:     "Inventory count",
	})
	if err != nil {
		t.Fatalf("expected submission at +74m to be accepted, got %v", err)
	}
	if !entry.CreatedAt.Equal(clock.t) {
		t.Fatalf("expected log stamped with submission time")
	}
}

func TestSubmitOutsideWindowRejected(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc, _, _, _, clock, session := newCadenceFixture(start)

	clock.t = start.Add(76 * time.Minute)
	_, err := svc.Submit(context.Background(), session.UserID, models.SubmitLogRequest{
		PreviousHourWork: "Restocked the supply shelf",
		NextHourPlan:     "Inventory count",
	})

	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError at +76m, got %v", err)
	}
	if _, ok := valErr.Fields["submitted_at"]; !ok {
		t.Fatalf("expected submitted_at field error, got %v", valErr.Fields)
	}
}

func TestSubmitRequiresBothNotes(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc, _, _, _, clock, session := newCadenceFixture(start)
	clock.t = start.Add(time.Hour)

	_, err := svc.Submit(context.Background(), session.UserID, models.SubmitLogRequest{})

	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(valErr.Fields) != 2 {
		t.Fatalf("expected errors for both fields, got %v", valErr.Fields)
	}
}

func TestEditWindow(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc, _, logs, _, clock, session := newCadenceFixture(start)

	entry := &models.HourlyLog{
		DutySessionID:    session.ID,
		UserID:           session.UserID,
		PreviousHourWork: "Door duty",
		NextHourPlan:     "Door duty",
		CreatedAt:        start.Add(time.Hour),
	}
	logs.Create(context.Background(), entry)

	clock.t = entry.CreatedAt.Add(10 * time.Minute)
	updated, err := svc.Edit(context.Background(), session.UserID, entry.ID, models.EditLogRequest{
		NextHourPlan: "Equipment check",
	})
	if err != nil {
		t.Fatalf("expected edit inside the window to succeed, got %v", err)
	}
	if updated.NextHourPlan != "Equipment check" {
		t.Fatalf("expected next_hour_plan updated, got %q", updated.NextHourPlan)
	}
	if updated.PreviousHourWork != "Door duty" {
		t.Fatalf("expected untouched field preserved, got %q", updated.PreviousHourWork)
	}

	clock.t = entry.CreatedAt.Add(16 * time.Minute)
	_, err = svc.Edit(context.Background(), session.UserID, entry.ID, models.EditLogRequest{
		NextHourPlan: "Too late",
	})
	var expErr *EditWindowExpiredError
	if !errors.As(err, &expErr) {
		t.Fatalf("expected EditWindowExpiredError past the window, got %v", err)
	}
}

func TestEditRejectsOtherUsersLog(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc, _, logs, _, clock, session := newCadenceFixture(start)

	entry := &models.HourlyLog{
		DutySessionID: session.ID,
		UserID:        session.UserID,
		CreatedAt:     start.Add(time.Hour),
	}
	logs.Create(context.Background(), entry)
	clock.t = entry.CreatedAt.Add(time.Minute)

	_, err := svc.Edit(context.Background(), uuid.New(), entry.ID, models.EditLogRequest{NextHourPlan: "x"})
	var forbidden *ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError for another user's log, got %v", err)
	}
}

func TestMissedLogCandidates(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	session := &models.DutySession{ID: uuid.New(), UserID: uuid.New(), StartedAt: start}

	logs := []*models.HourlyLog{
		{CreatedAt: start.Add(60 * time.Minute)},
		{CreatedAt: start.Add(120 * time.Minute)},  // 60m gap: fine
		{CreatedAt: start.Add(212 * time.Minute)},  // 92m gap: flagged
	}

	candidates := missedLogCandidates(session, logs, 90*time.Minute)
	if len(candidates) != 1 {
		t.Fatalf("expected exactly one candidate, got %d", len(candidates))
	}
	c := candidates[0]
	if c.GapMinutes != 92 {
		t.Fatalf("expected 92-minute gap, got %d", c.GapMinutes)
	}
	if !c.ExpectedTime.Equal(start.Add(180 * time.Minute)) {
		t.Fatalf("expected missed check-in pinned to previous log + 1h, got %v", c.ExpectedTime)
	}
	if c.UserID != session.UserID || c.SessionID != session.ID {
		t.Fatalf("candidate not attributed to the session owner")
	}
}

func TestMissedLogCandidatesExactThresholdNotFlagged(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	session := &models.DutySession{ID: uuid.New(), UserID: uuid.New(), StartedAt: start}

	logs := []*models.HourlyLog{
		{CreatedAt: start.Add(60 * time.Minute)},
		{CreatedAt: start.Add(150 * time.Minute)}, // exactly 90m
	}

	if candidates := missedLogCandidates(session, logs, 90*time.Minute); len(candidates) != 0 {
		t.Fatalf("expected a gap of exactly the threshold to pass, got %d candidates", len(candidates))
	}
}

func TestCommitMissedLogsCountsSuppressedDuplicates(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc, _, logs, reporter, _, session := newCadenceFixture(start)

	for _, offset := range []time.Duration{60 * time.Minute, 152 * time.Minute, 250 * time.Minute} {
		logs.Create(context.Background(), &models.HourlyLog{
			DutySessionID: session.ID,
			UserID:        session.UserID,
			CreatedAt:     start.Add(offset),
		})
	}

	reporter.suppress = true
	candidates, created, err := svc.CommitMissedLogs(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected two gap candidates, got %d", len(candidates))
	}
	if created != 0 {
		t.Fatalf("expected suppressed reports to not count as created, got %d", created)
	}
	if len(reporter.reported) != 2 {
		t.Fatalf("expected every candidate reported to the ledger, got %d", len(reporter.reported))
	}
	for _, req := range reporter.reported {
		if req.Reason != models.StrikeReasonMissedHourlyLog {
			t.Fatalf("expected missed_hourly_log reason, got %q", req.Reason)
		}
	}
}

func TestNextDueWindow(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	svc, _, _, _, _, session := newCadenceFixture(start)

	due, err := svc.NextDue(context.Background(), session.UserID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !due.ExpectedAt.Equal(start.Add(time.Hour)) {
		t.Fatalf("expected first check-in at start+1h, got %v", due.ExpectedAt)
	}
	if !due.WindowOpens.Equal(start.Add(45 * time.Minute)) || !due.WindowCloses.Equal(start.Add(75 * time.Minute)) {
		t.Fatalf("expected ±15m window, got %v .. %v", due.WindowOpens, due.WindowCloses)
	}
}
