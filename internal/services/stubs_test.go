package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"dutywatch-backend/internal/models"
)

// fixedClock lets tests pin and advance time.
type fixedClock struct {
	t time.Time
}

func (c *fixedClock) Now() time.Time { return c.t }

type stubSessionStore struct {
	sessions  map[uuid.UUID]*models.DutySession
	createErr error
}

func newStubSessionStore() *stubSessionStore {
	return &stubSessionStore{sessions: make(map[uuid.UUID]*models.DutySession)}
}

func (s *stubSessionStore) Create(ctx context.Context, session *models.DutySession) error {
	if s.createErr != nil {
		return s.createErr
	}
	session.ID = uuid.New()
	session.CreatedAt = session.StartedAt
	s.sessions[session.ID] = session
	return nil
}

func (s *stubSessionStore) GetByID(ctx context.Context, id uuid.UUID) (*models.DutySession, error) {
	session, ok := s.sessions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *session
	return &copied, nil
}

func (s *stubSessionStore) GetActiveByUser(ctx context.Context, userID uuid.UUID) (*models.DutySession, error) {
	for _, session := range s.sessions {
		if session.UserID == userID && session.EndedAt == nil {
			copied := *session
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *stubSessionStore) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.DutySession, error) {
	var out []*models.DutySession
	for _, session := range s.sessions {
		if session.UserID == userID {
			copied := *session
			out = append(out, &copied)
		}
	}
	// Repos return newest first; the map makes no promises.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].StartedAt.After(out[j-1].StartedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *stubSessionStore) End(ctx context.Context, id uuid.UUID, endedAt time.Time, totalMinutes int) error {
	session, ok := s.sessions[id]
	if !ok {
		return pgx.ErrNoRows
	}
	session.EndedAt = &endedAt
	session.TotalDurationMinutes = &totalMinutes
	return nil
}

type stubLogStore struct {
	logs map[uuid.UUID]*models.HourlyLog
}

func newStubLogStore() *stubLogStore {
	return &stubLogStore{logs: make(map[uuid.UUID]*models.HourlyLog)}
}

func (s *stubLogStore) Create(ctx context.Context, l *models.HourlyLog) error {
	l.ID = uuid.New()
	s.logs[l.ID] = l
	return nil
}

func (s *stubLogStore) GetByID(ctx context.Context, id uuid.UUID) (*models.HourlyLog, error) {
	l, ok := s.logs[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *l
	return &copied, nil
}

func (s *stubLogStore) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.HourlyLog, error) {
	var out []*models.HourlyLog
	for _, l := range s.logs {
		if l.DutySessionID == sessionID {
			copied := *l
			out = append(out, &copied)
		}
	}
	// Repos return logs in creation order; the map makes no promises.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].CreatedAt.Before(out[j-1].CreatedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

func (s *stubLogStore) UpdateText(ctx context.Context, id uuid.UUID, previousHourWork, nextHourPlan string) error {
	l, ok := s.logs[id]
	if !ok {
		return pgx.ErrNoRows
	}
	l.PreviousHourWork = previousHourWork
	l.NextHourPlan = nextHourPlan
	return nil
}

func (s *stubLogStore) SetBreakStart(ctx context.Context, id uuid.UUID, at time.Time) error {
	l, ok := s.logs[id]
	if !ok {
		return pgx.ErrNoRows
	}
	l.BreakStartedAt = &at
	return nil
}

func (s *stubLogStore) SetBreakEnd(ctx context.Context, id uuid.UUID, at time.Time) error {
	l, ok := s.logs[id]
	if !ok {
		return pgx.ErrNoRows
	}
	l.BreakEndedAt = &at
	return nil
}

// stubReporter records every reported violation and can suppress creations.
type stubReporter struct {
	reported []models.CreateStrikeRequest
	suppress bool
}

func (s *stubReporter) Report(ctx context.Context, req models.CreateStrikeRequest) (*models.Strike, error) {
	s.reported = append(s.reported, req)
	if s.suppress {
		return nil, nil
	}
	return &models.Strike{ID: uuid.New(), UserID: req.UserID, Reason: req.Reason}, nil
}

type stubGate struct {
	err error
}

func (s *stubGate) EnsureNotSuspended(ctx context.Context, userID uuid.UUID) error {
	return s.err
}

type stubQueue struct {
	enqueued []uuid.UUID
}

func (s *stubQueue) EnqueueGapScan(ctx context.Context, sessionID uuid.UUID) error {
	s.enqueued = append(s.enqueued, sessionID)
	return nil
}

type notifiedMessage struct {
	target string
	kind   string
}

type stubNotifier struct {
	messages []notifiedMessage
}

func (s *stubNotifier) NotifyUser(ctx context.Context, userID uuid.UUID, kind string, payload interface{}) {
	s.messages = append(s.messages, notifiedMessage{target: "user:" + userID.String(), kind: kind})
}

func (s *stubNotifier) NotifyRole(ctx context.Context, role string, kind string, payload interface{}) {
	s.messages = append(s.messages, notifiedMessage{target: "role:" + role, kind: kind})
}

func (s *stubNotifier) countKind(kind string) int {
	n := 0
	for _, m := range s.messages {
		if m.kind == kind {
			n++
		}
	}
	return n
}

// stubStrikeStore mirrors the transactional semantics of the real repo:
// duplicate suppression against active strikes, counter maintenance and
// severity grading at insert time.
type stubStrikeStore struct {
	strikes     []*models.Strike
	activeCount map[uuid.UUID]int
}

func newStubStrikeStore() *stubStrikeStore {
	return &stubStrikeStore{activeCount: make(map[uuid.UUID]int)}
}

func (s *stubStrikeStore) Record(ctx context.Context, strike *models.Strike, dedupSince time.Time, severityFor func(activeCount int) string) (bool, int, error) {
	for _, existing := range s.strikes {
		if existing.UserID == strike.UserID && existing.Reason == strike.Reason &&
			existing.IsActive && existing.CreatedAt.After(dedupSince) {
			return false, s.activeCount[strike.UserID], nil
		}
	}
	newCount := s.activeCount[strike.UserID] + 1
	strike.ID = uuid.New()
	strike.StrikeCountAtTime = newCount
	strike.Severity = severityFor(newCount)
	s.strikes = append(s.strikes, strike)
	s.activeCount[strike.UserID] = newCount
	return true, newCount, nil
}

func (s *stubStrikeStore) Resolve(ctx context.Context, strikeID, resolverID uuid.UUID, notes string, at time.Time) (*models.Strike, error) {
	for _, strike := range s.strikes {
		if strike.ID == strikeID && strike.IsActive {
			strike.IsActive = false
			strike.ResolvedBy = &resolverID
			strike.ResolvedAt = &at
			strike.ResolutionNotes = &notes
			if s.activeCount[strike.UserID] > 0 {
				s.activeCount[strike.UserID]--
			}
			copied := *strike
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *stubStrikeStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Strike, error) {
	for _, strike := range s.strikes {
		if strike.ID == id {
			copied := *strike
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *stubStrikeStore) CountActiveByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.activeCount[userID], nil
}

func (s *stubStrikeStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Strike, error) {
	var out []*models.Strike
	for _, strike := range s.strikes {
		if strike.UserID == userID {
			copied := *strike
			out = append(out, &copied)
		}
	}
	return out, nil
}

type stubUserStore struct {
	users map[uuid.UUID]*models.User
}

func newStubUserStore() *stubUserStore {
	return &stubUserStore{users: make(map[uuid.UUID]*models.User)}
}

func (s *stubUserStore) addUser() uuid.UUID {
	id := uuid.New()
	s.users[id] = &models.User{ID: id, Email: id.String() + "@club.test", Role: models.RoleMember}
	return id
}

func (s *stubUserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (s *stubUserStore) SetSuspendedUntil(ctx context.Context, userID uuid.UUID, until time.Time) error {
	user, ok := s.users[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	user.SuspendedUntil = &until
	return nil
}

func (s *stubUserStore) ClearSuspension(ctx context.Context, userID uuid.UUID) error {
	user, ok := s.users[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	user.SuspendedUntil = nil
	return nil
}
