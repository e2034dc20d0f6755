package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"dutywatch-backend/internal/models"
)

type DutySessionRepo struct {
	pool *pgxpool.Pool
}

func NewDutySessionRepo(pool *pgxpool.Pool) *DutySessionRepo {
	return &DutySessionRepo{pool: pool}
}

// ActiveSessionInfo is the reminder scheduler's view of an open session.
type ActiveSessionInfo struct {
	SessionID uuid.UUID
	UserID    uuid.UUID
	StartedAt time.Time
	LastLogAt *time.Time
}

// Create inserts a session. The partial unique index uq_duty_sessions_active
// rejects a second active session for the same user with a 23505.
func (r *DutySessionRepo) Create(ctx context.Context, s *models.DutySession) error {
	query := `
		INSERT INTO duty_sessions (user_id, started_at)
		VALUES ($1, $2)
		RETURNING id, created_at`

	return r.pool.QueryRow(ctx, query, s.UserID, s.StartedAt).Scan(&s.ID, &s.CreatedAt)
}

func (r *DutySessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.DutySession, error) {
	s := &models.DutySession{}
	query := `SELECT id, user_id, started_at, ended_at, total_duration_minutes, created_at
		FROM duty_sessions WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.UserID, &s.StartedAt, &s.EndedAt, &s.TotalDurationMinutes, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *DutySessionRepo) GetActiveByUser(ctx context.Context, userID uuid.UUID) (*models.DutySession, error) {
	s := &models.DutySession{}
	query := `SELECT id, user_id, started_at, ended_at, total_duration_minutes, created_at
		FROM duty_sessions WHERE user_id = $1 AND ended_at IS NULL`

	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&s.ID, &s.UserID, &s.StartedAt, &s.EndedAt, &s.TotalDurationMinutes, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *DutySessionRepo) End(ctx context.Context, id uuid.UUID, endedAt time.Time, totalMinutes int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE duty_sessions
		SET ended_at = $2, total_duration_minutes = $3
		WHERE id = $1 AND ended_at IS NULL
	`, id, endedAt, totalMinutes)
	return err
}

func (r *DutySessionRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.DutySession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, started_at, ended_at, total_duration_minutes, created_at
		FROM duty_sessions
		WHERE user_id = $1
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]*models.DutySession, 0)
	for rows.Next() {
		s := &models.DutySession{}
		if err := rows.Scan(&s.ID, &s.UserID, &s.StartedAt, &s.EndedAt, &s.TotalDurationMinutes, &s.CreatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// ListActiveWithLastLog returns every open session together with the
// timestamp of its most recent hourly log, for reminder scheduling.
func (r *DutySessionRepo) ListActiveWithLastLog(ctx context.Context) ([]ActiveSessionInfo, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.user_id, s.started_at, MAX(l.created_at) AS last_log_at
		FROM duty_sessions s
		LEFT JOIN hourly_logs l ON l.duty_session_id = s.id
		WHERE s.ended_at IS NULL
		GROUP BY s.id, s.user_id, s.started_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	infos := make([]ActiveSessionInfo, 0)
	for rows.Next() {
		var info ActiveSessionInfo
		if err := rows.Scan(&info.SessionID, &info.UserID, &info.StartedAt, &info.LastLogAt); err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}
