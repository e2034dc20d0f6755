package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"dutywatch-backend/internal/models"
)

type HourlyLogRepo struct {
	pool *pgxpool.Pool
}

func NewHourlyLogRepo(pool *pgxpool.Pool) *HourlyLogRepo {
	return &HourlyLogRepo{pool: pool}
}

const hourlyLogColumns = `id, duty_session_id, user_id, previous_hour_work, next_hour_plan, break_started_at, break_ended_at, created_at`

func (r *HourlyLogRepo) Create(ctx context.Context, l *models.HourlyLog) error {
	query := `
		INSERT INTO hourly_logs (duty_session_id, user_id, previous_hour_work, next_hour_plan, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	return r.pool.QueryRow(ctx, query,
		l.DutySessionID, l.UserID, l.PreviousHourWork, l.NextHourPlan, l.CreatedAt,
	).Scan(&l.ID)
}

func (r *HourlyLogRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.HourlyLog, error) {
	l := &models.HourlyLog{}
	query := `SELECT ` + hourlyLogColumns + ` FROM hourly_logs WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&l.ID, &l.DutySessionID, &l.UserID, &l.PreviousHourWork, &l.NextHourPlan,
		&l.BreakStartedAt, &l.BreakEndedAt, &l.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// ListBySession returns the session's logs in creation order, which the
// cadence validator depends on.
func (r *HourlyLogRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.HourlyLog, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+hourlyLogColumns+` FROM hourly_logs WHERE duty_session_id = $1 ORDER BY created_at`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]*models.HourlyLog, 0)
	for rows.Next() {
		l := &models.HourlyLog{}
		if err := rows.Scan(
			&l.ID, &l.DutySessionID, &l.UserID, &l.PreviousHourWork, &l.NextHourPlan,
			&l.BreakStartedAt, &l.BreakEndedAt, &l.CreatedAt,
		); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (r *HourlyLogRepo) UpdateText(ctx context.Context, id uuid.UUID, previousHourWork, nextHourPlan string) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE hourly_logs SET previous_hour_work = $1, next_hour_plan = $2 WHERE id = $3",
		previousHourWork, nextHourPlan, id,
	)
	return err
}

func (r *HourlyLogRepo) SetBreakStart(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE hourly_logs SET break_started_at = $1 WHERE id = $2 AND break_started_at IS NULL",
		at, id,
	)
	return err
}

func (r *HourlyLogRepo) SetBreakEnd(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE hourly_logs SET break_ended_at = $1 WHERE id = $2 AND break_started_at IS NOT NULL AND break_ended_at IS NULL",
		at, id,
	)
	return err
}
