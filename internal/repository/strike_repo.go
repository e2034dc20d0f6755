package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"dutywatch-backend/internal/models"
)

type StrikeRepo struct {
	pool *pgxpool.Pool
}

func NewStrikeRepo(pool *pgxpool.Pool) *StrikeRepo {
	return &StrikeRepo{pool: pool}
}

const strikeColumns = `id, user_id, reason, description, date, is_active, strike_count_at_time, severity,
		duty_session_id, hourly_log_id, resolution_notes, resolved_by, resolved_at, created_at`

// Record is the serialization point for one user's strikes: it locks the
// user row, applies the duplicate check, inserts the strike and bumps the
// denormalized counter in a single transaction, so two concurrent violations
// can never both read a stale count.
func (r *StrikeRepo) Record(ctx context.Context, s *models.Strike, dedupSince time.Time, severityFor func(activeCount int) string) (bool, int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, 0, err
	}
	defer tx.Rollback(ctx)

	var count int
	err = tx.QueryRow(ctx, "SELECT strike_count FROM users WHERE id = $1 FOR UPDATE", s.UserID).Scan(&count)
	if err != nil {
		return false, 0, err
	}

	var duplicate bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM strikes
			WHERE user_id = $1 AND reason = $2 AND is_active AND created_at >= $3
		)
	`, s.UserID, s.Reason, dedupSince).Scan(&duplicate)
	if err != nil {
		return false, 0, err
	}
	if duplicate {
		return false, count, tx.Commit(ctx)
	}

	newCount := count + 1
	s.StrikeCountAtTime = newCount
	s.Severity = severityFor(newCount)

	err = tx.QueryRow(ctx, `
		INSERT INTO strikes (user_id, reason, description, date, is_active, strike_count_at_time, severity,
			duty_session_id, hourly_log_id, created_at)
		VALUES ($1, $2, $3, $4, TRUE, $5, $6, $7, $8, $9)
		RETURNING id
	`, s.UserID, s.Reason, s.Description, s.Date, s.StrikeCountAtTime, s.Severity,
		s.DutySessionID, s.HourlyLogID, s.CreatedAt,
	).Scan(&s.ID)
	if err != nil {
		return false, 0, err
	}

	if _, err := tx.Exec(ctx, "UPDATE users SET strike_count = $1 WHERE id = $2", newCount, s.UserID); err != nil {
		return false, 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, 0, err
	}
	return true, newCount, nil
}

// Resolve deactivates an active strike and decrements the user's counter,
// floored at zero, in one transaction. pgx.ErrNoRows when no active strike
// matches.
func (r *StrikeRepo) Resolve(ctx context.Context, strikeID, resolverID uuid.UUID, notes string, at time.Time) (*models.Strike, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	s := &models.Strike{}
	err = tx.QueryRow(ctx, `
		UPDATE strikes
		SET is_active = FALSE, resolved_by = $2, resolution_notes = $3, resolved_at = $4
		WHERE id = $1 AND is_active
		RETURNING `+strikeColumns,
		strikeID, resolverID, notes, at,
	).Scan(
		&s.ID, &s.UserID, &s.Reason, &s.Description, &s.Date, &s.IsActive, &s.StrikeCountAtTime, &s.Severity,
		&s.DutySessionID, &s.HourlyLogID, &s.ResolutionNotes, &s.ResolvedBy, &s.ResolvedAt, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		"UPDATE users SET strike_count = GREATEST(strike_count - 1, 0) WHERE id = $1", s.UserID,
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *StrikeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Strike, error) {
	s := &models.Strike{}
	err := r.pool.QueryRow(ctx, `SELECT `+strikeColumns+` FROM strikes WHERE id = $1`, id).Scan(
		&s.ID, &s.UserID, &s.Reason, &s.Description, &s.Date, &s.IsActive, &s.StrikeCountAtTime, &s.Severity,
		&s.DutySessionID, &s.HourlyLogID, &s.ResolutionNotes, &s.ResolvedBy, &s.ResolvedAt, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// CountActiveByUser is the reconciliation read for the denormalized counter.
func (r *StrikeRepo) CountActiveByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM strikes WHERE user_id = $1 AND is_active", userID,
	).Scan(&count)
	return count, err
}

func (r *StrikeRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Strike, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+strikeColumns+` FROM strikes WHERE user_id = $1 ORDER BY created_at DESC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	strikes := make([]*models.Strike, 0)
	for rows.Next() {
		s := &models.Strike{}
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.Reason, &s.Description, &s.Date, &s.IsActive, &s.StrikeCountAtTime, &s.Severity,
			&s.DutySessionID, &s.HourlyLogID, &s.ResolutionNotes, &s.ResolvedBy, &s.ResolvedAt, &s.CreatedAt,
		); err != nil {
			return nil, err
		}
		strikes = append(strikes, s)
	}
	return strikes, rows.Err()
}
