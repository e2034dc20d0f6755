package handlers

import (
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"dutywatch-backend/internal/middleware"
)

type StatsHandler struct {
	pool *pgxpool.Pool
}

func NewStatsHandler(pool *pgxpool.Pool) *StatsHandler {
	return &StatsHandler{pool: pool}
}

// Me summarizes the caller's duty record for the member dashboard.
func (h *StatsHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	ctx := r.Context()

	var sessionCount, weeklySessionCount int
	var totalDutyMinutes, weeklyDutyMinutes int
	var activeStrikes, resolvedStrikes int

	h.pool.QueryRow(ctx, "SELECT COUNT(*) FROM duty_sessions WHERE user_id = $1 AND ended_at IS NOT NULL", userID).Scan(&sessionCount)
	h.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM duty_sessions
		WHERE user_id = $1
		  AND ended_at IS NOT NULL
		  AND started_at >= NOW() - INTERVAL '7 days'
	`, userID).Scan(&weeklySessionCount)

	h.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_duration_minutes), 0)
		FROM duty_sessions
		WHERE user_id = $1 AND ended_at IS NOT NULL
	`, userID).Scan(&totalDutyMinutes)

	h.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_duration_minutes), 0)
		FROM duty_sessions
		WHERE user_id = $1
		  AND ended_at IS NOT NULL
		  AND started_at >= NOW() - INTERVAL '7 days'
	`, userID).Scan(&weeklyDutyMinutes)

	h.pool.QueryRow(ctx, "SELECT COUNT(*) FROM strikes WHERE user_id = $1 AND is_active", userID).Scan(&activeStrikes)
	h.pool.QueryRow(ctx, "SELECT COUNT(*) FROM strikes WHERE user_id = $1 AND NOT is_active", userID).Scan(&resolvedStrikes)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions_total":      sessionCount,
		"sessions_this_week":  weeklySessionCount,
		"duty_minutes_total":  totalDutyMinutes,
		"duty_minutes_week":   weeklyDutyMinutes,
		"active_strikes":      activeStrikes,
		"resolved_strikes":    resolvedStrikes,
	})
}

// Overview is the core-team view: members with active strikes or an
// in-force suspension, most strikes first.
func (h *StatsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rows, err := h.pool.Query(ctx, `
		SELECT u.id, u.full_name, u.strike_count, u.suspended_until,
			COALESCE(SUM(s.total_duration_minutes) FILTER (WHERE s.started_at >= NOW() - INTERVAL '7 days'), 0)
		FROM users u
		LEFT JOIN duty_sessions s ON s.user_id = u.id AND s.ended_at IS NOT NULL
		WHERE u.strike_count > 0 OR u.suspended_until IS NOT NULL
		GROUP BY u.id, u.full_name, u.strike_count, u.suspended_until
		ORDER BY u.strike_count DESC
	`)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load overview", r))
		return
	}
	defer rows.Close()

	type memberRow struct {
		UserID            string     `json:"user_id"`
		FullName          string     `json:"full_name"`
		StrikeCount       int        `json:"strike_count"`
		SuspendedUntil    *time.Time `json:"suspended_until"`
		WeeklyDutyMinutes int        `json:"weekly_duty_minutes"`
	}

	members := make([]memberRow, 0)
	for rows.Next() {
		var m memberRow
		if err := rows.Scan(&m.UserID, &m.FullName, &m.StrikeCount, &m.SuspendedUntil, &m.WeeklyDutyMinutes); err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load overview", r))
			return
		}
		members = append(members, m)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"members": members,
	})
}
