package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/basket/go-craft/internal/domain"
)

var weekDays = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// GetSettings returns the user's settings, with the defaults when none were
// saved yet.
func (s *Store) GetSettings(ctx context.Context, userID int64) (*domain.UserSettings, error) {
	ok, err := userExists(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound("User")
	}
	st := domain.UserSettings{UserID: userID, WeekStartDay: "Mon", MonthStartDay: 1}
	err = s.db.QueryRowContext(ctx, `
		SELECT id, week_start_day, month_start_day, created_at, updated_at FROM user_settings WHERE user_id = ?;
	`, userID).Scan(&st.ID, &st.WeekStartDay, &st.MonthStartDay, &st.CreatedAt, &st.UpdatedAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return &st, nil
}

func (s *Store) UpdateSettings(ctx context.Context, userID int64, in domain.SettingsInput) (*domain.UserSettings, error) {
	st, err := s.GetSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.WeekStartDay != nil {
		st.WeekStartDay = *in.WeekStartDay
	}
	if in.MonthStartDay != nil {
		st.MonthStartDay = *in.MonthStartDay
	}
	var v validator
	v.included("Week start day", st.WeekStartDay, weekDays...)
	v.atLeast("Month start day", float64(st.MonthStartDay), 1)
	v.atMost("Month start day", float64(st.MonthStartDay), 31)
	if err := v.err(); err != nil {
		return nil, err
	}

	now := s.timestamp()
	err = retryOnBusy(ctx, busyRetries, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO user_settings (user_id, week_start_day, month_start_day, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				week_start_day = excluded.week_start_day,
				month_start_day = excluded.month_start_day,
				updated_at = excluded.updated_at;
		`, userID, st.WeekStartDay, st.MonthStartDay, now, now)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update settings: %w", err)
	}
	return s.GetSettings(ctx, userID)
}
