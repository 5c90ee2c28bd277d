package persistence

import (
	"context"
	"fmt"

	"github.com/basket/go-craft/internal/bus"
	"github.com/basket/go-craft/internal/domain"
)

// ResetRecurringQuests moves completed recurring quests of periodType back to
// 未着手. An empty periodType resets every period. It returns the number of
// quests reset.
func (s *Store) ResetRecurringQuests(ctx context.Context, periodType string) (int64, error) {
	var affected int64
	var users []resetCount
	err := retryOnBusy(ctx, busyRetries, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin reset tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		const match = `action_type = ? AND quest_type = ? AND status = ? AND (? = '' OR period_type = ?)`
		args := []any{domain.ActionQuest, domain.QuestRecurring, domain.StatusDone, periodType, periodType}

		rows, err := tx.QueryContext(ctx, `SELECT user_id, COUNT(*) FROM actions WHERE `+match+` GROUP BY user_id ORDER BY user_id;`, args...)
		if err != nil {
			return fmt.Errorf("query reset users: %w", err)
		}
		users, err = collect(rows, func(scan scanner) (resetCount, error) {
			var rc resetCount
			err := scan(&rc.userID, &rc.count)
			return rc, err
		})
		if err != nil {
			return fmt.Errorf("scan reset users: %w", err)
		}

		res, err := tx.ExecContext(ctx, `UPDATE actions SET status = ?, updated_at = ? WHERE `+match+`;`,
			append([]any{domain.StatusNotStarted, s.timestamp()}, args...)...)
		if err != nil {
			return fmt.Errorf("reset recurring quests: %w", err)
		}
		if affected, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, err
	}
	if s.bus != nil {
		for _, rc := range users {
			s.bus.Publish(bus.TopicQuestsReset, domain.Event{
				Topic: bus.TopicQuestsReset, UserID: rc.userID, Count: rc.count, PeriodType: periodType,
			})
		}
	}
	return affected, nil
}

type resetCount struct {
	userID int64
	count  int
}
