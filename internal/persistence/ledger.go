package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/basket/go-craft/internal/bus"
	"github.com/basket/go-craft/internal/domain"
	"github.com/basket/go-craft/internal/progression"
)

var _ progression.Ledger = (*Store)(nil)

// Award adds xp to the user's row in one transaction and returns the new
// progression.
func (s *Store) Award(ctx context.Context, userID int64, xp int) (progression.Progression, error) {
	if xp < 0 {
		return progression.Progression{}, progression.ErrNegativeXP
	}
	var before, after progression.Progression
	err := retryOnBusy(ctx, busyRetries, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin award tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		before, after, err = s.awardTx(ctx, tx, userID, xp)
		if err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return progression.Progression{}, fmt.Errorf("award xp: %w", err)
	}
	s.publishProgress(userID, 0, xp, before, after)
	return after, nil
}

func (s *Store) Current(ctx context.Context, userID int64) (progression.Progression, error) {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return progression.Progression{}, err
	}
	return u.Progression(), nil
}

func (s *Store) awardTx(ctx context.Context, tx *sql.Tx, userID int64, xp int) (before, after progression.Progression, err error) {
	err = tx.QueryRowContext(ctx, `SELECT level, experience_points FROM users WHERE id = ?;`, userID).Scan(&before.Level, &before.XP)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return before, after, notFound("User")
		}
		return before, after, fmt.Errorf("read progression: %w", err)
	}
	before = before.Normalize()
	after = progression.Apply(before, xp)
	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET level = ?, experience_points = ?, updated_at = ? WHERE id = ?;
	`, after.Level, after.XP, s.timestamp(), userID); err != nil {
		return before, after, fmt.Errorf("write progression: %w", err)
	}
	return before, after, nil
}

// publishProgress emits progression events after a commit (best-effort).
func (s *Store) publishProgress(userID, actionID int64, xp int, before, after progression.Progression) {
	if s.bus == nil {
		return
	}
	ev := domain.Event{
		UserID:           userID,
		ActionID:         actionID,
		XPGained:         xp,
		Level:            after.Level,
		ExperiencePoints: after.XP,
		LevelsGained:     progression.LevelsGained(before, after),
	}
	if actionID != 0 {
		ev.Topic = bus.TopicQuestCompleted
		s.bus.Publish(ev.Topic, ev)
	}
	if xp > 0 {
		ev.Topic = bus.TopicXPAwarded
		s.bus.Publish(ev.Topic, ev)
	}
	if ev.LevelsGained > 0 {
		ev.Topic = bus.TopicLevelUp
		s.bus.Publish(ev.Topic, ev)
	}
}
