package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/basket/go-craft/internal/domain"
	"github.com/basket/go-craft/internal/progression"
)

// CompleteAction marks an action done in one transaction. A quest awards its
// xp to the owner and a one-time quest is deleted. With a non-empty key the
// response is stored, and a repeated key returns it without awarding again;
// replayed reports that case.
func (s *Store) CompleteAction(ctx context.Context, id int64, idempotencyKey string) (c domain.Completion, replayed bool, err error) {
	var before, after progression.Progression
	var awarded int
	var userID int64
	var quest bool

	err = retryOnBusy(ctx, busyRetries, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin complete action tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if idempotencyKey != "" {
			stored, ok, err := readReceiptTx(ctx, tx, idempotencyKey)
			if err != nil {
				return err
			}
			if ok {
				if stored.actionID != id {
					return conflict("Idempotency-Key was already used for action %d", stored.actionID)
				}
				c, replayed = stored.completion, true
				return nil
			}
		}

		a, err := getAction(ctx, tx, id)
		if err != nil {
			return err
		}
		switch {
		case a.Status == domain.StatusWithdrawn:
			return conflict("Action is withdrawn")
		case a.Status == domain.StatusDone && !a.Recurring():
			return conflict("Action is already completed")
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE actions SET status = ?, updated_at = ? WHERE id = ? AND status = ?;
		`, domain.StatusDone, s.timestamp(), id, a.Status)
		if err != nil {
			return fmt.Errorf("mark action done: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("rows affected: %w", err)
		} else if n == 0 {
			return conflict("Action was changed by another request")
		}

		userID = a.UserID
		awarded = 0
		quest = a.IsQuest()
		if quest {
			awarded = a.XPPoints
			before, after, err = s.awardTx(ctx, tx, a.UserID, awarded)
			if err != nil {
				return err
			}
		} else {
			u, err := getUser(ctx, tx, a.UserID)
			if err != nil {
				return err
			}
			before, after = u.Progression(), u.Progression()
		}

		c = domain.Completion{
			Kind:     domain.Retained,
			Message:  domain.MessageCompleted,
			XPGained: awarded,
			User:     domain.NewSummary(a.UserID, after),
		}
		if a.OneTime() {
			if _, err := tx.ExecContext(ctx, `DELETE FROM actions WHERE id = ?;`, id); err != nil {
				return fmt.Errorf("delete one-time quest: %w", err)
			}
			c.Kind = domain.Removed
			c.Message = domain.MessageCompletedRemoved
		} else {
			done, err := getAction(ctx, tx, id)
			if err != nil {
				return err
			}
			c.Action = done
		}

		if idempotencyKey != "" {
			if err := s.writeReceiptTx(ctx, tx, idempotencyKey, id, a.UserID, c); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return domain.Completion{}, false, err
	}
	if !replayed && quest {
		s.publishProgress(userID, id, awarded, before, after)
	}
	return c, replayed, nil
}

type receipt struct {
	actionID   int64
	completion domain.Completion
}

func readReceiptTx(ctx context.Context, tx *sql.Tx, key string) (receipt, bool, error) {
	var r receipt
	var body string
	err := tx.QueryRowContext(ctx, `SELECT action_id, response FROM completion_receipts WHERE idempotency_key = ?;`, key).Scan(&r.actionID, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return r, false, nil
	}
	if err != nil {
		return r, false, fmt.Errorf("read completion receipt: %w", err)
	}
	if err := json.Unmarshal([]byte(body), &r.completion); err != nil {
		return r, false, fmt.Errorf("decode completion receipt: %w", err)
	}
	return r, true, nil
}

func (s *Store) writeReceiptTx(ctx context.Context, tx *sql.Tx, key string, actionID, userID int64, c domain.Completion) error {
	body, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode completion receipt: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO completion_receipts (idempotency_key, action_id, user_id, response, created_at)
		VALUES (?, ?, ?, ?, ?);
	`, key, actionID, userID, string(body), s.timestamp()); err != nil {
		return fmt.Errorf("store completion receipt: %w", err)
	}
	return nil
}
