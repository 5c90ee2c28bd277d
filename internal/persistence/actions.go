package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/basket/go-craft/internal/domain"
	"github.com/basket/go-craft/internal/progression"
)

const maxActionNameLength = 140

var allowedTransitions = map[domain.ActionStatus]map[domain.ActionStatus]struct{}{
	domain.StatusNotStarted: {
		domain.StatusInProgress: {},
		domain.StatusDone:       {},
		domain.StatusWithdrawn:  {},
	},
	domain.StatusInProgress: {
		domain.StatusNotStarted: {},
		domain.StatusDone:       {},
		domain.StatusWithdrawn:  {},
	},
	domain.StatusDone: {
		domain.StatusNotStarted: {}, // Reset.
		domain.StatusInProgress: {},
	},
	domain.StatusWithdrawn: {
		domain.StatusNotStarted: {},
	},
}

func canTransition(from, to domain.ActionStatus) bool {
	if from == to {
		return true
	}
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

const actionColumns = `id, user_id, name, description, due_date, period_type, status, action_type,
	xp_points, difficulty, quest_type, work_item_id, created_at, updated_at`

func scanAction(scan scanner) (domain.Action, error) {
	var a domain.Action
	var description, dueDate, periodType, difficulty, questType sql.NullString
	var workItemID sql.NullInt64
	if err := scan(&a.ID, &a.UserID, &a.Name, &description, &dueDate, &periodType, &a.Status, &a.ActionType,
		&a.XPPoints, &difficulty, &questType, &workItemID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return domain.Action{}, err
	}
	a.Description = stringPtr(description)
	a.DueDate = stringPtr(dueDate)
	a.PeriodType = stringPtr(periodType)
	a.Difficulty = stringPtr(difficulty)
	a.QuestType = stringPtr(questType)
	a.WorkItemID = int64Ptr(workItemID)
	return a, nil
}

// ListActions returns the user's actions, newest first.
func (s *Store) ListActions(ctx context.Context, userID int64) ([]domain.Action, error) {
	return listActions(ctx, s.db, userID, false)
}

func listActions(ctx context.Context, q querier, userID int64, skipWithdrawn bool) ([]domain.Action, error) {
	query := `SELECT ` + actionColumns + ` FROM actions WHERE user_id = ?`
	args := []any{userID}
	if skipWithdrawn {
		query += ` AND status != ?`
		args = append(args, domain.StatusWithdrawn)
	}
	rows, err := q.QueryContext(ctx, query+` ORDER BY created_at DESC, id DESC;`, args...)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	out, err := collect(rows, scanAction)
	if err != nil {
		return nil, fmt.Errorf("scan actions: %w", err)
	}
	return out, nil
}

func (s *Store) GetAction(ctx context.Context, id int64) (*domain.Action, error) {
	return getAction(ctx, s.db, id)
}

func getAction(ctx context.Context, q querier, id int64) (*domain.Action, error) {
	a, err := scanAction(q.QueryRowContext(ctx, `SELECT `+actionColumns+` FROM actions WHERE id = ?;`, id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("Action")
		}
		return nil, fmt.Errorf("get action: %w", err)
	}
	return &a, nil
}

// applyActionInput copies the set fields of in onto a. A quest with a
// difficulty gets the difficulty's reward.
func applyActionInput(a *domain.Action, in domain.ActionInput) {
	if in.Name != nil {
		a.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		a.Description = in.Description
	}
	if in.DueDate != nil {
		a.DueDate = in.DueDate
	}
	if in.PeriodType != nil {
		a.PeriodType = in.PeriodType
	}
	if in.Status != nil {
		a.Status = *in.Status
	}
	if in.ActionType != nil {
		a.ActionType = *in.ActionType
	}
	if in.XPPoints != nil {
		a.XPPoints = *in.XPPoints
	}
	if in.Difficulty != nil {
		a.Difficulty = in.Difficulty
	}
	if in.QuestType != nil {
		a.QuestType = in.QuestType
	}
	if in.WorkItemID != nil {
		a.WorkItemID = in.WorkItemID
	}
	if a.IsQuest() && a.Difficulty != nil && *a.Difficulty != "" {
		a.XPPoints = progression.XPForDifficulty(progression.Difficulty(*a.Difficulty))
	}
}

func (s *Store) validateAction(ctx context.Context, a domain.Action) error {
	var v validator
	ok, err := userExists(ctx, s.db, a.UserID)
	if err != nil {
		return err
	}
	if !ok {
		v.add("User", "must exist")
	}
	if v.present("Name", a.Name) {
		v.maxLength("Name", a.Name, maxActionNameLength)
	}
	if v.present("Status", string(a.Status)) && !a.Status.Valid() {
		v.add("Status", "is not included in the list")
	}
	if v.present("Action type", string(a.ActionType)) && !a.ActionType.Valid() {
		v.add("Action type", "is not included in the list")
	}
	v.atLeast("Xp points", float64(a.XPPoints), 0)
	if a.Difficulty != nil {
		v.included("Difficulty", *a.Difficulty, string(progression.Easy), string(progression.Medium), string(progression.Hard))
	}
	if a.QuestType != nil {
		v.included("Quest type", *a.QuestType, domain.QuestOneTime, domain.QuestRecurring)
	}
	if a.PeriodType != nil && *a.PeriodType != "" {
		v.included("Period type", *a.PeriodType, domain.PeriodDaily, domain.PeriodWeekly, domain.PeriodMonthly)
	}
	if a.WorkItemID != nil {
		var owner int64
		err := s.db.QueryRowContext(ctx, `SELECT user_id FROM work_items WHERE id = ?;`, *a.WorkItemID).Scan(&owner)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			v.add("Work item", "must exist")
		case err != nil:
			return fmt.Errorf("check work item: %w", err)
		case owner != a.UserID:
			v.add("Work item", "must belong to the same user")
		}
	}
	return v.err()
}

func (s *Store) CreateAction(ctx context.Context, in domain.ActionInput) (*domain.Action, error) {
	a := domain.Action{UserID: in.UserID, Status: domain.StatusNotStarted, ActionType: domain.ActionTask}
	applyActionInput(&a, in)
	if err := s.validateAction(ctx, a); err != nil {
		return nil, err
	}

	now := s.timestamp()
	var id int64
	err := retryOnBusy(ctx, busyRetries, func() error {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO actions (user_id, name, description, due_date, period_type, status, action_type,
				xp_points, difficulty, quest_type, work_item_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
		`, a.UserID, a.Name, nullString(a.Description), nullString(a.DueDate), nullString(a.PeriodType),
			a.Status, a.ActionType, a.XPPoints, nullString(a.Difficulty), nullString(a.QuestType),
			nullInt64(a.WorkItemID), now, now)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create action: %w", err)
	}
	return s.GetAction(ctx, id)
}

// UpdateAction edits an action. Status changes must follow the allowed
// transitions; completing through the update never awards xp.
func (s *Store) UpdateAction(ctx context.Context, id int64, in domain.ActionInput) (*domain.Action, error) {
	a, err := s.GetAction(ctx, id)
	if err != nil {
		return nil, err
	}
	from := a.Status
	applyActionInput(a, in)
	if err := s.validateAction(ctx, *a); err != nil {
		return nil, err
	}
	if !canTransition(from, a.Status) {
		return nil, conflict("Action cannot move from %s to %s", from, a.Status)
	}

	var affected int64
	err = retryOnBusy(ctx, busyRetries, func() error {
		res, err := s.db.ExecContext(ctx, `
			UPDATE actions
			SET name = ?, description = ?, due_date = ?, period_type = ?, status = ?, action_type = ?,
				xp_points = ?, difficulty = ?, quest_type = ?, work_item_id = ?, updated_at = ?
			WHERE id = ? AND status = ?;
		`, a.Name, nullString(a.Description), nullString(a.DueDate), nullString(a.PeriodType), a.Status,
			a.ActionType, a.XPPoints, nullString(a.Difficulty), nullString(a.QuestType), nullInt64(a.WorkItemID),
			s.timestamp(), id, from)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update action: %w", err)
	}
	if affected == 0 {
		return nil, conflict("Action was changed by another request")
	}
	return s.GetAction(ctx, id)
}

func (s *Store) DeleteAction(ctx context.Context, id int64) error {
	var affected int64
	err := retryOnBusy(ctx, busyRetries, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM actions WHERE id = ?;`, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("delete action: %w", err)
	}
	if affected == 0 {
		return notFound("Action")
	}
	return nil
}
