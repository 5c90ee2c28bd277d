package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/basket/go-craft/internal/domain"
)

const maxReflectionAnswerLength = 1000

func scanActionPlan(scan scanner) (domain.ActionPlan, error) {
	var p domain.ActionPlan
	var next, with, obstacles sql.NullString
	if err := scan(&p.ID, &p.UserID, &next, &with, &obstacles, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return domain.ActionPlan{}, err
	}
	p.NextActions = stringPtr(next)
	p.Collaborators = stringPtr(with)
	p.ObstaclesAndSolutions = stringPtr(obstacles)
	return p, nil
}

func getActionPlan(ctx context.Context, q querier, userID int64) (*domain.ActionPlan, error) {
	p, err := scanActionPlan(q.QueryRowContext(ctx, `
		SELECT id, user_id, next_actions, collaborators, obstacles_and_solutions, created_at, updated_at
		FROM action_plans WHERE user_id = ?;
	`, userID).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("ActionPlan")
		}
		return nil, fmt.Errorf("get action plan: %w", err)
	}
	return &p, nil
}

// GetActionPlan returns the user's step 7-1 plan.
func (s *Store) GetActionPlan(ctx context.Context, userID int64) (*domain.ActionPlan, error) {
	return getActionPlan(ctx, s.db, userID)
}

// SaveActionPlan creates the user's plan or updates the fields set in in.
func (s *Store) SaveActionPlan(ctx context.Context, in domain.ActionPlanInput) (*domain.ActionPlan, error) {
	ok, err := userExists(ctx, s.db, in.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &ValidationError{Messages: []string{"User must exist"}}
	}

	now := s.timestamp()
	err = retryOnBusy(ctx, busyRetries, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO action_plans (user_id, next_actions, collaborators, obstacles_and_solutions, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				next_actions = COALESCE(?, next_actions),
				collaborators = COALESCE(?, collaborators),
				obstacles_and_solutions = COALESCE(?, obstacles_and_solutions),
				updated_at = excluded.updated_at;
		`, in.UserID, nullString(in.NextActions), nullString(in.Collaborators), nullString(in.ObstaclesAndSolutions), now, now,
			nullString(in.NextActions), nullString(in.Collaborators), nullString(in.ObstaclesAndSolutions))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("save action plan: %w", err)
	}
	return s.GetActionPlan(ctx, in.UserID)
}

func (s *Store) GetReflection(ctx context.Context, userID int64) (*domain.Reflection, error) {
	var r domain.Reflection
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, question1_change, question2_emotion_reason, question3_surprise, created_at, updated_at
		FROM reflections WHERE user_id = ?;
	`, userID).Scan(&r.ID, &r.UserID, &r.Question1Change, &r.Question2EmotionReason, &r.Question3Surprise, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("Reflection")
		}
		return nil, fmt.Errorf("get reflection: %w", err)
	}
	return &r, nil
}

// SaveReflection upserts the step 2 answers. Unset fields keep their stored
// value, and all three answers must be present afterwards.
func (s *Store) SaveReflection(ctx context.Context, in domain.ReflectionInput) (*domain.Reflection, error) {
	ok, err := userExists(ctx, s.db, in.UserID)
	if err != nil {
		return nil, err
	}
	var r domain.Reflection
	if existing, err := s.GetReflection(ctx, in.UserID); err == nil {
		r = *existing
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if in.Question1Change != nil {
		r.Question1Change = *in.Question1Change
	}
	if in.Question2EmotionReason != nil {
		r.Question2EmotionReason = *in.Question2EmotionReason
	}
	if in.Question3Surprise != nil {
		r.Question3Surprise = *in.Question3Surprise
	}

	var v validator
	if !ok {
		v.add("User", "must exist")
	}
	for _, f := range []struct{ attr, value string }{
		{"Question1 change", r.Question1Change},
		{"Question2 emotion reason", r.Question2EmotionReason},
		{"Question3 surprise", r.Question3Surprise},
	} {
		if v.present(f.attr, f.value) {
			v.maxLength(f.attr, f.value, maxReflectionAnswerLength)
		}
	}
	if err := v.err(); err != nil {
		return nil, err
	}

	now := s.timestamp()
	err = retryOnBusy(ctx, busyRetries, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO reflections (user_id, question1_change, question2_emotion_reason, question3_surprise, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				question1_change = excluded.question1_change,
				question2_emotion_reason = excluded.question2_emotion_reason,
				question3_surprise = excluded.question3_surprise,
				updated_at = excluded.updated_at;
		`, in.UserID, r.Question1Change, r.Question2EmotionReason, r.Question3Surprise, now, now)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("save reflection: %w", err)
	}
	return s.GetReflection(ctx, in.UserID)
}
