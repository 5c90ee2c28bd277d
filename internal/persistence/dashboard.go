package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/basket/go-craft/internal/domain"
)

// Snapshot reads the dashboard in one read transaction. Withdrawn actions are
// left out and ActionPlan is nil when the user has none.
func (s *Store) Snapshot(ctx context.Context, userID int64) (*domain.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	u, err := getUser(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	items, err := listWorkItems(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	actions, err := listActions(ctx, tx, userID, true)
	if err != nil {
		return nil, err
	}
	plan, err := getActionPlan(ctx, tx, userID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return &domain.Snapshot{User: *u, WorkItems: items, Actions: actions, ActionPlan: plan}, nil
}
