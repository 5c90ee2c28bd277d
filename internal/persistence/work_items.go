package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/basket/go-craft/internal/domain"
)

const (
	maxWorkItemNameLength = 120
	maxReframeLength      = 200
)

// tagTable describes one work item join table.
type tagTable struct {
	join     string
	column   string
	target   string
	resource string
}

var tagTables = map[domain.TagKind]tagTable{
	domain.TagMotivations:    {join: "work_item_motivations", column: "motivation_master_id", target: "motivation_masters", resource: "MotivationMaster"},
	domain.TagPreferences:    {join: "work_item_preferences", column: "preference_master_id", target: "preference_masters", resource: "PreferenceMaster"},
	domain.TagPeople:         {join: "work_item_people", column: "person_id", target: "people", resource: "Person"},
	domain.TagRoleCategories: {join: "work_item_role_categories", column: "role_category_id", target: "role_categories", resource: "RoleCategory"},
}

const workItemColumns = `id, user_id, name, energy_percentage, reframe, created_at, updated_at`

func scanWorkItem(scan scanner) (domain.WorkItem, error) {
	var wi domain.WorkItem
	var reframe sql.NullString
	if err := scan(&wi.ID, &wi.UserID, &wi.Name, &wi.EnergyPercentage, &reframe, &wi.CreatedAt, &wi.UpdatedAt); err != nil {
		return domain.WorkItem{}, err
	}
	wi.Reframe = stringPtr(reframe)
	wi.Motivations = []domain.Tag{}
	wi.Preferences = []domain.Tag{}
	wi.People = []domain.PersonTag{}
	wi.RoleCategories = []domain.Tag{}
	return wi, nil
}

func (s *Store) ListWorkItems(ctx context.Context, userID int64) ([]domain.WorkItem, error) {
	return listWorkItems(ctx, s.db, userID)
}

func listWorkItems(ctx context.Context, q querier, userID int64) ([]domain.WorkItem, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+workItemColumns+` FROM work_items WHERE user_id = ? ORDER BY id;`, userID)
	if err != nil {
		return nil, fmt.Errorf("query work items: %w", err)
	}
	items, err := collect(rows, scanWorkItem)
	if err != nil {
		return nil, fmt.Errorf("scan work items: %w", err)
	}
	if err := loadTags(ctx, q, items, "w.user_id = ?", userID); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetWorkItem(ctx context.Context, id int64) (*domain.WorkItem, error) {
	return getWorkItem(ctx, s.db, id)
}

func getWorkItem(ctx context.Context, q querier, id int64) (*domain.WorkItem, error) {
	wi, err := scanWorkItem(q.QueryRowContext(ctx, `SELECT `+workItemColumns+` FROM work_items WHERE id = ?;`, id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("WorkItem")
		}
		return nil, fmt.Errorf("get work item: %w", err)
	}
	items := []domain.WorkItem{wi}
	if err := loadTags(ctx, q, items, "w.id = ?", id); err != nil {
		return nil, err
	}
	return &items[0], nil
}

// loadTags fills the four tag lists of items from rows matching where.
func loadTags(ctx context.Context, q querier, items []domain.WorkItem, where string, arg any) error {
	if len(items) == 0 {
		return nil
	}
	index := make(map[int64]*domain.WorkItem, len(items))
	for i := range items {
		index[items[i].ID] = &items[i]
	}
	for _, kind := range []domain.TagKind{domain.TagMotivations, domain.TagPreferences, domain.TagPeople, domain.TagRoleCategories} {
		t := tagTables[kind]
		role := "NULL"
		if kind == domain.TagPeople {
			role = "t.role"
		}
		rows, err := q.QueryContext(ctx, fmt.Sprintf(`
			SELECT j.work_item_id, t.id, t.name, %s
			FROM %s j
			JOIN %s t ON t.id = j.%s
			JOIN work_items w ON w.id = j.work_item_id
			WHERE %s
			ORDER BY j.id;
		`, role, t.join, t.target, t.column, where), arg)
		if err != nil {
			return fmt.Errorf("query %s: %w", kind, err)
		}
		err = func() error {
			defer rows.Close()
			for rows.Next() {
				var workItemID int64
				var tag domain.PersonTag
				var r sql.NullString
				if err := rows.Scan(&workItemID, &tag.ID, &tag.Name, &r); err != nil {
					return err
				}
				wi, ok := index[workItemID]
				if !ok {
					continue
				}
				switch kind {
				case domain.TagMotivations:
					wi.Motivations = append(wi.Motivations, domain.Tag{ID: tag.ID, Name: tag.Name})
				case domain.TagPreferences:
					wi.Preferences = append(wi.Preferences, domain.Tag{ID: tag.ID, Name: tag.Name})
				case domain.TagPeople:
					tag.Role = stringPtr(r)
					wi.People = append(wi.People, tag)
				case domain.TagRoleCategories:
					wi.RoleCategories = append(wi.RoleCategories, domain.Tag{ID: tag.ID, Name: tag.Name})
				}
			}
			return rows.Err()
		}()
		if err != nil {
			return fmt.Errorf("scan %s: %w", kind, err)
		}
	}
	return nil
}

func (s *Store) validateWorkItem(ctx context.Context, wi domain.WorkItem, energySet bool) error {
	var v validator
	ok, err := userExists(ctx, s.db, wi.UserID)
	if err != nil {
		return err
	}
	if !ok {
		v.add("User", "must exist")
	}
	if v.present("Name", wi.Name) {
		v.maxLength("Name", wi.Name, maxWorkItemNameLength)
	}
	if !energySet {
		v.add("Energy percentage", "can't be blank")
	} else {
		v.atLeast("Energy percentage", wi.EnergyPercentage, 0)
		v.atMost("Energy percentage", wi.EnergyPercentage, 100)
	}
	v.optionalMaxLength("Reframe", wi.Reframe, maxReframeLength)
	return v.err()
}

func (s *Store) CreateWorkItem(ctx context.Context, in domain.WorkItemInput) (*domain.WorkItem, error) {
	wi := domain.WorkItem{UserID: in.UserID, Name: strings.TrimSpace(deref(in.Name)), Reframe: in.Reframe}
	if in.EnergyPercentage != nil {
		wi.EnergyPercentage = *in.EnergyPercentage
	}
	if err := s.validateWorkItem(ctx, wi, in.EnergyPercentage != nil); err != nil {
		return nil, err
	}

	now := s.timestamp()
	var id int64
	err := retryOnBusy(ctx, busyRetries, func() error {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO work_items (user_id, name, energy_percentage, reframe, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?);
		`, wi.UserID, wi.Name, wi.EnergyPercentage, nullString(wi.Reframe), now, now)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create work item: %w", err)
	}
	return s.GetWorkItem(ctx, id)
}

func (s *Store) UpdateWorkItem(ctx context.Context, id int64, in domain.WorkItemInput) (*domain.WorkItem, error) {
	wi, err := s.GetWorkItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		wi.Name = strings.TrimSpace(*in.Name)
	}
	if in.EnergyPercentage != nil {
		wi.EnergyPercentage = *in.EnergyPercentage
	}
	if in.Reframe != nil {
		wi.Reframe = in.Reframe
	}
	if err := s.validateWorkItem(ctx, *wi, true); err != nil {
		return nil, err
	}
	err = retryOnBusy(ctx, busyRetries, func() error {
		_, err := s.db.ExecContext(ctx, `
			UPDATE work_items SET name = ?, energy_percentage = ?, reframe = ?, updated_at = ? WHERE id = ?;
		`, wi.Name, wi.EnergyPercentage, nullString(wi.Reframe), s.timestamp(), id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update work item: %w", err)
	}
	return s.GetWorkItem(ctx, id)
}

// DeleteWorkItem removes the item and its tag joins. Actions that pointed at
// it keep existing with no work item.
func (s *Store) DeleteWorkItem(ctx context.Context, id int64) error {
	var affected int64
	err := retryOnBusy(ctx, busyRetries, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM work_items WHERE id = ?;`, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("delete work item: %w", err)
	}
	if affected == 0 {
		return notFound("WorkItem")
	}
	return nil
}

// AttachTag links a master, person or role category to a work item. Linking
// the same tag twice is a no-op.
func (s *Store) AttachTag(ctx context.Context, workItemID int64, kind domain.TagKind, tagID int64) (*domain.WorkItem, error) {
	t, ok := tagTables[kind]
	if !ok {
		return nil, &ValidationError{Messages: []string{"Tag kind is not included in the list"}}
	}
	wi, err := s.GetWorkItem(ctx, workItemID)
	if err != nil {
		return nil, err
	}
	var one int
	err = s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT 1 FROM %s WHERE id = ?;`, t.target), tagID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(t.resource)
	}
	if err != nil {
		return nil, fmt.Errorf("check %s: %w", kind, err)
	}

	err = retryOnBusy(ctx, busyRetries, func() error {
		_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
			INSERT INTO %s (user_id, work_item_id, %s, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(user_id, work_item_id, %s) DO NOTHING;
		`, t.join, t.column, t.column), wi.UserID, workItemID, tagID, s.timestamp())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("attach %s: %w", kind, err)
	}
	return s.GetWorkItem(ctx, workItemID)
}

func (s *Store) DetachTag(ctx context.Context, workItemID int64, kind domain.TagKind, tagID int64) error {
	t, ok := tagTables[kind]
	if !ok {
		return &ValidationError{Messages: []string{"Tag kind is not included in the list"}}
	}
	var affected int64
	err := retryOnBusy(ctx, busyRetries, func() error {
		res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE work_item_id = ? AND %s = ?;`, t.join, t.column), workItemID, tagID)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("detach %s: %w", kind, err)
	}
	if affected == 0 {
		return notFound(t.resource)
	}
	return nil
}
