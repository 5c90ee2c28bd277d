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
	maxMasterNameLength = 60
	maxPersonNameLength = 120
	maxRoleLength       = 60
)

var masterResources = map[domain.MasterKind]string{
	domain.MotivationMasters: "MotivationMaster",
	domain.PreferenceMasters: "PreferenceMaster",
}

func masterTable(kind domain.MasterKind) (string, string, error) {
	resource, ok := masterResources[kind]
	if !ok {
		return "", "", fmt.Errorf("unknown master kind %q", kind)
	}
	return string(kind), resource, nil
}

func scanMaster(scan scanner) (domain.Master, error) {
	var m domain.Master
	var userID sql.NullInt64
	var description sql.NullString
	if err := scan(&m.ID, &userID, &m.Name, &description, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return domain.Master{}, err
	}
	m.UserID = int64Ptr(userID)
	m.Description = stringPtr(description)
	return m, nil
}

const masterColumns = `id, user_id, name, description, created_at, updated_at`

// ListMasters returns the rows owned by userID.
func (s *Store) ListMasters(ctx context.Context, kind domain.MasterKind, userID int64) ([]domain.Master, error) {
	table, _, err := masterTable(kind)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+masterColumns+` FROM `+table+` WHERE user_id = ? ORDER BY id;`, userID)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	out, err := collect(rows, scanMaster)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", table, err)
	}
	return out, nil
}

// VisibleMasters returns the shared rows and the user's own, ordered by id.
func (s *Store) VisibleMasters(ctx context.Context, kind domain.MasterKind, userID int64) ([]domain.Master, error) {
	table, _, err := masterTable(kind)
	if err != nil {
		return nil, err
	}
	ok, err := userExists(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound("User")
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+masterColumns+` FROM `+table+`
		WHERE user_id IS NULL OR user_id = ?
		ORDER BY id;
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	out, err := collect(rows, scanMaster)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", table, err)
	}
	return out, nil
}

func (s *Store) GetMaster(ctx context.Context, kind domain.MasterKind, id int64) (*domain.Master, error) {
	table, resource, err := masterTable(kind)
	if err != nil {
		return nil, err
	}
	m, err := scanMaster(s.db.QueryRowContext(ctx, `SELECT `+masterColumns+` FROM `+table+` WHERE id = ?;`, id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(resource)
		}
		return nil, fmt.Errorf("get %s: %w", table, err)
	}
	return &m, nil
}

// nameTaken reports whether another row of table has name for the same owner.
// A nil owner checks the shared rows.
func (s *Store) nameTaken(ctx context.Context, table string, owner *int64, name string, except int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM `+table+` WHERE IFNULL(user_id, 0) = ? AND name = ? AND id != ?;
	`, ownerKey(owner), name, except).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check %s name: %w", table, err)
	}
	return true, nil
}

func ownerKey(owner *int64) int64 {
	if owner == nil {
		return 0
	}
	return *owner
}

// validateNamed checks owner, name and role for masters, people and role
// categories. owner is nil only for shared masters.
func (s *Store) validateNamed(ctx context.Context, table string, owner *int64, name string, maxName int, role *string, except int64) error {
	var v validator
	if owner != nil {
		ok, err := userExists(ctx, s.db, *owner)
		if err != nil {
			return err
		}
		if !ok {
			v.add("User", "must exist")
		}
	}
	if v.present("Name", name) {
		v.maxLength("Name", name, maxName)
		taken, err := s.nameTaken(ctx, table, owner, name, except)
		if err != nil {
			return err
		}
		if taken {
			v.taken("Name")
		}
	}
	v.optionalMaxLength("Role", role, maxRoleLength)
	return v.err()
}

func (s *Store) insertNamed(ctx context.Context, table string, columns []string, args ...any) (int64, error) {
	now := s.timestamp()
	columns = append(columns, "created_at", "updated_at")
	args = append(args, now, now)
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	var id int64
	err := retryOnBusy(ctx, busyRetries, func() error {
		res, err := s.db.ExecContext(ctx, `INSERT INTO `+table+` (`+strings.Join(columns, ", ")+`) VALUES (`+marks+`);`, args...)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if isUniqueViolation(err) {
		return 0, &ValidationError{Messages: []string{"Name has already been taken"}}
	}
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", table, err)
	}
	return id, nil
}

func (s *Store) updateNamed(ctx context.Context, table string, id int64, set string, args ...any) error {
	args = append(args, s.timestamp(), id)
	err := retryOnBusy(ctx, busyRetries, func() error {
		_, err := s.db.ExecContext(ctx, `UPDATE `+table+` SET `+set+`, updated_at = ? WHERE id = ?;`, args...)
		return err
	})
	if isUniqueViolation(err) {
		return &ValidationError{Messages: []string{"Name has already been taken"}}
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	return nil
}

func (s *Store) deleteNamed(ctx context.Context, table, resource string, id int64) error {
	var affected int64
	err := retryOnBusy(ctx, busyRetries, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?;`, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	if affected == 0 {
		return notFound(resource)
	}
	return nil
}

// CreateMaster adds a master owned by in.UserID.
func (s *Store) CreateMaster(ctx context.Context, kind domain.MasterKind, in domain.NamedInput) (*domain.Master, error) {
	table, _, err := masterTable(kind)
	if err != nil {
		return nil, err
	}
	owner := in.UserID
	name := strings.TrimSpace(deref(in.Name))
	if err := s.validateNamed(ctx, table, &owner, name, maxMasterNameLength, nil, 0); err != nil {
		return nil, err
	}
	id, err := s.insertNamed(ctx, table, []string{"user_id", "name", "description"}, owner, name, nullString(in.Description))
	if err != nil {
		return nil, err
	}
	return s.GetMaster(ctx, kind, id)
}

// ensureSharedMaster creates a shared master unless one with name exists.
func (s *Store) ensureSharedMaster(ctx context.Context, kind domain.MasterKind, name string) (bool, error) {
	table, _, err := masterTable(kind)
	if err != nil {
		return false, err
	}
	taken, err := s.nameTaken(ctx, table, nil, name, 0)
	if err != nil || taken {
		return false, err
	}
	if _, err := s.insertNamed(ctx, table, []string{"user_id", "name"}, nil, name); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) UpdateMaster(ctx context.Context, kind domain.MasterKind, id int64, in domain.NamedInput) (*domain.Master, error) {
	table, _, err := masterTable(kind)
	if err != nil {
		return nil, err
	}
	m, err := s.GetMaster(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		m.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		m.Description = in.Description
	}
	if err := s.validateNamed(ctx, table, m.UserID, m.Name, maxMasterNameLength, nil, id); err != nil {
		return nil, err
	}
	if err := s.updateNamed(ctx, table, id, "name = ?, description = ?", m.Name, nullString(m.Description)); err != nil {
		return nil, err
	}
	return s.GetMaster(ctx, kind, id)
}

// DeleteMaster removes a master and every work item link to it.
func (s *Store) DeleteMaster(ctx context.Context, kind domain.MasterKind, id int64) error {
	table, resource, err := masterTable(kind)
	if err != nil {
		return err
	}
	return s.deleteNamed(ctx, table, resource, id)
}

func scanPerson(scan scanner) (domain.Person, error) {
	var p domain.Person
	var role sql.NullString
	if err := scan(&p.ID, &p.UserID, &p.Name, &role, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return domain.Person{}, err
	}
	p.Role = stringPtr(role)
	return p, nil
}

func (s *Store) ListPeople(ctx context.Context, userID int64) ([]domain.Person, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, name, role, created_at, updated_at FROM people WHERE user_id = ? ORDER BY id;`, userID)
	if err != nil {
		return nil, fmt.Errorf("query people: %w", err)
	}
	out, err := collect(rows, scanPerson)
	if err != nil {
		return nil, fmt.Errorf("scan people: %w", err)
	}
	return out, nil
}

func (s *Store) GetPerson(ctx context.Context, id int64) (*domain.Person, error) {
	p, err := scanPerson(s.db.QueryRowContext(ctx, `SELECT id, user_id, name, role, created_at, updated_at FROM people WHERE id = ?;`, id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("Person")
		}
		return nil, fmt.Errorf("get person: %w", err)
	}
	return &p, nil
}

func (s *Store) CreatePerson(ctx context.Context, in domain.NamedInput) (*domain.Person, error) {
	owner := in.UserID
	name := strings.TrimSpace(deref(in.Name))
	if err := s.validateNamed(ctx, "people", &owner, name, maxPersonNameLength, in.Role, 0); err != nil {
		return nil, err
	}
	id, err := s.insertNamed(ctx, "people", []string{"user_id", "name", "role"}, owner, name, nullString(in.Role))
	if err != nil {
		return nil, err
	}
	return s.GetPerson(ctx, id)
}

func (s *Store) UpdatePerson(ctx context.Context, id int64, in domain.NamedInput) (*domain.Person, error) {
	p, err := s.GetPerson(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Role != nil {
		p.Role = in.Role
	}
	if err := s.validateNamed(ctx, "people", &p.UserID, p.Name, maxPersonNameLength, p.Role, id); err != nil {
		return nil, err
	}
	if err := s.updateNamed(ctx, "people", id, "name = ?, role = ?", p.Name, nullString(p.Role)); err != nil {
		return nil, err
	}
	return s.GetPerson(ctx, id)
}

func (s *Store) DeletePerson(ctx context.Context, id int64) error {
	return s.deleteNamed(ctx, "people", "Person", id)
}

func scanRoleCategory(scan scanner) (domain.RoleCategory, error) {
	var r domain.RoleCategory
	var description sql.NullString
	if err := scan(&r.ID, &r.UserID, &r.Name, &description, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return domain.RoleCategory{}, err
	}
	r.Description = stringPtr(description)
	return r, nil
}

func (s *Store) ListRoleCategories(ctx context.Context, userID int64) ([]domain.RoleCategory, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, name, description, created_at, updated_at FROM role_categories WHERE user_id = ? ORDER BY id;`, userID)
	if err != nil {
		return nil, fmt.Errorf("query role categories: %w", err)
	}
	out, err := collect(rows, scanRoleCategory)
	if err != nil {
		return nil, fmt.Errorf("scan role categories: %w", err)
	}
	return out, nil
}

func (s *Store) GetRoleCategory(ctx context.Context, id int64) (*domain.RoleCategory, error) {
	r, err := scanRoleCategory(s.db.QueryRowContext(ctx, `SELECT id, user_id, name, description, created_at, updated_at FROM role_categories WHERE id = ?;`, id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("RoleCategory")
		}
		return nil, fmt.Errorf("get role category: %w", err)
	}
	return &r, nil
}

func (s *Store) CreateRoleCategory(ctx context.Context, in domain.NamedInput) (*domain.RoleCategory, error) {
	owner := in.UserID
	name := strings.TrimSpace(deref(in.Name))
	if err := s.validateNamed(ctx, "role_categories", &owner, name, maxMasterNameLength, nil, 0); err != nil {
		return nil, err
	}
	id, err := s.insertNamed(ctx, "role_categories", []string{"user_id", "name", "description"}, owner, name, nullString(in.Description))
	if err != nil {
		return nil, err
	}
	return s.GetRoleCategory(ctx, id)
}

func (s *Store) UpdateRoleCategory(ctx context.Context, id int64, in domain.NamedInput) (*domain.RoleCategory, error) {
	r, err := s.GetRoleCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		r.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		r.Description = in.Description
	}
	if err := s.validateNamed(ctx, "role_categories", &r.UserID, r.Name, maxMasterNameLength, nil, id); err != nil {
		return nil, err
	}
	if err := s.updateNamed(ctx, "role_categories", id, "name = ?, description = ?", r.Name, nullString(r.Description)); err != nil {
		return nil, err
	}
	return s.GetRoleCategory(ctx, id)
}

func (s *Store) DeleteRoleCategory(ctx context.Context, id int64) error {
	return s.deleteNamed(ctx, "role_categories", "RoleCategory", id)
}
