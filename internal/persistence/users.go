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
	DefaultTimezone = "Asia/Tokyo"

	maxUserNameLength = 100
)

const userColumns = `id, email, name, timezone, level, experience_points, created_at, updated_at`

func scanUser(scan scanner) (domain.User, error) {
	var u domain.User
	var name sql.NullString
	if err := scan(&u.ID, &u.Email, &name, &u.Timezone, &u.Level, &u.ExperiencePoints, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return domain.User{}, err
	}
	u.Name = stringPtr(name)
	return withGauges(u), nil
}

func withGauges(u domain.User) domain.User {
	p := u.Progression()
	u.XPToNextLevel = p.ToNextLevel()
	u.XPPercentage = p.Percentage()
	return u
}

func getUser(ctx context.Context, q querier, id int64) (*domain.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?;`, id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("User")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	return getUser(ctx, s.db, id)
}

func userExists(ctx context.Context, q querier, id int64) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?;`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	return true, nil
}

func (s *Store) validateUser(ctx context.Context, q querier, id int64, email string, name *string, timezone string) error {
	var v validator
	v.email("Email", email)
	v.optionalMaxLength("Name", name, maxUserNameLength)
	v.present("Timezone", timezone)
	if email != "" {
		var other int64
		err := q.QueryRowContext(ctx, `SELECT id FROM users WHERE email = ? AND id != ?;`, email, id).Scan(&other)
		if err == nil {
			v.taken("Email")
		} else if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check email: %w", err)
		}
	}
	return v.err()
}

func (s *Store) CreateUser(ctx context.Context, in domain.UserInput) (*domain.User, error) {
	email := strings.TrimSpace(deref(in.Email))
	timezone := DefaultTimezone
	if in.Timezone != nil {
		timezone = *in.Timezone
	}
	if err := s.validateUser(ctx, s.db, 0, email, in.Name, timezone); err != nil {
		return nil, err
	}

	now := s.timestamp()
	var id int64
	err := retryOnBusy(ctx, busyRetries, func() error {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO users (email, name, timezone, level, experience_points, created_at, updated_at)
			VALUES (?, ?, ?, 1, 0, ?, ?);
		`, email, nullString(in.Name), timezone, now, now)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &ValidationError{Messages: []string{"Email has already been taken"}}
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return s.GetUser(ctx, id)
}

func (s *Store) UpdateUser(ctx context.Context, id int64, in domain.UserInput) (*domain.User, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Email != nil {
		u.Email = strings.TrimSpace(*in.Email)
	}
	if in.Name != nil {
		u.Name = in.Name
	}
	if in.Timezone != nil {
		u.Timezone = *in.Timezone
	}
	if err := s.validateUser(ctx, s.db, id, u.Email, u.Name, u.Timezone); err != nil {
		return nil, err
	}

	err = retryOnBusy(ctx, busyRetries, func() error {
		_, err := s.db.ExecContext(ctx, `
			UPDATE users SET email = ?, name = ?, timezone = ?, updated_at = ? WHERE id = ?;
		`, u.Email, nullString(u.Name), u.Timezone, s.timestamp(), id)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &ValidationError{Messages: []string{"Email has already been taken"}}
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return s.GetUser(ctx, id)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
