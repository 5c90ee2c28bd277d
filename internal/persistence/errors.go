package persistence

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// NotFoundError names the missing resource. It matches ErrNotFound.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func notFound(resource string) error { return &NotFoundError{Resource: resource} }

// ConflictError rejects a state change. It matches ErrConflict.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

func conflict(format string, args ...any) error {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// ValidationError carries full messages such as "Name can't be blank".
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, ", ")
}

// validator collects messages for one record. Attribute names are passed
// already humanized.
type validator struct {
	messages []string
}

func (v *validator) add(attr, msg string) {
	v.messages = append(v.messages, attr+" "+msg)
}

func (v *validator) present(attr, value string) bool {
	if strings.TrimSpace(value) == "" {
		v.add(attr, "can't be blank")
		return false
	}
	return true
}

func (v *validator) maxLength(attr, value string, n int) {
	if utf8.RuneCountInString(value) > n {
		v.add(attr, fmt.Sprintf("is too long (maximum is %d characters)", n))
	}
}

func (v *validator) optionalMaxLength(attr string, value *string, n int) {
	if value != nil {
		v.maxLength(attr, *value, n)
	}
}

func (v *validator) atLeast(attr string, value, min float64) {
	if value < min {
		v.add(attr, fmt.Sprintf("must be greater than or equal to %s", formatNumber(min)))
	}
}

func (v *validator) atMost(attr string, value, max float64) {
	if value > max {
		v.add(attr, fmt.Sprintf("must be less than or equal to %s", formatNumber(max)))
	}
}

func (v *validator) included(attr, value string, allowed ...string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v.add(attr, "is not included in the list")
}

func (v *validator) email(attr, value string) {
	if !v.present(attr, value) {
		return
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value || !strings.Contains(value, "@") {
		v.add(attr, "is invalid")
	}
}

func (v *validator) taken(attr string) {
	v.add(attr, "has already been taken")
}

func (v *validator) err() error {
	if len(v.messages) == 0 {
		return nil
	}
	return &ValidationError{Messages: v.messages}
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}
