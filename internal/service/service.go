// Package service implements the gift-exchange operations. Every method takes
// the caller's user id explicitly and returns errors from the taxonomy in
// errors.go.
package service

import (
	"errors"
	"strings"

	"github.com/dukerupert/kringle/internal/access"
	"github.com/dukerupert/kringle/internal/validate"
)

// groupAccessError maps access failures for group-scoped operations.
// Non-members learn nothing about whether the group exists.
func groupAccessError(err error) error {
	switch {
	case errors.Is(err, access.ErrNotMember):
		return ErrGroupNotFound
	case errors.Is(err, access.ErrNotAdmin):
		return ErrForbidden
	}
	return internal("resolve membership", err)
}

func check(in any) error {
	if fields := validate.Struct(in); fields != nil {
		return ValidationError(fields)
	}
	return nil
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

// emptyToNil treats an empty optional field on create as absent.
func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
