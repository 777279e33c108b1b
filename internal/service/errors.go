package service

import (
	"errors"
	"fmt"
)

// Kind classifies a service error for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	}
	return "internal"
}

// Error is a domain failure with a stable machine-readable code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches on Code so wrapped or field-annotated copies still compare equal
// to the sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithFields returns a copy of e annotated with per-field messages.
func (e *Error) WithFields(fields map[string]string) *Error {
	c := *e
	c.Fields = fields
	return &c
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrInsufficientMembers = newError(KindConflict, "insufficient_members", "at least two members are needed to generate assignments")
	ErrSelfAssignment      = newError(KindConflict, "self_assignment", "a member cannot be assigned to themselves")
	ErrNotAMember          = newError(KindValidation, "not_a_member", "user is not a member of this group")
	ErrAlreadyMember       = newError(KindConflict, "already_member", "already a member of this group")
	ErrInvalidInviteCode   = newError(KindNotFound, "invalid_invite_code", "invite code not recognised")
	ErrAlreadyClaimed      = newError(KindConflict, "already_claimed", "item has already been claimed")
	ErrSelfClaim           = newError(KindConflict, "self_claim", "you cannot claim your own item")

	ErrForbidden          = newError(KindForbidden, "forbidden", "you do not have permission to do that")
	ErrNotFound           = newError(KindNotFound, "not_found", "not found")
	ErrGroupNotFound      = newError(KindNotFound, "group_not_found", "group not found")
	ErrItemNotFound       = newError(KindNotFound, "item_not_found", "wishlist item not found")
	ErrClaimNotFound      = newError(KindNotFound, "claim_not_found", "item is not claimed")
	ErrAssignmentNotFound = newError(KindNotFound, "assignment_not_found", "assignment not found")

	ErrEmailTaken         = newError(KindConflict, "email_taken", "an account with that email already exists")
	ErrInvalidCredentials = newError(KindUnauthenticated, "invalid_credentials", "invalid email or password")
	ErrUnauthenticated    = newError(KindUnauthenticated, "unauthenticated", "authentication required")

	ErrInvitesDisabled = newError(KindUnavailable, "invites_disabled", "email invitations are not configured")
)

// ValidationError builds a Validation error carrying per-field messages.
func ValidationError(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Code: "validation_failed", Message: "validation failed", Fields: fields}
}

// KindOf returns the Kind of err, or KindInternal if err is not a service error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// internal wraps an unexpected failure from a collaborator.
func internal(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}
