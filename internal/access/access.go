// Package access resolves a caller's standing in a group before any
// group-scoped read or write.
package access

import (
	"context"
	"errors"

	"github.com/dukerupert/kringle/internal/model"
)

var (
	ErrNotMember = errors.New("caller is not a member of the group")
	ErrNotAdmin  = errors.New("caller is not an admin of the group")
)

// MembershipReader looks up a single membership; nil means none.
type MembershipReader interface {
	GetMember(ctx context.Context, groupID, userID int64) (*model.Membership, error)
}

type Checker struct {
	members MembershipReader
}

func NewChecker(members MembershipReader) *Checker {
	return &Checker{members: members}
}

// Resolve returns the caller's membership in the group, or nil if there is none.
// A group that does not exist resolves the same as one the caller is not in.
func (c *Checker) Resolve(ctx context.Context, groupID, callerID int64) (*model.Membership, error) {
	return c.members.GetMember(ctx, groupID, callerID)
}

func (c *Checker) RequireMember(ctx context.Context, groupID, callerID int64) (*model.Membership, error) {
	m, err := c.Resolve(ctx, groupID, callerID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, ErrNotMember
	}
	return m, nil
}

// RequireAdmin checks membership first so non-members get ErrNotMember
// rather than learning the group exists.
func (c *Checker) RequireAdmin(ctx context.Context, groupID, callerID int64) (*model.Membership, error) {
	m, err := c.RequireMember(ctx, groupID, callerID)
	if err != nil {
		return nil, err
	}
	if !m.IsAdmin() {
		return nil, ErrNotAdmin
	}
	return m, nil
}
