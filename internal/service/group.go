package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/dukerupert/kringle/internal/access"
	"github.com/dukerupert/kringle/internal/model"
	"github.com/dukerupert/kringle/internal/store"
)

type CreateGroupInput struct {
	Name           string               `json:"name" validate:"required,max=100"`
	Description    *string              `json:"description" validate:"omitempty,max=500"`
	AssignmentMode model.AssignmentMode `json:"assignment_mode" validate:"omitempty,oneof=RANDOM MANUAL OPEN"`
}

type SendInviteInput struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// InviteMailer delivers invite codes by email. *email.Client satisfies it.
type InviteMailer interface {
	SendInvite(ctx context.Context, toEmail, groupName, inviterName, code string) error
}

type GroupService struct {
	groups *store.GroupStore
	access *access.Checker
	mailer InviteMailer
	logger *slog.Logger
}

func NewGroupService(groups *store.GroupStore, checker *access.Checker, logger *slog.Logger) *GroupService {
	return &GroupService{groups: groups, access: checker, logger: logger}
}

// WithMailer enables SendInvite.
func (s *GroupService) WithMailer(m InviteMailer) *GroupService {
	s.mailer = m
	return s
}

// Create makes a new group with the caller as its first admin.
func (s *GroupService) Create(ctx context.Context, callerID int64, in CreateGroupInput) (*model.Group, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = emptyToNil(trimPtr(in.Description))
	if in.AssignmentMode == "" {
		in.AssignmentMode = model.ModeRandom
	}
	if err := check(in); err != nil {
		return nil, err
	}

	g, err := s.groups.Create(ctx, in.Name, in.Description, in.AssignmentMode, callerID)
	if err != nil {
		return nil, internal("create group", err)
	}
	s.logger.Info("group created", "group_id", g.ID, "user_id", callerID)
	return g, nil
}

// List returns the caller's groups with the caller's role in each.
func (s *GroupService) List(ctx context.Context, callerID int64) ([]model.GroupSummary, error) {
	groups, err := s.groups.ListForUser(ctx, callerID)
	if err != nil {
		return nil, internal("list groups", err)
	}
	if groups == nil {
		groups = []model.GroupSummary{}
	}
	return groups, nil
}

func (s *GroupService) Get(ctx context.Context, groupID, callerID int64) (*model.GroupDetail, error) {
	m, err := s.access.RequireMember(ctx, groupID, callerID)
	if err != nil {
		return nil, groupAccessError(err)
	}
	return s.detail(ctx, groupID, m.Role)
}

func (s *GroupService) detail(ctx context.Context, groupID int64, role model.Role) (*model.GroupDetail, error) {
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, internal("get group", err)
	}
	if g == nil {
		return nil, ErrGroupNotFound
	}
	members, err := s.groups.ListMembers(ctx, groupID)
	if err != nil {
		return nil, internal("list members", err)
	}
	return &model.GroupDetail{Group: *g, Role: role, Members: members}, nil
}

// Join adds the caller to the group owning inviteCode as a MEMBER.
func (s *GroupService) Join(ctx context.Context, inviteCode string, callerID int64) (*model.GroupDetail, error) {
	g, err := s.groups.GetByInviteCode(ctx, inviteCode)
	if err != nil {
		return nil, internal("find group by invite code", err)
	}
	if g == nil {
		return nil, ErrInvalidInviteCode
	}

	if _, err := s.groups.AddMember(ctx, g.ID, callerID, model.RoleMember); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrAlreadyMember
		}
		return nil, internal("add member", err)
	}
	s.logger.Info("member joined", "group_id", g.ID, "user_id", callerID)
	return s.detail(ctx, g.ID, model.RoleMember)
}

func (s *GroupService) SetAssignmentMode(ctx context.Context, groupID, callerID int64, mode model.AssignmentMode) (*model.Group, error) {
	if _, err := s.access.RequireAdmin(ctx, groupID, callerID); err != nil {
		return nil, groupAccessError(err)
	}
	if !mode.Valid() {
		return nil, ValidationError(map[string]string{"assignment_mode": "must be one of RANDOM MANUAL OPEN"})
	}

	g, err := s.groups.SetAssignmentMode(ctx, groupID, mode)
	if err != nil {
		return nil, internal("set assignment mode", err)
	}
	return g, nil
}

// RegenerateInviteCode issues a fresh code; the old one stops working.
func (s *GroupService) RegenerateInviteCode(ctx context.Context, groupID, callerID int64) (*model.Group, error) {
	if _, err := s.access.RequireAdmin(ctx, groupID, callerID); err != nil {
		return nil, groupAccessError(err)
	}
	g, err := s.groups.RegenerateInviteCode(ctx, groupID)
	if err != nil {
		return nil, internal("regenerate invite code", err)
	}
	s.logger.Info("invite code regenerated", "group_id", groupID, "user_id", callerID)
	return g, nil
}

// SendInvite emails the group's current invite code. Admin only.
func (s *GroupService) SendInvite(ctx context.Context, groupID, callerID int64, in SendInviteInput) error {
	if _, err := s.access.RequireAdmin(ctx, groupID, callerID); err != nil {
		return groupAccessError(err)
	}
	in.Email = strings.TrimSpace(in.Email)
	if err := check(in); err != nil {
		return err
	}
	if s.mailer == nil {
		return ErrInvitesDisabled
	}

	detail, err := s.detail(ctx, groupID, model.RoleAdmin)
	if err != nil {
		return err
	}
	var inviter string
	for _, m := range detail.Members {
		if m.UserID == callerID {
			inviter = m.Name
			break
		}
	}

	if err := s.mailer.SendInvite(ctx, in.Email, detail.Name, inviter, detail.InviteCode); err != nil {
		return internal("send invite", err)
	}
	s.logger.Info("invite sent", "group_id", groupID, "user_id", callerID)
	return nil
}
