package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dukerupert/kringle/internal/access"
	"github.com/dukerupert/kringle/internal/assignment"
	"github.com/dukerupert/kringle/internal/metrics"
	"github.com/dukerupert/kringle/internal/model"
	"github.com/dukerupert/kringle/internal/store"
)

type ManualAssignmentInput struct {
	GiverID    int64 `json:"giver_id" validate:"required,gt=0"`
	ReceiverID int64 `json:"receiver_id" validate:"required,gt=0"`
}

type AssignmentService struct {
	groups      *store.GroupStore
	assignments *store.AssignmentStore
	access      *access.Checker
	rng         assignment.Source
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

func NewAssignmentService(groups *store.GroupStore, assignments *store.AssignmentStore, checker *access.Checker, m *metrics.Metrics, logger *slog.Logger) *AssignmentService {
	return &AssignmentService{
		groups:      groups,
		assignments: assignments,
		access:      checker,
		rng:         assignment.Default,
		metrics:     m,
		logger:      logger,
	}
}

// WithSource replaces the random source used by Generate.
func (s *AssignmentService) WithSource(src assignment.Source) *AssignmentService {
	s.rng = src
	return s
}

// Generate replaces the group's assignments with a fresh random cycle over
// the current members.
func (s *AssignmentService) Generate(ctx context.Context, groupID, callerID int64) ([]model.AssignmentView, error) {
	if _, err := s.access.RequireAdmin(ctx, groupID, callerID); err != nil {
		return nil, groupAccessError(err)
	}

	memberIDs, err := s.groups.MemberIDs(ctx, groupID)
	if err != nil {
		return nil, internal("list member ids", err)
	}
	pairs, err := assignment.Generate(memberIDs, s.rng)
	if errors.Is(err, assignment.ErrInsufficientMembers) {
		return nil, ErrInsufficientMembers
	}
	if err != nil {
		return nil, internal("generate pairs", err)
	}

	rows := make([]store.Pair, len(pairs))
	for i, p := range pairs {
		rows[i] = store.Pair{GiverID: p.GiverID, ReceiverID: p.ReceiverID}
	}
	if err := s.assignments.ReplaceForGroup(ctx, groupID, rows); err != nil {
		return nil, internal("replace assignments", err)
	}
	s.metrics.AssignmentsGenerated(len(rows))
	s.logger.Info("assignments generated", "group_id", groupID, "pairs", len(rows), "user_id", callerID)

	return s.adminList(ctx, groupID)
}

// CreateManual sets one giver's receiver, replacing any previous pairing
// for that giver.
func (s *AssignmentService) CreateManual(ctx context.Context, groupID, callerID int64, in ManualAssignmentInput) (*model.AssignmentView, error) {
	if _, err := s.access.RequireAdmin(ctx, groupID, callerID); err != nil {
		return nil, groupAccessError(err)
	}
	if err := check(in); err != nil {
		return nil, err
	}
	if in.GiverID == in.ReceiverID {
		return nil, ErrSelfAssignment
	}

	participants := []struct {
		field  string
		userID int64
	}{{"giver_id", in.GiverID}, {"receiver_id", in.ReceiverID}}
	for _, p := range participants {
		m, err := s.access.Resolve(ctx, groupID, p.userID)
		if err != nil {
			return nil, internal("resolve membership", err)
		}
		if m == nil {
			return nil, ErrNotAMember.WithFields(map[string]string{p.field: "is not a member of this group"})
		}
	}

	if _, err := s.assignments.Upsert(ctx, groupID, in.GiverID, in.ReceiverID); err != nil {
		return nil, internal("upsert assignment", err)
	}
	d, err := s.assignments.GetDetailedByGiver(ctx, groupID, in.GiverID)
	if err != nil {
		return nil, internal("get assignment", err)
	}
	if d == nil {
		return nil, ErrAssignmentNotFound
	}
	v := adminAssignmentView(*d)
	return &v, nil
}

func (s *AssignmentService) Delete(ctx context.Context, groupID, callerID, assignmentID int64) error {
	if _, err := s.access.RequireAdmin(ctx, groupID, callerID); err != nil {
		return groupAccessError(err)
	}

	a, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		return internal("get assignment", err)
	}
	if a == nil || a.GroupID != groupID {
		return ErrAssignmentNotFound
	}
	if err := s.assignments.Delete(ctx, assignmentID); err != nil {
		return internal("delete assignment", err)
	}
	return nil
}

// List returns every assignment to admins. Other members see only their own
// assignment as giver, or nothing.
func (s *AssignmentService) List(ctx context.Context, groupID, callerID int64) ([]model.AssignmentView, error) {
	m, err := s.access.RequireMember(ctx, groupID, callerID)
	if err != nil {
		return nil, groupAccessError(err)
	}
	if m.IsAdmin() {
		return s.adminList(ctx, groupID)
	}

	d, err := s.assignments.GetDetailedByGiver(ctx, groupID, callerID)
	if err != nil {
		return nil, internal("get assignment", err)
	}
	if d == nil {
		return []model.AssignmentView{}, nil
	}
	return []model.AssignmentView{giverAssignmentView(*d)}, nil
}

func (s *AssignmentService) adminList(ctx context.Context, groupID int64) ([]model.AssignmentView, error) {
	details, err := s.assignments.ListDetailed(ctx, groupID)
	if err != nil {
		return nil, internal("list assignments", err)
	}
	views := make([]model.AssignmentView, len(details))
	for i, d := range details {
		views[i] = adminAssignmentView(d)
	}
	return views, nil
}
