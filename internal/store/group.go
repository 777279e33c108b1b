package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/kringle/internal/model"
)

// maxCodeAttempts bounds retries when a generated invite code collides.
const maxCodeAttempts = 5

type GroupStore struct {
	db      *sql.DB
	newCode CodeFunc
}

func NewGroupStore(db *sql.DB) *GroupStore {
	return &GroupStore{db: db, newCode: NewInviteCode}
}

// WithCodeFunc replaces the invite code generator.
func (s *GroupStore) WithCodeFunc(fn CodeFunc) *GroupStore {
	s.newCode = fn
	return s
}

func scanGroup(s scanner) (*model.Group, error) {
	var g model.Group
	var description sql.NullString
	err := s.Scan(&g.ID, &g.Name, &description, &g.InviteCode, &g.AssignmentMode, &g.CreatedBy, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	g.Description = stringPtr(description)
	return &g, nil
}

func scanMembership(s scanner) (*model.Membership, error) {
	var m model.Membership
	err := s.Scan(&m.ID, &m.GroupID, &m.UserID, &m.Role, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const groupCols = `id, name, description, invite_code, assignment_mode, created_by, created_at, updated_at`
const membershipCols = `id, group_id, user_id, role, created_at`

// Create inserts a group and the creator's admin membership in one transaction.
// A fresh invite code is drawn for every attempt until one is unused.
func (s *GroupStore) Create(ctx context.Context, name string, description *string, mode model.AssignmentMode, creatorID int64) (*model.Group, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var groupID int64
	for attempt := 1; groupID == 0; attempt++ {
		if attempt > maxCodeAttempts {
			return nil, fmt.Errorf("allocate invite code: %w", ErrDuplicate)
		}
		code, err := s.newCode()
		if err != nil {
			return nil, err
		}
		result, err := tx.ExecContext(ctx,
			`INSERT INTO gift_groups (name, description, invite_code, assignment_mode, created_by)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (invite_code) DO NOTHING`,
			name, nullString(description), code, mode, creatorID,
		)
		if err != nil {
			return nil, fmt.Errorf("insert group: %w", err)
		}
		skipped, err := affectedNone(result)
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		if skipped {
			continue
		}
		if groupID, err = result.LastInsertId(); err != nil {
			return nil, fmt.Errorf("last insert id: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO group_members (group_id, user_id, role) VALUES (?, ?, ?)`,
		groupID, creatorID, model.RoleAdmin,
	); err != nil {
		return nil, fmt.Errorf("insert creator membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit group: %w", err)
	}
	return s.GetByID(ctx, groupID)
}

func (s *GroupStore) GetByID(ctx context.Context, id int64) (*model.Group, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+groupCols+` FROM gift_groups WHERE id = ?`, id)
	g, err := scanGroup(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

func (s *GroupStore) GetByInviteCode(ctx context.Context, code string) (*model.Group, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+groupCols+` FROM gift_groups WHERE invite_code = ?`,
		NormalizeInviteCode(code),
	)
	g, err := scanGroup(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get group by invite code: %w", err)
	}
	return g, nil
}

// ListForUser returns the groups a user belongs to with that user's role.
func (s *GroupStore) ListForUser(ctx context.Context, userID int64) ([]model.GroupSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT g.id, g.name, g.description, g.invite_code, g.assignment_mode, g.created_by,
		        g.created_at, g.updated_at, gm.role,
		        (SELECT COUNT(*) FROM group_members c WHERE c.group_id = g.id)
		 FROM gift_groups g
		 JOIN group_members gm ON gm.group_id = g.id
		 WHERE gm.user_id = ?
		 ORDER BY g.name ASC, g.id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list groups for user: %w", err)
	}
	defer rows.Close()

	var groups []model.GroupSummary
	for rows.Next() {
		var gs model.GroupSummary
		var description sql.NullString
		if err := rows.Scan(
			&gs.ID, &gs.Name, &description, &gs.InviteCode, &gs.AssignmentMode, &gs.CreatedBy,
			&gs.CreatedAt, &gs.UpdatedAt, &gs.Role, &gs.MemberCount,
		); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		gs.Description = stringPtr(description)
		groups = append(groups, gs)
	}
	return groups, rows.Err()
}

func (s *GroupStore) SetAssignmentMode(ctx context.Context, id int64, mode model.AssignmentMode) (*model.Group, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE gift_groups SET assignment_mode = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		mode, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update assignment mode: %w", err)
	}
	return s.GetByID(ctx, id)
}

// RegenerateInviteCode replaces a group's invite code, invalidating the old one.
func (s *GroupStore) RegenerateInviteCode(ctx context.Context, id int64) (*model.Group, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return nil, err
		}
		result, err := s.db.ExecContext(ctx,
			`UPDATE OR IGNORE gift_groups SET invite_code = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			code, id,
		)
		if err != nil {
			return nil, fmt.Errorf("update invite code: %w", err)
		}
		skipped, err := affectedNone(result)
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		if !skipped {
			return s.GetByID(ctx, id)
		}
	}
	return nil, fmt.Errorf("allocate invite code: %w", ErrDuplicate)
}

// AddMember creates a membership. ErrDuplicate is returned when the user
// already belongs to the group.
func (s *GroupStore) AddMember(ctx context.Context, groupID, userID int64, role model.Role) (*model.Membership, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO group_members (group_id, user_id, role) VALUES (?, ?, ?)
		 ON CONFLICT (group_id, user_id) DO NOTHING`,
		groupID, userID, role,
	)
	if err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	if skipped, err := affectedNone(result); err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	} else if skipped {
		return nil, ErrDuplicate
	}
	return s.GetMember(ctx, groupID, userID)
}

func (s *GroupStore) GetMember(ctx context.Context, groupID, userID int64) (*model.Membership, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+membershipCols+` FROM group_members WHERE group_id = ? AND user_id = ?`,
		groupID, userID,
	)
	m, err := scanMembership(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

// ListMembers returns the roster of a group in join order.
func (s *GroupStore) ListMembers(ctx context.Context, groupID int64) ([]model.Member, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT gm.user_id, u.name, gm.role, gm.created_at
		 FROM group_members gm
		 JOIN users u ON u.id = gm.user_id
		 WHERE gm.group_id = ?
		 ORDER BY gm.created_at ASC, gm.id ASC`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		var m model.Member
		if err := rows.Scan(&m.UserID, &m.Name, &m.Role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// MemberIDs returns the user ids of every member of a group.
func (s *GroupStore) MemberIDs(ctx context.Context, groupID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM group_members WHERE group_id = ? ORDER BY id ASC`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("list member ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan member id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
