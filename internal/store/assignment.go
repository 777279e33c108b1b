package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/kringle/internal/model"
)

// Pair is a giver/receiver pair prior to persistence.
type Pair struct {
	GiverID    int64
	ReceiverID int64
}

type AssignmentStore struct {
	db *sql.DB
}

func NewAssignmentStore(db *sql.DB) *AssignmentStore {
	return &AssignmentStore{db: db}
}

func scanAssignment(s scanner) (*model.Assignment, error) {
	var a model.Assignment
	err := s.Scan(&a.ID, &a.GroupID, &a.GiverID, &a.ReceiverID, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

const assignmentCols = `id, group_id, giver_id, receiver_id, created_at`

const assignmentDetailQuery = `SELECT a.id, a.group_id, a.giver_id, a.receiver_id, a.created_at, g.name, r.name
	FROM assignments a
	JOIN users g ON g.id = a.giver_id
	JOIN users r ON r.id = a.receiver_id`

func scanAssignmentDetail(s scanner) (*model.AssignmentDetail, error) {
	var d model.AssignmentDetail
	err := s.Scan(&d.ID, &d.GroupID, &d.GiverID, &d.ReceiverID, &d.CreatedAt, &d.GiverName, &d.ReceiverName)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ReplaceForGroup deletes every assignment in the group and inserts pairs in
// a single transaction. Either all pairs are visible afterwards or none of the
// old set was removed.
func (s *AssignmentStore) ReplaceForGroup(ctx context.Context, groupID int64, pairs []Pair) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM assignments WHERE group_id = ?`, groupID); err != nil {
		return fmt.Errorf("clear assignments: %w", err)
	}
	for _, p := range pairs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO assignments (group_id, giver_id, receiver_id) VALUES (?, ?, ?)`,
			groupID, p.GiverID, p.ReceiverID,
		); err != nil {
			return fmt.Errorf("insert assignment: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit assignments: %w", err)
	}
	return nil
}

// Upsert records a giver's receiver, replacing any existing assignment for
// that giver in the group.
func (s *AssignmentStore) Upsert(ctx context.Context, groupID, giverID, receiverID int64) (*model.Assignment, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO assignments (group_id, giver_id, receiver_id) VALUES (?, ?, ?)
		 ON CONFLICT (group_id, giver_id) DO UPDATE SET
		   receiver_id = excluded.receiver_id,
		   created_at = CURRENT_TIMESTAMP`,
		groupID, giverID, receiverID,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert assignment: %w", err)
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+assignmentCols+` FROM assignments WHERE group_id = ? AND giver_id = ?`,
		groupID, giverID,
	)
	a, err := scanAssignment(row)
	if err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	return a, nil
}

func (s *AssignmentStore) GetByID(ctx context.Context, id int64) (*model.Assignment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+assignmentCols+` FROM assignments WHERE id = ?`, id)
	a, err := scanAssignment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	return a, nil
}

func (s *AssignmentStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM assignments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	return nil
}

// ListDetailed returns every assignment in a group with participant names.
func (s *AssignmentStore) ListDetailed(ctx context.Context, groupID int64) ([]model.AssignmentDetail, error) {
	rows, err := s.db.QueryContext(ctx,
		assignmentDetailQuery+` WHERE a.group_id = ? ORDER BY g.name ASC, a.id ASC`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var list []model.AssignmentDetail
	for rows.Next() {
		d, err := scanAssignmentDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		list = append(list, *d)
	}
	return list, rows.Err()
}

// GetDetailedByGiver returns the giver's assignment in a group, or nil.
func (s *AssignmentStore) GetDetailedByGiver(ctx context.Context, groupID, giverID int64) (*model.AssignmentDetail, error) {
	row := s.db.QueryRowContext(ctx,
		assignmentDetailQuery+` WHERE a.group_id = ? AND a.giver_id = ?`,
		groupID, giverID,
	)
	d, err := scanAssignmentDetail(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get assignment by giver: %w", err)
	}
	return d, nil
}
