package model

import "time"

type Assignment struct {
	ID         int64     `json:"id"`
	GroupID    int64     `json:"group_id"`
	GiverID    int64     `json:"giver_id"`
	ReceiverID int64     `json:"receiver_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// AssignmentDetail is an assignment joined with both participants' names.
type AssignmentDetail struct {
	Assignment
	GiverName    string
	ReceiverName string
}

// AssignmentView is the response shape for assignments. Giver is omitted when
// the caller is the giver and not an admin.
type AssignmentView struct {
	ID        int64     `json:"id"`
	GroupID   int64     `json:"group_id"`
	Giver     *UserRef  `json:"giver,omitempty"`
	Receiver  UserRef   `json:"receiver"`
	CreatedAt time.Time `json:"created_at"`
}
