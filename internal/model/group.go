package model

import "time"

type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

type AssignmentMode string

const (
	ModeRandom AssignmentMode = "RANDOM"
	ModeManual AssignmentMode = "MANUAL"
	ModeOpen   AssignmentMode = "OPEN"
)

// Valid reports whether m is one of the known assignment modes.
func (m AssignmentMode) Valid() bool {
	switch m {
	case ModeRandom, ModeManual, ModeOpen:
		return true
	}
	return false
}

type Group struct {
	ID             int64          `json:"id"`
	Name           string         `json:"name"`
	Description    *string        `json:"description"`
	InviteCode     string         `json:"invite_code"`
	AssignmentMode AssignmentMode `json:"assignment_mode"`
	CreatedBy      int64          `json:"created_by"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

type Membership struct {
	ID        int64     `json:"id"`
	GroupID   int64     `json:"group_id"`
	UserID    int64     `json:"user_id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func (m *Membership) IsAdmin() bool {
	return m != nil && m.Role == RoleAdmin
}

// Member is a membership joined with the member's display name.
type Member struct {
	UserID   int64     `json:"user_id"`
	Name     string    `json:"name"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// GroupSummary is a group as listed for one user, carrying that user's role.
type GroupSummary struct {
	Group
	Role        Role `json:"role"`
	MemberCount int  `json:"member_count"`
}

type GroupDetail struct {
	Group
	Role    Role     `json:"role"`
	Members []Member `json:"members"`
}
