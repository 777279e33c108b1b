package store

import (
	"context"
	"errors"
	"testing"

	"github.com/dukerupert/kringle/internal/model"
)

func setupGroupTestDB(t *testing.T) (*GroupStore, *UserStore) {
	t.Helper()
	db := setupTestDB(t)
	return NewGroupStore(db), NewUserStore(db)
}

func TestGroupCreate(t *testing.T) {
	gs, us := setupGroupTestDB(t)
	ctx := context.Background()
	alice := mustCreateUser(t, us, "alice@example.com", "Alice")

	desc := "family exchange"
	g, err := gs.Create(ctx, "Family", &desc, model.ModeRandom, alice.ID)
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if g.Name != "Family" {
		t.Errorf("name = %q, want %q", g.Name, "Family")
	}
	if g.Description == nil || *g.Description != desc {
		t.Errorf("description = %v, want %q", g.Description, desc)
	}
	if len(g.InviteCode) != inviteCodeLength {
		t.Errorf("invite code = %q, want %d chars", g.InviteCode, inviteCodeLength)
	}
	if g.CreatedBy != alice.ID {
		t.Errorf("created_by = %d, want %d", g.CreatedBy, alice.ID)
	}

	m, err := gs.GetMember(ctx, g.ID, alice.ID)
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if !m.IsAdmin() {
		t.Errorf("creator membership = %+v, want ADMIN", m)
	}
}

func TestGroupCreateRetriesCodeCollision(t *testing.T) {
	gs, us := setupGroupTestDB(t)
	ctx := context.Background()
	alice := mustCreateUser(t, us, "alice@example.com", "Alice")

	codes := []string{"AAAAAAAAAA", "AAAAAAAAAA", "BBBBBBBBBB"}
	gs.WithCodeFunc(func() (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	})

	first, err := gs.Create(ctx, "One", nil, model.ModeRandom, alice.ID)
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := gs.Create(ctx, "Two", nil, model.ModeRandom, alice.ID)
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if first.InviteCode != "AAAAAAAAAA" || second.InviteCode != "BBBBBBBBBB" {
		t.Errorf("codes = %q, %q", first.InviteCode, second.InviteCode)
	}
}

func TestGroupCreateGivesUpOnPersistentCollision(t *testing.T) {
	gs, us := setupGroupTestDB(t)
	ctx := context.Background()
	alice := mustCreateUser(t, us, "alice@example.com", "Alice")
	gs.WithCodeFunc(func() (string, error) { return "SAMECODE00", nil })

	if _, err := gs.Create(ctx, "One", nil, model.ModeRandom, alice.ID); err != nil {
		t.Fatalf("create first: %v", err)
	}
	_, err := gs.Create(ctx, "Two", nil, model.ModeRandom, alice.ID)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}

	groups, _ := gs.ListForUser(ctx, alice.ID)
	if len(groups) != 1 {
		t.Errorf("groups = %d, want 1 (failed create must not leave rows)", len(groups))
	}
}

func TestGroupGetByInviteCode(t *testing.T) {
	gs, us := setupGroupTestDB(t)
	ctx := context.Background()
	alice := mustCreateUser(t, us, "alice@example.com", "Alice")
	g, _ := gs.Create(ctx, "Family", nil, model.ModeRandom, alice.ID)

	got, err := gs.GetByInviteCode(ctx, " "+g.InviteCode+" ")
	if err != nil {
		t.Fatalf("get by invite code: %v", err)
	}
	if got == nil || got.ID != g.ID {
		t.Errorf("group = %+v, want id %d", got, g.ID)
	}

	got, err = gs.GetByInviteCode(ctx, "NOPE")
	if err != nil {
		t.Fatalf("get by invite code: %v", err)
	}
	if got != nil {
		t.Error("expected nil for unknown code")
	}
}

func TestGroupMembers(t *testing.T) {
	gs, us := setupGroupTestDB(t)
	ctx := context.Background()
	alice := mustCreateUser(t, us, "alice@example.com", "Alice")
	bob := mustCreateUser(t, us, "bob@example.com", "Bob")
	g, _ := gs.Create(ctx, "Family", nil, model.ModeRandom, alice.ID)

	m, err := gs.AddMember(ctx, g.ID, bob.ID, model.RoleMember)
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
	if m.Role != model.RoleMember {
		t.Errorf("role = %q, want MEMBER", m.Role)
	}

	if _, err := gs.AddMember(ctx, g.ID, bob.ID, model.RoleMember); !errors.Is(err, ErrDuplicate) {
		t.Errorf("second add err = %v, want ErrDuplicate", err)
	}

	members, err := gs.ListMembers(ctx, g.ID)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("members = %d, want 2", len(members))
	}
	if members[0].Name != "Alice" || members[1].Name != "Bob" {
		t.Errorf("members = %+v, want Alice then Bob", members)
	}

	ids, err := gs.MemberIDs(ctx, g.ID)
	if err != nil {
		t.Fatalf("member ids: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("ids = %v, want 2", ids)
	}

	none, err := gs.GetMember(ctx, g.ID, 999)
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if none != nil {
		t.Error("expected nil membership for non-member")
	}
}

func TestGroupListForUser(t *testing.T) {
	gs, us := setupGroupTestDB(t)
	ctx := context.Background()
	alice := mustCreateUser(t, us, "alice@example.com", "Alice")
	bob := mustCreateUser(t, us, "bob@example.com", "Bob")

	work, _ := gs.Create(ctx, "Work", nil, model.ModeRandom, alice.ID)
	gs.Create(ctx, "Family", nil, model.ModeRandom, alice.ID)
	gs.AddMember(ctx, work.ID, bob.ID, model.RoleMember)

	groups, err := gs.ListForUser(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list for user: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
	if groups[0].Name != "Family" || groups[1].Name != "Work" {
		t.Errorf("order = %q, %q, want Family, Work", groups[0].Name, groups[1].Name)
	}
	if groups[1].MemberCount != 2 {
		t.Errorf("member count = %d, want 2", groups[1].MemberCount)
	}

	bobGroups, _ := gs.ListForUser(ctx, bob.ID)
	if len(bobGroups) != 1 || bobGroups[0].Role != model.RoleMember {
		t.Errorf("bob groups = %+v, want one MEMBER group", bobGroups)
	}
}

func TestGroupRegenerateInviteCode(t *testing.T) {
	gs, us := setupGroupTestDB(t)
	ctx := context.Background()
	alice := mustCreateUser(t, us, "alice@example.com", "Alice")
	g, _ := gs.Create(ctx, "Family", nil, model.ModeRandom, alice.ID)

	updated, err := gs.RegenerateInviteCode(ctx, g.ID)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if updated.InviteCode == g.InviteCode {
		t.Error("expected a new invite code")
	}
	if old, _ := gs.GetByInviteCode(ctx, g.InviteCode); old != nil {
		t.Error("old invite code should no longer resolve")
	}
}

func TestGroupSetAssignmentMode(t *testing.T) {
	gs, us := setupGroupTestDB(t)
	ctx := context.Background()
	alice := mustCreateUser(t, us, "alice@example.com", "Alice")
	g, _ := gs.Create(ctx, "Family", nil, model.ModeRandom, alice.ID)

	updated, err := gs.SetAssignmentMode(ctx, g.ID, model.ModeManual)
	if err != nil {
		t.Fatalf("set mode: %v", err)
	}
	if updated.AssignmentMode != model.ModeManual {
		t.Errorf("mode = %q, want MANUAL", updated.AssignmentMode)
	}
}

func TestNewInviteCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := NewInviteCode()
		if err != nil {
			t.Fatalf("new invite code: %v", err)
		}
		if len(code) != inviteCodeLength {
			t.Errorf("code %q length = %d", code, len(code))
		}
		if NormalizeInviteCode(code) != code {
			t.Errorf("code %q is not normalized", code)
		}
		seen[code] = true
	}
	if len(seen) != 100 {
		t.Errorf("unique codes = %d, want 100", len(seen))
	}
}
