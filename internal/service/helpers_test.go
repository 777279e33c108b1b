package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/dukerupert/kringle/internal/access"
	"github.com/dukerupert/kringle/internal/auth"
	"github.com/dukerupert/kringle/internal/database"
	"github.com/dukerupert/kringle/internal/metrics"
	"github.com/dukerupert/kringle/internal/model"
	"github.com/dukerupert/kringle/internal/store"
)

type testEnv struct {
	db          *sql.DB
	users       *store.UserStore
	groupStore  *store.GroupStore
	assignStore *store.AssignmentStore
	metrics     *metrics.Metrics

	groups      *GroupService
	assignments *AssignmentService
	wishlist    *WishlistService
	auth        *AuthService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvAt(t, ":memory:")
}

func newTestEnvAt(t *testing.T, dbPath string) *testEnv {
	t.Helper()
	db, err := database.Open(dbPath)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := discardLogger()
	users := store.NewUserStore(db)
	groups := store.NewGroupStore(db)
	assignments := store.NewAssignmentStore(db)
	checker := access.NewChecker(groups)
	m := metrics.New()

	return &testEnv{
		db:          db,
		users:       users,
		groupStore:  groups,
		assignStore: assignments,
		metrics:     m,
		groups:      NewGroupService(groups, checker, logger),
		assignments: NewAssignmentService(groups, assignments, checker, m, logger).
			WithSource(rand.New(rand.NewPCG(1, 2))),
		wishlist: NewWishlistService(store.NewWishlistStore(db), checker, m, logger),
		auth: NewAuthService(users, store.NewSessionStore(db),
			auth.NewTokenIssuer("test-secret", time.Hour), logger),
	}
}

func (e *testEnv) user(t *testing.T, name string) *model.User {
	t.Helper()
	u, err := e.users.Create(context.Background(), name+"@example.com", "unused", name)
	if err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

// group creates a group owned by admin and joins every other user to it.
func (e *testEnv) group(t *testing.T, admin *model.User, others ...*model.User) *model.Group {
	t.Helper()
	ctx := context.Background()
	g, err := e.groups.Create(ctx, admin.ID, CreateGroupInput{Name: "Family"})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	for _, u := range others {
		if _, err := e.groups.Join(ctx, g.InviteCode, u.ID); err != nil {
			t.Fatalf("join %s: %v", u.Name, err)
		}
	}
	return g
}

func wantErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
}
