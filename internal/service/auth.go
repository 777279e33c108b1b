package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/kringle/internal/auth"
	"github.com/dukerupert/kringle/internal/model"
	"github.com/dukerupert/kringle/internal/store"
)

type RegisterInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"required,max=100"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResult is returned on successful registration or login.
type AuthResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

type AuthService struct {
	users    *store.UserStore
	sessions *store.SessionStore
	tokens   *auth.TokenIssuer
	logger   *slog.Logger
}

func NewAuthService(users *store.UserStore, sessions *store.SessionStore, tokens *auth.TokenIssuer, logger *slog.Logger) *AuthService {
	return &AuthService{users: users, sessions: sessions, tokens: tokens, logger: logger}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if err := check(in); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, internal("register", err)
	}
	u, err := s.users.Create(ctx, in.Email, hash, in.Name)
	if errors.Is(err, store.ErrDuplicate) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, internal("create user", err)
	}
	s.logger.Info("user registered", "user_id", u.ID)
	return s.issue(ctx, u)
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	if err := check(in); err != nil {
		return nil, err
	}

	u, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, internal("get user", err)
	}
	if u == nil || !auth.CheckPassword(u.PasswordHash, in.Password) {
		return nil, ErrInvalidCredentials
	}
	return s.issue(ctx, u)
}

func (s *AuthService) issue(ctx context.Context, u *model.User) (*AuthResult, error) {
	sess, err := s.sessions.Create(ctx, u.ID, s.tokens.TTL())
	if err != nil {
		return nil, internal("create session", err)
	}
	token, err := s.tokens.Issue(u.ID, sess.Token, sess.ExpiresAt)
	if err != nil {
		return nil, internal("issue token", err)
	}
	return &AuthResult{Token: token, ExpiresAt: sess.ExpiresAt, User: u}, nil
}

// Authenticate resolves a bearer token to the caller it was issued to. The
// token's session must still exist and belong to the token's subject.
func (s *AuthService) Authenticate(ctx context.Context, token string) (auth.AuthContext, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return auth.AuthContext{}, ErrUnauthenticated
	}
	userID, _ := claims.UserID()

	sess, err := s.sessions.GetByToken(ctx, claims.SessionToken)
	if err != nil {
		return auth.AuthContext{}, internal("get session", err)
	}
	if sess == nil || sess.UserID != userID {
		return auth.AuthContext{}, ErrUnauthenticated
	}
	return auth.AuthContext{UserID: userID, SessionID: sess.ID}, nil
}

// Logout revokes the session behind the current token.
func (s *AuthService) Logout(ctx context.Context, sessionID int64) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return internal("delete session", err)
	}
	return nil
}

func (s *AuthService) Me(ctx context.Context, callerID int64) (*model.User, error) {
	u, err := s.users.GetByID(ctx, callerID)
	if err != nil {
		return nil, internal("get user", err)
	}
	if u == nil {
		return nil, ErrUnauthenticated
	}
	return u, nil
}

// PurgeExpiredSessions deletes sessions past their expiry.
func (s *AuthService) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		return 0, internal("purge sessions", err)
	}
	return n, nil
}
