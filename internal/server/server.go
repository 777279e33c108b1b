package server

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/kringle/internal/access"
	"github.com/dukerupert/kringle/internal/auth"
	"github.com/dukerupert/kringle/internal/handler"
	"github.com/dukerupert/kringle/internal/metrics"
	"github.com/dukerupert/kringle/internal/middleware"
	"github.com/dukerupert/kringle/internal/service"
	"github.com/dukerupert/kringle/internal/store"
)

type Options struct {
	JWTSecret     string
	TokenTTL      time.Duration
	AuthRateLimit int // requests per minute per client IP on login/register

	// Mailer delivers invite emails. Without one, invitations answer 503.
	Mailer service.InviteMailer
}

type Server struct {
	authSvc       *service.AuthService
	authH         *handler.AuthHandler
	groupH        *handler.GroupHandler
	assignmentH   *handler.AssignmentHandler
	wishlistH     *handler.WishlistHandler
	healthH       *handler.HealthHandler
	rateLimiter   *middleware.RateLimiter
	authRateLimit int
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

func New(db *sql.DB, opts Options, m *metrics.Metrics, logger *slog.Logger) *Server {
	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	groupStore := store.NewGroupStore(db)
	assignmentStore := store.NewAssignmentStore(db)
	wishlistStore := store.NewWishlistStore(db)

	checker := access.NewChecker(groupStore)
	tokens := auth.NewTokenIssuer(opts.JWTSecret, opts.TokenTTL)

	svcLogger := logger.With("component", "service")
	authSvc := service.NewAuthService(userStore, sessionStore, tokens, svcLogger)
	groupSvc := service.NewGroupService(groupStore, checker, svcLogger)
	if opts.Mailer != nil {
		groupSvc.WithMailer(opts.Mailer)
	}
	assignmentSvc := service.NewAssignmentService(groupStore, assignmentStore, checker, m, svcLogger)
	wishlistSvc := service.NewWishlistService(wishlistStore, checker, m, svcLogger)

	httpLogger := logger.With("component", "http")
	return &Server{
		authSvc:       authSvc,
		authH:         handler.NewAuthHandler(authSvc, httpLogger),
		groupH:        handler.NewGroupHandler(groupSvc, httpLogger),
		assignmentH:   handler.NewAssignmentHandler(assignmentSvc, httpLogger),
		wishlistH:     handler.NewWishlistHandler(wishlistSvc, httpLogger),
		healthH:       handler.NewHealthHandler(db, httpLogger),
		rateLimiter:   middleware.NewRateLimiter(),
		authRateLimit: opts.AuthRateLimit,
		metrics:       m,
		logger:        logger,
	}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// Public routes (no auth required)
	mux.HandleFunc("POST /auth/register", s.rateLimitedHandler(s.authH.Register))
	mux.HandleFunc("POST /auth/login", s.rateLimitedHandler(s.authH.Login))
	mux.HandleFunc("GET /health", s.healthH.Check)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	s.registerProtectedRoutes(mux)

	var h http.Handler = mux
	if s.metrics != nil {
		h = middleware.Metrics(s.metrics)(h)
	}
	return middleware.RequestLogger(s.logger.With("component", "http"))(h)
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, s.authRateLimit, time.Minute)
	return rl(h).ServeHTTP
}

// registerProtectedRoutes mounts the bearer-token routes on the same mux as
// the public ones so the matched pattern reaches the metrics middleware.
func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	authMiddleware := middleware.RequireAuth(s.authSvc, s.logger.With("component", "auth"))
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, authMiddleware(h))
	}

	handle("POST /auth/logout", s.authH.Logout)
	handle("GET /auth/me", s.authH.Me)

	// Groups
	handle("POST /groups", s.groupH.Create)
	handle("GET /groups", s.groupH.List)
	handle("GET /groups/{id}", s.groupH.Get)
	handle("POST /groups/{code}/join", s.groupH.Join)
	handle("PATCH /groups/{id}/assignment-mode", s.groupH.SetAssignmentMode)
	handle("POST /groups/{id}/invite-code", s.groupH.RegenerateInviteCode)
	handle("POST /groups/{id}/invitations", s.groupH.SendInvite)

	// Assignments
	handle("POST /groups/{id}/assignments/generate", s.assignmentH.Generate)
	handle("POST /groups/{id}/assignments", s.assignmentH.CreateManual)
	handle("GET /groups/{id}/assignments", s.assignmentH.List)
	handle("DELETE /groups/{id}/assignments/{assignmentID}", s.assignmentH.Delete)

	// Wishlists and claims
	handle("POST /groups/{id}/wishlist", s.wishlistH.AddItem)
	handle("GET /groups/{id}/wishlist", s.wishlistH.List)
	handle("PATCH /wishlist/{id}", s.wishlistH.UpdateItem)
	handle("DELETE /wishlist/{id}", s.wishlistH.DeleteItem)
	handle("POST /wishlist/{id}/claim", s.wishlistH.Claim)
	handle("DELETE /wishlist/{id}/claim", s.wishlistH.Unclaim)
}

// Cleanup purges expired sessions and stale rate-limit entries.
func (s *Server) Cleanup(ctx context.Context) {
	s.rateLimiter.Cleanup()
	n, err := s.authSvc.PurgeExpiredSessions(ctx)
	if err != nil {
		s.logger.Error("session cleanup failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("expired sessions purged", "count", n)
	}
}
