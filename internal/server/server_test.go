package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/kringle/internal/database"
	"github.com/dukerupert/kringle/internal/metrics"
)

type client struct {
	t     *testing.T
	srv   *httptest.Server
	token string
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(db, Options{JWTSecret: "test-secret", TokenTTL: time.Hour, AuthRateLimit: 100}, metrics.New(), logger)
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return ts
}

func (c *client) do(method, path string, body any, out any) int {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, err := http.NewRequest(method, c.srv.URL+path, &buf)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.srv.Client().Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			c.t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func register(t *testing.T, ts *httptest.Server, name string) *client {
	t.Helper()
	c := &client{t: t, srv: ts}
	var res struct {
		Token string `json:"token"`
	}
	status := c.do("POST", "/auth/register", map[string]string{
		"email":    name + "@example.com",
		"password": "correct horse",
		"name":     name,
	}, &res)
	if status != http.StatusCreated {
		t.Fatalf("register %s: status = %d", name, status)
	}
	c.token = res.Token
	return c
}

type apiError struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields"`
}

func TestGiftExchangeFlow(t *testing.T) {
	ts := newTestServer(t)
	alice := register(t, ts, "alice")
	bob := register(t, ts, "bob")
	carol := register(t, ts, "carol")

	var group struct {
		ID         int64  `json:"id"`
		InviteCode string `json:"invite_code"`
	}
	if status := alice.do("POST", "/groups", map[string]string{"name": "Family"}, &group); status != http.StatusCreated {
		t.Fatalf("create group: status = %d", status)
	}

	for _, c := range []*client{bob, carol} {
		if status := c.do("POST", "/groups/"+group.InviteCode+"/join", nil, nil); status != http.StatusOK {
			t.Fatalf("join: status = %d", status)
		}
	}

	var joinErr apiError
	if status := bob.do("POST", "/groups/"+group.InviteCode+"/join", nil, &joinErr); status != http.StatusConflict || joinErr.Code != "already_member" {
		t.Errorf("rejoin = %d %+v, want 409 already_member", status, joinErr)
	}

	var generated []map[string]any
	path := fmt.Sprintf("/groups/%d/assignments", group.ID)
	if status := bob.do("POST", path+"/generate", nil, nil); status != http.StatusForbidden {
		t.Errorf("member generate status = %d, want 403", status)
	}
	if status := alice.do("POST", path+"/generate", nil, &generated); status != http.StatusCreated {
		t.Fatalf("generate: status = %d", status)
	}
	if len(generated) != 3 {
		t.Errorf("generated = %d pairs, want 3", len(generated))
	}

	var mine []map[string]any
	bob.do("GET", path, nil, &mine)
	if len(mine) != 1 {
		t.Fatalf("bob sees %d assignments, want 1", len(mine))
	}
	if _, ok := mine[0]["giver"]; ok {
		t.Error("member view should not include giver")
	}

	var item struct {
		ID int64 `json:"id"`
	}
	wishlistPath := fmt.Sprintf("/groups/%d/wishlist", group.ID)
	if status := alice.do("POST", wishlistPath, map[string]any{"title": "Scarf", "priority": 1}, &item); status != http.StatusCreated {
		t.Fatalf("add item: status = %d", status)
	}

	var claimErr apiError
	if status := alice.do("POST", fmt.Sprintf("/wishlist/%d/claim", item.ID), nil, &claimErr); status != http.StatusConflict || claimErr.Code != "self_claim" {
		t.Errorf("self claim = %d %+v", status, claimErr)
	}
	if status := bob.do("POST", fmt.Sprintf("/wishlist/%d/claim", item.ID), nil, nil); status != http.StatusCreated {
		t.Fatalf("claim: status = %d", status)
	}
	if status := carol.do("POST", fmt.Sprintf("/wishlist/%d/claim", item.ID), nil, &claimErr); status != http.StatusConflict || claimErr.Code != "already_claimed" {
		t.Errorf("second claim = %d %+v", status, claimErr)
	}

	type listed struct {
		ID    int64 `json:"id"`
		Claim struct {
			Claimed bool            `json:"claimed"`
			Claimer json.RawMessage `json:"claimer"`
		} `json:"claim"`
	}
	var ownerView, otherView []listed
	alice.do("GET", wishlistPath, nil, &ownerView)
	carol.do("GET", wishlistPath, nil, &otherView)
	if len(ownerView) != 1 || !ownerView[0].Claim.Claimed || ownerView[0].Claim.Claimer != nil {
		t.Errorf("owner view = %+v, want claimed without claimer", ownerView)
	}
	if len(otherView) != 1 || !strings.Contains(string(otherView[0].Claim.Claimer), `"bob"`) {
		t.Errorf("other view = %+v, want bob as claimer", otherView)
	}

	if status := bob.do("DELETE", fmt.Sprintf("/wishlist/%d/claim", item.ID), nil, nil); status != http.StatusNoContent {
		t.Errorf("unclaim: status = %d", status)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)
	anon := &client{t: t, srv: ts}

	var e apiError
	if status := anon.do("GET", "/groups", nil, &e); status != http.StatusUnauthorized || e.Code != "unauthenticated" {
		t.Errorf("anonymous = %d %+v, want 401", status, e)
	}

	anon.token = "garbage"
	if status := anon.do("GET", "/auth/me", nil, nil); status != http.StatusUnauthorized {
		t.Errorf("bad token status = %d, want 401", status)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	ts := newTestServer(t)
	alice := register(t, ts, "alice")

	var me struct {
		Name string `json:"name"`
	}
	if status := alice.do("GET", "/auth/me", nil, &me); status != http.StatusOK || me.Name != "alice" {
		t.Fatalf("me = %d %+v", status, me)
	}
	if status := alice.do("POST", "/auth/logout", nil, nil); status != http.StatusNoContent {
		t.Fatalf("logout status = %d", status)
	}
	if status := alice.do("GET", "/auth/me", nil, nil); status != http.StatusUnauthorized {
		t.Errorf("after logout status = %d, want 401", status)
	}
}

func TestNonMemberGetsNotFound(t *testing.T) {
	ts := newTestServer(t)
	alice := register(t, ts, "alice")
	mallory := register(t, ts, "mallory")

	var group struct {
		ID int64 `json:"id"`
	}
	alice.do("POST", "/groups", map[string]string{"name": "Family"}, &group)

	for _, path := range []string{
		fmt.Sprintf("/groups/%d", group.ID),
		fmt.Sprintf("/groups/%d/assignments", group.ID),
		fmt.Sprintf("/groups/%d/wishlist", group.ID),
	} {
		if status := mallory.do("GET", path, nil, nil); status != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, status)
		}
	}

	var e apiError
	invitePath := fmt.Sprintf("/groups/%d/invitations", group.ID)
	if status := alice.do("POST", invitePath, map[string]string{"email": "bob@example.com"}, &e); status != http.StatusServiceUnavailable || e.Code != "invites_disabled" {
		t.Errorf("invite without mailer = %d %+v, want 503", status, e)
	}
	if status := mallory.do("POST", invitePath, map[string]string{"email": "bob@example.com"}, nil); status != http.StatusNotFound {
		t.Errorf("non-member invite status = %d, want 404", status)
	}

	e = apiError{}
	if status := alice.do("GET", "/groups/abc", nil, &e); status != http.StatusBadRequest || e.Fields["id"] == "" {
		t.Errorf("bad id = %d %+v, want 400 with id field", status, e)
	}
}

func TestValidationErrorShape(t *testing.T) {
	ts := newTestServer(t)
	c := &client{t: t, srv: ts}

	var e apiError
	status := c.do("POST", "/auth/register", map[string]string{"email": "nope", "password": "x"}, &e)
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if e.Code != "validation_failed" || e.Fields["email"] == "" || e.Fields["password"] == "" || e.Fields["name"] == "" {
		t.Errorf("error = %+v", e)
	}
}

func TestAuthRateLimit(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := New(db, Options{JWTSecret: "test-secret", TokenTTL: time.Hour, AuthRateLimit: 2}, nil, logger)
	router := s.Router()

	var last int
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/auth/login", strings.NewReader(`{"email":"a@example.com","password":"x"}`))
		router.ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("third login status = %d, want 429", last)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)
	c := &client{t: t, srv: ts}

	var health map[string]string
	if status := c.do("GET", "/health", nil, &health); status != http.StatusOK || health["status"] != "ok" {
		t.Errorf("health = %d %v", status, health)
	}

	resp, err := ts.Client().Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `kringle_http_requests_total{method="GET",route="GET /health",status="200"} 1`) {
		t.Errorf("metrics missing health request:\n%s", body)
	}
}
