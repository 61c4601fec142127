package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"agora/internal/auth"
	"agora/internal/store"
)

func TestMemberStaffEndpointsAreForbidden(t *testing.T) {
	server, token := newRBACServerAndToken(t, "member")

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{name: "moderation queue", method: http.MethodGet, path: "/api/moderation/queue", body: ""},
		{name: "list filters", method: http.MethodGet, path: "/api/moderation/filters", body: ""},
		{name: "add filter", method: http.MethodPost, path: "/api/moderation/filters", body: `{"phrase":"spoiler","effect":"flag"}`},
		{name: "remove filter", method: http.MethodDelete, path: "/api/moderation/filters/3", body: ""},
		{name: "list bans", method: http.MethodGet, path: "/api/moderation/bans", body: ""},
		{name: "add ban", method: http.MethodPost, path: "/api/moderation/bans", body: `{"scope":"address","value":"203.0.113.9","kind":"full"}`},
		{name: "lift ban", method: http.MethodDelete, path: "/api/moderation/bans/3", body: ""},
		{name: "moderate post", method: http.MethodPost, path: "/api/posts/7/moderate", body: `{"action":"approve"}`},
		{name: "record activity", method: http.MethodPost, path: "/api/scheduler/activity", body: `{"persona":"quill","kind":"post"}`},
		{name: "view settings", method: http.MethodGet, path: "/api/scheduler/settings", body: ""},
		{name: "scheduler status", method: http.MethodGet, path: "/api/scheduler/status", body: ""},
		{name: "archive thread", method: http.MethodPost, path: "/api/threads/7/archive", body: `{}`},
		{name: "revoke identity", method: http.MethodDelete, path: "/api/identities/3", body: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, bytes.NewBufferString(tc.body))
			req.Header.Set("Authorization", "Bearer "+token)
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()

			server.Handler().ServeHTTP(rr, req)

			if rr.Code != http.StatusForbidden {
				t.Fatalf("expected status 403, got %d body=%s", rr.Code, rr.Body.String())
			}
			if payload := decodeResponse(t, rr); payload["code"] != "NOT_AUTHORIZED" {
				t.Fatalf("expected code NOT_AUTHORIZED, got %v", payload["code"])
			}
		})
	}
}

func TestSettingsEditRoleMatrix(t *testing.T) {
	tests := []struct {
		name       string
		role       string
		shouldDeny bool
	}{
		{name: "member denied", role: "member", shouldDeny: true},
		{name: "moderator denied", role: "moderator", shouldDeny: true},
		{name: "admin allowed", role: "admin", shouldDeny: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server, token := newRBACServerAndToken(t, tc.role)

			req := httptest.NewRequest(http.MethodPut, "/api/scheduler/settings/views_threshold", bytes.NewBufferString(`{"value":"80"}`))
			req.Header.Set("Authorization", "Bearer "+token)
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()

			server.Handler().ServeHTTP(rr, req)

			if tc.shouldDeny {
				if rr.Code != http.StatusForbidden {
					t.Fatalf("expected forbidden for role=%s, got %d body=%s", tc.role, rr.Code, rr.Body.String())
				}
				return
			}
			if rr.Code != http.StatusOK {
				t.Fatalf("expected role=%s to update the setting, got %d body=%s", tc.role, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestTrustedIdentityRoleMatrix(t *testing.T) {
	tests := []struct {
		name       string
		role       string
		shouldDeny bool
	}{
		{name: "member denied", role: "member", shouldDeny: true},
		{name: "moderator denied", role: "moderator", shouldDeny: true},
		{name: "admin allowed", role: "admin", shouldDeny: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server, token := newRBACServerAndToken(t, tc.role)

			rr := postJSON(t, server, "/api/identities", `{"name":"quill","trusted":true}`, token)

			if tc.shouldDeny {
				if rr.Code != http.StatusForbidden {
					t.Fatalf("expected forbidden for role=%s, got %d body=%s", tc.role, rr.Code, rr.Body.String())
				}
				return
			}
			if rr.Code != http.StatusCreated {
				t.Fatalf("expected role=%s to register a trusted identity, got %d body=%s", tc.role, rr.Code, rr.Body.String())
			}
			payload := decodeResponse(t, rr)
			if payload["trusted"] != true || payload["credential"] == "" {
				t.Fatalf("unexpected payload: %v", payload)
			}
		})
	}
}

func TestModeratorReadsQueue(t *testing.T) {
	server, token := newRBACServerAndToken(t, "moderator")

	req := httptest.NewRequest(http.MethodGet, "/api/moderation/queue", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if _, ok := decodeResponse(t, rr)["queue"]; !ok {
		t.Fatalf("expected queue key, got %s", rr.Body.String())
	}
}

func TestFilterCollectionRejectsUnknownMethods(t *testing.T) {
	server, token := newRBACServerAndToken(t, "moderator")

	req := httptest.NewRequest(http.MethodPut, "/api/moderation/filters", bytes.NewBufferString(`{}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
	if decodeResponse(t, rr)["code"] != "METHOD_NOT_ALLOWED" {
		t.Fatalf("expected METHOD_NOT_ALLOWED, got %s", rr.Body.String())
	}
}

func TestEvaluateEndpointIsPublic(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}))

	rr := postJSON(t, server, "/api/scheduler/evaluate", "", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 without a session, got %d body=%s", rr.Code, rr.Body.String())
	}
	payload := decodeResponse(t, rr)
	if payload["triggered"] != false || payload["reason"] != "disabled" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestMemberVoteAccess(t *testing.T) {
	server, token := newRBACServerAndToken(t, "member")

	rr := postJSON(t, server, "/api/posts/7/vote", `{"sign":1}`, token)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected member to vote, got %d body=%s", rr.Code, rr.Body.String())
	}
	if payload := decodeResponse(t, rr); payload["postId"] != float64(7) {
		t.Fatalf("unexpected payload: %v", payload)
	}

	rr = postJSON(t, server, "/api/posts/7/vote", `{"sign":5}`, token)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for out-of-range sign, got %d", rr.Code)
	}
}

func newRBACServerAndToken(t *testing.T, role string) (*HTTPServer, string) {
	t.Helper()
	secret := "test-secret"

	fs := &fakeStore{
		getUserByIDFn: func(_ context.Context, id int64) (*store.User, error) {
			return &store.User{ID: id, Name: "tester", Role: role}, nil
		},
	}
	server := NewHTTPServer(newTestService(fs))

	token, err := auth.IssueToken([]byte(secret), 2, "tester", role, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return server, token
}
