package farcaster

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(Config{BaseURL: server.URL, APIKey: "test-key", PageSize: 100})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestFollowingPage(t *testing.T) {
	var gotPath, gotKey, gotFID, gotLimit, gotCursor string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-api-key")
		gotFID = r.URL.Query().Get("fid")
		gotLimit = r.URL.Query().Get("limit")
		gotCursor = r.URL.Query().Get("cursor")
		w.Write([]byte(`{
			"users": [
				{
					"user": {
						"fid": 7,
						"username": "alice",
						"display_name": "Alice",
						"pfp_url": "https://example.com/alice.png",
						"profile": {"bio": {"text": "gm"}},
						"verified_addresses": {
							"eth_addresses": ["0xAAA0000000000000000000000000000000000001"],
							"sol_addresses": ["SoLWallet123"]
						}
					}
				},
				{"user": null}
			],
			"next": {"cursor": "page2"}
		}`))
	})

	profiles, next, err := client.FollowingPage(context.Background(), 42, "")
	if err != nil {
		t.Fatalf("FollowingPage: %v", err)
	}
	if gotPath != "/v2/farcaster/following" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("x-api-key = %q", gotKey)
	}
	if gotFID != "42" || gotLimit != "100" {
		t.Errorf("fid = %q, limit = %q", gotFID, gotLimit)
	}
	if gotCursor != "" {
		t.Errorf("first page must not send a cursor, got %q", gotCursor)
	}

	if len(profiles) != 1 {
		t.Fatalf("a null user entry must be skipped, got %d profiles", len(profiles))
	}
	profile := profiles[0]
	if profile.User.FID != 7 || profile.User.Username != "alice" || profile.User.DisplayName != "Alice" {
		t.Errorf("profile user = %+v", profile.User)
	}
	if profile.User.AvatarURL != "https://example.com/alice.png" {
		t.Errorf("avatar = %q", profile.User.AvatarURL)
	}
	if profile.Bio != "gm" {
		t.Errorf("bio = %q", profile.Bio)
	}
	if len(profile.EthAddresses) != 1 || len(profile.SolAddresses) != 1 {
		t.Errorf("addresses = %+v / %+v", profile.EthAddresses, profile.SolAddresses)
	}
	if next != "page2" {
		t.Errorf("cursor = %q, want %q", next, "page2")
	}
}

func TestFollowingPage_SendsCursor(t *testing.T) {
	var gotCursor string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotCursor = r.URL.Query().Get("cursor")
		w.Write([]byte(`{"users": [], "next": {"cursor": ""}}`))
	})

	profiles, next, err := client.FollowingPage(context.Background(), 42, "page2")
	if err != nil {
		t.Fatalf("FollowingPage: %v", err)
	}
	if gotCursor != "page2" {
		t.Errorf("cursor = %q, want %q", gotCursor, "page2")
	}
	if len(profiles) != 0 || next != "" {
		t.Errorf("profiles = %+v, next = %q", profiles, next)
	}
}

func TestFollowingPage_HTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	})

	if _, _, err := client.FollowingPage(context.Background(), 42, ""); err == nil {
		t.Fatal("expected an error for a non-200 response")
	}
}

func TestNewClient_ClampsPageSize(t *testing.T) {
	client, err := NewClient(Config{APIKey: "k", PageSize: 500})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if client.pageSize != 100 {
		t.Errorf("page size = %d, want the 100 cap", client.pageSize)
	}
}
