package twitchapi_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/MasterofGames77/game-ai-assistant/testutil"
	"github.com/MasterofGames77/game-ai-assistant/twitchapi"
)

func newTestClient(m *testutil.MockTwitchServer) *twitchapi.HelixClient {
	return &twitchapi.HelixClient{
		TokenSource: twitchapi.StaticTokenSource("test-token"),
		ClientID:    "test-client",
		BaseURL:     m.URL + "/helix",
	}
}

func TestGetUserID(t *testing.T) {
	m := testutil.NewMockTwitchServer(t)
	m.MockUserResponse("1001", "ashplays")

	hc := newTestClient(m)
	id, err := hc.GetUserID(context.Background(), "ashplays")
	if err != nil {
		t.Fatalf("GetUserID: %v", err)
	}
	if id != "1001" {
		t.Errorf("id = %q, want 1001", id)
	}

	if _, err := hc.GetUserID(context.Background(), ""); err == nil {
		t.Error("empty login should fail")
	}
}

func TestBanUserTimeoutVsPermanent(t *testing.T) {
	m := testutil.NewMockTwitchServer(t)
	var captured []map[string]any
	m.MockBanResponse(&captured)

	hc := newTestClient(m)

	if err := hc.BanUser(context.Background(), "b1", "m1", "1001", 10*time.Minute, "spam"); err != nil {
		t.Fatalf("timeout: %v", err)
	}
	if err := hc.BanUser(context.Background(), "b1", "m1", "1001", 0, "repeat offender"); err != nil {
		t.Fatalf("ban: %v", err)
	}

	if len(captured) != 2 {
		t.Fatalf("requests = %d, want 2", len(captured))
	}
	// A timeout carries a duration; a permanent ban omits it.
	if d, ok := captured[0]["duration"]; !ok || d.(float64) != 600 {
		t.Errorf("timeout payload = %v, want duration 600", captured[0])
	}
	if _, ok := captured[1]["duration"]; ok {
		t.Errorf("permanent ban payload carries a duration: %v", captured[1])
	}
	if captured[1]["user_id"] != "1001" || captured[1]["reason"] != "repeat offender" {
		t.Errorf("ban payload = %v", captured[1])
	}
}

func TestUnbanUser(t *testing.T) {
	m := testutil.NewMockTwitchServer(t)
	var gotUser string
	m.Handlers["/helix/moderation/bans"] = func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s, want DELETE", r.Method)
		}
		gotUser = r.URL.Query().Get("user_id")
		w.WriteHeader(http.StatusNoContent)
	}

	hc := newTestClient(m)
	if err := hc.UnbanUser(context.Background(), "b1", "m1", "1001"); err != nil {
		t.Fatalf("UnbanUser: %v", err)
	}
	if gotUser != "1001" {
		t.Errorf("user_id = %q, want 1001", gotUser)
	}
}
