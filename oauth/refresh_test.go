package oauth

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"
)

type memStore struct {
	access, refresh, scope string
	expiry                 time.Time
	missing                bool
	upserts                int
}

func (m *memStore) Get(context.Context, string) (string, string, time.Time, string, error) {
	if m.missing {
		return "", "", time.Time{}, "", sql.ErrNoRows
	}
	return m.access, m.refresh, m.expiry, m.scope, nil
}

func (m *memStore) Upsert(_ context.Context, _ string, access, refresh string, expiry time.Time, scope string) error {
	m.access, m.refresh, m.expiry, m.scope = access, refresh, expiry, scope
	m.upserts++
	return nil
}

func TestRefreshOnceOutsideWindow(t *testing.T) {
	store := &memStore{access: "a", refresh: "r", expiry: time.Now().Add(time.Hour), scope: "s"}
	called := false
	fn := func(context.Context, string) (string, string, time.Time, string, error) {
		called = true
		return "", "", time.Time{}, "", nil
	}

	if err := refreshOnce(context.Background(), store, "twitch", 15*time.Minute, fn); err != nil {
		t.Fatalf("refreshOnce: %v", err)
	}
	if called || store.upserts != 0 {
		t.Error("token outside the window should not refresh")
	}
}

func TestRefreshOnceWithinWindow(t *testing.T) {
	store := &memStore{access: "old-a", refresh: "old-r", expiry: time.Now().Add(5 * time.Minute), scope: "chat:read"}
	newExpiry := time.Now().Add(2 * time.Hour)
	fn := func(_ context.Context, refreshToken string) (string, string, time.Time, string, error) {
		if refreshToken != "old-r" {
			t.Errorf("refresh called with %q, want old-r", refreshToken)
		}
		return "new-a", "new-r", newExpiry, "chat:read chat:edit", nil
	}

	if err := refreshOnce(context.Background(), store, "twitch", 15*time.Minute, fn); err != nil {
		t.Fatalf("refreshOnce: %v", err)
	}
	if store.access != "new-a" || store.refresh != "new-r" || store.scope != "chat:read chat:edit" {
		t.Errorf("stored token = %q/%q/%q", store.access, store.refresh, store.scope)
	}
}

func TestRefreshOncePreservesRotatedFields(t *testing.T) {
	store := &memStore{access: "old-a", refresh: "old-r", expiry: time.Now().Add(5 * time.Minute), scope: "chat:read"}
	fn := func(context.Context, string) (string, string, time.Time, string, error) {
		// Provider omitted the new refresh token and scope.
		return "new-a", "", time.Now().Add(2 * time.Hour), "", nil
	}

	if err := refreshOnce(context.Background(), store, "twitch", 15*time.Minute, fn); err != nil {
		t.Fatalf("refreshOnce: %v", err)
	}
	if store.refresh != "old-r" || store.scope != "chat:read" {
		t.Errorf("rotated fields not preserved: %q/%q", store.refresh, store.scope)
	}
}

func TestRefreshOnceSkipsWithoutRefreshToken(t *testing.T) {
	store := &memStore{access: "a", refresh: "", expiry: time.Now().Add(time.Minute)}
	fn := func(context.Context, string) (string, string, time.Time, string, error) {
		t.Error("refresh called without a refresh token")
		return "", "", time.Time{}, "", nil
	}
	if err := refreshOnce(context.Background(), store, "twitch", 15*time.Minute, fn); err != nil {
		t.Fatalf("refreshOnce: %v", err)
	}
}

func TestRefreshOnceMissingRow(t *testing.T) {
	store := &memStore{missing: true}
	fn := func(context.Context, string) (string, string, time.Time, string, error) {
		t.Error("refresh called with no stored token")
		return "", "", time.Time{}, "", nil
	}
	if err := refreshOnce(context.Background(), store, "twitch", 15*time.Minute, fn); err != nil {
		t.Fatalf("a missing row is not an error: %v", err)
	}
}

func TestRefreshOnceKeepsOldTokenOnError(t *testing.T) {
	store := &memStore{access: "old-a", refresh: "old-r", expiry: time.Now().Add(5 * time.Minute)}
	fn := func(context.Context, string) (string, string, time.Time, string, error) {
		return "", "", time.Time{}, "", errors.New("provider down")
	}

	if err := refreshOnce(context.Background(), store, "twitch", 15*time.Minute, fn); err == nil {
		t.Fatal("want error from failed refresh")
	}
	if store.access != "old-a" || store.upserts != 0 {
		t.Error("failed refresh must not overwrite the stored token")
	}
}

func TestStartRefresherCancellation(t *testing.T) {
	store := &memStore{missing: true}
	ctx, cancel := context.WithCancel(context.Background())
	StartRefresher(ctx, store, "twitch", time.Second, 15*time.Minute, nil)
	cancel()
	// The goroutine must exit on cancellation; nothing to assert beyond not hanging.
	time.Sleep(20 * time.Millisecond)
}
