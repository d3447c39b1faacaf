// Package oauth keeps the bot's persisted OAuth tokens fresh. A background
// goroutine wakes on a jittered interval, checks the stored token's remaining
// lifetime, and refreshes it through a provider-specific function once it
// falls inside the refresh window.
package oauth

import (
	"context"
	"database/sql"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/MasterofGames77/game-ai-assistant/db"
	"github.com/MasterofGames77/game-ai-assistant/twitchapi"
)

// TokenStore reads and writes one provider's token row.
type TokenStore interface {
	Get(ctx context.Context, provider string) (access, refresh string, expiry time.Time, scope string, err error)
	Upsert(ctx context.Context, provider, access, refresh string, expiry time.Time, scope string) error
}

// DBStore is the Postgres-backed TokenStore; encryption is handled inside the
// db helpers.
type DBStore struct {
	DB *sql.DB
}

func (s DBStore) Get(ctx context.Context, provider string) (string, string, time.Time, string, error) {
	return db.GetOAuthToken(ctx, s.DB, provider)
}

func (s DBStore) Upsert(ctx context.Context, provider, access, refresh string, expiry time.Time, scope string) error {
	return db.UpsertOAuthToken(ctx, s.DB, provider, access, refresh, expiry, scope)
}

// RefreshFunc performs the provider-specific refresh and returns
// (access, refresh, expiry, scope).
type RefreshFunc func(ctx context.Context, refreshToken string) (string, string, time.Time, string, error)

// TwitchRefresh returns a RefreshFunc for Twitch user tokens.
func TwitchRefresh(clientID, clientSecret string) RefreshFunc {
	return func(ctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
		res, err := twitchapi.RefreshToken(ctx, clientID, clientSecret, refreshToken)
		if err != nil {
			return "", "", time.Time{}, "", err
		}
		return res.AccessToken, res.RefreshToken, twitchapi.ComputeExpiry(res.ExpiresIn), strings.Join(res.Scope, " "), nil
	}
}

// StartRefresher launches the refresh loop for one provider. interval is how
// often to check, window is the remaining lifetime at which a refresh fires.
func StartRefresher(ctx context.Context, store TokenStore, provider string, interval, window time.Duration, fn RefreshFunc) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	go func() {
		// Spread instances out so they don't all wake together.
		//nolint:gosec // G404: scheduling jitter, not security
		initial := time.Duration(rand.Int63n(int64(interval/2) + 1))
		select {
		case <-ctx.Done():
			return
		case <-time.After(initial):
		}
		for {
			if err := refreshOnce(ctx, store, provider, window, fn); err != nil {
				slog.Warn("token refresh failed", slog.String("provider", provider), slog.Any("err", err))
			}
			//nolint:gosec // G404: scheduling jitter, not security
			jitter := time.Duration(rand.Int63n(int64(interval/5)*2+1)) - interval/5
			sleep := interval + jitter
			if sleep < interval/2 {
				sleep = interval / 2
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(sleep):
			}
		}
	}()
}

// refreshOnce checks the stored token and refreshes it when inside the
// window. A token without a refresh token, or still far from expiry, is left
// alone.
func refreshOnce(ctx context.Context, store TokenStore, provider string, window time.Duration, fn RefreshFunc) error {
	_, refresh, expiry, scope, err := store.Get(ctx, provider)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return err
	}
	if refresh == "" || time.Until(expiry) > window {
		return nil
	}

	rctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	newAccess, newRefresh, newExpiry, newScope, err := fn(rctx, refresh)
	cancel()
	if err != nil {
		return err
	}
	// Providers may omit the rotated refresh token or scope; keep the old ones.
	if newRefresh == "" {
		newRefresh = refresh
	}
	if newScope == "" {
		newScope = scope
	}
	if err := store.Upsert(ctx, provider, newAccess, newRefresh, newExpiry, strings.TrimSpace(newScope)); err != nil {
		return err
	}
	slog.Info("token refreshed", slog.String("provider", provider), slog.Time("expires_at", newExpiry))
	return nil
}
