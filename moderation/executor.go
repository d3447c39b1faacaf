package moderation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MasterofGames77/game-ai-assistant/twitchapi"
)

// Notifier posts a chat line; warnings are delivered in-channel rather than
// through the Helix API.
type Notifier interface {
	Send(ctx context.Context, channel, text string) error
}

// HelixExecutor applies escalation actions through the Twitch Helix
// moderation endpoints, resolving channel logins and user logins to ids once
// and caching them.
type HelixExecutor struct {
	Client   *twitchapi.HelixClient
	Notify   Notifier
	BotLogin string

	mu    sync.Mutex
	ids   map[string]string // login → user id
	botID string
}

var _ ActionExecutor = (*HelixExecutor)(nil)

func (e *HelixExecutor) resolve(ctx context.Context, login string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ids == nil {
		e.ids = make(map[string]string)
	}
	if id, ok := e.ids[login]; ok {
		return id, nil
	}
	id, err := e.Client.GetUserID(ctx, login)
	if err != nil {
		return "", err
	}
	e.ids[login] = id
	return id, nil
}

func (e *HelixExecutor) moderatorID(ctx context.Context) (string, error) {
	e.mu.Lock()
	cached := e.botID
	e.mu.Unlock()
	if cached != "" {
		return cached, nil
	}
	id, err := e.resolve(ctx, e.BotLogin)
	if err != nil {
		return "", err
	}
	e.mu.Lock()
	e.botID = id
	e.mu.Unlock()
	return id, nil
}

// Warn posts an in-channel notice addressed to the user.
func (e *HelixExecutor) Warn(ctx context.Context, channel, displayName, reason string) error {
	text := fmt.Sprintf("@%s that message isn't allowed here. This is a warning; repeat violations will lead to a timeout.", displayName)
	return e.Notify.Send(ctx, channel, text)
}

// Timeout bans the user for d via Helix. userID is the Twitch numeric id
// already carried on IRC messages; only channel and bot logins need resolving.
func (e *HelixExecutor) Timeout(ctx context.Context, channel, userID string, d time.Duration, reason string) error {
	broadcasterID, err := e.resolve(ctx, channel)
	if err != nil {
		return err
	}
	modID, err := e.moderatorID(ctx)
	if err != nil {
		return err
	}
	return e.Client.BanUser(ctx, broadcasterID, modID, userID, d, reason)
}

// Ban permanently bans the user via Helix.
func (e *HelixExecutor) Ban(ctx context.Context, channel, userID, reason string) error {
	broadcasterID, err := e.resolve(ctx, channel)
	if err != nil {
		return err
	}
	modID, err := e.moderatorID(ctx)
	if err != nil {
		return err
	}
	return e.Client.BanUser(ctx, broadcasterID, modID, userID, 0, reason)
}
