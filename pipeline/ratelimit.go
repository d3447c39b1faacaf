package pipeline

import (
	"sync"
	"time"

	"github.com/MasterofGames77/game-ai-assistant/settings"
)

type rateWindow struct {
	windowStart time.Time
	count       int
}

// RateLimiter enforces a sliding-window quota per (channel, user). The
// window resets a full window after the first message in it, not at clock
// boundaries. Denials mutate nothing, so the next attempt is judged on the
// same window state.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*rateWindow
	now     func() time.Time
}

// NewRateLimiter returns an empty limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		windows: make(map[string]*rateWindow),
		now:     time.Now,
	}
}

func rateKey(channel, userID string) string {
	return channel + "\x00" + userID
}

// Allow reports whether the user may send another message under the
// channel's configured window, counting this message when allowed.
func (rl *RateLimiter) Allow(channel, userID string, st settings.ChannelSettings) bool {
	key := rateKey(channel, userID)
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	w, ok := rl.windows[key]
	if !ok || now.Sub(w.windowStart) > st.RateLimitWindow {
		rl.windows[key] = &rateWindow{windowStart: now, count: 1}
		return true
	}
	if w.count >= st.MaxMessagesPerWindow {
		return false
	}
	w.count++
	return true
}

// Sweep drops windows that expired more than grace ago. The grace period
// keeps recently-rolled windows cheap to re-create without churn.
func (rl *RateLimiter) Sweep(grace time.Duration) {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, w := range rl.windows {
		if now.Sub(w.windowStart) > grace {
			delete(rl.windows, key)
		}
	}
}

// Len reports tracked (channel, user) windows.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.windows)
}
