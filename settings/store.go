package settings

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Store fetches channel settings from the channel_settings table.
type Store struct {
	DB          *sql.DB
	MentionName string // bot chat name used when a row has no mention_name
}

// Get loads the settings row for a channel. sql.ErrNoRows is returned
// unwrapped so callers can distinguish "channel not configured" (use
// defaults) from a store failure (use stale value).
func (s *Store) Get(ctx context.Context, channel string) (ChannelSettings, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT command_prefixes, mention_enabled, mention_name, rate_limit_window_ms,
		       max_messages_per_window, response_style, mention_first_only,
		       max_message_length, cache_enabled, cache_ttl_ms, custom_system_message
		FROM channel_settings WHERE channel=$1`, channel)

	var (
		prefixes, mentionName, style, custom string
		windowMs, cacheTTLMs                 int64
		maxPerWindow, maxLen                 int
		mentionEnabled, firstOnly, cacheOn   bool
	)
	if err := row.Scan(&prefixes, &mentionEnabled, &mentionName, &windowMs,
		&maxPerWindow, &style, &firstOnly, &maxLen, &cacheOn, &cacheTTLMs, &custom); err != nil {
		return ChannelSettings{}, err
	}

	st := Defaults(s.MentionName)
	if p := splitPrefixes(prefixes); len(p) > 0 {
		st.CommandPrefixes = p
	}
	st.MentionEnabled = mentionEnabled
	if mentionName != "" {
		st.MentionName = mentionName
	}
	if windowMs > 0 {
		st.RateLimitWindow = time.Duration(windowMs) * time.Millisecond
	}
	if maxPerWindow > 0 {
		st.MaxMessagesPerWindow = maxPerWindow
	}
	switch ResponseStyle(style) {
	case StyleMention, StyleNoMention, StyleCompact:
		st.ResponseStyle = ResponseStyle(style)
	default:
		return ChannelSettings{}, fmt.Errorf("channel %s: unknown response_style %q", channel, style)
	}
	st.MentionFirstOnly = firstOnly
	if maxLen > 0 {
		st.MaxMessageLength = maxLen
	}
	st.CacheEnabled = cacheOn
	if cacheTTLMs > 0 {
		st.CacheTTL = time.Duration(cacheTTLMs) * time.Millisecond
	}
	st.CustomSystemMessage = custom
	return st, nil
}

func splitPrefixes(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
