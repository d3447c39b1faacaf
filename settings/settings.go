// Package settings holds per-channel bot behavior configuration: how the bot
// is addressed, rate limits, response formatting, and caching knobs. Values
// are fetched from Postgres and cached with a TTL; a hard-coded default set
// guarantees the pipeline never blocks on settings unavailability.
package settings

import "time"

// ResponseStyle selects how outbound chunks address the asking user.
type ResponseStyle string

const (
	StyleMention   ResponseStyle = "mention"
	StyleNoMention ResponseStyle = "no-mention"
	StyleCompact   ResponseStyle = "compact"
)

// ChannelSettings is an immutable snapshot of a channel's configuration.
// Downstream pipeline stages receive one snapshot per message so a concurrent
// store update can never produce a half-old, half-new behavior mix.
type ChannelSettings struct {
	CommandPrefixes      []string
	MentionEnabled       bool
	MentionName          string
	RateLimitWindow      time.Duration
	MaxMessagesPerWindow int
	ResponseStyle        ResponseStyle
	MentionFirstOnly     bool
	MaxMessageLength     int
	CacheEnabled         bool
	CacheTTL             time.Duration
	CustomSystemMessage  string
}

// Defaults returns the hard-coded fallback settings used when neither a fresh
// nor a stale store value is available. mentionName is the bot's chat name.
func Defaults(mentionName string) ChannelSettings {
	return ChannelSettings{
		CommandPrefixes:      []string{"!wingman"},
		MentionEnabled:       true,
		MentionName:          mentionName,
		RateLimitWindow:      time.Minute,
		MaxMessagesPerWindow: 5,
		ResponseStyle:        StyleMention,
		MentionFirstOnly:     true,
		MaxMessageLength:     500,
		CacheEnabled:         true,
		CacheTTL:             5 * time.Minute,
		CustomSystemMessage:  "",
	}
}
