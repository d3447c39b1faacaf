package chat

import (
	"testing"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"
)

func TestFromPrivateMessage(t *testing.T) {
	at := time.Date(2026, 5, 4, 20, 0, 0, 0, time.UTC)
	msg := twitch.PrivateMessage{
		Channel: "GamerChan",
		Message: "!wingman best metroidvania?",
		Time:    at,
		User: twitch.User{
			ID:          "1001",
			Name:        "ashplays",
			DisplayName: "AshPlays",
		},
	}

	in := fromPrivateMessage(msg, "wingmanbot")
	if in.Channel != "gamerchan" {
		t.Errorf("Channel = %q, want lowercased", in.Channel)
	}
	if in.UserID != "1001" || in.DisplayName != "AshPlays" {
		t.Errorf("user mapping = %q/%q", in.UserID, in.DisplayName)
	}
	if in.Text != msg.Message || !in.ReceivedAt.Equal(at) {
		t.Errorf("text/time mapping = %q %v", in.Text, in.ReceivedAt)
	}
	if in.IsSelf || in.IsBot {
		t.Errorf("ordinary user flagged, IsSelf=%v IsBot=%v", in.IsSelf, in.IsBot)
	}
}

func TestFromPrivateMessageSelfAndBots(t *testing.T) {
	self := twitch.PrivateMessage{User: twitch.User{Name: "WingmanBot"}}
	if in := fromPrivateMessage(self, "wingmanbot"); !in.IsSelf {
		t.Error("own message not flagged IsSelf")
	}

	bot := twitch.PrivateMessage{User: twitch.User{Name: "Nightbot"}}
	if in := fromPrivateMessage(bot, "wingmanbot"); !in.IsBot {
		t.Error("known bot not flagged IsBot")
	}
}

func TestFromPrivateMessageDisplayNameFallback(t *testing.T) {
	msg := twitch.PrivateMessage{User: twitch.User{Name: "quietuser"}}
	if in := fromPrivateMessage(msg, "wingmanbot"); in.DisplayName != "quietuser" {
		t.Errorf("DisplayName = %q, want login fallback", in.DisplayName)
	}
}

func TestNewNormalizesToken(t *testing.T) {
	// Both forms must produce a working client; we can only check it builds.
	if b := New("wingmanbot", "abc123", nil); b.login != "wingmanbot" {
		t.Errorf("login = %q", b.login)
	}
	if b := New("WingmanBot", "oauth:abc123", nil); b.login != "wingmanbot" {
		t.Errorf("login = %q, want lowercased", b.login)
	}
}
