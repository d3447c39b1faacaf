// Package chat connects the bot to Twitch IRC and feeds inbound messages to
// the pipeline.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/MasterofGames77/game-ai-assistant/pipeline"
)

// MessageHandler consumes inbound chat messages. *pipeline.Pipeline satisfies this.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg pipeline.Inbound)
}

// knownBots are chat bot accounts whose messages are never questions for us.
var knownBots = map[string]bool{
	"nightbot":       true,
	"streamelements": true,
	"streamlabs":     true,
	"moobot":         true,
	"fossabot":       true,
	"wizebot":        true,
	"botrix":         true,
}

// Bot is the IRC transport: it joins the configured channels, forwards
// privmsgs to the handler, and sends the pipeline's replies.
type Bot struct {
	client   *twitch.Client
	handler  MessageHandler
	channels []string
	login    string
}

// New builds a Bot. token may be given with or without the "oauth:" prefix.
// Attach the pipeline with OnMessage before Run; the bot itself is the
// pipeline's Sender, so the two are wired in two steps.
func New(username, token string, channels []string) *Bot {
	if token != "" && !strings.HasPrefix(token, "oauth:") {
		token = "oauth:" + token
	}
	return &Bot{
		client:   twitch.NewClient(username, token),
		channels: channels,
		login:    strings.ToLower(username),
	}
}

// OnMessage sets the inbound handler. Must be called before Run.
func (b *Bot) OnMessage(h MessageHandler) {
	b.handler = h
}

// Send delivers one line to a channel. The underlying client queues writes,
// so this never blocks on the socket.
func (b *Bot) Send(_ context.Context, channel, text string) error {
	b.client.Say(channel, text)
	return nil
}

// Run connects and blocks until ctx is cancelled or the connection fails for
// good. The client reconnects on transient drops by itself.
func (b *Bot) Run(ctx context.Context) error {
	if b.handler == nil {
		return errors.New("chat: no message handler attached")
	}
	b.client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		b.handler.HandleMessage(ctx, fromPrivateMessage(msg, b.login))
	})
	b.client.OnConnect(func() {
		slog.Info("twitch chat connected", slog.String("username", b.login), slog.Any("channels", b.channels))
	})

	go func() {
		<-ctx.Done()
		if err := b.client.Disconnect(); err != nil {
			slog.Debug("twitch disconnect", slog.Any("err", err))
		}
	}()

	b.client.Join(b.channels...)
	err := b.client.Connect()
	if ctx.Err() != nil {
		// Shutdown-path disconnect, not a transport failure.
		return nil
	}
	return err
}

// fromPrivateMessage maps an IRC privmsg onto the pipeline's inbound shape.
func fromPrivateMessage(msg twitch.PrivateMessage, botLogin string) pipeline.Inbound {
	login := strings.ToLower(msg.User.Name)
	display := msg.User.DisplayName
	if display == "" {
		display = msg.User.Name
	}
	at := msg.Time
	if at.IsZero() {
		at = time.Now()
	}
	return pipeline.Inbound{
		Channel:     strings.ToLower(msg.Channel),
		UserID:      msg.User.ID,
		DisplayName: display,
		Text:        msg.Message,
		ReceivedAt:  at,
		IsSelf:      login == botLogin,
		IsBot:       knownBots[login],
	}
}
