// Package pipeline turns inbound chat messages into answers. A message flows
// through dedup, settings lookup, routing, rate limiting, moderation, the
// response cache, and generation, with all per-user work serialized so a
// user's messages are answered in order while other users proceed
// concurrently.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/MasterofGames77/game-ai-assistant/analytics"
	"github.com/MasterofGames77/game-ai-assistant/settings"
	"github.com/MasterofGames77/game-ai-assistant/telemetry"
)

// Inbound is one chat message as handed over by the transport.
type Inbound struct {
	Channel     string
	UserID      string
	DisplayName string
	Text        string
	ReceivedAt  time.Time
	IsSelf      bool
	IsBot       bool
}

// Sender delivers one chat line to a channel.
type Sender interface {
	Send(ctx context.Context, channel, text string) error
}

// Generator produces an answer for a question under a channel's settings.
type Generator interface {
	Generate(ctx context.Context, question string, st settings.ChannelSettings) (string, error)
}

// Moderator gates questions and answers. *moderation.Gate satisfies this.
type Moderator interface {
	IsBanned(ctx context.Context, channel, userID string) bool
	PreCheck(ctx context.Context, channel, userID, displayName, text string) bool
	PostCheck(ctx context.Context, channel, answer string) (string, bool)
}

// failureNotice is sent when generation gives up after retries.
const failureNotice = "Sorry, I couldn't come up with an answer just now. Please try again in a moment!"

// rateLimitNotice is the single reply a user gets when rate limited.
const rateLimitNotice = "You're sending questions a bit fast! Give me a moment to catch up."

// Config wires a Pipeline's collaborators.
type Config struct {
	Settings  settings.Source
	Moderator Moderator
	Generator Generator
	Sender    Sender
	Analytics analytics.Sink
	Counter   analytics.Counter
	BotName   string

	// SettingsSweep lets the sweeper evict the settings cache; nil when the
	// settings source has no cache to sweep.
	SettingsSweep func()
	// Sleep paces multi-chunk sends; tests override it. Nil means real time.
	Sleep func(ctx context.Context, d time.Duration)
}

// Pipeline owns all per-process message state for the bot.
type Pipeline struct {
	settings      settings.Source
	moderator     Moderator
	generator     Generator
	sender        Sender
	sink          analytics.Sink
	counter       analytics.Counter
	botName       string
	sleep         func(ctx context.Context, d time.Duration)
	settingsSweep func()

	dedup      *DedupFilter
	limiter    *RateLimiter
	responses  *TTLCache[string, string]
	serializer *Serializer
}

// New builds a Pipeline. All Config fields except SettingsSweep and Sleep are
// required.
func New(cfg Config) *Pipeline {
	p := &Pipeline{
		settings:      cfg.Settings,
		moderator:     cfg.Moderator,
		generator:     cfg.Generator,
		sender:        cfg.Sender,
		sink:          cfg.Analytics,
		counter:       cfg.Counter,
		botName:       cfg.BotName,
		sleep:         cfg.Sleep,
		settingsSweep: cfg.SettingsSweep,
		dedup:         NewDedupFilter(),
		limiter:       NewRateLimiter(),
		responses:     NewTTLCache[string, string](),
		serializer:    NewSerializer(),
	}
	if p.sink == nil {
		p.sink = analytics.Discard{}
	}
	if p.counter == nil {
		p.counter = analytics.Discard{}
	}
	if p.settingsSweep == nil {
		p.settingsSweep = func() {}
	}
	if p.sleep == nil {
		p.sleep = func(ctx context.Context, d time.Duration) {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
			case <-t.C:
			}
		}
	}
	return p
}

// HandleMessage is the transport's entry point. It runs the cheap in-memory
// stages inline and hands everything that talks to the network to the
// caller's per-user chain, so one transport goroutine is never blocked on a
// slow generation.
func (p *Pipeline) HandleMessage(ctx context.Context, msg Inbound) {
	telemetry.Inc(telemetry.MessagesReceived)
	if msg.IsSelf || msg.IsBot {
		return
	}

	ctx = telemetry.WithCorrelation(ctx, uuid.NewString())
	log := telemetry.LoggerWithCorr(ctx).With(
		slog.String("channel", msg.Channel),
		slog.String("user_id", msg.UserID),
	)

	id := MessageIdentity(msg.Channel, msg.UserID, msg.Text, msg.ReceivedAt)
	if !p.dedup.ShouldProcess(id) {
		telemetry.Inc(telemetry.DedupDropped)
		log.Debug("duplicate message dropped")
		return
	}
	p.dedup.MarkProcessed(id)

	st := p.settings.Get(ctx, msg.Channel)
	route, question := Classify(msg.Text, st)

	switch route {
	case RouteIgnored:
		return
	case RouteHelp:
		p.serializer.Enqueue(msg.UserID, func() {
			p.answerStatic(ctx, msg, st, analytics.TypeHelp, p.helpText(st))
		})
	case RouteCommands:
		p.serializer.Enqueue(msg.UserID, func() {
			p.answerStatic(ctx, msg, st, analytics.TypeCommands, p.commandsText(st))
		})
	case RouteQuestion:
		// Rate limiting happens at dispatch so a flood never piles work onto
		// the user's chain. A denied message produces exactly one notice.
		if !p.limiter.Allow(msg.Channel, msg.UserID, st) {
			telemetry.Inc(telemetry.RateLimitDenied)
			log.Info("rate limit exceeded")
			p.serializer.Enqueue(msg.UserID, func() {
				p.deliver(ctx, msg, st, rateLimitNotice)
			})
			return
		}
		p.serializer.Enqueue(msg.UserID, func() {
			p.answerQuestion(ctx, msg, st, question)
		})
	}
}

// answerStatic replies with a canned response and records a successful event.
func (p *Pipeline) answerStatic(ctx context.Context, msg Inbound, st settings.ChannelSettings, typ analytics.MessageType, text string) {
	start := time.Now()
	p.deliver(ctx, msg, st, text)
	p.finish(msg, analytics.Event{
		Channel:     msg.Channel,
		UserID:      msg.UserID,
		MessageType: typ,
		Success:     true,
		At:          start,
	}, start)
}

// answerQuestion runs the expensive half of the pipeline inside the user's
// chain: ban check, pre-moderation, cache, generation, post-moderation,
// chunked delivery.
func (p *Pipeline) answerQuestion(ctx context.Context, msg Inbound, st settings.ChannelSettings, question string) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "pipeline", "pipeline.answer_question",
		attribute.String("channel", msg.Channel))
	defer span.End()
	log := telemetry.LoggerWithCorr(ctx).With(
		slog.String("channel", msg.Channel),
		slog.String("user_id", msg.UserID),
	)

	// Banned users are dropped silently; replying would invite ban evasion
	// probing.
	if p.moderator.IsBanned(ctx, msg.Channel, msg.UserID) {
		log.Debug("message from banned user dropped")
		return
	}

	if !p.moderator.PreCheck(ctx, msg.Channel, msg.UserID, msg.DisplayName, msg.Text) {
		telemetry.Inc(telemetry.ModerationBlocked)
		p.finish(msg, analytics.Event{
			Channel:     msg.Channel,
			UserID:      msg.UserID,
			MessageType: analytics.TypeQuestion,
			Success:     true,
			Flagged:     true,
			At:          start,
		}, start)
		return
	}

	cacheKey := msg.Channel + "\x00" + question
	if st.CacheEnabled {
		if answer, ok := p.responses.Get(cacheKey); ok {
			telemetry.Inc(telemetry.CacheHits)
			log.Debug("response cache hit")
			p.deliver(ctx, msg, st, answer)
			p.finish(msg, analytics.Event{
				Channel:     msg.Channel,
				UserID:      msg.UserID,
				MessageType: analytics.TypeQuestion,
				CacheHit:    true,
				Success:     true,
				At:          start,
			}, start)
			return
		}
		telemetry.Inc(telemetry.CacheMisses)
	}

	genStart := time.Now()
	answer, err := p.generator.Generate(ctx, question, st)
	genMs := time.Since(genStart).Milliseconds()
	telemetry.Observe(telemetry.GenerationDuration, time.Since(genStart))
	if err != nil {
		telemetry.Inc(telemetry.GenerationFailures)
		telemetry.RecordError(span, err)
		log.Error("generation failed", slog.Any("err", err))
		p.deliver(ctx, msg, st, failureNotice)
		p.finish(msg, analytics.Event{
			Channel:      msg.Channel,
			UserID:       msg.UserID,
			MessageType:  analytics.TypeQuestion,
			GenerationMs: genMs,
			ErrorType:    analytics.ErrorAPIError,
			At:           start,
		}, start)
		return
	}

	answer, flagged := p.moderator.PostCheck(ctx, msg.Channel, answer)
	if st.CacheEnabled && !flagged {
		p.responses.Put(cacheKey, answer, st.CacheTTL)
	}

	p.deliver(ctx, msg, st, answer)
	p.finish(msg, analytics.Event{
		Channel:      msg.Channel,
		UserID:       msg.UserID,
		MessageType:  analytics.TypeQuestion,
		GenerationMs: genMs,
		Success:      true,
		Flagged:      flagged,
		At:           start,
	}, start)
}

// deliver splits text into channel-sized chunks and sends them in order with
// a pause between chunks so Twitch doesn't drop them.
func (p *Pipeline) deliver(ctx context.Context, msg Inbound, st settings.ChannelSettings, text string) {
	log := telemetry.LoggerWithCorr(ctx)
	for i, chunk := range FormatResponse(text, msg.DisplayName, st) {
		if i > 0 {
			p.sleep(ctx, ChunkDelay)
		}
		if err := p.sender.Send(ctx, msg.Channel, chunk); err != nil {
			log.Error("send failed", slog.String("channel", msg.Channel), slog.Any("err", err))
			return
		}
		telemetry.Inc(telemetry.ChunksSent)
	}
}

// finish records the analytics event and closes out per-message telemetry.
func (p *Pipeline) finish(msg Inbound, ev analytics.Event, start time.Time) {
	ev.TotalMs = time.Since(start).Milliseconds()
	ev.ProcessingMs = ev.TotalMs - ev.GenerationMs
	p.sink.Record(ev)
	p.counter.IncrementMessageCount(msg.Channel)
	telemetry.Inc(telemetry.MessagesProcessed)
	telemetry.Observe(telemetry.PipelineDuration, time.Since(start))
}

func (p *Pipeline) helpText(st settings.ChannelSettings) string {
	prefix := primaryPrefix(st)
	return "Hi! I'm " + p.botName + ", your video game assistant. Ask me anything about games with \"" +
		prefix + " <question>\", or say \"" + prefix + " commands\" to see what I can do."
}

func (p *Pipeline) commandsText(st settings.ChannelSettings) string {
	prefix := primaryPrefix(st)
	return "Commands: \"" + prefix + " <question>\" asks me about a game, \"" +
		prefix + " help\" shows a quick intro, \"" + prefix + " commands\" shows this list."
}

func primaryPrefix(st settings.ChannelSettings) string {
	if len(st.CommandPrefixes) > 0 {
		return st.CommandPrefixes[0]
	}
	return "!wingman"
}

// Stats is a point-in-time snapshot for the status endpoint.
type Stats struct {
	DedupEntries    int `json:"dedup_entries"`
	RateWindows     int `json:"rate_windows"`
	CachedResponses int `json:"cached_responses"`
	ActiveUsers     int `json:"active_users"`
}

func (p *Pipeline) Stats() Stats {
	return Stats{
		DedupEntries:    p.dedup.Len(),
		RateWindows:     p.limiter.Len(),
		CachedResponses: p.responses.Len(),
		ActiveUsers:     p.serializer.Active(),
	}
}

// Drain waits for every in-flight user chain to finish, for shutdown.
func (p *Pipeline) Drain() {
	p.serializer.Wait()
}

func (p *Pipeline) publishGauges() {
	telemetry.SetGauge(telemetry.ActiveUserChains, float64(p.serializer.Active()))
	telemetry.SetGauge(telemetry.ResponseCacheLen, float64(p.responses.Len()))
}
