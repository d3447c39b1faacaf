// Command game-ai-assistant runs the Video Game Wingman Twitch bot.
// It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres and runs idempotent migrations.
//   - Joins the configured Twitch channels and answers game questions through
//     an OpenAI-compatible backend, with per-channel settings, moderation
//     escalation, caching, and per-user ordering.
//   - Exposes a minimal HTTP server with /healthz, /status, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MasterofGames77/game-ai-assistant/analytics"
	"github.com/MasterofGames77/game-ai-assistant/chat"
	"github.com/MasterofGames77/game-ai-assistant/config"
	"github.com/MasterofGames77/game-ai-assistant/db"
	"github.com/MasterofGames77/game-ai-assistant/generation"
	"github.com/MasterofGames77/game-ai-assistant/moderation"
	"github.com/MasterofGames77/game-ai-assistant/oauth"
	"github.com/MasterofGames77/game-ai-assistant/pipeline"
	"github.com/MasterofGames77/game-ai-assistant/server"
	"github.com/MasterofGames77/game-ai-assistant/settings"
	"github.com/MasterofGames77/game-ai-assistant/telemetry"
	"github.com/MasterofGames77/game-ai-assistant/twitchapi"
)

func main() {
	// Load .env if present (local dev convenience; production uses real env).
	_ = godotenv.Load()

	initLogging()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()
	shutdownTracing, err := telemetry.InitTracing("game-ai-assistant", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdownTracing()

	database, err := db.Connect(cfg.DBDsn)
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()

	// Versioned migrations first; fall back to the embedded idempotent SQL
	// for deployments predating the schema_migrations table.
	if err := db.RunMigrations(database); err != nil {
		slog.Warn("versioned migrations failed, falling back to embedded SQL", slog.Any("err", err))
		if err := db.Migrate(context.Background(), database); err != nil {
			slog.Error("failed to migrate db", slog.Any("err", err))
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Settings: Postgres-backed with a TTL cache and stale fallback.
	store := &settings.Store{DB: database, MentionName: strings.ToLower(cfg.BotName)}
	settingsCache := settings.NewCache(store, settings.Defaults(strings.ToLower(cfg.BotName)), settings.DefaultTTL)

	// Moderation: remote decision engine when configured, otherwise allow-all.
	var engine moderation.Engine = moderation.PermissiveEngine{}
	if cfg.ModerationURL != "" {
		engine = &moderation.RemoteEngine{BaseURL: cfg.ModerationURL}
	} else {
		slog.Info("MODERATION_URL not set; content moderation disabled")
	}

	schedule, err := moderation.NewSchedule(cfg.EscalationTimeouts, cfg.BanThreshold)
	if err != nil {
		slog.Error("invalid escalation schedule", slog.Any("err", err))
		os.Exit(1)
	}

	helix := &twitchapi.HelixClient{
		TokenSource: &twitchapi.TokenSource{ClientID: cfg.TwitchClientID, ClientSecret: cfg.TwitchClientSecret},
		ClientID:    cfg.TwitchClientID,
	}

	ircToken := resolveChatToken(ctx, cfg, database)
	bot := chat.New(cfg.TwitchBotUsername, ircToken, cfg.TwitchChannels)

	gate := &moderation.Gate{
		Engine:   engine,
		Store:    &moderation.PGViolationStore{DB: database},
		Exec:     &moderation.HelixExecutor{Client: helix, Notify: bot, BotLogin: strings.ToLower(cfg.TwitchBotUsername)},
		Schedule: schedule,
	}

	if cfg.OpenAIAPIKey == "" {
		slog.Warn("OPENAI_API_KEY not set; question answering will fail until configured")
	}
	invoker := generation.NewInvoker(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.BotPersona)

	sink := analytics.NewPGSink(ctx, database)
	defer sink.Close()

	pipe := pipeline.New(pipeline.Config{
		Settings:      settingsCache,
		Moderator:     gate,
		Generator:     invoker,
		Sender:        bot,
		Analytics:     sink,
		Counter:       sink,
		BotName:       cfg.BotName,
		SettingsSweep: settingsCache.Sweep,
	})
	bot.OnMessage(pipe)

	pipe.StartSweeper(ctx, cfg.SweepInterval)

	// Keep the persisted Twitch user token fresh when client creds are set.
	if cfg.TwitchClientID != "" && cfg.TwitchClientSecret != "" {
		oauth.StartRefresher(ctx, oauth.DBStore{DB: database}, "twitch",
			5*time.Minute, 15*time.Minute, oauth.TwitchRefresh(cfg.TwitchClientID, cfg.TwitchClientSecret))
	}

	if err := cfg.ValidateChatReady(); err != nil {
		slog.Warn("chat listener disabled", slog.Any("err", err))
	} else {
		go func() {
			if err := bot.Run(ctx); err != nil {
				slog.Error("chat listener exited", slog.Any("err", err))
				stop()
			}
		}()
	}

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	go func() {
		deps := server.Deps{DB: database, Pipeline: pipe, Channels: cfg.TwitchChannels, Version: "1.0.0"}
		if err := server.Start(ctx, deps, addr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down, draining in-flight answers")
	pipe.Drain()
}

// initLogging configures slog from LOG_LEVEL and LOG_FORMAT (text | json).
func initLogging() {
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	var handler slog.Handler
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
}

// resolveChatToken prefers the env-provided IRC token and falls back to the
// persisted Twitch user token kept fresh by the oauth refresher.
func resolveChatToken(ctx context.Context, cfg *config.Config, database *sql.DB) string {
	if cfg.TwitchOAuthToken != "" {
		return cfg.TwitchOAuthToken
	}
	rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	access, _, expiry, _, err := db.GetOAuthToken(rctx, database, "twitch")
	if err != nil {
		slog.Info("no stored twitch token; chat will need TWITCH_OAUTH_TOKEN", slog.Any("err", err))
		return ""
	}
	if !expiry.IsZero() && time.Until(expiry) < time.Minute {
		slog.Warn("stored twitch token is expired or about to expire")
	}
	return access
}
