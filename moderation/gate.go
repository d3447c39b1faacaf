package moderation

import (
	"context"
	"log/slog"

	"github.com/MasterofGames77/game-ai-assistant/telemetry"
)

// SafeFallback replaces a flagged model answer. The model's output is never
// attributed to the asking user, so no violation is recorded for it.
const SafeFallback = "Sorry, I can't share that answer. Try asking in a different way!"

// Gate is the pipeline's entry to moderation: ban checks before any work,
// a pre-check on the user's question, and a post-check on the generated
// answer. The content decision itself comes from the external Engine.
type Gate struct {
	Engine   Engine
	Store    ViolationStore
	Exec     ActionExecutor
	Schedule *Schedule
}

// IsBanned reports whether the user is currently banned in the channel.
// Engine failures degrade to "not banned": losing a ban check should never
// silence legitimate users.
func (g *Gate) IsBanned(ctx context.Context, channel, userID string) bool {
	status, err := g.Engine.CheckBanStatus(ctx, userID, channel)
	if err != nil {
		slog.Warn("ban status check failed", slog.String("channel", channel), slog.String("user", userID), slog.Any("err", err))
		return false
	}
	return status.IsBanned
}

// PreCheck runs the user's question through the engine. When the text is
// flagged it records the violation, applies the scheduled escalation tier,
// and returns false (do not generate). Engine failures fail open.
func (g *Gate) PreCheck(ctx context.Context, channel, userID, displayName, text string) bool {
	verdict, err := g.Engine.CheckText(ctx, text, userID, channel)
	if err != nil {
		slog.Warn("moderation pre-check failed, allowing", slog.String("channel", channel), slog.Any("err", err))
		return true
	}
	if verdict.Allowed {
		return true
	}

	count, err := g.Store.CountViolations(ctx, channel, userID)
	if err != nil {
		slog.Warn("violation count lookup failed, treating as first violation", slog.Any("err", err))
		count = 0
	}
	count++ // this violation
	tier := g.Schedule.ForCount(count)

	if err := g.Store.RecordViolation(ctx, channel, userID, verdict.OffendingWords, verdict.Reason, tier.Action); err != nil {
		slog.Warn("violation record failed", slog.Any("err", err))
	}

	log := slog.With(
		slog.String("channel", channel),
		slog.String("user", userID),
		slog.Int("violation_count", count),
		slog.String("action", string(tier.Action)),
	)
	switch tier.Action {
	case ActionWarning:
		if err := g.Exec.Warn(ctx, channel, displayName, verdict.Reason); err != nil {
			log.Warn("warn action failed", slog.Any("err", err))
		}
	case ActionTimeout:
		if err := g.Exec.Timeout(ctx, channel, userID, tier.Duration, verdict.Reason); err != nil {
			log.Warn("timeout action failed", slog.Any("err", err))
		}
	case ActionBan:
		if err := g.Exec.Ban(ctx, channel, userID, verdict.Reason); err != nil {
			log.Warn("ban action failed", slog.Any("err", err))
		} else {
			telemetry.Inc(telemetry.ModerationBans)
		}
	}
	log.Info("moderation action applied")
	return false
}

// PostCheck screens a generated answer. Flagged output is replaced with the
// safe fallback (second return true); the user gets no violation since the
// text is model output, not theirs.
func (g *Gate) PostCheck(ctx context.Context, channel, answer string) (string, bool) {
	verdict, err := g.Engine.CheckText(ctx, answer, "", channel)
	if err != nil {
		slog.Warn("moderation post-check failed, allowing", slog.String("channel", channel), slog.Any("err", err))
		return answer, false
	}
	if verdict.Allowed {
		return answer, false
	}
	slog.Info("generated answer flagged, substituting fallback", slog.String("channel", channel), slog.String("reason", verdict.Reason))
	return SafeFallback, true
}
