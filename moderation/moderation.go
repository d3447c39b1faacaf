// Package moderation gates chat content before and after generation. The
// actual allow/deny decision comes from an external engine; this package owns
// ban checks, violation records, the escalation schedule, and executing the
// resulting chat actions (warning, timeout, ban).
package moderation

import (
	"context"
	"time"
)

// Action is what happens to a user after a flagged message.
type Action string

const (
	ActionNone    Action = "none"
	ActionWarning Action = "warning"
	ActionTimeout Action = "timeout"
	ActionBan     Action = "ban"
)

// severity orders actions for the monotonicity check on escalation tiers.
func (a Action) severity() int {
	switch a {
	case ActionNone:
		return 0
	case ActionWarning:
		return 1
	case ActionTimeout:
		return 2
	case ActionBan:
		return 3
	}
	return 0
}

// Verdict is the external engine's decision about a piece of text.
// Consumed as-is, never mutated.
type Verdict struct {
	Allowed        bool     `json:"allowed"`
	OffendingWords []string `json:"offendingWords,omitempty"`
	Action         Action   `json:"action,omitempty"`
	Reason         string   `json:"reason,omitempty"`
}

// BanStatus reports whether a (user, channel) pair is currently banned.
type BanStatus struct {
	IsBanned bool   `json:"isBanned"`
	Reason   string `json:"reason,omitempty"`
}

// Engine is the external content-decision collaborator.
type Engine interface {
	CheckText(ctx context.Context, text, userID, channel string) (Verdict, error)
	CheckBanStatus(ctx context.Context, userID, channel string) (BanStatus, error)
}

// ViolationStore persists per-user violation history used to pick a tier.
type ViolationStore interface {
	CountViolations(ctx context.Context, channel, userID string) (int, error)
	RecordViolation(ctx context.Context, channel, userID string, words []string, reason string, action Action) error
}

// ActionExecutor carries out a tier's action against the chat platform.
// displayName is the user's chat name (for in-channel warnings); userID is
// the platform user id (for timeout/ban API calls).
type ActionExecutor interface {
	Warn(ctx context.Context, channel, displayName, reason string) error
	Timeout(ctx context.Context, channel, userID string, d time.Duration, reason string) error
	Ban(ctx context.Context, channel, userID, reason string) error
}
