// Package generation calls the generative backend (any OpenAI-compatible
// chat-completion API) with bounded retry and assembles the system prompt
// from the bot persona and per-channel overrides.
package generation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/MasterofGames77/game-ai-assistant/settings"
)

const maxAttempts = 3

// Invoker wraps the completion client with retry/backoff and prompt assembly.
type Invoker struct {
	client  *openai.Client
	model   string
	persona string

	// backoff returns the sleep before attempt n (1-based, first retry is
	// after attempt 1). Overridable in tests.
	backoff func(attempt int) time.Duration
}

// NewInvoker builds an Invoker. baseURL may be empty for the public OpenAI
// endpoint; persona is the static bot identity/knowledge preamble.
func NewInvoker(apiKey, baseURL, model, persona string) *Invoker {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Invoker{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		persona: persona,
		backoff: func(attempt int) time.Duration {
			// 1s, 2s, 4s
			return time.Duration(1<<(attempt-1)) * time.Second
		},
	}
}

// BuildSystemPrompt assembles the system prompt: persona, then the channel's
// custom system message when set, then a length hint so the model aims for
// answers that survive chunking intact.
func (inv *Invoker) BuildSystemPrompt(st settings.ChannelSettings) string {
	var b strings.Builder
	b.WriteString(inv.persona)
	if st.CustomSystemMessage != "" {
		b.WriteString("\n\n")
		b.WriteString(st.CustomSystemMessage)
	}
	fmt.Fprintf(&b, "\n\nKeep responses under %d characters when possible.", st.MaxMessageLength)
	return b.String()
}

// Generate answers a question, retrying transient failures up to 3 attempts
// with exponential backoff (1s, 2s, 4s). Fatal errors and context
// cancellation stop immediately; the last error is surfaced when every
// attempt fails.
func (inv *Invoker) Generate(ctx context.Context, question string, st settings.ChannelSettings) (string, error) {
	sysPrompt := inv.BuildSystemPrompt(st)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := inv.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: inv.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: sysPrompt},
				{Role: openai.ChatMessageRoleUser, Content: question},
			},
		})
		if err == nil {
			if len(resp.Choices) == 0 {
				return "", fmt.Errorf("generation returned no choices")
			}
			return strings.TrimSpace(resp.Choices[0].Message.Content), nil
		}
		lastErr = err
		if !IsRetryable(err) {
			slog.Warn("generation failed permanently", slog.Int("attempt", attempt), slog.Any("err", err))
			return "", fmt.Errorf("generation failed: %w", err)
		}
		if attempt == maxAttempts {
			break
		}
		wait := inv.backoff(attempt)
		slog.Debug("generation attempt failed, backing off",
			slog.Int("attempt", attempt), slog.Duration("wait", wait), slog.Any("err", err))
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
	return "", fmt.Errorf("generation failed after %d attempts: %w", maxAttempts, lastErr)
}
