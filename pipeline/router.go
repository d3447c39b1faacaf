package pipeline

import (
	"strings"

	"github.com/MasterofGames77/game-ai-assistant/settings"
)

// Route is the branch the command router picked for an inbound message.
type Route int

const (
	// RouteIgnored: not addressed to the bot; no reply, no further work.
	RouteIgnored Route = iota
	// RouteHelp: static help response.
	RouteHelp
	// RouteCommands: static command-list response.
	RouteCommands
	// RouteQuestion: bot-directed question; proceeds to the full pipeline.
	RouteQuestion
)

func (r Route) String() string {
	switch r {
	case RouteHelp:
		return "help"
	case RouteCommands:
		return "commands"
	case RouteQuestion:
		return "question"
	default:
		return "ignored"
	}
}

// Classify decides what an inbound text is asking for. Order: help command,
// commands-list command, bot-directed question (mention or prefix, with the
// trigger stripped), otherwise ignored. A question that is empty after
// stripping routes to help: a bare mention is a request for help.
func Classify(text string, st settings.ChannelSettings) (Route, string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return RouteIgnored, ""
	}
	lower := strings.ToLower(trimmed)

	for _, prefix := range st.CommandPrefixes {
		p := strings.ToLower(prefix)
		switch {
		case lower == p+" help" || lower == p+"help" || lower == "!help":
			return RouteHelp, ""
		case lower == p+" commands" || lower == p+"commands" || lower == "!commands":
			return RouteCommands, ""
		}
	}

	// Prefix-directed question: "!wingman what is ...".
	for _, prefix := range st.CommandPrefixes {
		p := strings.ToLower(prefix)
		if strings.HasPrefix(lower, p) {
			q := strings.TrimSpace(trimmed[len(p):])
			if q == "" {
				return RouteHelp, ""
			}
			return RouteQuestion, q
		}
	}

	// Mention-directed question: "@botname what is ..." or "botname: ...".
	if st.MentionEnabled && st.MentionName != "" {
		name := strings.ToLower(st.MentionName)
		for _, token := range []string{"@" + name, name} {
			if !strings.HasPrefix(lower, token) {
				continue
			}
			rest := trimmed[len(token):]
			// Require a separator after the name so "wingmanner..." isn't a mention.
			if rest != "" && !strings.ContainsAny(rest[:1], ":, \t") {
				continue
			}
			rest = strings.TrimSpace(strings.TrimLeft(rest, ":, \t"))
			if rest == "" {
				return RouteHelp, ""
			}
			return RouteQuestion, rest
		}
	}

	return RouteIgnored, ""
}
