// Package analytics records per-message pipeline outcomes and per-channel
// message counters. Everything here is best-effort: a slow or failing sink
// must never block or fail the message pipeline, so writes are buffered and
// drops are counted rather than propagated.
package analytics

import "time"

// MessageType classifies what the pipeline did with an inbound message.
type MessageType string

const (
	TypeHelp     MessageType = "help"
	TypeCommands MessageType = "commands"
	TypeQuestion MessageType = "question"
)

// ErrorType classifies a failed pipeline outcome.
const (
	ErrorAPIError = "api_error"
)

// Event is one pipeline outcome.
type Event struct {
	Channel      string
	UserID       string
	MessageType  MessageType
	ProcessingMs int64
	GenerationMs int64
	TotalMs      int64
	CacheHit     bool
	Success      bool
	ErrorType    string
	Flagged      bool
	At           time.Time
}

// Sink consumes events fire-and-forget.
type Sink interface {
	Record(ev Event)
}

// Counter increments a per-channel message counter, best-effort.
type Counter interface {
	IncrementMessageCount(channel string)
}

// Discard is a no-op Sink and Counter for tests and disabled analytics.
type Discard struct{}

func (Discard) Record(Event)                  {}
func (Discard) IncrementMessageCount(string) {}
