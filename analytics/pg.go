package analytics

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"github.com/MasterofGames77/game-ai-assistant/telemetry"
)

const defaultBuffer = 256

// PGSink writes events to the analytics_events table from a single background
// worker. Record and IncrementMessageCount never block: when a buffer is full
// the item is dropped and counted.
type PGSink struct {
	db     *sql.DB
	events chan Event
	counts chan string
	wg     sync.WaitGroup
	once   sync.Once
}

var _ Sink = (*PGSink)(nil)
var _ Counter = (*PGSink)(nil)

// NewPGSink starts the background writer; call Close during shutdown to
// drain buffered events.
func NewPGSink(ctx context.Context, db *sql.DB) *PGSink {
	s := &PGSink{
		db:     db,
		events: make(chan Event, defaultBuffer),
		counts: make(chan string, defaultBuffer),
	}
	s.wg.Add(1)
	go s.run(ctx)
	return s
}

// Record queues an event. Never blocks, never fails the caller.
func (s *PGSink) Record(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	select {
	case s.events <- ev:
	default:
		telemetry.Inc(telemetry.AnalyticsDropped)
		slog.Debug("analytics buffer full, event dropped", slog.String("channel", ev.Channel))
	}
}

// IncrementMessageCount queues a counter bump for the channel. Never blocks;
// the worker does the write and failures are logged and swallowed.
func (s *PGSink) IncrementMessageCount(channel string) {
	select {
	case s.counts <- channel:
	default:
		telemetry.Inc(telemetry.AnalyticsDropped)
		slog.Debug("analytics buffer full, counter increment dropped", slog.String("channel", channel))
	}
}

func (s *PGSink) run(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			// Drain whatever is buffered before exiting.
			for {
				select {
				case ev := <-s.events:
					s.insert(ev)
				case ch := <-s.counts:
					s.bump(ch)
				default:
					return
				}
			}
		case ev := <-s.events:
			s.insert(ev)
		case ch := <-s.counts:
			s.bump(ch)
		}
	}
}

func (s *PGSink) bump(channel string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO channel_counters (channel, message_count, updated_at)
		VALUES ($1, 1, NOW())
		ON CONFLICT (channel) DO UPDATE SET
			message_count = channel_counters.message_count + 1,
			updated_at = NOW()`, channel)
	if err != nil {
		slog.Warn("channel counter increment failed", slog.String("channel", channel), slog.Any("err", err))
	}
}

func (s *PGSink) insert(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analytics_events
			(channel, user_id, message_type, processing_ms, generation_ms, total_ms, cache_hit, success, error_type, flagged, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		ev.Channel, ev.UserID, string(ev.MessageType), ev.ProcessingMs, ev.GenerationMs,
		ev.TotalMs, ev.CacheHit, ev.Success, ev.ErrorType, ev.Flagged, ev.At)
	if err != nil {
		slog.Warn("analytics insert failed", slog.String("channel", ev.Channel), slog.Any("err", err))
	}
}

// Close waits for the worker to finish. Call after canceling the context
// passed to NewPGSink.
func (s *PGSink) Close() {
	s.once.Do(func() { s.wg.Wait() })
}
