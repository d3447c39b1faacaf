package pipeline

import (
	"context"
	"log/slog"
	"time"
)

// responseCacheMaxAge is the absolute bound on response-cache entries,
// regardless of per-channel TTLs, so one channel's very long TTL cannot grow
// memory without bound.
const responseCacheMaxAge = time.Hour

// rateWindowGrace is how long an expired rate window lingers before the
// sweeper reclaims it.
const rateWindowGrace = 10 * time.Minute

// StartSweeper periodically evicts expired state from every pipeline map: the
// dedup filter, rate windows, the response cache, the settings cache, and
// idle serializer chains. A panicking pass is logged and the next tick still
// runs.
func (p *Pipeline) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.sweepOnce()
			}
		}
	}()
	slog.Info("maintenance sweeper started", slog.Duration("interval", interval))
}

func (p *Pipeline) sweepOnce() {
	passes := []struct {
		name string
		fn   func()
	}{
		{"dedup", p.dedup.Sweep},
		{"rate_windows", func() { p.limiter.Sweep(rateWindowGrace) }},
		{"response_cache", func() { p.responses.Sweep(responseCacheMaxAge) }},
		{"settings_cache", p.settingsSweep},
		{"serializer", p.serializer.Sweep},
	}
	for _, pass := range passes {
		runSweep(pass.name, pass.fn)
	}
	p.publishGauges()
}

// runSweep isolates one eviction pass so a failure can't abort the rest.
func runSweep(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("sweep pass failed", slog.String("pass", name), slog.Any("panic", r))
		}
	}()
	fn()
}
