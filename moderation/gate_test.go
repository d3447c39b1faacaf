package moderation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/MasterofGames77/game-ai-assistant/telemetry"
)

type fakeEngine struct {
	verdict Verdict
	banned  bool
	err     error
}

func (f *fakeEngine) CheckText(ctx context.Context, text, userID, channel string) (Verdict, error) {
	if f.err != nil {
		return Verdict{}, f.err
	}
	return f.verdict, nil
}

func (f *fakeEngine) CheckBanStatus(ctx context.Context, userID, channel string) (BanStatus, error) {
	if f.err != nil {
		return BanStatus{}, f.err
	}
	return BanStatus{IsBanned: f.banned}, nil
}

type fakeStore struct {
	count    int
	recorded []Action
	countErr error
}

func (f *fakeStore) CountViolations(ctx context.Context, channel, userID string) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.count, nil
}

func (f *fakeStore) RecordViolation(ctx context.Context, channel, userID string, words []string, reason string, action Action) error {
	f.recorded = append(f.recorded, action)
	f.count++
	return nil
}

type fakeExec struct {
	warns, timeouts, bans int
	lastTimeout           time.Duration
}

func (f *fakeExec) Warn(ctx context.Context, channel, displayName, reason string) error {
	f.warns++
	return nil
}

func (f *fakeExec) Timeout(ctx context.Context, channel, userID string, d time.Duration, reason string) error {
	f.timeouts++
	f.lastTimeout = d
	return nil
}

func (f *fakeExec) Ban(ctx context.Context, channel, userID, reason string) error {
	f.bans++
	return nil
}

func newGate(eng Engine, store ViolationStore, exec ActionExecutor) *Gate {
	sched, err := NewSchedule([]time.Duration{10 * time.Minute, time.Hour}, 4)
	if err != nil {
		panic(err)
	}
	return &Gate{Engine: eng, Store: store, Exec: exec, Schedule: sched}
}

func TestPreCheckAllowed(t *testing.T) {
	store := &fakeStore{}
	exec := &fakeExec{}
	g := newGate(&fakeEngine{verdict: Verdict{Allowed: true}}, store, exec)

	if !g.PreCheck(context.Background(), "chan", "u1", "User1", "what is the best build?") {
		t.Fatal("allowed text blocked")
	}
	if len(store.recorded) != 0 || exec.warns+exec.timeouts+exec.bans != 0 {
		t.Error("side effects on allowed text")
	}
}

func TestPreCheckEscalation(t *testing.T) {
	eng := &fakeEngine{verdict: Verdict{Allowed: false, Reason: "slur", OffendingWords: []string{"x"}}}
	store := &fakeStore{}
	exec := &fakeExec{}
	g := newGate(eng, store, exec)

	// Violations 1..5: warning, 10m timeout, 1h timeout, ban, ban.
	for i := 0; i < 5; i++ {
		if g.PreCheck(context.Background(), "chan", "u1", "User1", "bad text") {
			t.Fatalf("flagged text allowed on violation %d", i+1)
		}
	}
	if exec.warns != 1 {
		t.Errorf("warns = %d, want 1", exec.warns)
	}
	if exec.timeouts != 2 {
		t.Errorf("timeouts = %d, want 2", exec.timeouts)
	}
	if exec.lastTimeout != time.Hour {
		t.Errorf("last timeout = %v, want 1h", exec.lastTimeout)
	}
	if exec.bans != 2 {
		t.Errorf("bans = %d, want 2", exec.bans)
	}
	wantActions := []Action{ActionWarning, ActionTimeout, ActionTimeout, ActionBan, ActionBan}
	for i, w := range wantActions {
		if store.recorded[i] != w {
			t.Errorf("violation %d recorded as %s, want %s", i+1, store.recorded[i], w)
		}
	}
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestPreCheckBanIncrementsMetric(t *testing.T) {
	telemetry.Init()
	eng := &fakeEngine{verdict: Verdict{Allowed: false, Reason: "slur"}}
	store := &fakeStore{count: 3} // next violation is the 4th: ban tier
	exec := &fakeExec{}
	g := newGate(eng, store, exec)

	before := counterValue(t, telemetry.ModerationBans)
	if g.PreCheck(context.Background(), "chan", "u1", "User1", "bad text") {
		t.Fatal("flagged text allowed")
	}
	if exec.bans != 1 {
		t.Fatalf("bans = %d, want 1", exec.bans)
	}
	if got := counterValue(t, telemetry.ModerationBans); got != before+1 {
		t.Errorf("ban counter = %v, want %v", got, before+1)
	}

	// A warning-tier violation must not touch the ban counter.
	store = &fakeStore{}
	g = newGate(eng, store, &fakeExec{})
	before = counterValue(t, telemetry.ModerationBans)
	g.PreCheck(context.Background(), "chan", "u2", "User2", "bad text")
	if got := counterValue(t, telemetry.ModerationBans); got != before {
		t.Errorf("ban counter moved on warning tier: %v -> %v", before, got)
	}
}

func TestPreCheckEngineFailureFailsOpen(t *testing.T) {
	g := newGate(&fakeEngine{err: errors.New("engine down")}, &fakeStore{}, &fakeExec{})
	if !g.PreCheck(context.Background(), "chan", "u1", "User1", "anything") {
		t.Error("engine failure should fail open")
	}
}

func TestIsBanned(t *testing.T) {
	g := newGate(&fakeEngine{banned: true}, &fakeStore{}, &fakeExec{})
	if !g.IsBanned(context.Background(), "chan", "u1") {
		t.Error("banned user reported as not banned")
	}
	g = newGate(&fakeEngine{err: errors.New("down")}, &fakeStore{}, &fakeExec{})
	if g.IsBanned(context.Background(), "chan", "u1") {
		t.Error("engine failure should report not banned")
	}
}

func TestPostCheckSubstitutesFallback(t *testing.T) {
	store := &fakeStore{}
	g := newGate(&fakeEngine{verdict: Verdict{Allowed: false, Reason: "model slipped"}}, store, &fakeExec{})

	got, flagged := g.PostCheck(context.Background(), "chan", "something the model said")
	if got != SafeFallback || !flagged {
		t.Errorf("PostCheck = (%q, %v), want fallback, true", got, flagged)
	}
	// Model output is not the user's fault: no violation recorded.
	if len(store.recorded) != 0 {
		t.Errorf("post-check recorded %d violations, want 0", len(store.recorded))
	}

	g.Engine = &fakeEngine{verdict: Verdict{Allowed: true}}
	if got, flagged := g.PostCheck(context.Background(), "chan", "clean answer"); got != "clean answer" || flagged {
		t.Errorf("clean answer altered: (%q, %v)", got, flagged)
	}
}
