package moderation

import (
	"testing"
	"time"
)

func TestScheduleLadder(t *testing.T) {
	s, err := NewSchedule([]time.Duration{10 * time.Minute, time.Hour, 24 * time.Hour}, 5)
	if err != nil {
		t.Fatalf("NewSchedule: %v", err)
	}

	want := []Tier{
		{Action: ActionWarning},
		{Action: ActionTimeout, Duration: 10 * time.Minute},
		{Action: ActionTimeout, Duration: time.Hour},
		{Action: ActionTimeout, Duration: 24 * time.Hour},
		{Action: ActionBan},
	}
	if s.Len() != len(want) {
		t.Fatalf("Len = %d, want %d", s.Len(), len(want))
	}
	for i, w := range want {
		got := s.ForCount(i + 1)
		if got != w {
			t.Errorf("ForCount(%d) = %+v, want %+v", i+1, got, w)
		}
	}

	// Past the ladder stays banned.
	if got := s.ForCount(12); got.Action != ActionBan {
		t.Errorf("ForCount(12) = %+v, want ban", got)
	}
	if got := s.ForCount(0); got.Action != ActionWarning {
		t.Errorf("ForCount(0) = %+v, want warning", got)
	}
}

func TestScheduleMonotonicSeverity(t *testing.T) {
	s, err := NewSchedule([]time.Duration{time.Minute, 10 * time.Minute}, 4)
	if err != nil {
		t.Fatalf("NewSchedule: %v", err)
	}
	prev := -1
	banSeen := false
	for i := 1; i <= s.Len()+3; i++ {
		tier := s.ForCount(i)
		sev := tier.Action.severity()
		if sev < prev {
			t.Errorf("severity decreased at violation %d: %s", i, tier.Action)
		}
		prev = sev
		if tier.Action == ActionBan && i <= s.Len() && !banSeen {
			banSeen = true
			if i != 4 {
				t.Errorf("ban reached at violation %d, want 4", i)
			}
		}
	}
	if !banSeen {
		t.Error("ban tier never reached")
	}
}

func TestScheduleBanThresholdTruncates(t *testing.T) {
	// Threshold below the timeout count cuts the ladder short.
	s, err := NewSchedule([]time.Duration{time.Minute, time.Hour, 24 * time.Hour}, 2)
	if err != nil {
		t.Fatalf("NewSchedule: %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
	if s.ForCount(1).Action != ActionWarning {
		t.Errorf("first tier = %s", s.ForCount(1).Action)
	}
	if s.ForCount(2).Action != ActionBan {
		t.Errorf("second tier = %s", s.ForCount(2).Action)
	}
}

func TestScheduleRejectsBadInput(t *testing.T) {
	if _, err := NewSchedule(nil, 0); err == nil {
		t.Error("threshold 0 accepted")
	}
	if _, err := NewSchedule([]time.Duration{-time.Second}, 5); err == nil {
		t.Error("negative timeout accepted")
	}
}
