package moderation

import (
	"fmt"
	"time"
)

// Tier is one step of the escalation ladder.
type Tier struct {
	Action   Action
	Duration time.Duration // timeout length; zero for warning and ban
}

// Schedule maps a user's violation count (1-based) to a Tier. The ladder is
// warning → timeouts of increasing length → permanent ban, and must be
// monotonically non-decreasing in severity.
type Schedule struct {
	tiers []Tier
}

// NewSchedule builds the ladder from timeout durations and the ban threshold:
// violation 1 is a warning, violations 2..1+len(timeouts) are timeouts, and
// violation banThreshold (and beyond) is a permanent ban.
func NewSchedule(timeouts []time.Duration, banThreshold int) (*Schedule, error) {
	if banThreshold < 1 {
		return nil, fmt.Errorf("ban threshold must be >= 1, got %d", banThreshold)
	}
	var tiers []Tier
	tiers = append(tiers, Tier{Action: ActionWarning})
	for _, d := range timeouts {
		if d <= 0 {
			return nil, fmt.Errorf("timeout durations must be positive, got %v", d)
		}
		tiers = append(tiers, Tier{Action: ActionTimeout, Duration: d})
	}
	// Truncate the ladder at the ban threshold; anything at or past it bans.
	if banThreshold <= len(tiers) {
		tiers = tiers[:banThreshold-1]
	}
	tiers = append(tiers, Tier{Action: ActionBan})

	s := &Schedule{tiers: tiers}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// validate enforces non-decreasing severity and non-decreasing timeout lengths.
func (s *Schedule) validate() error {
	for i := 1; i < len(s.tiers); i++ {
		prev, cur := s.tiers[i-1], s.tiers[i]
		if cur.Action.severity() < prev.Action.severity() {
			return fmt.Errorf("tier %d (%s) is less severe than tier %d (%s)", i+1, cur.Action, i, prev.Action)
		}
		if cur.Action == ActionTimeout && prev.Action == ActionTimeout && cur.Duration < prev.Duration {
			return fmt.Errorf("tier %d timeout %v shorter than tier %d timeout %v", i+1, cur.Duration, i, prev.Duration)
		}
	}
	return nil
}

// ForCount returns the tier for the given violation count (1-based). Counts
// past the end of the ladder stay at the final tier (permanent ban).
func (s *Schedule) ForCount(count int) Tier {
	if count < 1 {
		count = 1
	}
	if count > len(s.tiers) {
		count = len(s.tiers)
	}
	return s.tiers[count-1]
}

// Len reports the number of tiers (the last one is the ban).
func (s *Schedule) Len() int { return len(s.tiers) }
