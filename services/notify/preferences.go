package notify

import (
	"strings"

	"courtwatch/lib/slots"
)

// Preferences narrows which available slots are worth a notification.
// Empty lists match everything.
type Preferences struct {
	// Times holds start times ("18:00") or start time windows
	// ("18:00-21:00", end exclusive).
	Times  []string `json:"times"`
	Courts []string `json:"courts"`
	// MaxPerRun caps how many new slots one notification lists.
	MaxPerRun int `json:"max_per_run"`
}

func (p Preferences) matchTime(s slots.Slot) bool {
	if len(p.Times) == 0 {
		return true
	}
	start := slots.StartTime(s.TimeRange)
	for _, t := range p.Times {
		from, to, isWindow := strings.Cut(slots.NormalizeTimeRange(t), "-")
		if !isWindow && start == from {
			return true
		}
		// HH:MM compares correctly as a string
		if isWindow && start >= from && start < to {
			return true
		}
	}
	return false
}

func (p Preferences) matchCourt(s slots.Slot) bool {
	if len(p.Courts) == 0 {
		return true
	}
	for _, c := range p.Courts {
		c = strings.TrimSpace(c)
		if strings.EqualFold(c, s.Court) || strings.EqualFold("Court "+c, s.Court) {
			return true
		}
	}
	return false
}

func (p Preferences) Match(s slots.Slot) bool {
	return p.matchTime(s) && p.matchCourt(s)
}

func (p Preferences) Filter(in []slots.Slot) []slots.Slot {
	var out []slots.Slot
	for _, s := range in {
		if p.Match(s) {
			out = append(out, s)
		}
	}
	return out
}
