// Package dates resolves the configured date rules into the calendar
// days to probe.
package dates

import (
	"log/slog"
	"sort"
	"time"

	"courtwatch/lib/timezone"
)

type Rule struct {
	// Explicit dates, formatted as YYYY-MM-DD.
	Explicit []string `json:"explicit"`
	// NextDays adds today and the following NextDays-1 days.
	NextDays int `json:"next_days"`
	// When either is set, generated days are filtered to weekdays and/or
	// weekends. Explicit dates are never filtered.
	Weekdays bool `json:"weekdays"`
	Weekends bool `json:"weekends"`
}

func isWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}

func (r Rule) keep(t time.Time) bool {
	if !r.Weekdays && !r.Weekends {
		return true
	}
	if isWeekend(t) {
		return r.Weekends
	}
	return r.Weekdays
}

// Resolve returns sorted, unique dates that are not in the past relative
// to now (in the venues' timezone). Unparsable explicit dates are
// dropped with a warning.
func Resolve(rule Rule, now time.Time) []string {
	today := timezone.StartOfDay(now)
	set := map[string]struct{}{}

	for _, raw := range rule.Explicit {
		day, err := time.ParseInLocation(time.DateOnly, raw, timezone.Location)
		if err != nil {
			slog.Warn("ignoring invalid date", "date", raw, "err", err)
			continue
		}
		if day.Before(today) {
			slog.Info("ignoring past date", "date", raw)
			continue
		}
		set[day.Format(time.DateOnly)] = struct{}{}
	}

	for i := 0; i < rule.NextDays; i++ {
		day := today.AddDate(0, 0, i)
		if rule.keep(day) {
			set[day.Format(time.DateOnly)] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	// YYYY-MM-DD sorts chronologically as a string
	sort.Strings(out)
	return out
}
