// Package slots holds the canonical court-slot model shared by both
// acquisition paths, and the classifier that turns a captured
// presentation into an availability state.
package slots

import (
	"fmt"
	"strings"
)

type Venue struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Target is one unit of acquisition work: a venue on a calendar day.
type Target struct {
	Venue Venue
	// Date is formatted as YYYY-MM-DD.
	Date string
}

func (t Target) String() string {
	return fmt.Sprintf("%s@%s", t.Venue.Name, t.Date)
}

// Presentation is whatever styling/attributes the source exposed for a
// slot. The "style" key carries the inline style string.
type Presentation map[string]any

// RawSlot is what a prober captured before classification.
type RawSlot struct {
	Target       Target
	Court        string
	TimeRange    string
	Presentation Presentation
}

type State int

const (
	StateUnknown State = iota
	StateAvailable
	StateBooked
)

func (s State) String() string {
	switch s {
	case StateAvailable:
		return "AVAILABLE"
	case StateBooked:
		return "BOOKED"
	default:
		return "UNKNOWN"
	}
}

type Slot struct {
	Venue     Venue
	Date      string
	Court     string
	TimeRange string
	State     State
}

// Key identifies a slot across runs.
func (s Slot) Key() string {
	return fmt.Sprintf("%d|%s|%s|%s", s.Venue.ID, s.Date, s.Court, s.TimeRange)
}

// NormalizeTimeRange renders "18:00 - 19:00" and "18:00-19:00" the same.
func NormalizeTimeRange(label string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(label, " - ", "-")), "")
}

// StartTime is the part of a time range before the dash.
func StartTime(timeRange string) string {
	start, _, _ := strings.Cut(NormalizeTimeRange(timeRange), "-")
	return start
}
