package slots

import (
	"regexp"
)

var (
	redCue        = regexp.MustCompile(`(?i)color\s*:\s*red`)
	notAllowedCue = regexp.MustCompile(`(?i)cursor\s*:\s*not-allowed`)
)

// ClassifyPresentation decides the state of a slot from its captured
// presentation. A nil presentation means nothing was captured and is
// UNKNOWN, a presentation without a style means the slot carries no
// booked styling and is AVAILABLE. BOOKED requires both the red colour
// cue and the not-allowed cursor cue.
func ClassifyPresentation(p Presentation) State {
	if p == nil {
		return StateUnknown
	}
	raw, ok := p["style"]
	if !ok {
		return StateAvailable
	}
	style, ok := raw.(string)
	if !ok {
		return StateUnknown
	}
	if redCue.MatchString(style) && notAllowedCue.MatchString(style) {
		return StateBooked
	}
	return StateAvailable
}

func Classify(raw RawSlot) Slot {
	return Slot{
		Venue:     raw.Target.Venue,
		Date:      raw.Target.Date,
		Court:     raw.Court,
		TimeRange: NormalizeTimeRange(raw.TimeRange),
		State:     ClassifyPresentation(raw.Presentation),
	}
}

// ClassifyAll classifies raw slots keeping their order.
func ClassifyAll(raw []RawSlot) []Slot {
	out := make([]Slot, len(raw))
	for i, r := range raw {
		out[i] = Classify(r)
	}
	return out
}
