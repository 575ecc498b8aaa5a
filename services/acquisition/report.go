package acquisition

import (
	"time"

	"courtwatch/lib/slots"
)

type Outcome int

const (
	// outcomePending marks a target nothing has finished yet.
	outcomePending Outcome = iota
	Succeeded
	FailedRecoverable
	FailedFatal
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "SUCCEEDED"
	case FailedRecoverable:
		return "FAILED_RECOVERABLE"
	case FailedFatal:
		return "FAILED_FATAL"
	}
	return "PENDING"
}

// Path is the access path that produced a result.
type Path int

const (
	PathNone Path = iota
	PathAPI
	PathBrowser
)

func (p Path) String() string {
	switch p {
	case PathAPI:
		return "api"
	case PathBrowser:
		return "browser"
	}
	return "none"
}

// Result is the outcome of one venue and date.
type Result struct {
	Target     slots.Target
	Slots      []slots.Slot
	Outcome    Outcome
	Path       Path
	Diagnostic string
}

type RunStatus int

const (
	StatusReported RunStatus = iota
	// StatusNoReport means the run produced nothing worth reporting:
	// no target succeeded and either login failed or the run ran out of
	// time.
	StatusNoReport
)

func (s RunStatus) String() string {
	if s == StatusNoReport {
		return "NO_REPORT"
	}
	return "REPORTED"
}

type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	// Results holds one entry per target in venue-major order.
	Results          []Result
	Status           RunStatus
	DeadlineExceeded bool
	LoginFailed      bool
}

// Slots flattens the slots of every succeeded target, keeping target
// order.
func (r Report) Slots() []slots.Slot {
	var out []slots.Slot
	for _, result := range r.Results {
		if result.Outcome == Succeeded {
			out = append(out, result.Slots...)
		}
	}
	return out
}

func (r Report) Count(outcome Outcome) int {
	n := 0
	for _, result := range r.Results {
		if result.Outcome == outcome {
			n++
		}
	}
	return n
}

// Paths lists the distinct access paths that served a target.
func (r Report) Paths() []Path {
	seen := map[Path]bool{}
	var out []Path
	for _, result := range r.Results {
		if result.Outcome != Succeeded || seen[result.Path] {
			continue
		}
		seen[result.Path] = true
		out = append(out, result.Path)
	}
	return out
}
