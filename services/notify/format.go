package notify

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"courtwatch/lib/slots"
	"courtwatch/lib/timezone"
	"courtwatch/services/acquisition"

	"github.com/jedib0t/go-pretty/v6/table"
)

const DefaultMaxListed = 10

type FormatOptions struct {
	BookingURL string
	// MaxListed caps the new slots listed by name, the rest are counted.
	MaxListed int
}

func formatDate(date string) string {
	t, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return date
	}
	return t.Format("Mon 02 Jan")
}

func mark(state slots.State) string {
	switch state {
	case slots.StateAvailable:
		return "✓"
	case slots.StateBooked:
		return "✗"
	}
	return "?"
}

// Grid renders one venue day as courts by start time.
func Grid(found []slots.Slot) string {
	var starts []string
	var courts []string
	cells := map[string]map[string]slots.State{}
	for _, s := range found {
		start := slots.StartTime(s.TimeRange)
		if _, ok := cells[s.Court]; !ok {
			cells[s.Court] = map[string]slots.State{}
			courts = append(courts, s.Court)
		}
		if !contains(starts, start) {
			starts = append(starts, start)
		}
		cells[s.Court][start] = s.State
	}
	sort.Strings(starts)

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	header := table.Row{"Court"}
	for _, start := range starts {
		header = append(header, start)
	}
	t.AppendHeader(header)
	for _, court := range courts {
		row := table.Row{court}
		for _, start := range starts {
			state, ok := cells[court][start]
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, mark(state))
		}
		t.AppendRow(row)
	}
	return t.Render()
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func countStates(found []slots.Slot) (available, booked int) {
	for _, s := range found {
		switch s.State {
		case slots.StateAvailable:
			available++
		case slots.StateBooked:
			booked++
		}
	}
	return available, booked
}

func pathNames(paths []acquisition.Path) string {
	if len(paths) == 0 {
		return "none"
	}
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = p.String()
	}
	return strings.Join(names, " + ")
}

func slotLine(s slots.Slot) string {
	return fmt.Sprintf("• %s · %s · %s · %s", formatDate(s.Date), s.Venue.Name, s.Court, s.TimeRange)
}

// FormatReport renders a run report. fresh lists the available slots
// that were not announced before.
func FormatReport(report acquisition.Report, fresh []slots.Slot, opts FormatOptions) Message {
	if opts.MaxListed <= 0 {
		opts.MaxListed = DefaultMaxListed
	}

	msg := Message{Subject: "Badminton availability"}
	switch len(fresh) {
	case 0:
	case 1:
		msg.Subject = "1 new badminton slot available"
	default:
		msg.Subject = fmt.Sprintf("%d new badminton slots available", len(fresh))
	}

	available, booked := countStates(report.Slots())
	msg.Sections = append(msg.Sections, Section{Text: fmt.Sprintf(
		"Checked %d of %d venue days at %s: %d available, %d booked (via %s).",
		report.Count(acquisition.Succeeded),
		len(report.Results),
		report.FinishedAt.In(timezone.Location).Format("02 Jan 15:04"),
		available,
		booked,
		pathNames(report.Paths()),
	)})

	if len(fresh) > 0 {
		lines := []string{"New:"}
		for i, s := range fresh {
			if i == opts.MaxListed {
				lines = append(lines, fmt.Sprintf("… and %d more", len(fresh)-opts.MaxListed))
				break
			}
			lines = append(lines, slotLine(s))
		}
		msg.Sections = append(msg.Sections, Section{Text: strings.Join(lines, "\n")})
	}

	var failed []string
	for _, result := range report.Results {
		title := fmt.Sprintf("%s, %s", result.Target.Venue.Name, formatDate(result.Target.Date))
		if result.Outcome != acquisition.Succeeded {
			failed = append(failed, fmt.Sprintf("• %s: %s", title, result.Diagnostic))
			continue
		}
		if len(result.Slots) == 0 {
			msg.Sections = append(msg.Sections, Section{Text: title + ": no slots listed"})
			continue
		}
		msg.Sections = append(msg.Sections,
			Section{Text: title},
			Section{Text: Grid(result.Slots), Preformatted: true},
		)
	}
	if len(failed) > 0 {
		msg.Sections = append(msg.Sections, Section{Text: "Not checked:\n" + strings.Join(failed, "\n")})
	}

	if opts.BookingURL != "" {
		msg.Sections = append(msg.Sections, Section{Text: "Book at " + opts.BookingURL})
	}
	return msg
}

// FormatFailure explains a run that produced no report.
func FormatFailure(report acquisition.Report) Message {
	var reasons []string
	if report.LoginFailed {
		reasons = append(reasons, "login to the booking site failed")
	}
	if report.DeadlineExceeded {
		reasons = append(reasons, "the run ran out of time")
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "no venue could be checked")
	}

	seen := map[string]bool{}
	var diagnostics []string
	for _, result := range report.Results {
		if result.Diagnostic == "" || seen[result.Diagnostic] {
			continue
		}
		seen[result.Diagnostic] = true
		diagnostics = append(diagnostics, "• "+result.Diagnostic)
	}

	msg := Message{
		Subject: "Badminton checker error",
		Sections: []Section{{Text: fmt.Sprintf(
			"Run %s at %s: %s. The next scheduled run will try again.",
			report.RunID,
			report.FinishedAt.In(timezone.Location).Format("02 Jan 15:04"),
			strings.Join(reasons, " and "),
		)}},
	}
	if len(diagnostics) > 0 {
		msg.Sections = append(msg.Sections, Section{Text: strings.Join(diagnostics, "\n")})
	}
	return msg
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}

// FormatOTPRequest asks for the one-time code the site just sent.
func FormatOTPRequest(phone string, deadline time.Time) Message {
	return Message{
		Subject: "Login code needed",
		Sections: []Section{{Text: fmt.Sprintf(
			"The booking site sent a one-time code to %s. Provide it before %s.",
			maskPhone(phone),
			deadline.In(timezone.Location).Format("15:04"),
		)}},
	}
}
