package commands

import (
	"strings"
	"testing"
	"time"

	"courtwatch/lib/credstore"
	"courtwatch/services/history/db"

	"github.com/stretchr/testify/require"
)

func TestDescribeTable(t *testing.T) {
	out := describeTable([]credstore.Description{
		{
			Kind:     credstore.KindSession,
			Present:  true,
			Validity: credstore.Stale,
			Age:      8*24*time.Hour + 10*time.Second,
			Record: credstore.Record{
				TargetOrigin: "https://booking.example",
				Cookies:      []credstore.Cookie{{Name: "sid", Value: "x"}},
				LocalState:   map[string]string{credstore.TokenStorageKey: "tok"},
			},
		},
		{Kind: credstore.KindToken, Validity: credstore.Absent},
	})

	require.Contains(t, out, "STALE")
	require.Contains(t, out, "https://booking.example")
	require.Contains(t, out, "192h0m0s")
	require.Contains(t, out, "true")

	var tokenLine string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "token ") {
			tokenLine = line
		}
	}
	require.Contains(t, tokenLine, " no ")
	require.Contains(t, tokenLine, "ABSENT")
	require.NotContains(t, tokenLine, "MALFORMED")
}

func TestRunsTable(t *testing.T) {
	out := runsTable([]db.Run{{
		ID:               "run1",
		StartedAt:        1725600000,
		FinishedAt:       1725600090,
		Status:           "NO_REPORT",
		LoginFailed:      true,
		DeadlineExceeded: true,
	}})
	require.Contains(t, out, "run1")
	require.Contains(t, out, "1m30s")
	require.Contains(t, out, "login failed, deadline exceeded")
}

func TestResultsTable(t *testing.T) {
	out := resultsTable([]db.Result{{
		RunID:      "run1",
		VenueID:    2,
		Date:       "2024-09-07",
		Outcome:    "FAILED_FATAL",
		Path:       "api",
		Diagnostic: "calendar response changed shape",
	}})
	require.Contains(t, out, "2024-09-07")
	require.Contains(t, out, "FAILED_FATAL")
	require.Contains(t, out, "calendar response changed shape")
}
