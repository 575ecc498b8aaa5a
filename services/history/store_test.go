package history

import (
	"context"
	"testing"
	"time"

	"courtwatch/lib/slots"
	"courtwatch/lib/testutil"
	"courtwatch/services/acquisition"
	"courtwatch/services/history/db"

	"github.com/stretchr/testify/require"
)

var venue = slots.Venue{ID: 1, Name: "Kotak Pullela Gopichand Badminton Academy"}

func slot(court, timeRange string, state slots.State) slots.Slot {
	return slots.Slot{Venue: venue, Date: "2024-09-07", Court: court, TimeRange: timeRange, State: state}
}

func report(runID string, startedAt time.Time, found ...slots.Slot) acquisition.Report {
	target := slots.Target{Venue: venue, Date: "2024-09-07"}
	return acquisition.Report{
		RunID:      runID,
		StartedAt:  startedAt,
		FinishedAt: startedAt.Add(time.Minute),
		Results: []acquisition.Result{
			{Target: target, Slots: found, Outcome: acquisition.Succeeded, Path: acquisition.PathAPI},
			{Target: slots.Target{Venue: venue, Date: "2024-09-08"}, Outcome: acquisition.FailedRecoverable, Path: acquisition.PathAPI, Diagnostic: "502"},
		},
	}
}

func newTestStore(t *testing.T, now *time.Time) Store {
	setup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/history",
		DbSchema: db.Schema,
	})
	return NewStore(setup.DB, Options{Now: func() time.Time { return *now }})
}

func TestRecordReport(t *testing.T) {
	now := time.Date(2024, time.September, 6, 9, 0, 0, 0, time.UTC)
	store := newTestStore(t, &now)
	ctx := context.Background()

	err := store.RecordReport(ctx, report("run-1", now,
		slot("Court 1", "06:00-07:00", slots.StateBooked),
		slot("Court 1", "07:00-08:00", slots.StateAvailable),
	))
	require.NoError(t, err)

	runs, err := store.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, "run-1", runs[0].ID)
	require.Equal(t, int64(1), runs[0].Succeeded)
	require.Equal(t, int64(1), runs[0].Failed)
	require.Equal(t, "REPORTED", runs[0].Status)

	results, err := store.RunResults(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "FAILED_RECOVERABLE", results[1].Outcome)
	require.Equal(t, "502", results[1].Diagnostic)

	// run ids are unique
	require.Error(t, store.RecordReport(ctx, report("run-1", now)))
}

func TestNotificationDedupe(t *testing.T) {
	now := time.Date(2024, time.September, 6, 9, 0, 0, 0, time.UTC)
	store := newTestStore(t, &now)
	ctx := context.Background()

	early := slot("Court 1", "06:00-07:00", slots.StateAvailable)
	late := slot("Court 2", "20:00-21:00", slots.StateAvailable)
	booked := slot("Court 3", "20:00-21:00", slots.StateBooked)

	fresh, err := store.NewlyAvailable(ctx, []slots.Slot{early, late, booked})
	require.NoError(t, err)
	require.Equal(t, []slots.Slot{early, late}, fresh)

	require.NoError(t, store.MarkNotified(ctx, []slots.Slot{early}))
	fresh, err = store.NewlyAvailable(ctx, []slots.Slot{early, late})
	require.NoError(t, err)
	require.Equal(t, []slots.Slot{late}, fresh)

	// seen booked, then free again: announced again
	bookedEarly := early
	bookedEarly.State = slots.StateBooked
	require.NoError(t, store.RecordReport(ctx, report("run-2", now, bookedEarly)))
	fresh, err = store.NewlyAvailable(ctx, []slots.Slot{early})
	require.NoError(t, err)
	require.Equal(t, []slots.Slot{early}, fresh)
}

func TestPrune(t *testing.T) {
	now := time.Date(2024, time.September, 6, 9, 0, 0, 0, time.UTC)
	store := newTestStore(t, &now)
	ctx := context.Background()

	old := slot("Court 1", "06:00-07:00", slots.StateAvailable)
	require.NoError(t, store.RecordReport(ctx, report("old", now.Add(-8*24*time.Hour), old)))
	require.NoError(t, store.MarkNotified(ctx, []slots.Slot{old}))
	require.NoError(t, store.RecordReport(ctx, report("recent", now.Add(-time.Hour), old)))

	now = now.Add(8 * 24 * time.Hour)
	require.NoError(t, store.RecordReport(ctx, report("today", now, old)))
	now = now.Add(time.Hour)
	require.NoError(t, store.Prune(ctx))

	runs, err := store.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, "today", runs[0].ID)

	results, err := store.RunResults(ctx, "old")
	require.NoError(t, err)
	require.Empty(t, results)

	fresh, err := store.NewlyAvailable(ctx, []slots.Slot{old})
	require.NoError(t, err)
	require.Equal(t, []slots.Slot{old}, fresh)
}
