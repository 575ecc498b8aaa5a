package api

import (
	"context"
	"testing"
	"time"

	devenv "courtwatch/dev/env"
	"courtwatch/lib/scrapers/academy/core"
	"courtwatch/lib/slots"

	"github.com/stretchr/testify/require"
)

// TestLiveCalendar runs against the real API when dev/.state/academy.json5
// provides a token.
func TestLiveCalendar(t *testing.T) {
	cfg, err := devenv.GetStateConfig[devenv.LiveAcademyConfig]("academy.json5")
	if err != nil || cfg.Token == "" {
		t.Skip("no live academy config")
	}

	client, err := NewClient(Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.True(t, client.VerifyToken(ctx, cfg.Token))

	venue := core.KnownVenues[0]
	for _, v := range core.KnownVenues {
		if v.ID == cfg.VenueID {
			venue = v
		}
	}
	raw, err := client.FetchSlots(ctx, cfg.Token, slots.Target{Venue: venue, Date: cfg.Date})
	require.NoError(t, err)
	for _, r := range raw {
		require.NotEqual(t, slots.StateUnknown, slots.Classify(r).State, r.TimeRange)
	}
}
