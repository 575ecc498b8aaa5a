package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"courtwatch/lib/scrapers/academy/core"
	"courtwatch/lib/slots"
	"courtwatch/lib/telemetry"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var venue = slots.Venue{ID: 1, Name: "Kotak Pullela Gopichand Badminton Academy"}
var target = slots.Target{Venue: venue, Date: "2024-09-07"}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	cleanup := telemetry.SetupForTesting(t, "test:academy/api")
	t.Cleanup(cleanup)

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Options{
		BaseUrl: server.URL,
		Origin:  "https://booking.example",
		Timeout: 2 * time.Second,
	})
	require.NoError(t, err)
	return client
}

func TestVerifyToken(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.Equal(t, "https://booking.example", r.Header.Get("Origin"))
		switch {
		case r.URL.Path == "/Customer/Data/Get/Profile" && r.Header.Get("LoginToken") == "good":
			fmt.Fprint(w, `{"Status": "Success", "Result": {"name": "player"}}`)
		case r.URL.Path == "/Customer/Data/Get/Profile" && r.Header.Get("Authorization") == "Bearer bearer-only":
			fmt.Fprint(w, `{"Status": "Success"}`)
		default:
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"Status": "Failed", "Message": "Invalid token"}`)
		}
	})
	ctx := context.Background()

	require.True(t, client.VerifyToken(ctx, "good"))
	// the first candidate settled it, the rest were skipped
	require.Equal(t, int32(1), calls.Load())

	calls.Store(0)
	require.True(t, client.VerifyToken(ctx, "bearer-only"))
	require.Equal(t, int32(2), calls.Load())

	calls.Store(0)
	require.False(t, client.VerifyToken(ctx, "expired"))
	require.Equal(t, int32(len(verifyCandidates)), calls.Load())

	calls.Store(0)
	require.False(t, client.VerifyToken(ctx, ""))
	require.Equal(t, int32(0), calls.Load())
}

func TestVerifyTokenRejectsNonSuccessBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>login page</html>`)
	})
	require.False(t, client.VerifyToken(context.Background(), "anything"))
}

func TestFetchSlots(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/Get/Calender", r.URL.Path)
		require.Equal(t, "1", r.URL.Query().Get("venue_id"))
		require.Equal(t, "2024-09-07", r.URL.Query().Get("date"))
		require.Equal(t, "tok", r.Header.Get("LoginToken"))
		fmt.Fprint(w, `{
			"Status": "Success",
			"Result": {
				"10": {"court_name": "10", "court_available_slots": ["06:00-07:00|1|405"]},
				"2": {"court_name": "2", "court_available_slots": ["06:00-07:00|0|405", "07:00-08:00|7|405"]}
			}
		}`)
	})

	raw, err := client.FetchSlots(context.Background(), "tok", target)
	require.NoError(t, err)

	expect := []slots.RawSlot{
		{Target: target, Court: "Court 2", TimeRange: "06:00-07:00", Presentation: slots.Presentation{"style": bookedStyle, "price": "405"}},
		{Target: target, Court: "Court 2", TimeRange: "07:00-08:00"},
		{Target: target, Court: "Court 10", TimeRange: "06:00-07:00", Presentation: slots.Presentation{"style": "", "price": "405"}},
	}
	if diff := cmp.Diff(expect, raw); diff != "" {
		t.Fatal(diff)
	}

	classified := slots.ClassifyAll(raw)
	require.Equal(t, slots.StateBooked, classified[0].State)
	require.Equal(t, slots.StateUnknown, classified[1].State)
	require.Equal(t, slots.StateAvailable, classified[2].State)
}

func TestFetchSlotsEmptyResult(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Status": "Success", "Result": null}`)
	})
	raw, err := client.FetchSlots(context.Background(), "tok", target)
	require.NoError(t, err)
	require.Empty(t, raw)
}

func TestFetchSlotsErrorKinds(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		expect core.ErrorKind
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{}`, expect: core.KindAuthRejected},
		{name: "forbidden", status: http.StatusForbidden, body: ``, expect: core.KindAuthRejected},
		{name: "refused token message", status: http.StatusOK, body: `{"Status": "Failed", "Message": "Login token expired"}`, expect: core.KindAuthRejected},
		{name: "server error", status: http.StatusBadGateway, body: ``, expect: core.KindTransient},
		{name: "rate limited", status: http.StatusTooManyRequests, body: ``, expect: core.KindTransient},
		{name: "not json", status: http.StatusOK, body: `<html></html>`, expect: core.KindShapeMismatch},
		{name: "no status", status: http.StatusOK, body: `{"Result": {}}`, expect: core.KindShapeMismatch},
		{name: "other failure", status: http.StatusOK, body: `{"Status": "Failed", "Message": "venue closed"}`, expect: core.KindShapeMismatch},
		{name: "result not an object", status: http.StatusOK, body: `{"Status": "Success", "Result": "oops"}`, expect: core.KindShapeMismatch},
		{name: "court without slots", status: http.StatusOK, body: `{"Status": "Success", "Result": {"1": {"court_name": "1"}}}`, expect: core.KindShapeMismatch},
		{name: "slot not a string", status: http.StatusOK, body: `{"Status": "Success", "Result": {"1": {"court_available_slots": [12]}}}`, expect: core.KindShapeMismatch},
		{name: "slot missing fields", status: http.StatusOK, body: `{"Status": "Success", "Result": {"1": {"court_available_slots": ["06:00-07:00|1"]}}}`, expect: core.KindShapeMismatch},
		{name: "slot without range", status: http.StatusOK, body: `{"Status": "Success", "Result": {"1": {"court_available_slots": ["morning|1|400"]}}}`, expect: core.KindShapeMismatch},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(test.status)
				fmt.Fprint(w, test.body)
			})
			_, err := client.FetchSlots(context.Background(), "tok", target)
			require.Error(t, err)
			kind, ok := core.KindOf(err)
			require.True(t, ok, err.Error())
			require.Equal(t, test.expect, kind, err.Error())
		})
	}
}

func TestFetchSlotsTransportFailure(t *testing.T) {
	client, err := NewClient(Options{BaseUrl: "http://127.0.0.1:1", Timeout: time.Second})
	require.NoError(t, err)
	_, err = client.FetchSlots(context.Background(), "tok", target)
	require.True(t, core.IsKind(err, core.KindTransient), err)
}
