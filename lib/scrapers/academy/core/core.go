// Package core holds what both academy probers share: the provider's
// endpoints, the probe error taxonomy, and the http client setup.
package core

import (
	"errors"
	"fmt"
	"net/http/cookiejar"
	"time"

	"courtwatch/lib/restyutil"
	"courtwatch/lib/slots"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultOrigin  = "https://booking.gopichandacademy.com"
	DefaultAPIBase = "https://adminbooking.gopichandacademy.com/API"
	UserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

// KnownVenues are the venues the booking site lists.
var KnownVenues = []slots.Venue{
	{ID: 1, Name: "Kotak Pullela Gopichand Badminton Academy"},
	{ID: 2, Name: "Pullela Gopichand Badminton Academy"},
	{ID: 3, Name: "SAI Pullela Gopichand National Badminton Academy"},
}

// VenuePath is the venue page of the booking site, it is only reachable
// with a session.
func VenuePath(venueID int) string {
	return fmt.Sprintf("/venue-details/%d", venueID)
}

type ErrorKind int

const (
	// KindTransient is a network or timing failure worth retrying.
	KindTransient ErrorKind = iota
	// KindAuthRejected means the credential was refused.
	KindAuthRejected
	// KindShapeMismatch means the response or page was not understood.
	KindShapeMismatch
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "TRANSIENT"
	case KindAuthRejected:
		return "AUTH_REJECTED"
	default:
		return "SHAPE_MISMATCH"
	}
}

// ProbeError is the only error shape probers return for a target.
type ProbeError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

func NewProbeError(kind ErrorKind, op string, err error) *ProbeError {
	return &ProbeError{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the kind of a probe error, ok is false when err is not
// a ProbeError.
func KindOf(err error) (kind ErrorKind, ok bool) {
	var perr *ProbeError
	if errors.As(err, &perr) {
		return perr.Kind, true
	}
	return 0, false
}

func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

type HttpOptions struct {
	BaseUrl string
	// Origin is sent as Origin/Referer, the API rejects requests that
	// don't look like they come from the booking site.
	Origin  string
	Timeout time.Duration
	Tracer  trace.Tracer
	Output  restyutil.InstrumentOutput
}

func NewHttpClient(opts HttpOptions) (*resty.Client, error) {
	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", UserAgent)
	client.SetHeader("accept", "application/json, text/plain, */*")
	if opts.Origin != "" {
		client.SetHeader("origin", opts.Origin)
		client.SetHeader("referer", opts.Origin+"/")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client.SetTimeout(timeout)

	restyutil.InstrumentClient(client, opts.Tracer, opts.Output)
	return client, nil
}
