package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"courtwatch/lib/scrapers/academy/core"
	"courtwatch/lib/slots"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type Options struct {
	// BaseUrl is the data API root, core.DefaultAPIBase by default.
	BaseUrl string
	// Origin is the booking site origin, core.DefaultOrigin by default.
	Origin  string
	Timeout time.Duration
}

// Client talks to the booking site's data API with a bearer token. It
// never stores credentials, the token is passed on every call.
type Client struct {
	http       *resty.Client
	candidates []verifyCandidate
}

func NewClient(opts Options) (*Client, error) {
	if opts.BaseUrl == "" {
		opts.BaseUrl = core.DefaultAPIBase
	}
	if opts.Origin == "" {
		opts.Origin = core.DefaultOrigin
	}
	client, err := core.NewHttpClient(core.HttpOptions{
		BaseUrl: strings.TrimSuffix(opts.BaseUrl, "/"),
		Origin:  opts.Origin,
		Timeout: opts.Timeout,
		Tracer:  tracer,
		Output:  restyInstrumentOutput,
	})
	if err != nil {
		return nil, err
	}
	return &Client{http: client, candidates: verifyCandidates}, nil
}

type verifyCandidate struct {
	name string
	path string
	auth func(req *resty.Request, token string)
}

func loginTokenHeader(req *resty.Request, token string) {
	req.SetHeader("LoginToken", token)
}

func bearerHeaders(req *resty.Request, token string) {
	req.SetAuthToken(token)
	req.SetHeader("X-Login-Token", token)
}

// tried in order, the first that accepts the token settles it
var verifyCandidates = []verifyCandidate{
	{name: "profile/login-token", path: "/Customer/Data/Get/Profile", auth: loginTokenHeader},
	{name: "profile/bearer", path: "/Customer/Data/Get/Profile", auth: bearerHeaders},
	{name: "customer-profile/login-token", path: "/Customer/Get/Profile", auth: loginTokenHeader},
}

type envelope struct {
	Status  *string         `json:"Status"`
	Message string          `json:"Message"`
	Result  json.RawMessage `json:"Result"`
}

func (e envelope) success() bool {
	return e.Status != nil && strings.EqualFold(*e.Status, "success")
}

// VerifyToken reports whether the API accepts token. A token is never
// sent to the network when empty.
func (c *Client) VerifyToken(ctx context.Context, token string) bool {
	ctx, span := tracer.Start(ctx, "VerifyToken")
	defer span.End()

	if token == "" {
		span.SetStatus(codes.Error, "empty token")
		return false
	}

	for _, candidate := range c.candidates {
		req := c.http.R().SetContext(ctx)
		candidate.auth(req, token)
		res, err := req.Get(candidate.path)
		if err != nil {
			slog.DebugContext(ctx, "token verification candidate failed", "candidate", candidate.name, "err", err)
			continue
		}
		if res.StatusCode() != http.StatusOK {
			slog.DebugContext(ctx, "token verification candidate refused", "candidate", candidate.name, "status", res.StatusCode())
			continue
		}
		var body envelope
		if json.Unmarshal(res.Body(), &body) != nil || !body.success() {
			continue
		}
		span.SetAttributes(attribute.String("candidate", candidate.name))
		slog.InfoContext(ctx, "token verified", "candidate", candidate.name)
		return true
	}

	span.SetStatus(codes.Error, "no candidate accepted the token")
	slog.InfoContext(ctx, "token was not accepted by any verification endpoint")
	return false
}

var authMessage = regexp.MustCompile(`(?i)token|login|session|unauthori[sz]ed`)

type court struct {
	Name  string            `json:"court_name"`
	Slots []json.RawMessage `json:"court_available_slots"`
}

// FetchSlots reads the calendar of one venue on one day.
func (c *Client) FetchSlots(ctx context.Context, token string, target slots.Target) ([]slots.RawSlot, error) {
	ctx, span := tracer.Start(ctx, "FetchSlots")
	defer span.End()
	span.SetAttributes(
		attribute.Int("venue_id", target.Venue.ID),
		attribute.String("date", target.Date),
	)

	raw, err := c.fetchSlots(ctx, token, target)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch slots")
		return nil, err
	}
	span.SetAttributes(attribute.Int("slots", len(raw)))
	return raw, nil
}

func (c *Client) fetchSlots(ctx context.Context, token string, target slots.Target) ([]slots.RawSlot, error) {
	const op = "api.FetchSlots"

	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("LoginToken", token).
		SetQueryParams(map[string]string{
			"venue_id": strconv.Itoa(target.Venue.ID),
			"date":     target.Date,
		}).
		Get("/Get/Calender")
	if err != nil {
		return nil, core.NewProbeError(core.KindTransient, op, err)
	}

	switch status := res.StatusCode(); {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, core.NewProbeError(core.KindAuthRejected, op, fmt.Errorf("status %d", status))
	case status == http.StatusTooManyRequests || status >= 500:
		return nil, core.NewProbeError(core.KindTransient, op, fmt.Errorf("status %d", status))
	case status != http.StatusOK:
		return nil, core.NewProbeError(core.KindShapeMismatch, op, fmt.Errorf("unexpected status %d", status))
	}

	var body envelope
	err = json.Unmarshal(res.Body(), &body)
	if err != nil {
		return nil, core.NewProbeError(core.KindShapeMismatch, op, fmt.Errorf("decode body: %w", err))
	}
	if body.Status == nil {
		return nil, core.NewProbeError(core.KindShapeMismatch, op, errors.New("response has no Status"))
	}
	if !body.success() {
		if authMessage.MatchString(body.Message) {
			return nil, core.NewProbeError(core.KindAuthRejected, op, fmt.Errorf("refused: %s", body.Message))
		}
		return nil, core.NewProbeError(core.KindShapeMismatch, op, fmt.Errorf("status %q: %s", *body.Status, body.Message))
	}

	courts, err := decodeCourts(body.Result)
	if err != nil {
		return nil, core.NewProbeError(core.KindShapeMismatch, op, err)
	}

	var out []slots.RawSlot
	for _, ct := range courts {
		for i, entry := range ct.court.Slots {
			raw, err := parseSlot(entry)
			if err != nil {
				return nil, core.NewProbeError(
					core.KindShapeMismatch, op,
					fmt.Errorf("court %s slot %d: %w", ct.id, i, err),
				)
			}
			raw.Target = target
			raw.Court = courtLabel(ct.id, ct.court.Name)
			out = append(out, raw)
		}
	}
	return out, nil
}

type keyedCourt struct {
	id    string
	court court
}

func decodeCourts(result json.RawMessage) ([]keyedCourt, error) {
	trimmed := strings.TrimSpace(string(result))
	if trimmed == "" || trimmed == "null" || trimmed == "[]" || trimmed == "{}" {
		return nil, nil
	}

	var byID map[string]json.RawMessage
	err := json.Unmarshal(result, &byID)
	if err != nil {
		return nil, fmt.Errorf("Result is not an object of courts: %w", err)
	}

	courts := make([]keyedCourt, 0, len(byID))
	for id, raw := range byID {
		var presence map[string]json.RawMessage
		err := json.Unmarshal(raw, &presence)
		if err != nil {
			return nil, fmt.Errorf("court %s is not an object: %w", id, err)
		}
		if _, ok := presence["court_available_slots"]; !ok {
			return nil, fmt.Errorf("court %s has no court_available_slots", id)
		}
		var ct court
		err = json.Unmarshal(raw, &ct)
		if err != nil {
			return nil, fmt.Errorf("court %s: %w", id, err)
		}
		courts = append(courts, keyedCourt{id: id, court: ct})
	}

	sort.Slice(courts, func(i, j int) bool {
		a, errA := strconv.Atoi(courts[i].id)
		b, errB := strconv.Atoi(courts[j].id)
		if errA == nil && errB == nil {
			return a < b
		}
		return courts[i].id < courts[j].id
	})
	return courts, nil
}

func courtLabel(id, name string) string {
	if name == "" {
		name = id
	}
	if strings.HasPrefix(strings.ToLower(name), "court") {
		return name
	}
	return "Court " + name
}

// the SPA renders a taken slot with this inline style, the flag is
// translated into it so both acquisition paths classify identically
const bookedStyle = "color: red; cursor: not-allowed;"

var timeRange = regexp.MustCompile(`^\d{1,2}:\d{2}\s*-\s*\d{1,2}:\d{2}$`)

// parseSlot reads an entry shaped "12:00-13:00|1|405" (range, flag, price).
func parseSlot(entry json.RawMessage) (slots.RawSlot, error) {
	var text string
	err := json.Unmarshal(entry, &text)
	if err != nil {
		return slots.RawSlot{}, fmt.Errorf("entry is not a string: %s", string(entry))
	}
	parts := strings.Split(text, "|")
	if len(parts) != 3 {
		return slots.RawSlot{}, fmt.Errorf("entry %q is not range|flag|price", text)
	}
	label := strings.TrimSpace(parts[0])
	if !timeRange.MatchString(label) {
		return slots.RawSlot{}, fmt.Errorf("entry %q has no time range", text)
	}

	var presentation slots.Presentation
	switch strings.TrimSpace(parts[1]) {
	case "1":
		presentation = slots.Presentation{"style": ""}
	case "0":
		presentation = slots.Presentation{"style": bookedStyle}
	default:
		// unknown flag, leave nothing to classify on
	}
	if presentation != nil {
		presentation["price"] = strings.TrimSpace(parts[2])
	}

	return slots.RawSlot{
		TimeRange:    label,
		Presentation: presentation,
	}, nil
}
