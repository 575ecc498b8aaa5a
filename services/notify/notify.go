// Package notify delivers formatted run reports to the configured
// channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"strings"

	"courtwatch/lib/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("courtwatch.services.notify")

// Section is one block of a message. Preformatted sections (tables)
// keep their layout on every channel.
type Section struct {
	Text         string
	Preformatted bool
}

type Message struct {
	Subject  string
	Sections []Section
}

func (m Message) PlainText() string {
	parts := make([]string, len(m.Sections))
	for i, s := range m.Sections {
		parts[i] = s.Text
	}
	return strings.Join(parts, "\n\n")
}

func sectionHTML(s Section) string {
	if s.Preformatted {
		return "<pre>" + html.EscapeString(s.Text) + "</pre>"
	}
	return html.EscapeString(s.Text)
}

// HTML renders the message in the subset of html chat apps accept.
func (m Message) HTML() string {
	parts := []string{"<b>" + html.EscapeString(m.Subject) + "</b>"}
	for _, s := range m.Sections {
		parts = append(parts, sectionHTML(s))
	}
	return strings.Join(parts, "\n\n")
}

type Notifier interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

var ErrNoChannel = errors.New("no notification channel configured")

// Fanout sends to every notifier. Delivery succeeds when at least one
// channel accepted the message.
type Fanout []Notifier

func (f Fanout) Name() string {
	names := make([]string, len(f))
	for i, n := range f {
		names[i] = n.Name()
	}
	return strings.Join(names, "+")
}

func (f Fanout) Send(ctx context.Context, msg Message) error {
	ctx, span := tracer.Start(ctx, "Fanout.Send")
	defer span.End()

	if len(f) == 0 {
		return ErrNoChannel
	}

	var errs []error
	delivered := 0
	for _, n := range f {
		err := n.Send(ctx, msg)
		if err != nil {
			slog.WarnContext(ctx, "failed to deliver notification", "channel", n.Name(), "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
			continue
		}
		delivered++
	}
	span.SetAttributes(attribute.Int("delivered", delivered))
	if delivered == 0 {
		err := errors.Join(errs...)
		span.RecordError(err)
		span.SetStatus(codes.Error, "no channel accepted the message")
		return err
	}
	return nil
}

// Writer prints messages as plain text, used for dry runs.
type Writer struct {
	W io.Writer
}

func (w Writer) Name() string {
	return "stdout"
}

func (w Writer) Send(ctx context.Context, msg Message) error {
	_, err := fmt.Fprintf(w.W, "%s\n\n%s\n", msg.Subject, msg.PlainText())
	return err
}
