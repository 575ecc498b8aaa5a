package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"courtwatch/lib/restyutil"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultTelegramBaseUrl = "https://api.telegram.org"
	// telegram rejects longer messages
	telegramMessageLimit = 4096
)

type TelegramOptions struct {
	BaseUrl string
	Token   string
	ChatID  string
	Timeout time.Duration
	Output  restyutil.InstrumentOutput
}

type Telegram struct {
	http   *resty.Client
	chatID string
}

func NewTelegram(opts TelegramOptions) (*Telegram, error) {
	if opts.Token == "" || opts.ChatID == "" {
		return nil, errors.New("telegram needs a bot token and a chat id")
	}
	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultTelegramBaseUrl
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	client := resty.New()
	client.SetBaseURL(fmt.Sprintf("%s/bot%s", strings.TrimSuffix(opts.BaseUrl, "/"), opts.Token))
	client.SetTimeout(opts.Timeout)
	restyutil.InstrumentClient(client, tracer, opts.Output)

	return &Telegram{http: client, chatID: opts.ChatID}, nil
}

func (t *Telegram) Name() string {
	return "telegram"
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type telegramResponse struct {
	Ok          bool   `json:"ok"`
	Description string `json:"description"`
}

// chunks splits a message on section boundaries so that every part
// fits in one telegram message. A single oversized section is cut.
func chunks(msg Message, limit int) []string {
	var out []string
	current := "<b>" + html.EscapeString(msg.Subject) + "</b>"
	for _, s := range msg.Sections {
		part := sectionHTML(s)
		if len(current)+2+len(part) <= limit {
			current += "\n\n" + part
			continue
		}
		out = append(out, current)
		if len(part) > limit {
			part = truncatedHTML(s, limit)
		}
		current = part
	}
	return append(out, current)
}

func truncatedHTML(s Section, limit int) string {
	text := []rune(s.Text)
	for {
		cut := Section{Text: string(text) + "…", Preformatted: s.Preformatted}
		if part := sectionHTML(cut); len(part) <= limit || len(text) == 0 {
			return part
		}
		text = text[:len(text)*9/10]
	}
}

func (t *Telegram) Send(ctx context.Context, msg Message) error {
	ctx, span := tracer.Start(ctx, "Telegram.Send")
	defer span.End()

	parts := chunks(msg, telegramMessageLimit)
	span.SetAttributes(attribute.Int("parts", len(parts)))
	for _, part := range parts {
		var body telegramResponse
		res, err := t.http.R().
			SetContext(ctx).
			SetBody(sendMessageRequest{
				ChatID:                t.chatID,
				Text:                  part,
				ParseMode:             "HTML",
				DisableWebPagePreview: true,
			}).
			ForceContentType("application/json").
			SetResult(&body).
			SetError(&body).
			Post("/sendMessage")
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to call telegram")
			return err
		}
		if res.IsError() || !body.Ok {
			err := fmt.Errorf("telegram refused message (%d): %s", res.StatusCode(), body.Description)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}
	slog.InfoContext(ctx, "telegram message sent", "parts", len(parts))
	return nil
}
