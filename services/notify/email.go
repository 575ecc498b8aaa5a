package notify

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel/codes"
)

type SmtpConfig struct {
	Server       string
	Port         int
	EmailAddress string
	Password     string
	// To defaults to EmailAddress.
	To []string
}

type Email struct {
	config SmtpConfig
	send   func(mail *email.Email, addr string, auth smtp.Auth) error
}

func NewEmail(config SmtpConfig) (Email, error) {
	if config.Server == "" || config.EmailAddress == "" {
		return Email{}, errors.New("email needs an smtp server and a sender address")
	}
	if config.Port == 0 {
		config.Port = 587
	}
	if len(config.To) == 0 {
		config.To = []string{config.EmailAddress}
	}
	return Email{
		config: config,
		send: func(mail *email.Email, addr string, auth smtp.Auth) error {
			return mail.Send(addr, auth)
		},
	}, nil
}

func (e Email) Name() string {
	return "email"
}

func (e Email) build(msg Message) *email.Email {
	mail := email.NewEmail()
	mail.From = fmt.Sprintf("courtwatch <%s>", e.config.EmailAddress)
	mail.To = e.config.To
	mail.Subject = msg.Subject
	mail.Text = []byte(msg.PlainText())
	return mail
}

func (e Email) Send(ctx context.Context, msg Message) error {
	ctx, span := tracer.Start(ctx, "Email.Send")
	defer span.End()

	mail := e.build(msg)
	addr := fmt.Sprintf("%s:%d", e.config.Server, e.config.Port)

	err := e.send(mail, addr, smtp.PlainAuth("", e.config.EmailAddress, e.config.Password, e.config.Server))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = e.send(mail, addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return err
	}
	return nil
}
