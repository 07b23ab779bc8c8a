package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel/codes"
)

type SmtpOptions struct {
	Server string
	Port   int
	// Username is usually the sender address.
	Username string
	Password string
}

// Smtp sends messages through an smtp relay.
type Smtp struct {
	opts SmtpOptions
}

func NewSmtp(opts SmtpOptions) Smtp {
	if opts.Port == 0 {
		opts.Port = 587
	}
	return Smtp{opts: opts}
}

func (s Smtp) Send(ctx context.Context, msg Message) error {
	_, span := tracer.Start(ctx, "smtp:Send")
	defer span.End()

	mail := email.NewEmail()
	mail.From = msg.From
	mail.To = msg.To
	mail.Subject = msg.Subject
	mail.Text = []byte(msg.Text)

	addr := fmt.Sprintf("%s:%d", s.opts.Server, s.opts.Port)
	err := mail.Send(addr, smtp.PlainAuth("", s.opts.Username, s.opts.Password, s.opts.Server))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return err
	}
	return nil
}
