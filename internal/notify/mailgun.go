package notify

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"bookingchecker/internal/components/telemetry"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultMailgunBaseUrl = "https://api.mailgun.net/v3"

	report_mailgun_send = "mailgun.send"
)

type MailgunOptions struct {
	// Domain is the sending domain registered with mailgun.
	Domain string
	ApiKey string
	// BaseUrl defaults to DefaultMailgunBaseUrl.
	BaseUrl string
	Timeout time.Duration
}

// MailgunError is returned when mailgun rejects a message.
type MailgunError struct {
	Status int
	Body   string
}

func (e *MailgunError) Error() string {
	return fmt.Sprintf("mailgun: status %d: %s", e.Status, e.Body)
}

// Mailgun sends messages through the mailgun messages api.
type Mailgun struct {
	http   *resty.Client
	domain string
	tel    telemetry.API
}

func NewMailgun(opts MailgunOptions, tel telemetry.API) Mailgun {
	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultMailgunBaseUrl
	}
	tel = telemetry.NewScopedAPI("notify", tel)

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	client.SetBasicAuth("api", opts.ApiKey)
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	telemetry.InstrumentResty(client, "bookingchecker/notify/mailgun", tel)

	return Mailgun{
		http:   client,
		domain: opts.Domain,
		tel:    tel,
	}
}

func (m Mailgun) Send(ctx context.Context, msg Message) error {
	ctx, span := tracer.Start(ctx, "mailgun:Send")
	defer span.End()

	form := url.Values{}
	form.Set("from", msg.From)
	for _, to := range msg.To {
		form.Add("to", to)
	}
	form.Set("subject", msg.Subject)
	form.Set("text", msg.Text)

	res, err := m.http.R().
		SetContext(ctx).
		SetFormDataFromValues(form).
		Post(fmt.Sprintf("/%s/messages", url.PathEscape(m.domain)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send")
		m.tel.ReportBroken(report_mailgun_send, err)
		return fmt.Errorf("mailgun: %w", err)
	}
	if res.StatusCode() >= 400 {
		err = &MailgunError{Status: res.StatusCode(), Body: res.String()}
		span.SetStatus(codes.Error, "message rejected")
		m.tel.ReportBroken(report_mailgun_send, err)
		return err
	}
	m.tel.ReportDebug("message accepted", msg.Subject)
	return nil
}
