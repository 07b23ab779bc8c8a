// Package checker decides whether newly available driving lessons are worth
// an email and sends it.
package checker

import (
	"context"
	"fmt"

	"bookingchecker/internal/components/assert"
	"bookingchecker/internal/components/telemetry"
	"bookingchecker/internal/notify"
	"bookingchecker/internal/scrapers/elevcentralen"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("bookingchecker/checker")

const (
	report_checker_run = "checker.run"
	report_new_slots   = "checker.new-slots"
)

type Options struct {
	Username  string
	Password  string
	TeacherId string
	// Sender is the bare address messages are sent from.
	Sender    string
	Receivers []string
}

type Checker struct {
	opts     Options
	session  *elevcentralen.Session
	cache    NotifiedCache
	notifier notify.Notifier
	tel      telemetry.API
}

func NewChecker(
	opts Options,
	session *elevcentralen.Session,
	cache NotifiedCache,
	notifier notify.Notifier,
	tel telemetry.API,
) Checker {
	assert.NotNil(session, "session")
	assert.NotNil(notifier, "notifier")
	assert.NotNil(tel, "telemetry")
	assert.NotEmptyStr(opts.TeacherId, "teacher id")

	return Checker{
		opts:     opts,
		session:  session,
		cache:    cache,
		notifier: notifier,
		tel:      telemetry.NewScopedAPI("checker", tel),
	}
}

// Run performs one check. The notified cache is only replaced after the
// notification was sent.
func (c Checker) Run(ctx context.Context) (Decision, error) {
	runId := uuid.NewString()
	ctx, span := tracer.Start(ctx, "checker:Run")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", runId))
	c.tel.ReportDebug("run started", runId)

	decision, err := c.run(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "run failed")
		c.tel.ReportBroken(report_checker_run, err, runId)
		return Decision{}, err
	}
	span.SetAttributes(attribute.String("action", decision.Action.String()))
	return decision, nil
}

func (c Checker) run(ctx context.Context) (Decision, error) {
	err := c.session.Authenticate(ctx, c.opts.Username, c.opts.Password)
	if err != nil {
		return Decision{}, err
	}

	current, err := c.session.CurrentBookings(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("current bookings: %w", err)
	}
	available, err := c.session.AvailableBookings(ctx, elevcentralen.AvailableQuery{
		TeacherId: c.opts.TeacherId,
	}).Collect()
	if err != nil {
		return Decision{}, fmt.Errorf("available bookings: %w", err)
	}

	notified := c.cache.Load(ctx)
	decision := Evaluate(current, available, notified)
	if decision.Action == NoAction {
		c.tel.ReportDebug("no new times which are not yet notified")
		return decision, nil
	}

	c.tel.ReportDebug(fmt.Sprintf(
		"found %d new times on existing days and %d on new days",
		len(decision.ExistingDaySlots),
		len(decision.NewDaySlots),
	))
	c.tel.ReportCount(report_new_slots, int64(len(decision.Candidates)))

	subject, body := ComposeMessage(decision)
	err = c.notifier.Send(ctx, notify.Message{
		From:    notify.Sender(c.opts.Sender),
		To:      c.opts.Receivers,
		Subject: subject,
		Text:    body,
	})
	if err != nil {
		return Decision{}, fmt.Errorf("send notification: %w", err)
	}

	err = c.cache.Replace(ctx, decision.Candidates)
	if err != nil {
		return Decision{}, fmt.Errorf("replace notified cache: %w", err)
	}
	return decision, nil
}

// ReportFailure emails err to the sender address.
func (c Checker) ReportFailure(ctx context.Context, err error) error {
	return c.notifier.Send(ctx, notify.Message{
		From:    notify.Sender(c.opts.Sender),
		To:      []string{c.opts.Sender},
		Subject: ErrorMessageSubject,
		Text:    err.Error(),
	})
}
