package elevcentralen

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"bookingchecker/internal/components/chrono"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	queryDateLayout = "2006-01-02T15:04:05.000Z"
	defaultWindow   = 6 * 7 // days
)

// CurrentBookings returns the confirmed bookings of the student.
func (s *Session) CurrentBookings(ctx context.Context) ([]Booking, error) {
	ctx, span := tracer.Start(ctx, "session:CurrentBookings")
	defer span.End()

	if s.state != StateAuthenticated {
		return nil, ErrNotAuthenticated
	}

	res, err := s.Http.R().
		SetContext(ctx).
		Get("/Booking/Home/CurrentBookings")
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch")
		s.tel.ReportBroken(report_session_current_bookings, err)
		return nil, err
	}
	err = checkOk(res)
	if err != nil {
		span.SetStatus(codes.Error, "unsuccessful status")
		s.tel.ReportBroken(report_session_current_bookings, err)
		return nil, err
	}

	var payload struct {
		Items *[]RawBooking `json:"items"`
	}
	err = json.Unmarshal(res.Body(), &payload)
	if err == nil && payload.Items == nil {
		err = errors.New("missing items")
	}
	if err != nil {
		dataErr := &DataError{Url: res.Request.URL, Body: res.String(), Err: err}
		span.SetStatus(codes.Error, "unexpected response")
		s.tel.ReportBroken(report_session_current_bookings, dataErr)
		return nil, dataErr
	}

	bookings, err := NormalizeAll(*payload.Items, s.time.Location())
	if err != nil {
		span.SetStatus(codes.Error, "failed to normalize")
		s.tel.ReportBroken(report_session_current_bookings, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("bookings", len(bookings)))
	return bookings, nil
}

// AvailableQuery selects the slots of one teacher in a date window. Zero
// Start means the most recent Sunday on or before today, zero End means six
// weeks after Start.
type AvailableQuery struct {
	TeacherId string
	Start     time.Time
	End       time.Time
}

func (s *Session) window(q AvailableQuery) (time.Time, time.Time) {
	start := q.Start
	if start.IsZero() {
		start = chrono.MostRecentSunday(s.time.Now())
	}
	end := q.End
	if end.IsZero() {
		end = start.AddDate(0, 0, defaultWindow)
	}
	return start, end
}

// formatQueryDate renders the calendar day of t as midnight UTC, the way the
// booking calendar sends it.
func formatQueryDate(t time.Time) string {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Format(queryDateLayout)
}

type dataPerson struct {
	Id string `json:"id"`
}

type dataRequest struct {
	Source          string     `json:"Source"`
	Person          dataPerson `json:"Person"`
	EducationTypeId int        `json:"EducationTypeId"`
	Start           string     `json:"Start"`
	End             string     `json:"End"`
	SelectedView    string     `json:"SelectedView"`
	ShowInListView  bool       `json:"ShowInListView"`
	TeacherIDs      []string   `json:"TeacherIDs"`
}

type dataResponse struct {
	AvailableTimeslots *bool         `json:"availableTimeslots"`
	Items              *[]RawBooking `json:"items"`
}

// AvailableBookings returns a lazy sequence of the bookable slots matching
// q, nothing is requested until the first call to Next. Each call issues a
// new query.
func (s *Session) AvailableBookings(ctx context.Context, q AvailableQuery) *BookingIterator {
	return newBookingIterator(func() ([]RawBooking, error) {
		return s.fetchAvailable(ctx, q)
	}, s.time.Location())
}

func (s *Session) fetchAvailable(ctx context.Context, q AvailableQuery) ([]RawBooking, error) {
	ctx, span := tracer.Start(ctx, "session:AvailableBookings")
	defer span.End()

	if s.state != StateAuthenticated {
		return nil, ErrNotAuthenticated
	}

	start, end := s.window(q)
	span.SetAttributes(
		attribute.String("teacher", q.TeacherId),
		attribute.String("start", formatQueryDate(start)),
		attribute.String("end", formatQueryDate(end)),
	)

	res, err := s.Http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(dataRequest{
			Source:          "StudentCentral",
			Person:          dataPerson{Id: s.opts.PersonId},
			EducationTypeId: s.opts.EducationTypeId,
			Start:           formatQueryDate(start),
			End:             formatQueryDate(end),
			SelectedView:    "Free",
			ShowInListView:  false,
			TeacherIDs:      []string{q.TeacherId},
		}).
		Post("/Booking/Home/Data")
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch")
		s.tel.ReportBroken(report_session_available, err)
		return nil, err
	}
	err = checkOk(res)
	if err != nil {
		span.SetStatus(codes.Error, "unsuccessful status")
		s.tel.ReportBroken(report_session_available, err)
		return nil, err
	}

	var payload dataResponse
	err = json.Unmarshal(res.Body(), &payload)
	if err == nil && payload.AvailableTimeslots == nil {
		err = errors.New("missing availableTimeslots")
	}
	if err == nil && *payload.AvailableTimeslots && payload.Items == nil {
		err = errors.New("missing items")
	}
	if err != nil {
		dataErr := &DataError{Url: res.Request.URL, Body: res.String(), Err: err}
		span.SetStatus(codes.Error, "unexpected response")
		s.tel.ReportBroken(report_session_available, dataErr)
		return nil, dataErr
	}

	if !*payload.AvailableTimeslots {
		s.tel.ReportDebug("no available timeslots", q.TeacherId)
		return nil, nil
	}
	s.tel.ReportCount(report_session_available, int64(len(*payload.Items)))
	return *payload.Items, nil
}
