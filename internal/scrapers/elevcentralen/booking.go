package elevcentralen

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"bookingchecker/lib/textutil"
)

// ID is an identifier that the server sends either as a JSON number or as a
// JSON string.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		err := json.Unmarshal(data, &s)
		if err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	err := json.Unmarshal(data, &n)
	if err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

type RawEmployee struct {
	Id   ID     `json:"id"`
	Name string `json:"name"`
}

// RawBooking is a booking as the server sends it, only the fields that are
// used are decoded.
type RawBooking struct {
	Id               ID            `json:"id"`
	Employees        []RawEmployee `json:"employees"`
	Start            string        `json:"start"`
	End              string        `json:"end"`
	IsPersonBookable bool          `json:"isPersonBookable"`
}

// Booking is a normalized appointment slot.
//
// Two bookings are the same slot only if every field matches, see Equal.
type Booking struct {
	Teacher   string    `json:"teacher"`
	TeacherId ID        `json:"teacher_id"`
	SlotId    ID        `json:"slot_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Bookable  bool      `json:"bookable"`
}

// Equal compares every field, timestamps are compared as instants.
func (b Booking) Equal(other Booking) bool {
	return b.Teacher == other.Teacher &&
		b.TeacherId == other.TeacherId &&
		b.SlotId == other.SlotId &&
		b.Bookable == other.Bookable &&
		b.Start.Equal(other.Start) &&
		b.End.Equal(other.End)
}

// Date is the calendar day the booking starts on, in the booking's timezone.
func (b Booking) Date() Date {
	return DateOf(b.Start)
}

// Raw renders the booking back into the server's representation.
func (b Booking) Raw() RawBooking {
	return RawBooking{
		Id: b.SlotId,
		Employees: []RawEmployee{
			{Id: b.TeacherId, Name: b.Teacher},
		},
		Start:            b.Start.Format(time.RFC3339Nano),
		End:              b.End.Format(time.RFC3339Nano),
		IsPersonBookable: b.Bookable,
	}
}

// Date is a calendar day without a timezone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func DateOf(t time.Time) Date {
	year, month, day := t.Date()
	return Date{Year: year, Month: month, Day: day}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// timestamps without an offset are in the site's timezone
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

func parseTimestamp(value string, loc *time.Location) (time.Time, error) {
	parsed, err := time.Parse(time.RFC3339, value)
	if err == nil {
		return parsed.In(loc), nil
	}
	for _, layout := range localLayouts {
		parsed, localErr := time.ParseInLocation(layout, value, loc)
		if localErr == nil {
			return parsed, nil
		}
	}
	return time.Time{}, err
}

// Normalize resolves the teacher name and parses the timestamps of a raw
// booking. Timestamps are converted to loc.
func Normalize(raw RawBooking, loc *time.Location) (Booking, error) {
	if len(raw.Employees) == 0 {
		return Booking{}, &ParseError{
			Field: "employees",
			Err:   fmt.Errorf("booking %s has no employees", raw.Id),
		}
	}

	start, err := parseTimestamp(raw.Start, loc)
	if err != nil {
		return Booking{}, &ParseError{Field: "start", Value: raw.Start, Err: err}
	}
	end, err := parseTimestamp(raw.End, loc)
	if err != nil {
		return Booking{}, &ParseError{Field: "end", Value: raw.End, Err: err}
	}
	if !start.Before(end) {
		return Booking{}, &ParseError{
			Field: "end",
			Value: raw.End,
			Err:   fmt.Errorf("not after start %s", raw.Start),
		}
	}

	return Booking{
		Teacher:   textutil.CollapseWhitespace(raw.Employees[0].Name),
		TeacherId: raw.Employees[0].Id,
		SlotId:    raw.Id,
		Start:     start,
		End:       end,
		Bookable:  raw.IsPersonBookable,
	}, nil
}

// NormalizeAll normalizes every raw booking, stopping at the first error.
func NormalizeAll(raws []RawBooking, loc *time.Location) ([]Booking, error) {
	bookings := make([]Booking, len(raws))
	for i, raw := range raws {
		b, err := Normalize(raw, loc)
		if err != nil {
			return nil, err
		}
		bookings[i] = b
	}
	return bookings, nil
}

// ContainsBooking reports whether target is Equal to any of list.
func ContainsBooking(list []Booking, target Booking) bool {
	for _, b := range list {
		if b.Equal(target) {
			return true
		}
	}
	return false
}
