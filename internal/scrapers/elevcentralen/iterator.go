package elevcentralen

import "time"

// BookingIterator lazily normalizes the bookable items of a query.
//
//	it := session.AvailableBookings(ctx, query)
//	for it.Next() {
//		b := it.Booking()
//	}
//	if err := it.Err(); err != nil {
//		...
//	}
//
// An iterator is single-pass, calling AvailableBookings again starts over
// with a new request.
type BookingIterator struct {
	fetch func() ([]RawBooking, error)
	loc   *time.Location

	fetched bool
	items   []RawBooking
	idx     int
	current Booking
	err     error
}

func newBookingIterator(fetch func() ([]RawBooking, error), loc *time.Location) *BookingIterator {
	return &BookingIterator{fetch: fetch, loc: loc}
}

// Next advances to the next bookable slot, it returns false at the end of
// the sequence or on error.
func (it *BookingIterator) Next() bool {
	if it.err != nil {
		return false
	}
	if !it.fetched {
		it.fetched = true
		it.items, it.err = it.fetch()
		if it.err != nil {
			return false
		}
	}

	for it.idx < len(it.items) {
		raw := it.items[it.idx]
		it.idx++
		if !raw.IsPersonBookable {
			continue
		}
		b, err := Normalize(raw, it.loc)
		if err != nil {
			it.err = err
			return false
		}
		it.current = b
		return true
	}
	return false
}

// Booking returns the slot Next advanced to.
func (it *BookingIterator) Booking() Booking {
	return it.current
}

func (it *BookingIterator) Err() error {
	return it.err
}

// Collect drains the iterator.
func (it *BookingIterator) Collect() ([]Booking, error) {
	var out []Booking
	for it.Next() {
		out = append(out, it.Booking())
	}
	return out, it.Err()
}
