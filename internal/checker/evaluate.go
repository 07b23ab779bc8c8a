package checker

import (
	"bookingchecker/internal/scrapers/elevcentralen"
)

type Action int

const (
	NoAction Action = iota
	Notify
)

func (a Action) String() string {
	if a == Notify {
		return "notify"
	}
	return "no-action"
}

// Decision is the outcome of comparing one run's slots against what was
// already notified.
type Decision struct {
	Action Action
	// ExistingDaySlots are slots on a day the student already has a
	// booking on.
	ExistingDaySlots []elevcentralen.Booking
	NewDaySlots      []elevcentralen.Booking
	// Candidates is ExistingDaySlots followed by NewDaySlots, it replaces
	// the notified cache when Action is Notify.
	Candidates []elevcentralen.Booking
}

// Evaluate partitions available by whether its date already holds one of
// the current bookings and decides whether the result is news.
//
// It is NoAction exactly when every candidate was notified before, so an
// empty available list never notifies.
func Evaluate(current, available, notified []elevcentralen.Booking) Decision {
	occupied := make(map[elevcentralen.Date]struct{}, len(current))
	for _, b := range current {
		occupied[b.Date()] = struct{}{}
	}

	var decision Decision
	for _, b := range available {
		if _, ok := occupied[b.Date()]; ok {
			decision.ExistingDaySlots = append(decision.ExistingDaySlots, b)
			continue
		}
		decision.NewDaySlots = append(decision.NewDaySlots, b)
	}

	decision.Candidates = make([]elevcentralen.Booking, 0, len(available))
	decision.Candidates = append(decision.Candidates, decision.ExistingDaySlots...)
	decision.Candidates = append(decision.Candidates, decision.NewDaySlots...)

	for _, c := range decision.Candidates {
		if !elevcentralen.ContainsBooking(notified, c) {
			decision.Action = Notify
			break
		}
	}
	return decision
}
