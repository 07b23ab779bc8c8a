package checker

import (
	"testing"
	"time"

	"bookingchecker/internal/scrapers/elevcentralen"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var stockholm = func() *time.Location {
	loc, err := time.LoadLocation("Europe/Stockholm")
	if err != nil {
		panic(err)
	}
	return loc
}()

func slot(id string, day, hour int) elevcentralen.Booking {
	start := time.Date(2024, time.June, day, hour, 0, 0, 0, stockholm)
	return elevcentralen.Booking{
		Teacher:   "Jane Doe",
		TeacherId: "42",
		SlotId:    elevcentralen.ID(id),
		Start:     start,
		End:       start.Add(time.Hour),
		Bookable:  true,
	}
}

func TestEvaluateNewSlots(t *testing.T) {
	current := []elevcentralen.Booking{slot("100", 10, 14)}
	available := []elevcentralen.Booking{slot("1", 10, 9), slot("2", 17, 9)}

	decision := Evaluate(current, available, nil)

	expected := Decision{
		Action:           Notify,
		ExistingDaySlots: []elevcentralen.Booking{slot("1", 10, 9)},
		NewDaySlots:      []elevcentralen.Booking{slot("2", 17, 9)},
		Candidates:       []elevcentralen.Booking{slot("1", 10, 9), slot("2", 17, 9)},
	}
	if diff := cmp.Diff(expected, decision); diff != "" {
		t.Fatal(diff)
	}
}

func TestEvaluateAlreadyNotified(t *testing.T) {
	current := []elevcentralen.Booking{slot("100", 10, 14)}
	available := []elevcentralen.Booking{slot("1", 10, 9), slot("2", 17, 9)}
	notified := []elevcentralen.Booking{slot("2", 17, 9), slot("1", 10, 9)}

	decision := Evaluate(current, available, notified)
	require.Equal(t, NoAction, decision.Action)
}

func TestEvaluateNotifiedInOtherZone(t *testing.T) {
	available := []elevcentralen.Booking{slot("1", 10, 9)}
	notified := slot("1", 10, 9)
	notified.Start = notified.Start.UTC()
	notified.End = notified.End.UTC()

	decision := Evaluate(nil, available, []elevcentralen.Booking{notified})
	require.Equal(t, NoAction, decision.Action)
}

func TestEvaluateNothingAvailable(t *testing.T) {
	current := []elevcentralen.Booking{slot("100", 10, 14)}

	decision := Evaluate(current, nil, []elevcentralen.Booking{slot("1", 10, 9)})
	require.Equal(t, NoAction, decision.Action)
	require.Empty(t, decision.Candidates)
}

func TestEvaluateChangedSlot(t *testing.T) {
	available := []elevcentralen.Booking{slot("1", 10, 9), slot("2", 17, 9)}
	moved := slot("2", 17, 9)
	moved.End = moved.End.Add(30 * time.Minute)

	decision := Evaluate(nil, available, []elevcentralen.Booking{slot("1", 10, 9), moved})
	require.Equal(t, Notify, decision.Action)
	require.Len(t, decision.Candidates, 2)
}

func TestEvaluatePartition(t *testing.T) {
	current := []elevcentralen.Booking{slot("100", 10, 14), slot("101", 12, 8)}
	available := []elevcentralen.Booking{
		slot("1", 11, 9),
		slot("2", 10, 9),
		slot("3", 13, 9),
		slot("4", 12, 16),
		slot("5", 10, 17),
	}

	decision := Evaluate(current, available, nil)

	occupied := map[elevcentralen.Date]bool{}
	for _, b := range current {
		occupied[b.Date()] = true
	}
	for _, b := range decision.ExistingDaySlots {
		require.True(t, occupied[b.Date()], b.SlotId)
	}
	for _, b := range decision.NewDaySlots {
		require.False(t, occupied[b.Date()], b.SlotId)
	}
	require.Equal(t, len(available), len(decision.ExistingDaySlots)+len(decision.NewDaySlots))

	ids := func(list []elevcentralen.Booking) []elevcentralen.ID {
		out := make([]elevcentralen.ID, len(list))
		for i, b := range list {
			out[i] = b.SlotId
		}
		return out
	}
	require.Equal(t, []elevcentralen.ID{"2", "4", "5"}, ids(decision.ExistingDaySlots))
	require.Equal(t, []elevcentralen.ID{"1", "3"}, ids(decision.NewDaySlots))
	require.Equal(t, []elevcentralen.ID{"2", "4", "5", "1", "3"}, ids(decision.Candidates))
}

func TestComposeMessage(t *testing.T) {
	decision := Evaluate(
		[]elevcentralen.Booking{slot("100", 10, 14)},
		[]elevcentralen.Booking{slot("1", 10, 9), slot("2", 17, 9), slot("3", 18, 13)},
		nil,
	)

	subject, body := ComposeMessage(decision)
	require.Equal(t, "New available appointments", subject)
	require.Equal(t, "New driving days are available:\n"+
		"Jane Doe: 2024-06-17 09:00 - 10:00\n"+
		"Jane Doe: 2024-06-18 13:00 - 14:00\n"+
		"\n"+
		"New times are available:\n"+
		"Jane Doe: 2024-06-10 09:00 - 10:00", body)
}
