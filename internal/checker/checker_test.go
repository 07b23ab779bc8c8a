package checker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"bookingchecker/internal/components/chrono"
	"bookingchecker/internal/components/state"
	"bookingchecker/internal/components/telemetry"
	"bookingchecker/internal/notify"
	"bookingchecker/internal/scrapers/elevcentralen"
	"bookingchecker/lib/testutil"

	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	sent []notify.Message
	err  error
}

func (f *fakeNotifier) Send(ctx context.Context, msg notify.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fixture struct {
	site      *testutil.FakeSite
	cacheBlob state.FileBlob
	cache     NotifiedCache
	notifier  *fakeNotifier
	tel       *telemetry.Recorder
	checker   Checker
}

func newFixture(t *testing.T) fixture {
	dir := t.TempDir()
	site := testutil.NewFakeSite(t)
	site.Current = []testutil.Slot{
		{Id: 100, TeacherId: 42, Teacher: "Jane Doe", Start: "2024-06-10T14:00:00", End: "2024-06-10T15:00:00", Bookable: false},
	}
	site.Available = []testutil.Slot{
		{Id: 1, TeacherId: 42, Teacher: "Jane Doe", Start: "2024-06-10T09:00:00", End: "2024-06-10T10:00:00", Bookable: true},
		{Id: 2, TeacherId: 42, Teacher: "Jane Doe", Start: "2024-06-17T09:00:00", End: "2024-06-17T10:00:00", Bookable: true},
	}

	tel := &telemetry.Recorder{}
	clock := chrono.FixedTime{At: time.Date(2024, 6, 12, 10, 0, 0, 0, stockholm)}
	session, err := elevcentralen.NewSession(
		elevcentralen.SessionOptions{BaseUrl: site.BaseUrl(), PersonId: "9001"},
		elevcentralen.NewCookieStore(state.FileBlob{Path: filepath.Join(dir, ".cookie.json")}),
		clock,
		tel,
	)
	if err != nil {
		t.Fatal(err)
	}

	cacheBlob := state.FileBlob{Path: filepath.Join(dir, ".booking_checker_cache.json")}
	cache := NewNotifiedCache(cacheBlob, stockholm, tel)
	notifier := &fakeNotifier{}
	checker := NewChecker(Options{
		Username:  site.Username,
		Password:  site.Password,
		TeacherId: "42",
		Sender:    "checker@example.org",
		Receivers: []string{"a@example.org", "b@example.org"},
	}, session, cache, notifier, tel)

	return fixture{
		site:      site,
		cacheBlob: cacheBlob,
		cache:     cache,
		notifier:  notifier,
		tel:       tel,
		checker:   checker,
	}
}

func TestRunNotifies(t *testing.T) {
	f := newFixture(t)

	decision, err := f.checker.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Notify, decision.Action)
	require.Len(t, decision.ExistingDaySlots, 1)
	require.Len(t, decision.NewDaySlots, 1)

	require.Len(t, f.notifier.sent, 1)
	msg := f.notifier.sent[0]
	require.Equal(t, "Automagic Körskole Checker <checker@example.org>", msg.From)
	require.Equal(t, []string{"a@example.org", "b@example.org"}, msg.To)
	require.Equal(t, "New available appointments", msg.Subject)
	require.Equal(t, "New driving days are available:\n"+
		"Jane Doe: 2024-06-17 09:00 - 10:00\n\n"+
		"New times are available:\n"+
		"Jane Doe: 2024-06-10 09:00 - 10:00", msg.Text)

	notified := f.cache.Load(context.Background())
	require.Len(t, notified, 2)
	for _, c := range decision.Candidates {
		require.True(t, elevcentralen.ContainsBooking(notified, c))
	}

	// the same slots do not notify twice
	decision, err = f.checker.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, NoAction, decision.Action)
	require.Len(t, f.notifier.sent, 1)
}

func TestRunReplacesCache(t *testing.T) {
	f := newFixture(t)
	_, err := f.checker.Run(context.Background())
	require.NoError(t, err)

	f.site.Available = f.site.Available[1:]
	f.site.Available = append(f.site.Available, testutil.Slot{
		Id: 3, TeacherId: 42, Teacher: "Jane Doe", Start: "2024-06-18T09:00:00", End: "2024-06-18T10:00:00", Bookable: true,
	})

	decision, err := f.checker.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Notify, decision.Action)

	notified := f.cache.Load(context.Background())
	ids := []elevcentralen.ID{}
	for _, b := range notified {
		ids = append(ids, b.SlotId)
	}
	require.ElementsMatch(t, []elevcentralen.ID{"2", "3"}, ids)
}

func TestRunNothingAvailable(t *testing.T) {
	f := newFixture(t)
	f.site.NoTimeslots = true

	decision, err := f.checker.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, NoAction, decision.Action)
	require.Empty(t, f.notifier.sent)

	_, err = os.Stat(f.cacheBlob.Path)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunSendFails(t *testing.T) {
	f := newFixture(t)
	sendErr := errors.New("mailgun is down")
	f.notifier.err = sendErr

	_, err := f.checker.Run(context.Background())
	require.ErrorIs(t, err, sendErr)
	require.Len(t, f.tel.Reports("broken", report_checker_run), 1)

	_, err = os.Stat(f.cacheBlob.Path)
	require.ErrorIs(t, err, os.ErrNotExist)

	// the slots are still news on the next run
	f.notifier.err = nil
	decision, err := f.checker.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Notify, decision.Action)
}

func TestRunBlocked(t *testing.T) {
	f := newFixture(t)
	f.site.Blocked = true

	_, err := f.checker.Run(context.Background())
	var authErr *elevcentralen.AuthError
	require.True(t, errors.As(err, &authErr), "expected AuthError, got %v", err)
	require.Empty(t, f.notifier.sent)
	require.Zero(t, f.site.Counters().Data)
}

func TestRunCorruptCache(t *testing.T) {
	f := newFixture(t)
	err := os.WriteFile(f.cacheBlob.Path, []byte("not json"), 0600)
	require.NoError(t, err)

	decision, err := f.checker.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Notify, decision.Action)
	require.Len(t, f.tel.Reports("warning", report_notified_cache_load), 1)
	require.Len(t, f.cache.Load(context.Background()), 2)
}

func TestReportFailure(t *testing.T) {
	f := newFixture(t)

	err := f.checker.ReportFailure(context.Background(), errors.New("boom"))
	require.NoError(t, err)
	require.Len(t, f.notifier.sent, 1)
	require.Equal(t, []string{"checker@example.org"}, f.notifier.sent[0].To)
	require.Equal(t, "Booking checker error", f.notifier.sent[0].Subject)
	require.Equal(t, "boom", f.notifier.sent[0].Text)
}

func TestNotifiedCacheSQL(t *testing.T) {
	db, err := state.OpenSQL(":memory:", "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store, err := state.NewSQLStore(context.Background(), db)
	require.NoError(t, err)

	cache := NewNotifiedCache(store.Blob("notified"), stockholm, &telemetry.Recorder{})
	require.Empty(t, cache.Load(context.Background()))

	bookings := []elevcentralen.Booking{slot("1", 10, 9), slot("2", 17, 9)}
	require.NoError(t, cache.Replace(context.Background(), bookings))

	loaded := cache.Load(context.Background())
	require.Len(t, loaded, 2)
	for i, b := range loaded {
		require.True(t, bookings[i].Equal(b))
		require.Equal(t, stockholm, b.Start.Location())
	}

	require.NoError(t, cache.Replace(context.Background(), nil))
	require.Empty(t, cache.Load(context.Background()))
}
