package commands

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bookingchecker/internal/components/state"
	"bookingchecker/internal/components/telemetry"
	"bookingchecker/internal/config"
	"bookingchecker/internal/notify"
	"bookingchecker/internal/scrapers/elevcentralen"
	"bookingchecker/lib/testutil"

	"github.com/stretchr/testify/require"
)

func TestOpenStoresFiles(t *testing.T) {
	s, err := openStores(context.Background(), config.State{
		CookiePath: "a/.cookie.json",
		CachePath:  "b/.cache.json",
	})
	require.NoError(t, err)
	require.Equal(t, state.FileBlob{Path: "a/.cookie.json"}, s.cookies)
	require.Equal(t, state.FileBlob{Path: "b/.cache.json"}, s.notified)
	require.NoError(t, s.close())
}

func TestOpenStoresSQL(t *testing.T) {
	s, err := openStores(context.Background(), config.State{
		CookiePath: "unused",
		Db:         filepath.Join(t.TempDir(), "state.db"),
	})
	require.NoError(t, err)
	defer s.close()

	ctx := context.Background()
	require.NoError(t, s.cookies.Save(ctx, []byte("[]")))
	_, err = s.notified.Load(ctx)
	require.ErrorIs(t, err, state.ErrNotFound)

	contents, err := s.cookies.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "[]", string(contents))
}

func TestNewNotifier(t *testing.T) {
	tel := &telemetry.Recorder{}

	_, ok := newNotifier(config.Notify{
		Mailgun: config.Mailgun{Domain: "mg.example.org", ApiKey: "key"},
	}, 0, tel).(notify.Mailgun)
	require.True(t, ok)

	_, ok = newNotifier(config.Notify{
		Smtp: config.Smtp{Server: "smtp.example.org"},
	}, 0, tel).(notify.Smtp)
	require.True(t, ok)
}

func TestRenderBookings(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Stockholm")
	require.NoError(t, err)
	start := time.Date(2024, 6, 17, 9, 0, 0, 0, loc)

	var buf bytes.Buffer
	renderBookings(&buf, "Available bookings", []elevcentralen.Booking{{
		Teacher:   "Jane Doe",
		TeacherId: "42",
		SlotId:    "7",
		Start:     start,
		End:       start.Add(time.Hour),
	}})

	out := buf.String()
	require.Contains(t, strings.ToLower(out), "available bookings")
	require.Contains(t, out, "Jane Doe")
	require.Contains(t, out, "2024-06-17")
	require.Contains(t, out, "09:00 - 10:00")
}

func TestNewAppDump(t *testing.T) {
	site := testutil.NewFakeSite(t)
	dir := t.TempDir()
	dumpDir := filepath.Join(dir, "dump")

	a, err := newApp(context.Background(), config.Config{
		Elevcentralen: config.Elevcentralen{
			BaseUrl:   site.BaseUrl(),
			Timezone:  "Europe/Stockholm",
			PersonId:  "9001",
			Username:  site.Username,
			Password:  site.Password,
			TeacherId: "42",
		},
		State: config.State{
			CookiePath: filepath.Join(dir, ".cookie.json"),
			CachePath:  filepath.Join(dir, ".cache.json"),
		},
	}, &telemetry.Recorder{}, dumpDir)
	require.NoError(t, err)
	defer a.close()

	require.NoError(t, a.authenticate(context.Background()))
	require.Equal(t, elevcentralen.StateAuthenticated, a.session.State())

	entries, err := os.ReadDir(dumpDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	for _, e := range entries {
		contents, err := os.ReadFile(filepath.Join(dumpDir, e.Name()))
		require.NoError(t, err)
		require.NotContains(t, string(contents), site.Password)
	}
}

func TestNewNotifierTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	notifier := newNotifier(config.Notify{
		Mailgun: config.Mailgun{Domain: "mg.example.org", ApiKey: "key", BaseUrl: server.URL},
	}, time.Second, &telemetry.Recorder{})

	start := time.Now()
	err := notifier.Send(context.Background(), notify.Message{To: []string{"a@example.org"}})
	require.Error(t, err)
	require.Less(t, time.Since(start), 10*time.Second)
}

func TestValidateNotifyDryRun(t *testing.T) {
	cfg := config.Config{Notify: config.Notify{
		Sender:    "checker@example.org",
		Receivers: []string{"a@example.org"},
	}}

	var missing *config.MissingError
	require.True(t, errors.As(validateNotify(cfg, false), &missing))
	require.Equal(t, []string{"MAILGUN_URL", "MAILGUN_API_KEY"}, missing.Fields)
	require.NoError(t, validateNotify(cfg, true))

	cfg.Notify.Receivers = nil
	require.True(t, errors.As(validateNotify(cfg, true), &missing))
	require.Equal(t, []string{"MAILGUN_RECEIVERS"}, missing.Fields)
}
