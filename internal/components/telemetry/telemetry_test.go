package telemetry

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

func TestScopedAPI(t *testing.T) {
	rec := &Recorder{}
	scoped := NewScopedAPI("checker", NewScopedAPI("elevcentralen", rec))

	scoped.ReportWarning("session.restore", "bad json")
	scoped.ReportCount("session.available-bookings", 3)

	warnings := rec.Reports("warning", "session.restore")
	require.Len(t, warnings, 1)
	require.Equal(t, "elevcentralen: checker: session.restore", warnings[0].Id)
	require.Equal(t, []any{"bad json"}, warnings[0].Params)
	require.Equal(t, []any{int64(3)}, rec.Reports("count", "")[0].Params)
	require.Empty(t, rec.Reports("broken", ""))
}

func TestSlogAPI(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	tel := NewSlogAPI(logger).With("run", "abc")

	tel.ReportBroken("checker.run", errors.New("boom"))

	out := buf.String()
	require.Contains(t, out, "level=ERROR")
	require.Contains(t, out, "run=abc")
	require.Contains(t, out, "id=checker.run")
	require.Contains(t, out, "params.0=boom")
}

func TestInstrumentResty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := &Recorder{}
	client := resty.New().SetBaseURL(server.URL)
	InstrumentResty(client, "test", rec)

	_, err := client.R().Get("/")
	require.NoError(t, err)
	require.Len(t, rec.Reports("debug", report_resty_request), 1)
	require.Len(t, rec.Reports("debug", report_resty_response), 1)

	server.Close()
	_, err = client.R().Get("/")
	require.Error(t, err)
	require.Len(t, rec.Reports("broken", report_resty_response), 1)
}
