package notify

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"bookingchecker/internal/components/telemetry"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type mailgunRequest struct {
	Path     string
	User     string
	Password string
	Form     url.Values
}

func fakeMailgun(t *testing.T, status int) (*httptest.Server, func() []mailgunRequest) {
	var lock sync.Mutex
	var requests []mailgunRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, password, _ := r.BasicAuth()
		err := r.ParseForm()
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		lock.Lock()
		requests = append(requests, mailgunRequest{
			Path:     r.URL.Path,
			User:     user,
			Password: password,
			Form:     r.PostForm,
		})
		lock.Unlock()

		w.WriteHeader(status)
		if status >= 400 {
			w.Write([]byte(`{"message": "Forbidden"}`))
			return
		}
		w.Write([]byte(`{"id": "<1@example.org>", "message": "Queued. Thank you."}`))
	}))
	t.Cleanup(server.Close)

	return server, func() []mailgunRequest {
		lock.Lock()
		defer lock.Unlock()
		return requests
	}
}

func TestMailgunSend(t *testing.T) {
	server, requests := fakeMailgun(t, http.StatusOK)
	mailgun := NewMailgun(MailgunOptions{
		Domain:  "mg.example.org",
		ApiKey:  "key-123",
		BaseUrl: server.URL + "/v3",
	}, &telemetry.Recorder{})

	err := mailgun.Send(context.Background(), Message{
		From:    Sender("checker@example.org"),
		To:      []string{"a@example.org", "b@example.org"},
		Subject: "New available appointments",
		Text:    "hello",
	})
	require.NoError(t, err)

	expected := []mailgunRequest{{
		Path:     "/v3/mg.example.org/messages",
		User:     "api",
		Password: "key-123",
		Form: url.Values{
			"from":    {"Automagic Körskole Checker <checker@example.org>"},
			"to":      {"a@example.org", "b@example.org"},
			"subject": {"New available appointments"},
			"text":    {"hello"},
		},
	}}
	if diff := cmp.Diff(expected, requests()); diff != "" {
		t.Fatal(diff)
	}
}

func TestMailgunRejected(t *testing.T) {
	server, _ := fakeMailgun(t, http.StatusUnauthorized)
	tel := &telemetry.Recorder{}
	mailgun := NewMailgun(MailgunOptions{
		Domain:  "mg.example.org",
		ApiKey:  "wrong",
		BaseUrl: server.URL + "/v3",
	}, tel)

	err := mailgun.Send(context.Background(), Message{To: []string{"a@example.org"}})

	var mailgunErr *MailgunError
	require.True(t, errors.As(err, &mailgunErr), "expected MailgunError, got %v", err)
	require.Equal(t, http.StatusUnauthorized, mailgunErr.Status)
	require.Contains(t, mailgunErr.Body, "Forbidden")
	require.Len(t, tel.Reports("broken", report_mailgun_send), 1)
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	err := Writer{W: &buf}.Send(context.Background(), Message{
		From:    "me",
		To:      []string{"a", "b"},
		Subject: "subject",
		Text:    "body",
	})
	require.NoError(t, err)
	require.Equal(t, "From: me\nTo: a, b\nSubject: subject\n\nbody\n", buf.String())
}

func TestSmtpDefaults(t *testing.T) {
	require.Equal(t, 587, NewSmtp(SmtpOptions{Server: "smtp.example.org"}).opts.Port)
	require.Equal(t, 25, NewSmtp(SmtpOptions{Server: "smtp.example.org", Port: 25}).opts.Port)
}
