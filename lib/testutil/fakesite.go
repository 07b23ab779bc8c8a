// Package testutil contains an in-process imitation of elevcentralen for
// tests that need to log in and fetch bookings.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

const SessionCookie = ".ASPXAUTH"

// Slot is a booking as served by the fake site.
type Slot struct {
	Id        int64
	TeacherId int64
	Teacher   string
	Start     string
	End       string
	Bookable  bool
}

func (s Slot) render() map[string]any {
	return map[string]any{
		"id": s.Id,
		"employees": []map[string]any{
			{"id": s.TeacherId, "name": s.Teacher},
		},
		"start":            s.Start,
		"end":              s.End,
		"isPersonBookable": s.Bookable,
	}
}

type Counters struct {
	Probes        int
	LoginPages    int
	LoginPosts    int
	Current       int
	Data          int
	SuccessLogins int
}

// FakeSite serves the subset of elevcentralen that the scraper uses under
// the /en prefix.
type FakeSite struct {
	Server *httptest.Server

	lock     sync.Mutex
	sessions map[string]bool
	nextId   int
	counters Counters

	// Token is the anti-forgery token on the login page, "" renders a page
	// without one.
	Token    string
	Username string
	Password string
	// Blocked makes the base page redirect even for valid sessions, like an
	// unread system message does.
	Blocked bool

	Current   []Slot
	Available []Slot
	// NoTimeslots makes the data endpoint report availableTimeslots=false.
	NoTimeslots bool
	// CurrentBody replaces the JSON body of the current bookings endpoint.
	CurrentBody string

	// LastDataRequest is the decoded body of the last data request.
	LastDataRequest map[string]any
}

func NewFakeSite(t testing.TB) *FakeSite {
	site := &FakeSite{
		sessions: map[string]bool{},
		Token:    "csrf-token-1",
		Username: "student",
		Password: "hunter2",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/en", site.handleBase)
	mux.HandleFunc("/en/Login/Index", site.handleLoginPage)
	mux.HandleFunc("/en/Login/Authenticate", site.handleLogin)
	mux.HandleFunc("/en/Booking/Home/CurrentBookings", site.handleCurrent)
	mux.HandleFunc("/en/Booking/Home/Data", site.handleData)
	mux.HandleFunc("/en/SystemMessage", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>Please read this message</body></html>"))
	})

	site.Server = httptest.NewServer(mux)
	t.Cleanup(site.Server.Close)
	return site
}

// BaseUrl is the url to pass as the session's base url.
func (f *FakeSite) BaseUrl() string {
	return f.Server.URL + "/en"
}

// IssueSession returns the value of a session cookie the site accepts.
func (f *FakeSite) IssueSession() string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.issueSession()
}

func (f *FakeSite) issueSession() string {
	f.nextId++
	value := fmt.Sprintf("session-%d", f.nextId)
	f.sessions[value] = true
	return value
}

// ExpireSessions invalidates every session issued so far.
func (f *FakeSite) ExpireSessions() {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.sessions = map[string]bool{}
}

func (f *FakeSite) Counters() Counters {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.counters
}

func (f *FakeSite) authorized(r *http.Request) bool {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return false
	}
	return f.sessions[cookie.Value]
}

func (f *FakeSite) handleBase(w http.ResponseWriter, r *http.Request) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if r.Method == http.MethodHead {
		f.counters.Probes++
	}
	if !f.authorized(r) {
		http.Redirect(w, r, "/en/Login/Index", http.StatusFound)
		return
	}
	if f.Blocked {
		http.Redirect(w, r, "/en/SystemMessage", http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte("<html><body>Welcome</body></html>"))
}

func (f *FakeSite) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.counters.LoginPages++

	tokenInput := ""
	if f.Token != "" {
		tokenInput = fmt.Sprintf(`<input name="__RequestVerificationToken" type="hidden" value="%s" />`, f.Token)
	}
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprintf(w, `<html><body>
<form action="/en/Login/Authenticate" method="post">
%s
<input name="Username" type="text" value="" />
<input name="Password" type="password" />
</form>
</body></html>`, tokenInput)
}

func (f *FakeSite) handleLogin(w http.ResponseWriter, r *http.Request) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.counters.LoginPosts++

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	err := r.ParseForm()
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("__RequestVerificationToken") != f.Token {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("invalid anti-forgery token"))
		return
	}
	if r.PostForm.Get("Username") != f.Username || r.PostForm.Get("Password") != f.Password {
		http.Redirect(w, r, "/en/Login/Index", http.StatusFound)
		return
	}

	f.counters.SuccessLogins++
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    f.issueSession(),
		Path:     "/",
		HttpOnly: true,
	})
	http.Redirect(w, r, "/en", http.StatusFound)
}

func writeJson(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(value)
}

func renderSlots(slots []Slot) []map[string]any {
	items := make([]map[string]any, len(slots))
	for i, s := range slots {
		items[i] = s.render()
	}
	return items
}

func (f *FakeSite) handleCurrent(w http.ResponseWriter, r *http.Request) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.counters.Current++

	if !f.authorized(r) {
		http.Redirect(w, r, "/en/Login/Index", http.StatusFound)
		return
	}
	if f.CurrentBody != "" {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(f.CurrentBody))
		return
	}
	writeJson(w, map[string]any{"items": renderSlots(f.Current)})
}

func (f *FakeSite) handleData(w http.ResponseWriter, r *http.Request) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.counters.Data++

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !f.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("not logged in"))
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	var decoded map[string]any
	err = json.Unmarshal(body, &decoded)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(err.Error()))
		return
	}
	f.LastDataRequest = decoded

	if f.NoTimeslots {
		writeJson(w, map[string]any{"availableTimeslots": false, "items": []any{}})
		return
	}
	writeJson(w, map[string]any{
		"availableTimeslots": true,
		"items":              renderSlots(f.Available),
	})
}
