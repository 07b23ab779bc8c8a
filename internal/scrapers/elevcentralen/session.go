// session.go contains the login logic for elevcentralen, it keeps a cookie
// based session alive across runs and only logs in when the stored session
// has expired.

package elevcentralen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"bookingchecker/internal/components/assert"
	"bookingchecker/internal/components/chrono"
	"bookingchecker/internal/components/state"
	"bookingchecker/internal/components/telemetry"
	"bookingchecker/lib/htmlutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("bookingchecker/scrapers/elevcentralen")

const (
	report_session_authenticate     = "session.authenticate"
	report_session_restore          = "session.restore"
	report_session_current_bookings = "session.current-bookings"
	report_session_available        = "session.available-bookings"
)

const (
	DefaultBaseUrl         = "https://www.elevcentralen.se/en"
	DefaultEducationTypeId = 3

	csrfField = "__RequestVerificationToken"
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

type SessionState int

const (
	StateUnauthenticated SessionState = iota
	StateAuthenticated
	// StateLoginBlocked is terminal, logging in did not take effect and
	// someone has to log in manually.
	StateLoginBlocked
)

func (s SessionState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateLoginBlocked:
		return "login-blocked"
	}
	return fmt.Sprintf("SessionState(%d)", int(s))
}

type SessionOptions struct {
	// BaseUrl defaults to DefaultBaseUrl, it is also the page used to probe
	// whether a session is still valid.
	BaseUrl  string
	PersonId string
	// EducationTypeId defaults to DefaultEducationTypeId.
	EducationTypeId int
	// Timeout is applied to each request if non-zero.
	Timeout          time.Duration
	CloudflareBypass bool
}

// Session is an http client for elevcentralen that owns the login state of
// one student.
type Session struct {
	BaseUrl *url.URL
	Http    *resty.Client

	opts    SessionOptions
	jar     http.CookieJar
	cookies CookieStore
	time    chrono.TimeAPI
	tel     telemetry.API
	state   SessionState
}

func NewSession(
	opts SessionOptions,
	cookies CookieStore,
	time chrono.TimeAPI,
	tel telemetry.API,
) (*Session, error) {
	assert.NotNil(cookies.blob, "cookie store")
	assert.NotNil(time, "time")
	assert.NotNil(tel, "telemetry")
	assert.NotEmptyStr(opts.PersonId, "person id")

	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.EducationTypeId == 0 {
		opts.EducationTypeId = DefaultEducationTypeId
	}

	tel = telemetry.NewScopedAPI("elevcentralen", tel)

	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	client.SetHeader("user-agent", userAgent)
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	if opts.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}
	telemetry.InstrumentResty(client, "bookingchecker/elevcentralen/http", tel)

	s := &Session{
		BaseUrl: baseUrl,
		Http:    client,
		opts:    opts,
		cookies: cookies,
		time:    time,
		tel:     tel,
		state:   StateUnauthenticated,
	}
	err = s.resetJar()
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) State() SessionState {
	return s.state
}

func (s *Session) resetJar() error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	s.jar = jar
	s.Http.SetCookieJar(jar)
	return nil
}

func checkOk(res *resty.Response) error {
	if res.StatusCode() < 400 {
		return nil
	}
	return &HttpError{
		Method: res.Request.Method,
		Url:    res.Request.URL,
		Status: res.StatusCode(),
		Body:   res.String(),
	}
}

func isRedirect(res *resty.Response) bool {
	switch res.StatusCode() {
	case http.StatusMovedPermanently,
		http.StatusFound,
		http.StatusSeeOther,
		http.StatusTemporaryRedirect,
		http.StatusPermanentRedirect:
		return res.Header().Get("location") != ""
	}
	return false
}

// probe reports whether the base page loads without redirecting to the
// login page.
func (s *Session) probe(ctx context.Context) (bool, error) {
	s.Http.SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}))
	defer s.Http.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(s.BaseUrl.Hostname()))

	res, err := s.Http.R().
		SetContext(ctx).
		Head("")
	if err != nil {
		return false, fmt.Errorf("probe: %w", err)
	}
	if isRedirect(res) {
		return false, nil
	}
	err = checkOk(res)
	if err != nil {
		return false, err
	}
	return true, nil
}

type authStep int

const (
	stepRestore authStep = iota
	stepProbeRestored
	stepLogin
	stepVerify
	stepDone
)

// Authenticate reuses the persisted session if it is still valid and logs
// in otherwise. A successful login is persisted.
//
// Once the session is in StateLoginBlocked every call fails with the same
// *AuthError without making requests.
func (s *Session) Authenticate(ctx context.Context, username, password string) error {
	ctx, span := tracer.Start(ctx, "session:Authenticate")
	defer span.End()

	if s.state == StateLoginBlocked {
		span.SetStatus(codes.Error, "login blocked")
		return &AuthError{Reason: AuthBlocked}
	}

	step := stepRestore
	for step != stepDone {
		var err error
		switch step {
		case stepRestore:
			step = s.restore(ctx)
		case stepProbeRestored:
			step, err = s.probeRestored(ctx)
		case stepLogin:
			step, err = s.login(ctx, username, password)
		case stepVerify:
			step, err = s.verify(ctx)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to authenticate")
			s.tel.ReportBroken(report_session_authenticate, err, s.state.String())
			return err
		}
	}

	return nil
}

func (s *Session) restore(ctx context.Context) authStep {
	cookies, err := s.cookies.Load(ctx)
	if errors.Is(err, state.ErrNotFound) {
		s.tel.ReportDebug("no stored cookies")
		return stepLogin
	}
	if err != nil {
		s.tel.ReportWarning(report_session_restore, err)
		return stepLogin
	}
	if len(cookies) == 0 {
		return stepLogin
	}

	s.jar.SetCookies(s.BaseUrl, cookies)
	return stepProbeRestored
}

func (s *Session) probeRestored(ctx context.Context) (authStep, error) {
	ok, err := s.probe(ctx)
	if err != nil {
		return stepDone, err
	}
	if ok {
		s.tel.ReportDebug("cookie ok")
		s.state = StateAuthenticated
		return stepDone, nil
	}

	s.tel.ReportDebug("cookie not ok")
	err = s.resetJar()
	if err != nil {
		return stepDone, err
	}
	return stepLogin, nil
}

func (s *Session) login(ctx context.Context, username, password string) (authStep, error) {
	res, err := s.Http.R().
		SetContext(ctx).
		Get("/Login/Index")
	if err != nil {
		return stepDone, fmt.Errorf("fetch login page: %w", err)
	}
	err = checkOk(res)
	if err != nil {
		return stepDone, err
	}

	doc, err := htmlutil.Parse(res.Body())
	if err != nil {
		return stepDone, fmt.Errorf("parse login page: %w", err)
	}
	token, found := htmlutil.FirstAttrValue(doc, csrfField)
	if !found {
		return stepDone, &AuthError{Reason: AuthMissingToken}
	}

	res, err = s.Http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"Username": username,
			"Password": password,
			csrfField:  token,
		}).
		Post("/Login/Authenticate")
	if err != nil {
		return stepDone, fmt.Errorf("submit login: %w", err)
	}
	err = checkOk(res)
	if err != nil {
		return stepDone, err
	}

	return stepVerify, nil
}

func (s *Session) verify(ctx context.Context) (authStep, error) {
	ok, err := s.probe(ctx)
	if err != nil {
		return stepDone, err
	}
	if !ok {
		s.state = StateLoginBlocked
		return stepDone, &AuthError{Reason: AuthBlocked}
	}

	s.state = StateAuthenticated
	err = s.cookies.Save(ctx, s.jar.Cookies(s.BaseUrl))
	if err != nil {
		return stepDone, fmt.Errorf("save cookies: %w", err)
	}
	return stepDone, nil
}
