package commands

import (
	"context"
	"fmt"
	"time"

	"bookingchecker/internal/checker"
	"bookingchecker/internal/components/chrono"
	"bookingchecker/internal/components/state"
	"bookingchecker/internal/components/telemetry"
	"bookingchecker/internal/config"
	"bookingchecker/internal/notify"
	"bookingchecker/internal/scrapers/elevcentralen"
	"bookingchecker/lib/restyutil"
)

const (
	cookiesKey  = "cookies"
	notifiedKey = "notified"
)

// app holds everything a command needs, built from the config.
type app struct {
	cfg     config.Config
	session *elevcentralen.Session
	cache   checker.NotifiedCache
	close   func() error
}

type stores struct {
	cookies  state.Blob
	notified state.Blob
	close    func() error
}

// openStores returns blobs in the sql database if one is configured and
// plain files otherwise.
func openStores(ctx context.Context, cfg config.State) (stores, error) {
	if cfg.Db == "" {
		return stores{
			cookies:  state.FileBlob{Path: cfg.CookiePath},
			notified: state.FileBlob{Path: cfg.CachePath},
			close:    func() error { return nil },
		}, nil
	}

	db, err := state.OpenSQL(cfg.Db, cfg.DbToken)
	if err != nil {
		return stores{}, fmt.Errorf("open state db: %w", err)
	}
	store, err := state.NewSQLStore(ctx, db)
	if err != nil {
		db.Close()
		return stores{}, fmt.Errorf("open state db: %w", err)
	}
	return stores{
		cookies:  store.Blob(cookiesKey),
		notified: store.Blob(notifiedKey),
		close:    db.Close,
	}, nil
}

func newNotifier(cfg config.Notify, timeout time.Duration, tel telemetry.API) notify.Notifier {
	if cfg.UseSmtp() {
		return notify.NewSmtp(notify.SmtpOptions{
			Server:   cfg.Smtp.Server,
			Port:     cfg.Smtp.Port,
			Username: cfg.Sender,
			Password: cfg.Smtp.Password,
		})
	}
	return notify.NewMailgun(notify.MailgunOptions{
		Domain:  cfg.Mailgun.Domain,
		ApiKey:  cfg.Mailgun.ApiKey,
		BaseUrl: cfg.Mailgun.BaseUrl,
		Timeout: timeout,
	}, tel)
}

// newApp wires the session and the notified cache, dumpDir enables
// restyutil.Dump on the session client.
func newApp(ctx context.Context, cfg config.Config, tel telemetry.API, dumpDir string) (app, error) {
	clock, err := chrono.NewStandardTime(cfg.Elevcentralen.Timezone)
	if err != nil {
		return app{}, fmt.Errorf("load timezone: %w", err)
	}

	st, err := openStores(ctx, cfg.State)
	if err != nil {
		return app{}, err
	}

	session, err := elevcentralen.NewSession(
		elevcentralen.SessionOptions{
			BaseUrl:          cfg.Elevcentralen.BaseUrl,
			PersonId:         cfg.Elevcentralen.PersonId,
			EducationTypeId:  cfg.Elevcentralen.EducationTypeId,
			Timeout:          cfg.Elevcentralen.Timeout(),
			CloudflareBypass: cfg.Elevcentralen.CloudflareBypass,
		},
		elevcentralen.NewCookieStore(st.cookies),
		clock,
		tel,
	)
	if err != nil {
		st.close()
		return app{}, fmt.Errorf("create session: %w", err)
	}
	if dumpDir != "" {
		out, err := restyutil.NewFilesystemOutput(dumpDir)
		if err != nil {
			st.close()
			return app{}, fmt.Errorf("create http dump dir: %w", err)
		}
		restyutil.Dump(session.Http, out)
	}

	return app{
		cfg:     cfg,
		session: session,
		cache:   checker.NewNotifiedCache(st.notified, clock.Location(), tel),
		close:   st.close,
	}, nil
}

func (a app) authenticate(ctx context.Context) error {
	return a.session.Authenticate(ctx, a.cfg.Elevcentralen.Username, a.cfg.Elevcentralen.Password)
}
