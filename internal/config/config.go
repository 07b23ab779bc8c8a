// Package config loads the settings of the booking checker from a json5 file
// and the environment, the environment takes priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"bookingchecker/internal/components/telemetry"
	"bookingchecker/internal/scrapers/elevcentralen"
	"bookingchecker/lib/configutil"

	"github.com/joho/godotenv"
)

const (
	DefaultCookiePath = ".cookie.json"
	DefaultCachePath  = ".booking_checker_cache.json"
	DefaultTimezone   = "Europe/Stockholm"
)

type Elevcentralen struct {
	BaseUrl         string `json:"base_url"`
	Timezone        string `json:"timezone"`
	EducationTypeId int    `json:"education_type_id"`
	PersonId        string `json:"person_id"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	TeacherId       string `json:"teacher_id"`
	// TimeoutSeconds applies to every request, 0 means no timeout.
	TimeoutSeconds   int  `json:"timeout_seconds"`
	CloudflareBypass bool `json:"cloudflare_bypass"`
}

func (e Elevcentralen) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

type Mailgun struct {
	// Domain is the sending domain, MAILGUN_URL in the environment.
	Domain  string `json:"domain"`
	ApiKey  string `json:"api_key"`
	BaseUrl string `json:"base_url"`
}

type Smtp struct {
	Server   string `json:"server"`
	Port     int    `json:"port"`
	Password string `json:"password"`
}

type Notify struct {
	Sender    string   `json:"sender"`
	Receivers []string `json:"receivers"`
	Mailgun   Mailgun  `json:"mailgun"`
	Smtp      Smtp     `json:"smtp"`
}

// UseSmtp reports whether messages go through smtp instead of mailgun.
func (n Notify) UseSmtp() bool {
	return n.Smtp.Server != ""
}

type State struct {
	CookiePath string `json:"cookie_path"`
	CachePath  string `json:"cache_path"`
	// Db is a sqlite path or libsql url, when set cookies and the notified
	// cache are stored there instead of CookiePath and CachePath.
	Db      string `json:"db"`
	DbToken string `json:"db_token"`
}

type Config struct {
	Elevcentralen Elevcentralen        `json:"elevcentralen"`
	Notify        Notify               `json:"notify"`
	State         State                `json:"state"`
	Otlp          telemetry.OtlpConfig `json:"otlp"`
}

// Load reads path (and its local override) if it exists, then applies the
// environment on top. Variables in a .env file in the working directory are
// added to the environment first.
func Load(path string) (Config, error) {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if path != "" {
		cfg, err = configutil.ReadConfig[Config](path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	}

	env, err := FromEnv(os.LookupEnv)
	if err != nil {
		return Config{}, err
	}
	err = configutil.Override(&cfg, env)
	if err != nil {
		return Config{}, err
	}

	cfg.setDefaults()
	err = cfg.Validate()
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv reads the variables that are set, unset variables leave their
// field zero.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	get := func(name string) string {
		value, _ := lookup(name)
		return strings.TrimSpace(value)
	}
	getInt := func(name string) (int, error) {
		value := get(name)
		if value == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", name, err)
		}
		return n, nil
	}

	var cfg Config
	var err error

	cfg.Elevcentralen.BaseUrl = get("ELEVCENTRALEN_BASE_URL")
	cfg.Elevcentralen.Timezone = get("ELEVCENTRALEN_TIMEZONE")
	cfg.Elevcentralen.PersonId = get("PERSON_ID")
	cfg.Elevcentralen.Username = get("USERNAME")
	cfg.Elevcentralen.Password = get("PASSWORD")
	cfg.Elevcentralen.TeacherId = get("TEACHER_ID")
	cfg.Elevcentralen.EducationTypeId, err = getInt("ELEVCENTRALEN_EDUCATION_TYPE_ID")
	if err != nil {
		return Config{}, err
	}

	cfg.Notify.Sender = get("MAILGUN_SENDER")
	cfg.Notify.Receivers = strings.Fields(get("MAILGUN_RECEIVERS"))
	cfg.Notify.Mailgun.Domain = get("MAILGUN_URL")
	cfg.Notify.Mailgun.ApiKey = get("MAILGUN_API_KEY")
	cfg.Notify.Smtp.Server = get("SMTP_SERVER")
	cfg.Notify.Smtp.Password = get("SMTP_PASSWORD")
	cfg.Notify.Smtp.Port, err = getInt("SMTP_PORT")
	if err != nil {
		return Config{}, err
	}

	cfg.State.CookiePath = get("ELEVCENTRALEN_COOKIE_PATH")
	cfg.State.CachePath = get("BOOKING_CHECKER_CACHE_PATH")
	cfg.State.Db = get("BOOKING_CHECKER_STATE_DB")
	cfg.State.DbToken = get("BOOKING_CHECKER_STATE_DB_TOKEN")

	cfg.Otlp.GrpcEndpoint = get("OTLP_GRPC_ENDPOINT")
	cfg.Otlp.HttpEndpoint = get("OTLP_HTTP_ENDPOINT")

	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.Elevcentralen.BaseUrl == "" {
		c.Elevcentralen.BaseUrl = elevcentralen.DefaultBaseUrl
	}
	if c.Elevcentralen.Timezone == "" {
		c.Elevcentralen.Timezone = DefaultTimezone
	}
	if c.Elevcentralen.EducationTypeId == 0 {
		c.Elevcentralen.EducationTypeId = elevcentralen.DefaultEducationTypeId
	}
	if c.State.CookiePath == "" {
		c.State.CookiePath = DefaultCookiePath
	}
	if c.State.CachePath == "" {
		c.State.CachePath = DefaultCachePath
	}
}

// MissingError lists the settings that are required but were not given.
type MissingError struct {
	Fields []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("missing required settings: %s", strings.Join(e.Fields, ", "))
}

// Validate checks what every command needs, notification settings are
// checked separately by ValidateNotify.
func (c Config) Validate() error {
	var missing []string
	if c.Elevcentralen.PersonId == "" {
		missing = append(missing, "PERSON_ID")
	}
	if c.Elevcentralen.Username == "" {
		missing = append(missing, "USERNAME")
	}
	if c.Elevcentralen.Password == "" {
		missing = append(missing, "PASSWORD")
	}
	if c.Elevcentralen.TeacherId == "" {
		missing = append(missing, "TEACHER_ID")
	}
	if len(missing) > 0 {
		return &MissingError{Fields: missing}
	}
	return nil
}

// ValidateNotify checks the addresses and the credentials of the configured
// transport.
func (c Config) ValidateNotify() error {
	missing := c.missingAddresses()
	if !c.Notify.UseSmtp() {
		if c.Notify.Mailgun.Domain == "" {
			missing = append(missing, "MAILGUN_URL")
		}
		if c.Notify.Mailgun.ApiKey == "" {
			missing = append(missing, "MAILGUN_API_KEY")
		}
	}
	if len(missing) > 0 {
		return &MissingError{Fields: missing}
	}
	return nil
}

// ValidateAddresses checks only the sender and receivers, for dry runs that
// never reach a transport.
func (c Config) ValidateAddresses() error {
	missing := c.missingAddresses()
	if len(missing) > 0 {
		return &MissingError{Fields: missing}
	}
	return nil
}

func (c Config) missingAddresses() []string {
	var missing []string
	if c.Notify.Sender == "" {
		missing = append(missing, "MAILGUN_SENDER")
	}
	if len(c.Notify.Receivers) == 0 {
		missing = append(missing, "MAILGUN_RECEIVERS")
	}
	return missing
}
