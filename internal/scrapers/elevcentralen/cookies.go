package elevcentralen

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"bookingchecker/internal/components/state"
)

type persistedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"httpOnly,omitempty"`
}

// CookieStore persists the cookies of an authenticated session.
type CookieStore struct {
	blob state.Blob
}

func NewCookieStore(blob state.Blob) CookieStore {
	return CookieStore{blob: blob}
}

// Load returns state.ErrNotFound if no cookies were saved and a *CacheError
// if they cannot be decoded.
func (s CookieStore) Load(ctx context.Context) ([]*http.Cookie, error) {
	contents, err := s.blob.Load(ctx)
	if err != nil {
		return nil, err
	}

	var persisted []persistedCookie
	err = json.Unmarshal(contents, &persisted)
	if err != nil {
		return nil, &CacheError{Location: s.blob.String(), Err: err}
	}

	cookies := make([]*http.Cookie, len(persisted))
	for i, p := range persisted {
		path := p.Path
		if path == "" {
			path = "/"
		}
		cookies[i] = &http.Cookie{
			Name:     p.Name,
			Value:    p.Value,
			Path:     path,
			Domain:   p.Domain,
			Expires:  p.Expires,
			Secure:   p.Secure,
			HttpOnly: p.HttpOnly,
		}
	}
	return cookies, nil
}

// Save overwrites any previously saved cookies.
func (s CookieStore) Save(ctx context.Context, cookies []*http.Cookie) error {
	persisted := make([]persistedCookie, len(cookies))
	for i, c := range cookies {
		persisted[i] = persistedCookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
	}
	serialized, err := json.Marshal(persisted)
	if err != nil {
		return err
	}
	return s.blob.Save(ctx, serialized)
}
