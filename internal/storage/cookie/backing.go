package cookie

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"slices"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/dtroode/gophdate-session/internal/model"
)

// DefaultTTL is the expiry window applied to every credential cookie.
const DefaultTTL = 7 * 24 * time.Hour

var keys = []string{model.KeyAuthToken, model.KeyRefreshToken, model.KeyUser, model.KeyUserID}

// NewJar creates a cookie jar using the public suffix list.
func NewJar() (http.CookieJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return jar, nil
}

var _ model.Backing = (*Backing)(nil)

// Backing stores credentials as cookies scoped to the application origin.
// The jar is shared with the HTTP client so the backend sees the same
// cookies a browser would send.
type Backing struct {
	jar     http.CookieJar
	origin  *url.URL
	ttl     time.Duration
	nowFunc func() time.Time
}

// New creates a cookie backing for origin. A non-positive ttl falls back
// to DefaultTTL.
func New(jar http.CookieJar, origin string, ttl time.Duration) (*Backing, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cookie origin: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("cookie origin must be absolute: %q", origin)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Backing{jar: jar, origin: u, ttl: ttl, nowFunc: time.Now}, nil
}

// Name returns the backing name.
func (b *Backing) Name() string {
	return "cookie"
}

// Read collects the credential cookies visible to the origin. Other
// cookies in the shared jar are ignored.
func (b *Backing) Read(_ context.Context) (model.Record, error) {
	values := make(map[string]string, len(keys))
	for _, c := range b.jar.Cookies(b.origin) {
		if !slices.Contains(keys, c.Name) {
			continue
		}
		v, err := url.QueryUnescape(c.Value)
		if err != nil {
			return model.Record{}, fmt.Errorf("failed to decode cookie %s: %w", c.Name, err)
		}
		values[c.Name] = v
	}

	return model.Record{
		AuthToken:    values[model.KeyAuthToken],
		RefreshToken: values[model.KeyRefreshToken],
		User:         values[model.KeyUser],
		UserID:       values[model.KeyUserID],
	}, nil
}

// Write sets all four cookies in one jar update. Empty fields are expired.
func (b *Backing) Write(_ context.Context, record model.Record) error {
	values := map[string]string{
		model.KeyAuthToken:    record.AuthToken,
		model.KeyRefreshToken: record.RefreshToken,
		model.KeyUser:         record.User,
		model.KeyUserID:       record.UserID,
	}

	expires := b.nowFunc().Add(b.ttl)
	cookies := make([]*http.Cookie, 0, len(keys))
	for _, key := range keys {
		if values[key] == "" {
			cookies = append(cookies, b.expired(key))
			continue
		}
		c := b.base(key)
		c.Value = url.QueryEscape(values[key])
		c.Expires = expires
		c.MaxAge = int(b.ttl.Seconds())
		cookies = append(cookies, c)
	}

	b.jar.SetCookies(b.origin, cookies)
	return nil
}

// Clear expires every credential cookie.
func (b *Backing) Clear(_ context.Context) error {
	cookies := make([]*http.Cookie, 0, len(keys))
	for _, key := range keys {
		cookies = append(cookies, b.expired(key))
	}
	b.jar.SetCookies(b.origin, cookies)
	return nil
}

func (b *Backing) base(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		Secure:   false,
	}
}

func (b *Backing) expired(name string) *http.Cookie {
	c := b.base(name)
	c.MaxAge = -1
	return c
}
