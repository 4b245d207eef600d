package consent

import (
	"context"
	"net/http"
	"time"
)

// CookieOpts defines attributes of cookies written by CookieJar
type CookieOpts struct {
	Path     string
	Secure   bool
	SameSite http.SameSite
}

// CookieJar is a Backend over a single HTTP request/response pair. Values written
// during the request are visible to later Get calls of the same jar.
type CookieJar struct {
	w       http.ResponseWriter
	r       *http.Request
	opts    CookieOpts
	now     func() time.Time
	written map[string]*http.Cookie
}

// NewCookieJar makes a cookie backend. Defaults are path "/", Lax same-site.
func NewCookieJar(w http.ResponseWriter, r *http.Request, opts CookieOpts) *CookieJar {
	if opts.Path == "" {
		opts.Path = "/"
	}
	if opts.SameSite == 0 {
		opts.SameSite = http.SameSiteLaxMode
	}
	return &CookieJar{w: w, r: r, opts: opts, now: time.Now, written: map[string]*http.Cookie{}}
}

// Get returns the cookie value
func (c *CookieJar) Get(_ context.Context, key string) (string, bool, error) {
	if cookie, ok := c.written[key]; ok {
		if cookie.MaxAge < 0 {
			return "", false, nil
		}
		return cookie.Value, true, nil
	}
	if c.r == nil {
		return "", false, ErrUnavailable
	}
	cookie, err := c.r.Cookie(key)
	if err != nil {
		return "", false, nil //nolint:nilerr // missing cookie is not an error
	}
	return cookie.Value, true, nil
}

// Set writes a cookie which expires after ttl
func (c *CookieJar) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if c.w == nil {
		return ErrUnavailable
	}
	cookie := c.cookie(key, value)
	if ttl > 0 {
		cookie.Expires = c.now().Add(ttl)
		cookie.MaxAge = int(ttl.Seconds())
	}
	http.SetCookie(c.w, cookie)
	c.written[key] = cookie
	return nil
}

// Delete expires the cookie
func (c *CookieJar) Delete(_ context.Context, key string) error {
	if c.w == nil {
		return ErrUnavailable
	}
	cookie := c.cookie(key, "")
	cookie.Expires = time.Unix(0, 0)
	cookie.MaxAge = -1
	http.SetCookie(c.w, cookie)
	c.written[key] = cookie
	return nil
}

func (c *CookieJar) cookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     c.opts.Path,
		Secure:   c.opts.Secure,
		SameSite: c.opts.SameSite,
	}
}
