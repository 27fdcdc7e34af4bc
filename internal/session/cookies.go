package session

import (
	"net/http"
	"time"
)

const (
	AccessCookieName  = "accessToken"
	RefreshCookieName = "refreshToken"
)

// Cookies writes the session pair as HttpOnly, SameSite=Strict cookies.
type Cookies struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func NewCookies(secure bool, accessTTL time.Duration, refreshTTL time.Duration) Cookies {
	return Cookies{Secure: secure, AccessTTL: accessTTL, RefreshTTL: refreshTTL}
}

func (c Cookies) SetPair(w http.ResponseWriter, pair Pair) {
	http.SetCookie(w, c.cookie(AccessCookieName, pair.AccessToken, c.AccessTTL))
	http.SetCookie(w, c.cookie(RefreshCookieName, pair.RefreshToken, c.RefreshTTL))
}

func (c Cookies) SetAccess(w http.ResponseWriter, token string) {
	http.SetCookie(w, c.cookie(AccessCookieName, token, c.AccessTTL))
}

// Clear expires both session cookies.
func (c Cookies) Clear(w http.ResponseWriter) {
	for _, name := range []string{AccessCookieName, RefreshCookieName} {
		cookie := c.cookie(name, "", 0)
		cookie.MaxAge = -1
		cookie.Expires = time.Unix(0, 0)
		http.SetCookie(w, cookie)
	}
}

func (c Cookies) cookie(name string, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// FromRequest returns the named cookie value or an empty string.
func FromRequest(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
