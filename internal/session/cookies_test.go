package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cookiesByName(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, cookie := range rec.Result().Cookies() {
		out[cookie.Name] = cookie
	}
	return out
}

func TestCookies_SetPair(t *testing.T) {
	t.Parallel()

	for _, secure := range []bool{true, false} {
		rec := httptest.NewRecorder()
		NewCookies(secure, AccessTTL, RefreshTTL).SetPair(rec, Pair{AccessToken: "a", RefreshToken: "r"})

		cookies := cookiesByName(rec)
		require.Len(t, cookies, 2)

		access := cookies[AccessCookieName]
		require.NotNil(t, access)
		assert.Equal(t, "a", access.Value)
		assert.Equal(t, 60, access.MaxAge)
		assert.True(t, access.HttpOnly)
		assert.Equal(t, secure, access.Secure)
		assert.Equal(t, http.SameSiteStrictMode, access.SameSite)
		assert.Equal(t, "/", access.Path)

		refresh := cookies[RefreshCookieName]
		require.NotNil(t, refresh)
		assert.Equal(t, "r", refresh.Value)
		assert.Equal(t, 2592000, refresh.MaxAge)
		assert.True(t, refresh.HttpOnly)
	}
}

func TestCookies_SetAccessOnly(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	NewCookies(true, time.Minute, RefreshTTL).SetAccess(rec, "fresh")

	cookies := cookiesByName(rec)
	require.Len(t, cookies, 1)
	assert.Equal(t, "fresh", cookies[AccessCookieName].Value)
}

func TestCookies_Clear(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	NewCookies(false, AccessTTL, RefreshTTL).Clear(rec)

	cookies := cookiesByName(rec)
	require.Len(t, cookies, 2)
	for _, cookie := range cookies {
		assert.Empty(t, cookie.Value)
		assert.Equal(t, -1, cookie.MaxAge)
	}
}

func TestFromRequest(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/refresh-token", nil)
	assert.Empty(t, FromRequest(req, RefreshCookieName))

	req.AddCookie(&http.Cookie{Name: RefreshCookieName, Value: "tok"})
	assert.Equal(t, "tok", FromRequest(req, RefreshCookieName))
}
