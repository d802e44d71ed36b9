package session

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

func TestCacheQuestionSingleSlot(t *testing.T) {
	s := newSession("s1")

	s.CacheQuestion("first")
	// A later question replaces the cached one.
	s.CacheQuestion("second")

	question, ok := s.TakeCachedQuestion()
	require.True(t, ok)
	require.Equal(t, "second", question)

	// Read-once: the slot is empty afterwards.
	_, ok = s.TakeCachedQuestion()
	require.False(t, ok)

	s.CacheQuestion("third")
	question, ok = s.TakeCachedQuestion()
	require.True(t, ok)
	require.Equal(t, "third", question)
}

func TestManagerGetReturnsSameSession(t *testing.T) {
	m := NewManager()
	a := m.Get("abc")
	b := m.Get("abc")
	require.Same(t, a, b)

	m.Drop("abc")
	c := m.Get("abc")
	require.NotSame(t, a, c)
}

func TestMiddlewareSetsCookieForNewSession(t *testing.T) {
	m := NewManager()
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got *Session
	handler := m.Middleware()(func(c echo.Context) error {
		got = FromContext(c)
		return nil
	})
	require.NoError(t, handler(c))
	require.NotNil(t, got)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, CookieName, cookies[0].Name)
	require.Equal(t, got.ID, cookies[0].Value)
}

func TestMiddlewareReusesExistingCookie(t *testing.T) {
	m := NewManager()
	e := echo.New()

	existing := m.Get("known-session")
	existing.SetLanguage("es_ES")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "known-session"})
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got *Session
	handler := m.Middleware()(func(c echo.Context) error {
		got = FromContext(c)
		return nil
	})
	require.NoError(t, handler(c))
	require.Same(t, existing, got)
	require.Equal(t, "es_ES", got.Language())
	require.Empty(t, rec.Result().Cookies())
}

func TestFromContextWithoutMiddleware(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	require.Nil(t, FromContext(c))
}
