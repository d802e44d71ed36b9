// Package session tracks per-browser state across requests: the session
// cookie, the one-shot question cache and the caller's language.
package session

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lithammer/shortuuid/v4"
)

const (
	// CookieName identifies the gateway session cookie.
	CookieName = "copilot_session"

	// cachedQuestionKey is the fixed slot a session stores at most one
	// pending question under.
	cachedQuestionKey = "cachedQuestion"

	contextKey = "copilot-session"

	cookieMaxAge = 12 * time.Hour
)

// Session holds the per-session attributes.
type Session struct {
	ID string

	mu       sync.Mutex
	attrs    map[string]string
	language string
}

func newSession(id string) *Session {
	return &Session{
		ID:    id,
		attrs: map[string]string{},
	}
}

// CacheQuestion stores a question in the session's single cache slot,
// replacing whatever was there. The most recent write wins.
func (s *Session) CacheQuestion(question string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attrs[cachedQuestionKey] = question
}

// TakeCachedQuestion returns the cached question and clears the slot.
// Each cached question is observed at most once.
func (s *Session) TakeCachedQuestion() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	question, ok := s.attrs[cachedQuestionKey]
	if ok {
		delete(s.attrs, cachedQuestionKey)
	}
	return question, ok
}

// SetLanguage records the caller's language for message translation.
func (s *Session) SetLanguage(language string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.language = language
}

// Language returns the recorded language, empty when never set.
func (s *Session) Language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language
}

// Manager owns all live sessions.
type Manager struct {
	sessions sync.Map // session id -> *Session
}

func NewManager() *Manager {
	return &Manager{}
}

// Get returns the session with the given id, creating it when absent.
func (m *Manager) Get(id string) *Session {
	if actual, ok := m.sessions.Load(id); ok {
		return actual.(*Session)
	}
	actual, _ := m.sessions.LoadOrStore(id, newSession(id))
	return actual.(*Session)
}

// Drop removes a session, usually on logout or expiry.
func (m *Manager) Drop(id string) {
	m.sessions.Delete(id)
}

// Middleware resolves the request's session from the cookie, setting a
// fresh cookie when the request carries none, and stores the session in
// the echo context.
func (m *Manager) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var id string
			if cookie, err := c.Cookie(CookieName); err == nil && cookie.Value != "" {
				id = cookie.Value
			} else {
				id = shortuuid.New()
				c.SetCookie(&http.Cookie{
					Name:     CookieName,
					Value:    id,
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
					MaxAge:   int(cookieMaxAge.Seconds()),
				})
			}
			c.Set(contextKey, m.Get(id))
			return next(c)
		}
	}
}

// FromContext returns the session the middleware attached, or nil when
// the route is not behind the middleware.
func FromContext(c echo.Context) *Session {
	if s, ok := c.Get(contextKey).(*Session); ok {
		return s
	}
	return nil
}
