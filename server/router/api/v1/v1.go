// Package v1 implements the HTTP surface of the gateway: the /copilot
// route group, its dispatch rules and the handlers behind them.
package v1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/etcop/copilot-gateway/ai"
	"github.com/etcop/copilot-gateway/copilot"
	"github.com/etcop/copilot-gateway/internal/metrics"
	"github.com/etcop/copilot-gateway/internal/profile"
	"github.com/etcop/copilot-gateway/server/session"
	"github.com/etcop/copilot-gateway/store"
)

// Backend is the slice of the Copilot client the handlers call.
type Backend interface {
	Ask(ctx context.Context, endpoint string, payload *copilot.Payload) (*copilot.RawAnswer, error)
	AskStream(ctx context.Context, endpoint string, payload *copilot.Payload, h *copilot.Handoff)
	Structure(ctx context.Context, payload *copilot.Payload) (string, error)
	UploadFile(ctx context.Context, path, endpoint string) (string, error)
}

// Question routes allow short bursts but cap the sustained rate per
// session; the backend serializes heavier work anyway.
const (
	questionRatePerSecond = 2
	questionRateBurst     = 5
)

type APIV1Service struct {
	Profile  *profile.Profile
	Store    *store.Store
	Backend  Backend
	Sessions *session.Manager
	Metrics  *metrics.Exporter

	// TitleGenerator is nil when no title LLM is configured.
	TitleGenerator *ai.TitleGenerator

	// maxUploadBytes caps the size of a single uploaded part.
	maxUploadBytes int64

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

func NewAPIV1Service(p *profile.Profile, st *store.Store, backend Backend, sessions *session.Manager, exporter *metrics.Exporter, titleGenerator *ai.TitleGenerator) *APIV1Service {
	return &APIV1Service{
		Profile:        p,
		Store:          st,
		Backend:        backend,
		Sessions:       sessions,
		Metrics:        exporter,
		TitleGenerator: titleGenerator,
		maxUploadBytes: maxUploadSize,
		limiters:       map[string]*rate.Limiter{},
	}
}

// RegisterRoutes mounts the gateway surface under /copilot.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/copilot", s.Sessions.Middleware())

	g.GET("/conversations", s.ListConversations)
	g.GET("/conversationMessages", s.ListConversationMessages)
	g.GET("/assistants", s.ListAssistants)
	g.GET("/labels", s.GetLabels)
	g.GET("/structure", s.GetStructure)
	// The async aliases force streaming mode regardless of any other hint.
	g.GET("/aquestion", s.boundary(s.asyncQuestionHandler))
	g.GET("/agraph", s.boundary(s.asyncQuestionHandler))
	g.GET("/*", func(c echo.Context) error {
		return c.NoContent(http.StatusNotFound)
	})

	g.POST("/question", s.boundary(s.syncQuestionHandler))
	g.POST("/file", s.boundary(s.HandleFile))
	g.POST("/cacheQuestion", s.boundary(s.CacheQuestion))
	g.POST("/configCheck", s.boundary(s.ConfigCheck))
	g.POST("/generateTitleConversation", s.boundary(s.GenerateConversationTitle))
	g.POST("/*", func(c echo.Context) error {
		return c.NoContent(http.StatusMethodNotAllowed)
	})
}

// boundary is the dispatch-level error catch for question-style routes:
// a classified ServiceError carries its own status, anything else is
// downgraded to a 400 with the error message. Handler failures never
// escape as bare 500s.
func (s *APIV1Service) boundary(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		if err == nil {
			return nil
		}
		var svcErr *copilot.ServiceError
		if errors.As(err, &svcErr) {
			return writeError(c, svcErr.HTTPStatus(), svcErr.Message)
		}
		return writeError(c, http.StatusBadRequest, err.Error())
	}
}

// language resolves the caller's language: session first, instance
// default otherwise.
func (s *APIV1Service) language(c echo.Context) string {
	if sess := session.FromContext(c); sess != nil && sess.Language() != "" {
		return sess.Language()
	}
	return s.Profile.Language
}

// limiter returns the per-session question rate limiter, creating it on
// first use.
func (s *APIV1Service) limiter(sessionID string) *rate.Limiter {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()
	l, ok := s.limiters[sessionID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(questionRatePerSecond), questionRateBurst)
		s.limiters[sessionID] = l
	}
	return l
}

// writeJSON serializes v with the exact content type the UI expects.
// echo's own JSON writer inserts a space after the semicolon, which the
// legacy clients do not accept.
func writeJSON(c echo.Context, status int, v any) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Blob(status, copilot.ContentTypeJSON, buf)
}

func writeError(c echo.Context, status int, message string) error {
	return writeJSON(c, status, map[string]string{"error": message})
}
