package v1

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/etcop/copilot-gateway/copilot"
	"github.com/etcop/copilot-gateway/internal/i18n"
	"github.com/etcop/copilot-gateway/server/session"
	"github.com/etcop/copilot-gateway/store"
)

// questionRequest is the parsed client question, whatever transport it
// arrived on.
type questionRequest struct {
	Question       string `json:"question"`
	AppID          string `json:"app_id"`
	ConversationID string `json:"conversation_id"`
}

// parseQuestionRequest reads the question fields from the JSON body,
// falling back to query/form parameters when the body is empty. The
// legacy UI still submits some flows as plain parameters.
func parseQuestionRequest(c echo.Context) (*questionRequest, error) {
	req := &questionRequest{}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read request body")
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, req); err != nil {
			return nil, errors.Wrap(err, "malformed request body")
		}
	}

	if req.Question == "" {
		req.Question = c.FormValue("question")
	}
	if req.AppID == "" {
		req.AppID = c.FormValue("app_id")
	}
	if req.ConversationID == "" {
		req.ConversationID = c.FormValue("conversation_id")
	}
	return req, nil
}

func (s *APIV1Service) syncQuestionHandler(c echo.Context) error {
	return s.handleQuestion(c, false)
}

func (s *APIV1Service) asyncQuestionHandler(c echo.Context) error {
	return s.handleQuestion(c, true)
}

// handleQuestion is the orchestration core: parse, fill from the session
// cache, validate, call the backend sync or async, normalize, track, and
// serve the answer.
func (s *APIV1Service) handleQuestion(c echo.Context, async bool) error {
	start := time.Now()
	mode := "sync"
	if async {
		mode = "async"
	}
	lang := s.language(c)
	sess := session.FromContext(c)

	if sess != nil && !s.limiter(sess.ID).Allow() {
		s.Metrics.ObserveQuestion(mode, "throttled", time.Since(start))
		return copilot.NewServiceErrorWithCode("too many questions, slow down", http.StatusTooManyRequests)
	}

	req, err := parseQuestionRequest(c)
	if err != nil {
		s.Metrics.ObserveQuestion(mode, "error", time.Since(start))
		return err
	}

	// A question cached by the two-phase UI flow fills in only when the
	// request itself carries none; the cache entry is single-use.
	if req.Question == "" && sess != nil {
		if cached, ok := sess.TakeCachedQuestion(); ok {
			req.Question = cached
		}
	}

	if req.Question == "" {
		s.Metrics.ObserveQuestion(mode, "error", time.Since(start))
		return copilot.NewServiceErrorWithCode(i18n.Message(lang, i18n.MsgMissingQuestion), http.StatusBadRequest)
	}
	if req.AppID == "" {
		s.Metrics.ObserveQuestion(mode, "error", time.Since(start))
		return copilot.NewServiceErrorWithCode(i18n.Message(lang, i18n.MsgMissingAppID), http.StatusBadRequest)
	}

	agent, err := s.Store.GetAgent(c.Request().Context(), req.AppID)
	if err != nil {
		s.Metrics.ObserveQuestion(mode, "error", time.Since(start))
		return copilot.NewServiceErrorWithCode(i18n.Messagef(lang, i18n.MsgAppNotFound, req.AppID), http.StatusBadRequest)
	}

	conversationID := req.ConversationID
	if conversationID == "" && agent.KeepsConversation() {
		conversationID = uuid.NewString()
	}

	payload := &copilot.Payload{
		Question:       req.Question,
		Type:           agent.Type,
		AssistantID:    agent.AssistantID,
		ConversationID: conversationID,
		SystemPrompt:   agent.Prompt,
		Temperature:    agent.Temperature,
		History:        s.conversationHistory(c, conversationID),
	}
	endpoint := copilot.EndpointFor(agent.Type, async)

	var answer *copilot.Answer
	var askErr error
	if async {
		answer, askErr = s.askAsync(c, endpoint, payload, lang)
	} else {
		var raw *copilot.RawAnswer
		raw, askErr = s.Backend.Ask(c.Request().Context(), endpoint, payload)
		if askErr == nil {
			answer, askErr = copilot.Normalize(raw, conversationID, lang)
		}
	}

	if askErr != nil {
		s.trackExchange(c, agent.ID, conversationID, req.Question, askErr.Error(), store.RoleError)
		s.Metrics.ObserveQuestion(mode, "error", time.Since(start))
		return askErr
	}

	answer.AppID = agent.ID
	s.trackExchange(c, agent.ID, answer.ConversationID, req.Question, answer.Response, store.RoleAssistant)
	s.Metrics.ObserveQuestion(mode, "ok", time.Since(start))
	return writeJSON(c, http.StatusOK, answer)
}

// askAsync runs the streaming path: the backend's producer goroutine
// hands the final event to the one-slot transfer channel while this
// request goroutine blocks on it. Cancellation rides on the request
// context, so a client disconnect releases the wait.
func (s *APIV1Service) askAsync(c echo.Context, endpoint string, payload *copilot.Payload, lang string) (*copilot.Answer, error) {
	handoff := copilot.NewHandoff()
	s.Backend.AskStream(c.Request().Context(), endpoint, payload, handoff)

	result, err := handoff.Receive(c.Request().Context())
	if err != nil {
		slog.Info("question abandoned before the answer arrived", "endpoint", endpoint, "error", err)
		return nil, copilot.NewServiceError(i18n.Message(lang, i18n.MsgConnError))
	}
	if result.Err != nil {
		return nil, result.Err
	}
	return copilot.Normalize(result.Raw, payload.ConversationID, lang)
}

// conversationHistory loads the prior turns of an existing conversation
// for the backend payload. A fresh conversation has none.
func (s *APIV1Service) conversationHistory(c echo.Context, conversationID string) []copilot.HistoryEntry {
	if conversationID == "" {
		return nil
	}
	messages, err := s.Store.ListMessages(c.Request().Context(), &store.FindMessage{ConversationUID: &conversationID})
	if err != nil {
		slog.Warn("failed to load conversation history", "conversation", conversationID, "error", err)
		return nil
	}
	history := make([]copilot.HistoryEntry, 0, len(messages))
	for _, m := range messages {
		if m.Role == store.RoleError {
			continue
		}
		history = append(history, copilot.HistoryEntry{Role: m.Role, Content: m.Content})
	}
	return history
}

// trackExchange appends the question and its outcome to the conversation
// history. Tracking is best-effort: a storage failure is logged and the
// answer is still served.
func (s *APIV1Service) trackExchange(c echo.Context, agentID, conversationID, question, outcome, outcomeRole string) {
	if conversationID == "" {
		return
	}
	ctx := c.Request().Context()

	creatorID := ""
	if sess := session.FromContext(c); sess != nil {
		creatorID = sess.ID
	}
	conversation, err := s.Store.FindOrCreateConversation(ctx, &store.Conversation{
		UID:       conversationID,
		AgentID:   agentID,
		CreatorID: creatorID,
		Title:     i18n.Message(s.language(c), i18n.MsgNewConversation),
	})
	if err != nil {
		slog.Error("failed to resolve conversation for tracking", "conversation", conversationID, "error", err)
		return
	}

	for _, msg := range []*store.Message{
		{ConversationID: conversation.ID, Role: store.RoleUser, Content: question},
		{ConversationID: conversation.ID, Role: outcomeRole, Content: outcome},
	} {
		if _, err := s.Store.AppendMessage(ctx, msg); err != nil {
			slog.Error("failed to track message", "conversation", conversationID, "role", msg.Role, "error", err)
			return
		}
	}
}

// CacheQuestion stores a question in the session for the two-phase UI
// flow; the next question-less request in the same session consumes it.
func (s *APIV1Service) CacheQuestion(c echo.Context) error {
	req, err := parseQuestionRequest(c)
	if err != nil {
		return err
	}
	if req.Question == "" {
		return copilot.NewServiceErrorWithCode(i18n.Message(s.language(c), i18n.MsgMissingQuestion), http.StatusBadRequest)
	}
	if sess := session.FromContext(c); sess != nil {
		sess.CacheQuestion(req.Question)
	}
	return writeJSON(c, http.StatusOK, map[string]any{})
}

// ConfigCheck is the UI's reachability probe; success is the whole
// contract.
func (s *APIV1Service) ConfigCheck(c echo.Context) error {
	return writeJSON(c, http.StatusOK, map[string]any{})
}

// GetLabels serves the localized message table for the caller's
// language. An explicit language parameter switches the session.
func (s *APIV1Service) GetLabels(c echo.Context) error {
	if lang := c.QueryParam("language"); lang != "" {
		if sess := session.FromContext(c); sess != nil {
			sess.SetLanguage(lang)
		}
	}
	return writeJSON(c, http.StatusOK, i18n.Labels(s.language(c)))
}

// GetStructure renders the graph structure of an assistant. A missing
// app_id is the caller's fault; everything past validation is a server
// failure.
func (s *APIV1Service) GetStructure(c echo.Context) error {
	lang := s.language(c)

	appID := c.QueryParam("app_id")
	if appID == "" {
		return writeError(c, http.StatusBadRequest, i18n.Message(lang, i18n.MsgMissingAppID))
	}
	agent, err := s.Store.GetAgent(c.Request().Context(), appID)
	if err != nil {
		return writeError(c, http.StatusBadRequest, i18n.Messagef(lang, i18n.MsgAppNotFound, appID))
	}
	if !strings.EqualFold(agent.Type, store.AgentTypeLanggraph) {
		return writeError(c, http.StatusBadRequest, i18n.Messagef(lang, i18n.MsgMissingAppType, agent.Type))
	}

	structure, err := s.Backend.Structure(c.Request().Context(), &copilot.Payload{
		Type:         agent.Type,
		AssistantID:  agent.AssistantID,
		SystemPrompt: agent.Prompt,
	})
	if err != nil {
		slog.Error("structure generation failed", "agent", agent.ID, "error", err)
		return writeError(c, http.StatusInternalServerError, err.Error())
	}
	return writeJSON(c, http.StatusOK, map[string]string{"app_id": agent.ID, "structure": structure})
}
