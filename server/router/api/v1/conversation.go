package v1

import (
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/etcop/copilot-gateway/copilot"
	"github.com/etcop/copilot-gateway/internal/i18n"
	"github.com/etcop/copilot-gateway/server/session"
	"github.com/etcop/copilot-gateway/store"
)

type conversationView struct {
	ConversationID string `json:"conversation_id"`
	AppID          string `json:"app_id"`
	Title          string `json:"title"`
	CreatedAt      string `json:"created_at"`
	LastMessageAt  string `json:"last_message_at"`
}

type messageView struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type assistantView struct {
	AppID string `json:"app_id"`
	Name  string `json:"name"`
}

const viewTimestampLayout = "2006-01-02 15:04:05.000"

// ListConversations returns the caller's conversations, most recently
// active first, optionally filtered by assistant.
func (s *APIV1Service) ListConversations(c echo.Context) error {
	find := &store.FindConversation{}
	if sess := session.FromContext(c); sess != nil {
		find.CreatorID = &sess.ID
	}
	if appID := c.QueryParam("app_id"); appID != "" {
		find.AgentID = &appID
	}

	conversations, err := s.Store.ListConversations(c.Request().Context(), find)
	if err != nil {
		slog.Error("failed to list conversations", "error", err)
		return writeError(c, http.StatusInternalServerError, err.Error())
	}

	views := make([]conversationView, 0, len(conversations))
	for _, conv := range conversations {
		views = append(views, conversationView{
			ConversationID: conv.UID,
			AppID:          conv.AgentID,
			Title:          conv.Title,
			CreatedAt:      time.UnixMilli(conv.CreatedTs).Format(viewTimestampLayout),
			LastMessageAt:  time.UnixMilli(conv.LastMsgTs).Format(viewTimestampLayout),
		})
	}
	return writeJSON(c, http.StatusOK, views)
}

// ListConversationMessages returns the messages of one conversation in
// creation order.
func (s *APIV1Service) ListConversationMessages(c echo.Context) error {
	conversationID := c.QueryParam("conversation_id")
	if conversationID == "" {
		return writeError(c, http.StatusBadRequest, i18n.Message(s.language(c), i18n.MsgMissingConv))
	}

	messages, err := s.Store.ListMessages(c.Request().Context(), &store.FindMessage{ConversationUID: &conversationID})
	if err != nil {
		slog.Error("failed to list conversation messages", "conversation", conversationID, "error", err)
		return writeError(c, http.StatusInternalServerError, err.Error())
	}

	views := make([]messageView, 0, len(messages))
	for _, m := range messages {
		views = append(views, messageView{
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: time.UnixMilli(m.CreatedTs).Format(viewTimestampLayout),
		})
	}
	return writeJSON(c, http.StatusOK, views)
}

// ListAssistants returns the configured assistants, the ones talked to
// most recently first. Failures here are server-side: the route takes no
// client input.
func (s *APIV1Service) ListAssistants(c echo.Context) error {
	ctx := c.Request().Context()

	agents, err := s.Store.ListAgents(ctx)
	if err != nil {
		slog.Error("failed to list assistants", "error", err)
		return writeError(c, http.StatusInternalServerError, err.Error())
	}
	conversations, err := s.Store.ListConversations(ctx, &store.FindConversation{})
	if err != nil {
		slog.Error("failed to list conversations for assistant ordering", "error", err)
		return writeError(c, http.StatusInternalServerError, err.Error())
	}

	lastActivity := map[string]int64{}
	for _, conv := range conversations {
		if conv.LastMsgTs > lastActivity[conv.AgentID] {
			lastActivity[conv.AgentID] = conv.LastMsgTs
		}
	}
	sort.SliceStable(agents, func(i, j int) bool {
		return lastActivity[agents[i].ID] > lastActivity[agents[j].ID]
	})

	views := make([]assistantView, 0, len(agents))
	for _, agent := range agents {
		views = append(views, assistantView{AppID: agent.ID, Name: agent.Name})
	}
	return writeJSON(c, http.StatusOK, views)
}

// GenerateConversationTitle derives a short title from the first
// exchange of a conversation and persists it.
func (s *APIV1Service) GenerateConversationTitle(c echo.Context) error {
	lang := s.language(c)
	ctx := c.Request().Context()

	req, err := parseQuestionRequest(c)
	if err != nil {
		return err
	}
	if req.ConversationID == "" {
		return copilot.NewServiceErrorWithCode(i18n.Message(lang, i18n.MsgMissingConv), http.StatusBadRequest)
	}

	conversations, err := s.Store.ListConversations(ctx, &store.FindConversation{UID: &req.ConversationID})
	if err != nil || len(conversations) == 0 {
		return copilot.NewServiceErrorWithCode(i18n.Messagef(lang, i18n.MsgConvNotFound, req.ConversationID), http.StatusBadRequest)
	}
	conversation := conversations[0]

	messages, err := s.Store.ListMessages(ctx, &store.FindMessage{ConversationUID: &req.ConversationID})
	if err != nil {
		return err
	}
	var question, answer string
	for _, m := range messages {
		if question == "" && m.Role == store.RoleUser {
			question = m.Content
		}
		if answer == "" && m.Role == store.RoleAssistant {
			answer = m.Content
		}
		if question != "" && answer != "" {
			break
		}
	}

	title := ""
	if s.TitleGenerator != nil && question != "" {
		title, err = s.TitleGenerator.Generate(ctx, question, answer)
		if err != nil {
			slog.Warn("title generation failed, falling back to the question", "conversation", req.ConversationID, "error", err)
		}
	}
	if title == "" {
		// No LLM configured (or it failed): the opening question is a
		// serviceable title.
		title = question
		if len([]rune(title)) > 50 {
			title = string([]rune(title)[:50])
		}
	}
	if title == "" {
		title = i18n.Message(lang, i18n.MsgNewConversation)
	}

	if err := s.Store.UpdateConversationTitle(ctx, conversation.ID, title); err != nil {
		return err
	}
	return writeJSON(c, http.StatusOK, map[string]string{
		"conversation_id": req.ConversationID,
		"title":           title,
	})
}
