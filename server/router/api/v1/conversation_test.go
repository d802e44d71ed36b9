package v1

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etcop/copilot-gateway/store"
)

func askQuestion(t *testing.T, env *testEnv, sessionID, conversationID, question string) {
	t.Helper()
	rec := env.do(http.MethodPost, "/copilot/question",
		`{"question": "`+question+`", "app_id": "APP1", "conversation_id": "`+conversationID+`"}`, sessionID)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestListConversationsScopedToSession(t *testing.T) {
	env := newTestEnv(t)

	askQuestion(t, env, "alice", "conv-a", "first question")
	askQuestion(t, env, "bob", "conv-b", "other question")

	rec := env.do(http.MethodGet, "/copilot/conversations", "", "alice")
	require.Equal(t, http.StatusOK, rec.Code)

	var views []conversationView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "conv-a", views[0].ConversationID)
	assert.Equal(t, "APP1", views[0].AppID)
}

func TestListConversationMessagesInOrder(t *testing.T) {
	env := newTestEnv(t)

	askQuestion(t, env, "alice", "conv-m", "first")
	askQuestion(t, env, "alice", "conv-m", "second")

	rec := env.do(http.MethodGet, "/copilot/conversationMessages?conversation_id=conv-m", "", "alice")
	require.Equal(t, http.StatusOK, rec.Code)

	var views []messageView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 4)
	assert.Equal(t, store.RoleUser, views[0].Role)
	assert.Equal(t, "first", views[0].Content)
	assert.Equal(t, store.RoleAssistant, views[1].Role)
	assert.Equal(t, "second", views[2].Content)
}

func TestListConversationMessagesRequiresID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/copilot/conversationMessages", "", "alice")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	// The message is fully rendered, no format verbs leak through.
	assert.Contains(t, rec.Body.String(), "The conversation id is required")
	assert.NotContains(t, rec.Body.String(), "%s")
}

func TestListAssistantsMostRecentFirst(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.store.CreateAgent(t.Context(), &store.Agent{
		ID:   "APP2",
		Name: "Analyst",
		Type: store.AgentTypeOpenAI,
	})
	require.NoError(t, err)

	// Only APP1 has a conversation, so it sorts first.
	askQuestion(t, env, "alice", "conv-x", "hello")

	rec := env.do(http.MethodGet, "/copilot/assistants", "", "alice")
	require.Equal(t, http.StatusOK, rec.Code)

	var views []assistantView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 2)
	assert.Equal(t, "APP1", views[0].AppID)
	assert.Equal(t, "Helper", views[0].Name)
	assert.Equal(t, "APP2", views[1].AppID)
}

func TestGenerateTitleFallsBackToQuestion(t *testing.T) {
	env := newTestEnv(t)

	askQuestion(t, env, "alice", "conv-t", "How do I close the fiscal year?")

	rec := env.do(http.MethodPost, "/copilot/generateTitleConversation", `{"conversation_id": "conv-t"}`, "alice")
	require.Equal(t, http.StatusOK, rec.Code)

	var result map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "conv-t", result["conversation_id"])
	assert.Equal(t, "How do I close the fiscal year?", result["title"])

	uid := "conv-t"
	conversations, err := env.store.ListConversations(t.Context(), &store.FindConversation{UID: &uid})
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	assert.Equal(t, "How do I close the fiscal year?", conversations[0].Title)
}

func TestGenerateTitleUnknownConversation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/copilot/generateTitleConversation", `{"conversation_id": "missing"}`, "alice")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Conversation missing not found")
}
