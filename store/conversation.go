package store

// Message roles tracked in a conversation.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleError     = "error"
)

// Conversation is a durable thread of question/answer turns. UID is the
// externally-visible conversation id supplied by the caller and stable across
// turns; ID is the internal store id. Timestamps are Unix milliseconds.
type Conversation struct {
	ID        int32
	UID       string
	AgentID   string
	CreatorID string
	Title     string
	CreatedTs int64
	LastMsgTs int64
}

type FindConversation struct {
	ID        *int32
	UID       *string
	AgentID   *string
	CreatorID *string
}

// Message is one turn of a conversation. LineNo orders messages within their
// conversation (max+10 per append); messages are immutable once created.
type Message struct {
	ID             int64
	ConversationID int32
	Role           string
	Content        string
	LineNo         int64
	CreatedTs      int64
}

type FindMessage struct {
	ConversationID  *int32
	ConversationUID *string
}
