package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for database access to the gateway objects.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	// Migrate creates the schema when it does not exist yet.
	Migrate(ctx context.Context) error

	// FindOrCreateConversation returns the conversation with the given
	// external id, creating it when absent. Atomic from the caller's
	// perspective: exactly one conversation ever exists per uid.
	FindOrCreateConversation(ctx context.Context, conversation *Conversation) (*Conversation, error)
	ListConversations(ctx context.Context, find *FindConversation) ([]*Conversation, error)
	UpdateConversationTitle(ctx context.Context, id int32, title string) error

	// AppendMessage adds one message at the end of a conversation and
	// advances the conversation's last-message timestamp.
	AppendMessage(ctx context.Context, create *Message) (*Message, error)
	// ListMessages returns messages in creation order.
	ListMessages(ctx context.Context, find *FindMessage) ([]*Message, error)

	CreateAgent(ctx context.Context, create *Agent) (*Agent, error)
	// GetAgent resolves an agent by id or, failing that, by name.
	GetAgent(ctx context.Context, idOrName string) (*Agent, error)
	ListAgents(ctx context.Context) ([]*Agent, error)
	ListAgentInfos(ctx context.Context, agentID string) ([]*AgentInfo, error)
	UpsertAgentInfo(ctx context.Context, info *AgentInfo) (*AgentInfo, error)
	// MarkAgentsSynchronized sets every info record of the given agents to
	// the synchronized state inside a single transaction; the whole batch
	// commits or rolls back together.
	MarkAgentsSynchronized(ctx context.Context, agentIDs []string) error
}
