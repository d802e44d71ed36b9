package store

import "strings"

// Agent types. The type selects the backend execution endpoint.
const (
	AgentTypeOpenAI    = "openai"
	AgentTypeLangchain = "langchain"
	AgentTypeLanggraph = "langgraph"
)

// SyncStatusSynchronized is the agent-info status meaning the agent
// configuration matches the backend. Comparison is case-insensitive.
const SyncStatusSynchronized = "synchronized"

// SyncStatusPending marks an agent info awaiting synchronization.
const SyncStatusPending = "pending"

// Agent is a configured AI assistant definition, referenced by id or name.
// Read-mostly from the gateway's point of view.
type Agent struct {
	ID          string
	Name        string
	Type        string
	AssistantID string
	Prompt      string
	Temperature float64
	SyncStartup bool
}

// KeepsConversation reports whether the agent type tracks a conversation
// across turns; those agents get a generated conversation id on the first
// question.
func (a *Agent) KeepsConversation() bool {
	return strings.EqualFold(a.Type, AgentTypeLangchain) || strings.EqualFold(a.Type, AgentTypeLanggraph)
}

// AgentInfo is a child record of an Agent holding its synchronization status.
type AgentInfo struct {
	ID         int64
	AgentID    string
	SyncStatus string
}

// IsSynchronized reports whether the info record is in the synchronized state.
func (i *AgentInfo) IsSynchronized() bool {
	return strings.EqualFold(i.SyncStatus, SyncStatusSynchronized)
}

type FindAgent struct {
	ID   *string
	Name *string
}
