package store

import (
	"context"

	"github.com/etcop/copilot-gateway/internal/profile"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) FindOrCreateConversation(ctx context.Context, conversation *Conversation) (*Conversation, error) {
	return s.driver.FindOrCreateConversation(ctx, conversation)
}

func (s *Store) ListConversations(ctx context.Context, find *FindConversation) ([]*Conversation, error) {
	return s.driver.ListConversations(ctx, find)
}

func (s *Store) UpdateConversationTitle(ctx context.Context, id int32, title string) error {
	return s.driver.UpdateConversationTitle(ctx, id, title)
}

func (s *Store) AppendMessage(ctx context.Context, create *Message) (*Message, error) {
	return s.driver.AppendMessage(ctx, create)
}

func (s *Store) ListMessages(ctx context.Context, find *FindMessage) ([]*Message, error) {
	return s.driver.ListMessages(ctx, find)
}

func (s *Store) CreateAgent(ctx context.Context, create *Agent) (*Agent, error) {
	return s.driver.CreateAgent(ctx, create)
}

func (s *Store) GetAgent(ctx context.Context, idOrName string) (*Agent, error) {
	return s.driver.GetAgent(ctx, idOrName)
}

func (s *Store) ListAgents(ctx context.Context) ([]*Agent, error) {
	return s.driver.ListAgents(ctx)
}

func (s *Store) ListAgentInfos(ctx context.Context, agentID string) ([]*AgentInfo, error) {
	return s.driver.ListAgentInfos(ctx, agentID)
}

func (s *Store) UpsertAgentInfo(ctx context.Context, info *AgentInfo) (*AgentInfo, error) {
	return s.driver.UpsertAgentInfo(ctx, info)
}

func (s *Store) MarkAgentsSynchronized(ctx context.Context, agentIDs []string) error {
	return s.driver.MarkAgentsSynchronized(ctx, agentIDs)
}
