package reconcile

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/etcop/copilot-gateway/copilot"
	"github.com/etcop/copilot-gateway/store"
)

type structureBackend interface {
	Ask(ctx context.Context, endpoint string, payload *copilot.Payload) (*copilot.RawAnswer, error)
}

// BackendSynchronizer pushes an agent's configuration to the Copilot
// backend by rebuilding it on the matching execution endpoint.
type BackendSynchronizer struct {
	backend  structureBackend
	language string
}

func NewBackendSynchronizer(backend structureBackend, language string) *BackendSynchronizer {
	return &BackendSynchronizer{backend: backend, language: language}
}

// SyncAgent rebuilds one agent on the backend. The backend answers a
// rebuild like any question; a classified error in the reply fails the
// sync.
func (b *BackendSynchronizer) SyncAgent(ctx context.Context, agent *store.Agent) error {
	endpoint := copilot.GraphEndpoint
	if !strings.EqualFold(agent.Type, store.AgentTypeLanggraph) {
		endpoint = copilot.QuestionEndpoint
	}

	raw, err := b.backend.Ask(ctx, endpoint, &copilot.Payload{
		Type:         agent.Type,
		AssistantID:  agent.AssistantID,
		SystemPrompt: agent.Prompt,
		Temperature:  agent.Temperature,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to sync agent %s", agent.ID)
	}
	if _, err := copilot.Normalize(raw, "", b.language); err != nil {
		return errors.Wrapf(err, "backend rejected agent %s", agent.ID)
	}
	return nil
}
