package reconcile

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/etcop/copilot-gateway/internal/metrics"
	"github.com/etcop/copilot-gateway/internal/profile"
	"github.com/etcop/copilot-gateway/store"
	"github.com/etcop/copilot-gateway/store/db/sqlite"
)

type fakeSynchronizer struct {
	mu     sync.Mutex
	synced []string
	fail   bool
}

func (f *fakeSynchronizer) SyncAgent(_ context.Context, agent *store.Agent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("backend unreachable")
	}
	f.synced = append(f.synced, agent.ID)
	return nil
}

func (f *fakeSynchronizer) syncedAgents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.synced...)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	p := &profile.Profile{
		Mode:   "dev",
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "reconcile_test.db"),
	}
	driver, err := sqlite.NewDB(p)
	require.NoError(t, err)
	t.Cleanup(func() { _ = driver.Close() })
	require.NoError(t, driver.Migrate(context.Background()))
	return store.New(driver, p)
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reconciliation run did not finish")
	}
}

func TestRunSelectsOnlyStaleFlaggedAgents(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// A: flagged, no info records -> candidate.
	_, err := st.CreateAgent(ctx, &store.Agent{ID: "A", Name: "a", Type: store.AgentTypeLanggraph, SyncStartup: true})
	require.NoError(t, err)
	// B: flagged, fully synchronized -> not a candidate.
	_, err = st.CreateAgent(ctx, &store.Agent{ID: "B", Name: "b", Type: store.AgentTypeOpenAI, SyncStartup: true})
	require.NoError(t, err)
	_, err = st.UpsertAgentInfo(ctx, &store.AgentInfo{AgentID: "B", SyncStatus: "SYNCHRONIZED"})
	require.NoError(t, err)
	// C: not flagged -> not a candidate.
	_, err = st.CreateAgent(ctx, &store.Agent{ID: "C", Name: "c", Type: store.AgentTypeLangchain, SyncStartup: false})
	require.NoError(t, err)

	synchronizer := &fakeSynchronizer{}
	r := NewReconciler(st, synchronizer, metrics.NewExporter())

	done, err := r.Run(ctx)
	require.NoError(t, err)
	waitDone(t, done)

	require.Equal(t, []string{"A"}, synchronizer.syncedAgents())

	infos, err := st.ListAgentInfos(ctx, "A")
	require.NoError(t, err)
	require.NotEmpty(t, infos)
	for _, info := range infos {
		require.True(t, info.IsSynchronized())
	}
}

func TestRunSkipsWhenNothingPending(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.CreateAgent(ctx, &store.Agent{ID: "B", Name: "b", Type: store.AgentTypeOpenAI, SyncStartup: true})
	require.NoError(t, err)
	_, err = st.UpsertAgentInfo(ctx, &store.AgentInfo{AgentID: "B", SyncStatus: store.SyncStatusSynchronized})
	require.NoError(t, err)

	synchronizer := &fakeSynchronizer{}
	r := NewReconciler(st, synchronizer, metrics.NewExporter())

	done, err := r.Run(ctx)
	require.NoError(t, err)
	waitDone(t, done)
	require.Empty(t, synchronizer.syncedAgents())
}

func TestRunFailureMarksNothing(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.CreateAgent(ctx, &store.Agent{ID: "A", Name: "a", Type: store.AgentTypeLanggraph, SyncStartup: true})
	require.NoError(t, err)
	_, err = st.UpsertAgentInfo(ctx, &store.AgentInfo{AgentID: "A", SyncStatus: store.SyncStatusPending})
	require.NoError(t, err)

	synchronizer := &fakeSynchronizer{fail: true}
	r := NewReconciler(st, synchronizer, metrics.NewExporter())

	done, err := r.Run(ctx)
	require.NoError(t, err)
	waitDone(t, done)

	infos, err := st.ListAgentInfos(ctx, "A")
	require.NoError(t, err)
	require.NotEmpty(t, infos)
	for _, info := range infos {
		require.False(t, info.IsSynchronized())
	}
}
