// Package reconcile synchronizes pending agent configurations with the
// Copilot backend once per process start.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/etcop/copilot-gateway/internal/metrics"
	"github.com/etcop/copilot-gateway/store"
)

// Synchronizer pushes one agent's configuration to the backend.
type Synchronizer interface {
	SyncAgent(ctx context.Context, agent *store.Agent) error
}

// Reconciler scans the configured agents at startup and resynchronizes
// the stale ones in a single background run.
type Reconciler struct {
	store        *store.Store
	synchronizer Synchronizer
	metrics      *metrics.Exporter
	timeout      time.Duration
}

func NewReconciler(st *store.Store, synchronizer Synchronizer, exporter *metrics.Exporter) *Reconciler {
	return &Reconciler{
		store:        st,
		synchronizer: synchronizer,
		metrics:      exporter,
		timeout:      10 * time.Minute,
	}
}

// Run scans for stale agents and, when any exist, launches one
// background goroutine to synchronize the batch. It never blocks
// startup: the scan is quick and the work itself runs detached from the
// caller's context. The returned channel closes when the run is over,
// which the tests wait on.
func (r *Reconciler) Run(ctx context.Context) (<-chan struct{}, error) {
	candidates, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	if len(candidates) == 0 {
		slog.Info("agent reconciliation skipped, everything synchronized")
		r.metrics.ObserveReconcilerRun("skipped")
		close(done)
		return done, nil
	}

	ids := make([]string, 0, len(candidates))
	for _, agent := range candidates {
		ids = append(ids, agent.ID)
	}
	slog.Info("agent reconciliation starting", "agents", ids)

	go func() {
		defer close(done)
		// Detached from the startup context: the batch finishes (or
		// fails) on its own schedule, bounded only by the run timeout.
		runCtx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		r.execute(runCtx, candidates)
	}()
	return done, nil
}

// scan selects the agents needing synchronization: flagged for startup
// sync and either without info records or with at least one record not
// in the synchronized state.
func (r *Reconciler) scan(ctx context.Context) ([]*store.Agent, error) {
	agents, err := r.store.ListAgents(ctx)
	if err != nil {
		return nil, err
	}

	candidates := make([]*store.Agent, 0)
	for _, agent := range agents {
		if !agent.SyncStartup {
			continue
		}
		infos, err := r.store.ListAgentInfos(ctx, agent.ID)
		if err != nil {
			return nil, err
		}
		if needsSync(infos) {
			candidates = append(candidates, agent)
		}
	}
	return candidates, nil
}

func needsSync(infos []*store.AgentInfo) bool {
	if len(infos) == 0 {
		return true
	}
	for _, info := range infos {
		if !info.IsSynchronized() {
			return true
		}
	}
	return false
}

// execute synchronizes the batch and marks it in one transaction. The
// batch succeeds or fails as a whole; a failed attempt leaves every
// status untouched for the next process start.
func (r *Reconciler) execute(ctx context.Context, candidates []*store.Agent) {
	start := time.Now()

	for _, agent := range candidates {
		if err := r.synchronizer.SyncAgent(ctx, agent); err != nil {
			slog.Error("agent reconciliation failed, nothing marked",
				"agent", agent.ID,
				"error", err,
				"elapsed", time.Since(start))
			r.metrics.ObserveReconcilerRun("failure")
			return
		}
	}

	ids := make([]string, 0, len(candidates))
	for _, agent := range candidates {
		ids = append(ids, agent.ID)
	}
	if err := r.store.MarkAgentsSynchronized(ctx, ids); err != nil {
		slog.Error("failed to mark agents synchronized", "agents", ids, "error", err)
		r.metrics.ObserveReconcilerRun("failure")
		return
	}

	slog.Info("agent reconciliation finished",
		"agents", ids,
		"elapsed", time.Since(start))
	r.metrics.ObserveReconcilerRun("success")
}
