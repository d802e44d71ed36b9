package sqlite

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/etcop/copilot-gateway/store"
)

func (d *DB) CreateAgent(ctx context.Context, create *store.Agent) (*store.Agent, error) {
	stmt := `
		INSERT INTO agent (id, name, type, assistant_id, prompt, temperature, sync_startup)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			assistant_id = excluded.assistant_id,
			prompt = excluded.prompt,
			temperature = excluded.temperature,
			sync_startup = excluded.sync_startup
	`
	if _, err := d.db.ExecContext(ctx, stmt,
		create.ID, create.Name, create.Type, create.AssistantID, create.Prompt, create.Temperature, create.SyncStartup,
	); err != nil {
		return nil, errors.Wrapf(err, "failed to create agent %s", create.ID)
	}
	return create, nil
}

func (d *DB) GetAgent(ctx context.Context, idOrName string) (*store.Agent, error) {
	query := `
		SELECT id, name, type, assistant_id, prompt, temperature, sync_startup
		FROM agent
		WHERE id = ? OR name = ?
		LIMIT 1
	`
	agent := &store.Agent{}
	if err := d.db.QueryRowContext(ctx, query, idOrName, idOrName).Scan(
		&agent.ID,
		&agent.Name,
		&agent.Type,
		&agent.AssistantID,
		&agent.Prompt,
		&agent.Temperature,
		&agent.SyncStartup,
	); err != nil {
		return nil, errors.Wrapf(err, "failed to get agent %s", idOrName)
	}
	return agent, nil
}

func (d *DB) ListAgents(ctx context.Context) ([]*store.Agent, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, name, type, assistant_id, prompt, temperature, sync_startup
		FROM agent
		ORDER BY name ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list agents")
	}
	defer rows.Close()

	list := make([]*store.Agent, 0)
	for rows.Next() {
		a := &store.Agent{}
		if err := rows.Scan(&a.ID, &a.Name, &a.Type, &a.AssistantID, &a.Prompt, &a.Temperature, &a.SyncStartup); err != nil {
			return nil, errors.Wrap(err, "failed to scan agent")
		}
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) ListAgentInfos(ctx context.Context, agentID string) ([]*store.AgentInfo, error) {
	where, args := []string{"1 = 1"}, []any{}
	if agentID != "" {
		where, args = append(where, "agent_id = ?"), append(args, agentID)
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, agent_id, sync_status
		FROM agent_info
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY id ASC`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list agent infos")
	}
	defer rows.Close()

	list := make([]*store.AgentInfo, 0)
	for rows.Next() {
		info := &store.AgentInfo{}
		if err := rows.Scan(&info.ID, &info.AgentID, &info.SyncStatus); err != nil {
			return nil, errors.Wrap(err, "failed to scan agent info")
		}
		list = append(list, info)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) UpsertAgentInfo(ctx context.Context, info *store.AgentInfo) (*store.AgentInfo, error) {
	if info.ID != 0 {
		if _, err := d.db.ExecContext(ctx,
			"UPDATE agent_info SET agent_id = ?, sync_status = ? WHERE id = ?",
			info.AgentID, info.SyncStatus, info.ID,
		); err != nil {
			return nil, errors.Wrapf(err, "failed to update agent info %d", info.ID)
		}
		return info, nil
	}
	if err := d.db.QueryRowContext(ctx,
		"INSERT INTO agent_info (agent_id, sync_status) VALUES (?, ?) RETURNING id",
		info.AgentID, info.SyncStatus,
	).Scan(&info.ID); err != nil {
		return nil, errors.Wrap(err, "failed to insert agent info")
	}
	return info, nil
}

func (d *DB) MarkAgentsSynchronized(ctx context.Context, agentIDs []string) error {
	if len(agentIDs) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin tx")
	}
	defer tx.Rollback()

	for _, agentID := range agentIDs {
		result, err := tx.ExecContext(ctx,
			"UPDATE agent_info SET sync_status = ? WHERE agent_id = ?",
			store.SyncStatusSynchronized, agentID,
		)
		if err != nil {
			return errors.Wrapf(err, "failed to mark agent %s synchronized", agentID)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "failed to read rows affected")
		}
		// An agent without an info record gets one so the synchronized
		// state survives restarts.
		if affected == 0 {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO agent_info (agent_id, sync_status) VALUES (?, ?)",
				agentID, store.SyncStatusSynchronized,
			); err != nil {
				return errors.Wrapf(err, "failed to insert info for agent %s", agentID)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit synchronization batch")
	}
	return nil
}
