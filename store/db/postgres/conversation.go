package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/etcop/copilot-gateway/store"
)

func (d *DB) FindOrCreateConversation(ctx context.Context, create *store.Conversation) (*store.Conversation, error) {
	now := time.Now().UnixMilli()
	stmt := `
		INSERT INTO conversation (uid, agent_id, creator_id, title, created_ts, last_msg_ts)
		VALUES (` + placeholders(6) + `)
		ON CONFLICT (uid) DO NOTHING
	`
	if _, err := d.db.ExecContext(ctx, stmt,
		create.UID, create.AgentID, create.CreatorID, create.Title, now, now,
	); err != nil {
		return nil, errors.Wrap(err, "failed to create conversation")
	}

	conversation := &store.Conversation{}
	query := `
		SELECT id, uid, agent_id, creator_id, title, created_ts, last_msg_ts
		FROM conversation
		WHERE uid = $1
	`
	if err := d.db.QueryRowContext(ctx, query, create.UID).Scan(
		&conversation.ID,
		&conversation.UID,
		&conversation.AgentID,
		&conversation.CreatorID,
		&conversation.Title,
		&conversation.CreatedTs,
		&conversation.LastMsgTs,
	); err != nil {
		return nil, errors.Wrapf(err, "failed to find conversation %s", create.UID)
	}
	return conversation, nil
}

func (d *DB) ListConversations(ctx context.Context, find *store.FindConversation) ([]*store.Conversation, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.UID != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *find.UID)
	}
	if find.AgentID != nil {
		where, args = append(where, "agent_id = "+placeholder(len(args)+1)), append(args, *find.AgentID)
	}
	if find.CreatorID != nil {
		where, args = append(where, "creator_id = "+placeholder(len(args)+1)), append(args, *find.CreatorID)
	}

	query := `
		SELECT id, uid, agent_id, creator_id, title, created_ts, last_msg_ts
		FROM conversation
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY last_msg_ts DESC`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list conversations")
	}
	defer rows.Close()

	list := make([]*store.Conversation, 0)
	for rows.Next() {
		c := &store.Conversation{}
		if err := rows.Scan(&c.ID, &c.UID, &c.AgentID, &c.CreatorID, &c.Title, &c.CreatedTs, &c.LastMsgTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan conversation")
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) UpdateConversationTitle(ctx context.Context, id int32, title string) error {
	if _, err := d.db.ExecContext(ctx, "UPDATE conversation SET title = $1 WHERE id = $2", title, id); err != nil {
		return errors.Wrapf(err, "failed to update title of conversation %d", id)
	}
	return nil
}

func (d *DB) AppendMessage(ctx context.Context, create *store.Message) (*store.Message, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin tx")
	}
	defer tx.Rollback()

	// Lock the conversation row so concurrent appends serialize and the
	// line numbers stay unique within a conversation.
	if _, err := tx.ExecContext(ctx,
		"SELECT id FROM conversation WHERE id = $1 FOR UPDATE", create.ConversationID,
	); err != nil {
		return nil, errors.Wrap(err, "failed to lock conversation")
	}

	var maxLineNo sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		"SELECT MAX(line_no) FROM message WHERE conversation_id = $1", create.ConversationID,
	).Scan(&maxLineNo); err != nil {
		return nil, errors.Wrap(err, "failed to read max line_no")
	}
	create.LineNo = maxLineNo.Int64 + 10
	create.CreatedTs = time.Now().UnixMilli()

	if err := tx.QueryRowContext(ctx, `
		INSERT INTO message (conversation_id, role, content, line_no, created_ts)
		VALUES (`+placeholders(5)+`)
		RETURNING id`,
		create.ConversationID, create.Role, create.Content, create.LineNo, create.CreatedTs,
	).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to append message")
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE conversation SET last_msg_ts = $1 WHERE id = $2", create.CreatedTs, create.ConversationID,
	); err != nil {
		return nil, errors.Wrap(err, "failed to touch conversation")
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit message")
	}
	return create, nil
}

func (d *DB) ListMessages(ctx context.Context, find *store.FindMessage) ([]*store.Message, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.ConversationID != nil {
		where, args = append(where, "m.conversation_id = "+placeholder(len(args)+1)), append(args, *find.ConversationID)
	}
	if find.ConversationUID != nil {
		where, args = append(where, "m.conversation_id = (SELECT id FROM conversation WHERE uid = "+placeholder(len(args)+1)+")"), append(args, *find.ConversationUID)
	}

	query := `
		SELECT m.id, m.conversation_id, m.role, m.content, m.line_no, m.created_ts
		FROM message m
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY m.line_no ASC`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list messages")
	}
	defer rows.Close()

	list := make([]*store.Message, 0)
	for rows.Next() {
		m := &store.Message{}
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.LineNo, &m.CreatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan message")
		}
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}
