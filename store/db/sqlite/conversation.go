package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/anastasijaprogramer/chatgpt-clone/store"
)

func (d *DB) CreateConversation(ctx context.Context, create *store.CreateConversation) (*store.Conversation, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO conversation (uid, user_id, assistant, created_ts, updated_ts)
		VALUES (?, ?, ?, ?, ?)`,
		create.UID, create.UserID, create.Assistant, create.CreatedTs, create.CreatedTs,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create conversation")
	}
	conversationID, err := result.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read conversation id")
	}

	firstTurn := store.Turn{
		Role:      store.RoleUser,
		Parts:     firstTurnParts(create),
		CreatedTs: create.CreatedTs,
	}
	if err := insertTurn(ctx, tx, conversationID, 0, &firstTurn); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO conversation_title (conversation_id, conversation_uid, user_id, title, title_source, updated_ts)
		VALUES (?, ?, ?, ?, ?, ?)`,
		conversationID, create.UID, create.UserID, create.Title, store.TitleSourceDefault, create.CreatedTs,
	); err != nil {
		return nil, errors.Wrap(err, "failed to create title entry")
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit tx")
	}

	return &store.Conversation{
		ID:        int32(conversationID),
		UID:       create.UID,
		UserID:    create.UserID,
		Assistant: create.Assistant,
		History:   []store.Turn{firstTurn},
		CreatedTs: create.CreatedTs,
		UpdatedTs: create.CreatedTs,
	}, nil
}

func firstTurnParts(create *store.CreateConversation) []store.Part {
	var parts []store.Part
	if create.ImageRef != "" {
		parts = append(parts, store.Part{ImageRef: create.ImageRef})
	}
	return append(parts, store.Part{Text: create.FirstUserText})
}

func insertTurn(ctx context.Context, tx *sql.Tx, conversationID int64, ordinal int32, turn *store.Turn) error {
	parts, err := json.Marshal(turn.Parts)
	if err != nil {
		return errors.Wrap(err, "failed to encode turn parts")
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO turn (conversation_id, ordinal, role, parts, assistant, created_ts)
		VALUES (?, ?, ?, ?, ?, ?)`,
		conversationID, ordinal, turn.Role, string(parts), turn.Assistant, turn.CreatedTs,
	); err != nil {
		return errors.Wrap(err, "failed to insert turn")
	}
	return nil
}

func (d *DB) GetConversation(ctx context.Context, find *store.FindConversation) (*store.Conversation, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.UID != nil {
		where, args = append(where, "uid = ?"), append(args, *find.UID)
	}
	if find.UserID != nil {
		where, args = append(where, "user_id = ?"), append(args, *find.UserID)
	}

	conversation := &store.Conversation{}
	err := d.db.QueryRowContext(ctx, `
		SELECT id, uid, user_id, assistant, created_ts, updated_ts
		FROM conversation
		WHERE `+joinAnd(where),
		args...,
	).Scan(
		&conversation.ID, &conversation.UID, &conversation.UserID,
		&conversation.Assistant, &conversation.CreatedTs, &conversation.UpdatedTs,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get conversation")
	}

	history, err := d.listTurns(ctx, conversation.ID)
	if err != nil {
		return nil, err
	}
	conversation.History = history
	return conversation, nil
}

func (d *DB) listTurns(ctx context.Context, conversationID int32) ([]store.Turn, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT role, parts, assistant, created_ts
		FROM turn
		WHERE conversation_id = ?
		ORDER BY ordinal ASC`,
		conversationID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list turns")
	}
	defer func() { _ = rows.Close() }()

	turns := []store.Turn{}
	for rows.Next() {
		var turn store.Turn
		var parts string
		if err := rows.Scan(&turn.Role, &parts, &turn.Assistant, &turn.CreatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan turn")
		}
		if err := json.Unmarshal([]byte(parts), &turn.Parts); err != nil {
			return nil, errors.Wrap(err, "failed to decode turn parts")
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate turns")
	}
	return turns, nil
}

func (d *DB) AppendTurns(ctx context.Context, add *store.AppendTurns) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	var conversationID int64
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM conversation WHERE uid = ? AND user_id = ?`,
		add.ConversationUID, add.UserID,
	).Scan(&conversationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return errors.Wrap(err, "failed to find conversation")
	}

	var nextOrdinal int32
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(ordinal) + 1, 0) FROM turn WHERE conversation_id = ?`,
		conversationID,
	).Scan(&nextOrdinal); err != nil {
		return errors.Wrap(err, "failed to compute next ordinal")
	}

	for i := range add.Turns {
		if err := insertTurn(ctx, tx, conversationID, nextOrdinal+int32(i), &add.Turns[i]); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE conversation SET updated_ts = ? WHERE id = ?`,
		add.UpdatedTs, conversationID,
	); err != nil {
		return errors.Wrap(err, "failed to touch conversation")
	}

	return errors.Wrap(tx.Commit(), "failed to commit tx")
}

func (d *DB) UpdateConversation(ctx context.Context, update *store.UpdateConversation) error {
	set, args := []string{}, []any{}
	if update.Assistant != nil {
		set, args = append(set, "assistant = ?"), append(args, *update.Assistant)
	}
	if update.UpdatedTs != nil {
		set, args = append(set, "updated_ts = ?"), append(args, *update.UpdatedTs)
	}
	if len(set) == 0 {
		return errors.New("no fields to update")
	}

	args = append(args, update.ConversationUID, update.UserID)
	result, err := d.db.ExecContext(ctx, `
		UPDATE conversation SET `+joinComma(set)+` WHERE uid = ? AND user_id = ?`,
		args...,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update conversation")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (d *DB) DeleteConversation(ctx context.Context, delete *store.DeleteConversation) error {
	// Turns and the title entry cascade via foreign keys.
	result, err := d.db.ExecContext(ctx, `
		DELETE FROM conversation WHERE uid = ? AND user_id = ?`,
		delete.ConversationUID, delete.UserID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to delete conversation")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (d *DB) ListTitleEntries(ctx context.Context, find *store.FindTitleEntry) ([]*store.TitleEntry, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.UserID != nil {
		where, args = append(where, "user_id = ?"), append(args, *find.UserID)
	}
	if find.ConversationUID != nil {
		where, args = append(where, "conversation_uid = ?"), append(args, *find.ConversationUID)
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT conversation_uid, user_id, title, title_source, updated_ts
		FROM conversation_title
		WHERE `+joinAnd(where)+`
		ORDER BY updated_ts DESC`,
		args...,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list title entries")
	}
	defer func() { _ = rows.Close() }()

	list := []*store.TitleEntry{}
	for rows.Next() {
		entry := &store.TitleEntry{}
		if err := rows.Scan(&entry.ConversationUID, &entry.UserID, &entry.Title, &entry.TitleSource, &entry.UpdatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan title entry")
		}
		list = append(list, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate title entries")
	}
	return list, nil
}

func (d *DB) UpdateTitleEntry(ctx context.Context, update *store.UpdateTitleEntry) error {
	query := `UPDATE conversation_title SET title = ?, title_source = ?, updated_ts = ? WHERE conversation_uid = ?`
	args := []any{update.Title, update.TitleSource, update.UpdatedTs, update.ConversationUID}
	if update.IfSource != nil {
		query += ` AND title_source = ?`
		args = append(args, *update.IfSource)
	}

	result, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "failed to update title entry")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

func joinAnd(parts []string) string   { return strings.Join(parts, " AND ") }
func joinComma(parts []string) string { return strings.Join(parts, ", ") }
