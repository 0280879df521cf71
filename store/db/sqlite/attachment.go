package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/anastasijaprogramer/chatgpt-clone/store"
)

func (d *DB) CreateAttachment(ctx context.Context, create *store.Attachment) (*store.Attachment, error) {
	result, err := d.db.ExecContext(ctx, `
		INSERT INTO attachment (uid, user_id, filename, mime_type, size, file_path, thumbnail_path, created_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		create.UID, create.UserID, create.Filename, create.MimeType,
		create.Size, create.FilePath, create.ThumbnailPath, create.CreatedTs,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create attachment")
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read attachment id")
	}
	create.ID = int32(id)
	return create, nil
}

func (d *DB) GetAttachment(ctx context.Context, find *store.FindAttachment) (*store.Attachment, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.UID != nil {
		where, args = append(where, "uid = ?"), append(args, *find.UID)
	}
	if find.UserID != nil {
		where, args = append(where, "user_id = ?"), append(args, *find.UserID)
	}

	attachment := &store.Attachment{}
	err := d.db.QueryRowContext(ctx, `
		SELECT id, uid, user_id, filename, mime_type, size, file_path, thumbnail_path, created_ts
		FROM attachment
		WHERE `+joinAnd(where),
		args...,
	).Scan(
		&attachment.ID, &attachment.UID, &attachment.UserID, &attachment.Filename,
		&attachment.MimeType, &attachment.Size, &attachment.FilePath,
		&attachment.ThumbnailPath, &attachment.CreatedTs,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to get attachment")
	}
	return attachment, nil
}
