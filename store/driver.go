package store

import "context"

// Driver is the database access interface implemented by each backend
// (sqlite, postgres). Drivers provide atomic per-conversation operations;
// invariant validation lives in Store so both backends share it.
type Driver interface {
	CreateConversation(ctx context.Context, create *CreateConversation) (*Conversation, error)
	GetConversation(ctx context.Context, find *FindConversation) (*Conversation, error)
	AppendTurns(ctx context.Context, append *AppendTurns) error
	UpdateConversation(ctx context.Context, update *UpdateConversation) error
	DeleteConversation(ctx context.Context, delete *DeleteConversation) error

	ListTitleEntries(ctx context.Context, find *FindTitleEntry) ([]*TitleEntry, error)
	UpdateTitleEntry(ctx context.Context, update *UpdateTitleEntry) error

	CreateAttachment(ctx context.Context, create *Attachment) (*Attachment, error)
	GetAttachment(ctx context.Context, find *FindAttachment) (*Attachment, error)

	Migrate(ctx context.Context) error
	Close() error
}
