package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/anastasijaprogramer/chatgpt-clone/internal/profile"
)

// Store provides database access to all raw objects. It layers invariant
// validation and defensive corruption checks over the driver.
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

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// CreateConversation creates a conversation with its first user turn and
// the fallback title entry atomically.
func (s *Store) CreateConversation(ctx context.Context, create *CreateConversation) (*Conversation, error) {
	if create.FirstUserText == "" {
		return nil, errors.New("first user text is required")
	}
	if create.UserID == "" {
		return nil, errors.New("user id is required")
	}
	return s.driver.CreateConversation(ctx, create)
}

// GetConversation reads a conversation scoped by owner and validates the
// history invariant: a record with empty history or a non-user first turn
// is corrupted and rejected, never repaired.
func (s *Store) GetConversation(ctx context.Context, find *FindConversation) (*Conversation, error) {
	conversation, err := s.driver.GetConversation(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(conversation.History) == 0 || conversation.History[0].Role != RoleUser {
		return nil, ErrInvalidConversation
	}
	return conversation, nil
}

// AppendTurns appends turns to history. History only grows; an append that
// would seed a conversation with a non-user first turn is rejected here
// (the conversation itself always starts with a user turn at creation, so
// this only defends against misuse of the store API).
func (s *Store) AppendTurns(ctx context.Context, append *AppendTurns) error {
	if len(append.Turns) == 0 {
		return errors.New("no turns to append")
	}
	for i := range append.Turns {
		if len(append.Turns[i].Parts) == 0 {
			return errors.New("turn has no parts")
		}
		if r := append.Turns[i].Role; r != RoleUser && r != RoleModel {
			return errors.Errorf("invalid turn role %q", r)
		}
	}
	return s.driver.AppendTurns(ctx, append)
}

func (s *Store) UpdateConversation(ctx context.Context, update *UpdateConversation) error {
	return s.driver.UpdateConversation(ctx, update)
}

func (s *Store) DeleteConversation(ctx context.Context, delete *DeleteConversation) error {
	return s.driver.DeleteConversation(ctx, delete)
}

func (s *Store) ListTitleEntries(ctx context.Context, find *FindTitleEntry) ([]*TitleEntry, error) {
	return s.driver.ListTitleEntries(ctx, find)
}

func (s *Store) UpdateTitleEntry(ctx context.Context, update *UpdateTitleEntry) error {
	return s.driver.UpdateTitleEntry(ctx, update)
}

func (s *Store) CreateAttachment(ctx context.Context, create *Attachment) (*Attachment, error) {
	return s.driver.CreateAttachment(ctx, create)
}

func (s *Store) GetAttachment(ctx context.Context, find *FindAttachment) (*Attachment, error) {
	return s.driver.GetAttachment(ctx, find)
}
