package store

// Role is the author of a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Part is one content segment inside a turn: either text or an opaque
// reference to a stored image. Exactly one field is set.
type Part struct {
	Text     string `json:"text,omitempty"`
	ImageRef string `json:"imageRef,omitempty"`
}

// Turn is one message in a conversation. Turns are append-only: once
// written they are never mutated or removed. Assistant records which
// persona produced a model turn ("" on user turns and legacy rows); it
// supports later disambiguation of merged dual-mode answers.
type Turn struct {
	Role      Role   `json:"role"`
	Parts     []Part `json:"parts"`
	Assistant string `json:"assistant,omitempty"`
	CreatedTs int64  `json:"createdTs"`
}

// Text returns the first text part of the turn.
func (t *Turn) Text() string {
	for _, p := range t.Parts {
		if p.Text != "" {
			return p.Text
		}
	}
	return ""
}

// Conversation owns its ordered turn history for its whole lifetime.
// Invariant: History is never empty once created and History[0] is a user
// turn. Records violating this are rejected on read as corrupted.
type Conversation struct {
	UID       string
	UserID    string
	Assistant string
	History   []Turn
	ID        int32
	CreatedTs int64
	UpdatedTs int64
}

// CreateConversation creates a conversation with its first user turn and
// the matching title index entry in one atomic operation, so listings are
// immediately consistent.
type CreateConversation struct {
	UID           string
	UserID        string
	Assistant     string
	FirstUserText string
	ImageRef      string
	Title         string
	CreatedTs     int64
}

// FindConversation scopes reads by owner. UID-only lookups are reserved
// for background tasks that already hold a validated reference.
type FindConversation struct {
	UID    *string
	UserID *string
}

// AppendTurns appends turns to the end of a conversation's history.
// Ownership is enforced on every append, not just at creation.
type AppendTurns struct {
	ConversationUID string
	UserID          string
	Turns           []Turn
	UpdatedTs       int64
}

// UpdateConversation mutates conversation metadata without touching
// history. Used when a dual-mode conversation resolves to one persona.
type UpdateConversation struct {
	ConversationUID string
	UserID          string
	Assistant       *string
	UpdatedTs       *int64
}

// DeleteConversation removes a conversation and cascades its title entry.
type DeleteConversation struct {
	ConversationUID string
	UserID          string
}
