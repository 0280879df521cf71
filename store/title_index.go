package store

// TitleSource indicates how a conversation title was produced.
// - "default": truncated/capitalized first message, written at creation
// - "auto": AI-summarized by the background title updater
type TitleSource string

const (
	TitleSourceDefault TitleSource = "default"
	TitleSourceAuto    TitleSource = "auto"
)

// TitleEntry is one row of the title index: the denormalized per-owner
// projection of conversation → display title used for fast listing. It is
// derived state and never the source of truth for history content.
type TitleEntry struct {
	ConversationUID string
	UserID          string
	Title           string
	TitleSource     TitleSource
	UpdatedTs       int64
}

// FindTitleEntry lists entries for an owner, newest first.
type FindTitleEntry struct {
	UserID          *string
	ConversationUID *string
}

// UpdateTitleEntry rewrites a conversation's title. When IfSource is set
// the update only applies while the stored source matches, which makes the
// background refresh an exactly-once mutation even if rescheduled.
type UpdateTitleEntry struct {
	ConversationUID string
	Title           string
	TitleSource     TitleSource
	UpdatedTs       int64
	IfSource        *TitleSource
}
