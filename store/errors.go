package store

import "github.com/pkg/errors"

// ErrNotFound covers both a missing record and an ownership mismatch:
// by-id operations never confirm existence to non-owners.
var ErrNotFound = errors.New("not found")

// ErrInvalidConversation marks a corrupted record: empty history or a
// first turn not authored by the user. Detected defensively on every read
// and never silently repaired.
var ErrInvalidConversation = errors.New("conversation history is invalid or corrupted")
