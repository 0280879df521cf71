package store

// Attachment is a stored image referenced from turns by its UID. The blob
// lives on the local filesystem under the data directory; the store only
// keeps metadata and paths.
type Attachment struct {
	UID           string
	UserID        string
	Filename      string
	MimeType      string
	FilePath      string
	ThumbnailPath string
	ID            int32
	Size          int64
	CreatedTs     int64
}

// FindAttachment looks up attachment metadata, scoped by owner.
type FindAttachment struct {
	UID    *string
	UserID *string
}
