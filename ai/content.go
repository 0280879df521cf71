package ai

import (
	"encoding/base64"
	"strings"

	"github.com/pkg/errors"
)

// ErrMissingPrompt is returned when a generation request carries no prompt.
// Detected before any backend call is attempted.
var ErrMissingPrompt = errors.New("missing prompt")

// Role identifies the author of a prior turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one prior message as seen by the content assembler: just a role
// and its flattened text. Storage-level part structure is collapsed before
// assembly.
type Turn struct {
	Role Role
	Text string
}

// ImageInput is an optional image attachment for a generation request.
// Inline data and a remote URI are mutually exclusive within one call.
type ImageInput struct {
	// InlineData is base64-encoded bytes, with or without a data-URI prefix.
	InlineData string
	// MIMEType declares the type of InlineData, e.g. "image/png".
	MIMEType string
	// URI references a remotely stored image.
	URI string
}

// Segment is one canonical content segment sent to the generation backend.
// Exactly one of the fields is set.
type Segment struct {
	Text       string
	InlineData []byte
	MIMEType   string
	FileURI    string
}

// AssembleContent builds the canonical ordered segment list for one
// generation call: image segment first (if any), then exactly one text
// segment holding the rendered transcript with the prompt appended.
func AssembleContent(prompt string, history []Turn, image *ImageInput) ([]Segment, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrMissingPrompt
	}

	var segments []Segment
	if image != nil {
		seg, err := imageSegment(image)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}

	segments = append(segments, Segment{Text: RenderTranscript(history, prompt)})
	return segments, nil
}

// RenderTranscript flattens prior turns into alternating "User:"/"Assistant:"
// lines and appends the current prompt as the final "User:" line. The same
// rendering is used for logging and as the title fallback input.
func RenderTranscript(history []Turn, prompt string) string {
	var sb strings.Builder
	for _, turn := range history {
		sb.WriteString(speakerLabel(turn.Role))
		sb.WriteString(": ")
		sb.WriteString(turn.Text)
		sb.WriteString("\n")
	}
	sb.WriteString("User: ")
	sb.WriteString(prompt)
	return sb.String()
}

func speakerLabel(r Role) string {
	if r == RoleModel {
		return "Assistant"
	}
	return "User"
}

func imageSegment(image *ImageInput) (Segment, error) {
	if image.InlineData != "" && image.URI != "" {
		return Segment{}, errors.New("image: inline data and uri are mutually exclusive")
	}

	if image.URI != "" {
		return Segment{FileURI: image.URI}, nil
	}

	if image.InlineData == "" {
		return Segment{}, errors.New("image: empty attachment")
	}

	// Strip a data-URI prefix ("data:image/png;base64,....") if present.
	payload := image.InlineData
	if idx := strings.IndexByte(payload, ','); idx >= 0 && strings.HasPrefix(payload, "data:") {
		payload = payload[idx+1:]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Segment{}, errors.Wrap(err, "image: decode base64 payload")
	}

	mimeType := image.MIMEType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return Segment{InlineData: data, MIMEType: mimeType}, nil
}
