package ai

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleContentTranscript(t *testing.T) {
	history := []Turn{
		{Role: RoleUser, Text: "hi"},
		{Role: RoleModel, Text: "hello"},
	}

	segments, err := AssembleContent("how are you", history, nil)
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, "User: hi\nAssistant: hello\nUser: how are you", segments[0].Text)
}

func TestAssembleContentMissingPrompt(t *testing.T) {
	_, err := AssembleContent("", nil, nil)
	require.ErrorIs(t, err, ErrMissingPrompt)

	_, err = AssembleContent("   ", nil, nil)
	require.ErrorIs(t, err, ErrMissingPrompt)
}

func TestAssembleContentImageFirst(t *testing.T) {
	raw := []byte{0x89, 0x50, 0x4e, 0x47}
	image := &ImageInput{
		InlineData: base64.StdEncoding.EncodeToString(raw),
		MIMEType:   "image/png",
	}

	segments, err := AssembleContent("what is this", nil, image)
	require.NoError(t, err)
	require.Len(t, segments, 2)

	assert.Equal(t, raw, segments[0].InlineData)
	assert.Equal(t, "image/png", segments[0].MIMEType)
	assert.Empty(t, segments[0].Text)
	assert.Equal(t, "User: what is this", segments[1].Text)
}

func TestAssembleContentDataURIPrefix(t *testing.T) {
	raw := []byte("image-bytes")
	image := &ImageInput{
		InlineData: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(raw),
		MIMEType:   "image/jpeg",
	}

	segments, err := AssembleContent("describe", nil, image)
	require.NoError(t, err)
	assert.Equal(t, raw, segments[0].InlineData)
}

func TestAssembleContentImageURI(t *testing.T) {
	segments, err := AssembleContent("describe", nil, &ImageInput{URI: "uploads/abc123.png"})
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, "uploads/abc123.png", segments[0].FileURI)
}

func TestAssembleContentImageExclusivity(t *testing.T) {
	_, err := AssembleContent("describe", nil, &ImageInput{
		InlineData: "aGk=",
		URI:        "uploads/abc123.png",
	})
	require.Error(t, err)
}

func TestAssembleContentBadBase64(t *testing.T) {
	_, err := AssembleContent("describe", nil, &ImageInput{InlineData: "%%%not-base64%%%"})
	require.Error(t, err)
}

func TestRenderTranscriptEmptyHistory(t *testing.T) {
	assert.Equal(t, "User: hey", RenderTranscript(nil, "hey"))
}
