package cloudinary

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{CloudName: "demo"}, zerolog.Nop())
	require.ErrorIs(t, err, ErrMissingCredentials)
}

func TestPublicID(t *testing.T) {
	id := PublicID("Week 1 notes.pdf")
	require.True(t, strings.HasPrefix(id, "Week-1-notes-"))
	require.True(t, strings.HasSuffix(id, ".pdf"))

	photo := PublicID("avatar.png")
	require.False(t, strings.HasSuffix(photo, ".png"))
	require.NotEqual(t, photo, PublicID("avatar.png"))

	require.True(t, strings.HasPrefix(PublicID("???.txt"), "upload-"))
}

func TestResourceType(t *testing.T) {
	require.Equal(t, "image", ResourceType("a.JPG"))
	require.Equal(t, "raw", ResourceType("a.docx"))
}
