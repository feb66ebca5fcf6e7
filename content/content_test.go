package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRef(t *testing.T) {
	assert := assert.New(t)

	ref, err := ParseRef("story:abc123")
	assert.NoError(err)
	assert.Equal(Ref{Kind: KindStory, ID: "abc123"}, ref)
	assert.Equal("story:abc123", ref.String())

	// IDs may themselves contain separators
	ref, err = ParseRef("chapter:st1:ch2")
	assert.NoError(err)
	assert.Equal("st1:ch2", ref.ID)

	_, err = ParseRef("blob:xyz")
	assert.Error(err)
	_, err = ParseRef("story:")
	assert.Error(err)
	_, err = ParseRef("junk")
	assert.Error(err)
}

func TestItemTextFields(t *testing.T) {
	assert := assert.New(t)

	it := NewStory("s1", "alice", "My Title", "", []string{"fantasy", "  ", "dragons"})
	assert.Equal([]string{"My Title", "fantasy", "dragons"}, it.TextFields())
	assert.Equal("My Title\nfantasy\ndragons", it.AllText())
	assert.Empty(it.ImageRefs())

	whisper := NewWhisper("w1", "bob", "hello there")
	assert.Equal([]string{"hello there"}, whisper.TextFields())
}

func TestItemImage(t *testing.T) {
	assert := assert.New(t)

	img := ImageRef{ID: "img9", URL: "https://cdn.example.com/img9.png", MimeType: "image/png"}
	it := NewImage("i1", "carol", "sunset over the bay", img)
	assert.Equal([]ImageRef{img}, it.ImageRefs())
	assert.Equal([]string{"sunset over the bay"}, it.TextFields())
	assert.Equal(KindImage, it.Ref.Kind)
}

func TestItemValidate(t *testing.T) {
	assert := assert.New(t)

	good := NewChapter("c1", "dave", "Chapter One", "It was a dark and stormy night.")
	assert.NoError(good.Validate())

	bad := Item{Ref: Ref{Kind: "video", ID: "v1"}, AuthorID: "dave"}
	assert.Error(bad.Validate())

	noID := Item{Ref: Ref{Kind: KindStory}, AuthorID: "dave"}
	assert.Error(noID.Validate())

	noAuthor := Item{Ref: Ref{Kind: KindStory, ID: "s1"}}
	assert.Error(noAuthor.Validate())
}
