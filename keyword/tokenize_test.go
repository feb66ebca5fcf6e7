package keyword

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeText(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		text string
		out  []string
	}{
		{text: "", out: []string{}},
		{text: "Hello, World!", out: []string{"hello", "world"}},
		{text: "Gdańsk über café", out: []string{"gdansk", "uber", "cafe"}},
		{text: "one  two\tthree\nfour", out: []string{"one", "two", "three", "four"}},
	}

	for _, fix := range fixtures {
		assert.Equal(fix.out, TokenizeText(fix.text))
	}
}

func TestTokenizeTextSkippingCensorChars(t *testing.T) {
	assert := assert.New(t)

	// censor characters survive tokenization so censored lexicon variants match
	assert.Equal([]string{"f*ck", "this"}, TokenizeTextSkippingCensorChars("F*ck this!"))
	assert.Equal([]string{"sh_t"}, TokenizeTextSkippingCensorChars("sh_t..."))
}

func TestTokenizeIdentifier(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		ident string
		out   []string
	}{
		{ident: "", out: []string{}},
		{ident: "free-crypto.example.tk", out: []string{"free", "crypto", "example", "tk"}},
		{ident: "@a-b-c", out: []string{}},
	}

	for _, fix := range fixtures {
		assert.Equal(fix.out, TokenizeIdentifier(fix.ident))
	}
}

func TestSlugify(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("helloworld", Slugify("Hello, World!"))
	assert.Equal("badword", Slugify("Bad-Word"))
	assert.Equal("", Slugify("!!!"))
}

func TestTokenInSet(t *testing.T) {
	assert := assert.New(t)

	set := []string{"alpha", "beta"}
	assert.True(TokenInSet("alpha", set))
	assert.False(TokenInSet("gamma", set))
	assert.False(TokenInSet("alpha", nil))
}
