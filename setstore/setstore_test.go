package setstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemSetStoreBasics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	ss := NewMemSetStore()

	ok, err := ss.InSet(ctx, "url-shorteners", "bit.ly")
	assert.NoError(err)
	assert.False(ok)

	assert.NoError(ss.AddToSet(ctx, "url-shorteners", []string{"bit.ly", "tinyurl.com"}))

	ok, err = ss.InSet(ctx, "url-shorteners", "bit.ly")
	assert.NoError(err)
	assert.True(ok)

	ok, err = ss.InSet(ctx, "url-shorteners", "example.com")
	assert.NoError(err)
	assert.False(ok)

	// other sets unaffected
	ok, err = ss.InSet(ctx, "suspicious-tlds", "tk")
	assert.NoError(err)
	assert.False(ok)
}

func TestLoadFromFileJSON(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	p := filepath.Join(t.TempDir(), "sets.json")
	assert.NoError(os.WriteFile(p, []byte(`{"suspicious-tlds": ["tk", "ml"], "url-shorteners": ["bit.ly"]}`), 0644))

	ss := NewMemSetStore()
	assert.NoError(ss.LoadFromFileJSON(p))

	ok, err := ss.InSet(ctx, "suspicious-tlds", "tk")
	assert.NoError(err)
	assert.True(ok)
	ok, err = ss.InSet(ctx, "url-shorteners", "bit.ly")
	assert.NoError(err)
	assert.True(ok)

	// reload replaces mentioned sets wholesale
	assert.NoError(os.WriteFile(p, []byte(`{"suspicious-tlds": ["xyz"]}`), 0644))
	assert.NoError(ss.LoadFromFileJSON(p))

	ok, err = ss.InSet(ctx, "suspicious-tlds", "tk")
	assert.NoError(err)
	assert.False(ok)
	ok, err = ss.InSet(ctx, "suspicious-tlds", "xyz")
	assert.NoError(err)
	assert.True(ok)
	// unmentioned set untouched
	ok, err = ss.InSet(ctx, "url-shorteners", "bit.ly")
	assert.NoError(err)
	assert.True(ok)

	assert.Error(ss.LoadFromFileJSON(filepath.Join(t.TempDir(), "missing.json")))
}
