package roles

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStaticDirectory(t *testing.T) {
	assert := assert.New(t)

	p := filepath.Join(t.TempDir(), "roles.json")
	assert.NoError(os.WriteFile(p, []byte(`{"admins": ["root"], "moderators": ["mod1"]}`), 0644))

	d, err := NewStaticDirectory(p)
	assert.NoError(err)

	assert.True(d.IsAdmin("root"))
	assert.True(d.IsModerator("root"), "admins hold moderator privileges")
	assert.True(d.IsModerator("mod1"))
	assert.False(d.IsAdmin("mod1"))
	assert.False(d.IsModerator("alice"))

	// reload picks up changes
	assert.NoError(os.WriteFile(p, []byte(`{"moderators": ["mod2"]}`), 0644))
	assert.NoError(d.Reload())
	assert.False(d.IsModerator("mod1"))
	assert.True(d.IsModerator("mod2"))
	assert.False(d.IsAdmin("root"))
}

func TestDisabledDirectory(t *testing.T) {
	assert := assert.New(t)

	d, err := NewStaticDirectory("")
	assert.NoError(err)
	assert.False(d.IsModerator("anyone"))
	assert.NoError(d.Reload())

	d.Grant("mod1", false)
	d.Grant("root", true)
	assert.True(d.IsModerator("mod1"))
	assert.True(d.IsAdmin("root"))
}

func TestRequireRole(t *testing.T) {
	assert := assert.New(t)

	d, err := NewStaticDirectory("")
	assert.NoError(err)
	d.Grant("mod1", false)

	assert.NoError(RequireModerator(d, "mod1", "override flag"))

	err = RequireModerator(d, "alice", "override flag")
	assert.Error(err)
	var authErr *AuthorizationError
	assert.ErrorAs(err, &authErr)
	assert.Equal("alice", authErr.AccountID)

	err = RequireAdmin(d, "mod1", "update policy")
	assert.ErrorAs(err, &authErr)
}

func TestBadRolesFile(t *testing.T) {
	assert := assert.New(t)

	p := filepath.Join(t.TempDir(), "roles.json")
	assert.NoError(os.WriteFile(p, []byte(`not json`), 0644))
	_, err := NewStaticDirectory(p)
	assert.Error(err)

	_, err = NewStaticDirectory(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(err)
}
