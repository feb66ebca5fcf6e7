package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/inkhaven-social/warden/flagstore"
)

func TestDefaults(t *testing.T) {
	assert := assert.New(t)

	st := NewStore()
	snap := st.Current()
	assert.Equal(int64(1), snap.Version)

	for _, ft := range FilterTypes {
		f := snap.For(ft)
		assert.True(f.Enabled, "filter %s should default enabled", ft)
		assert.Equal(SensitivityModerate, f.Sensitivity)
	}

	// unknown filter types read as disabled
	assert.False(snap.Enabled(flagstore.FlagType("nonsense")))
}

func TestSeverityCutoffMonotonic(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(1, SensitivityStrict.SeverityCutoff())
	assert.Equal(2, SensitivityModerate.SeverityCutoff())
	assert.Equal(3, SensitivityPermissive.SeverityCutoff())

	// anything over the permissive cutoff is over the stricter cutoffs too
	assert.LessOrEqual(SensitivityStrict.SeverityCutoff(), SensitivityModerate.SeverityCutoff())
	assert.LessOrEqual(SensitivityModerate.SeverityCutoff(), SensitivityPermissive.SeverityCutoff())
}

func TestUpdate(t *testing.T) {
	assert := assert.New(t)

	st := NewStore()
	before := st.Current()

	strict := SensitivityStrict
	after, err := st.Update(flagstore.FlagProfanity, Update{
		Sensitivity: &strict,
		Whitelist:   []string{"Scunthorpe", "  "},
	}, "admin-1")
	assert.NoError(err)
	assert.Equal(before.Version+1, after.Version)

	f := after.For(flagstore.FlagProfanity)
	assert.Equal(SensitivityStrict, f.Sensitivity)
	assert.True(f.InWhitelist("scunthorpe"))
	assert.True(f.InWhitelist("SCUNTHORPE"))
	assert.False(f.InWhitelist("other"))
	assert.Equal("admin-1", f.UpdatedBy)

	// snapshot taken before the update is unchanged
	fBefore := before.For(flagstore.FlagProfanity)
	assert.Equal(SensitivityModerate, fBefore.Sensitivity)
	assert.False(fBefore.InWhitelist("scunthorpe"))

	// nil means unchanged, empty non-nil clears
	after2, err := st.Update(flagstore.FlagProfanity, Update{Blacklist: []string{"badterm"}}, "admin-1")
	assert.NoError(err)
	f2 := after2.For(flagstore.FlagProfanity)
	assert.True(f2.InWhitelist("scunthorpe"))
	assert.True(f2.InBlacklist("badterm"))

	after3, err := st.Update(flagstore.FlagProfanity, Update{Whitelist: []string{}}, "admin-1")
	assert.NoError(err)
	f3 := after3.For(flagstore.FlagProfanity)
	assert.False(f3.InWhitelist("scunthorpe"))
	assert.True(f3.InBlacklist("badterm"))

	bad := Sensitivity("extreme")
	_, err = st.Update(flagstore.FlagSpam, Update{Sensitivity: &bad}, "admin-1")
	assert.Error(err)
}

func TestLoadFromFileJSON(t *testing.T) {
	assert := assert.New(t)

	p := filepath.Join(t.TempDir(), "policy.json")
	doc := `{
		"profanity": {"sensitivity": "strict", "blacklist": ["Heck"]},
		"malicious-url": {"whitelist": ["example.com", "inkhaven.net"]},
		"nsfw": {"enabled": false}
	}`
	assert.NoError(os.WriteFile(p, []byte(doc), 0644))

	st := NewStore()
	assert.NoError(st.LoadFromFileJSON(p, "boot"))

	snap := st.Current()
	assert.Equal(int64(2), snap.Version)
	fProf := snap.For(flagstore.FlagProfanity)
	assert.Equal(SensitivityStrict, fProf.Sensitivity)
	assert.True(fProf.InBlacklist("heck"))
	fURL := snap.For(flagstore.FlagMaliciousURL)
	assert.True(fURL.InWhitelist("example.com"))
	assert.False(snap.Enabled(flagstore.FlagNSFW))
	// filters not mentioned keep their defaults
	assert.True(snap.Enabled(flagstore.FlagSpam))

	bad := filepath.Join(t.TempDir(), "bad.json")
	assert.NoError(os.WriteFile(bad, []byte(`{"spam": {"sensitivity": "nope"}}`), 0644))
	assert.Error(st.LoadFromFileJSON(bad, "boot"))
}
