package visibility

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/inkhaven-social/warden/content"
	"github.com/inkhaven-social/warden/enforcement"
	"github.com/inkhaven-social/warden/flagstore"
	"github.com/inkhaven-social/warden/roles"
)

type fixture struct {
	filter *Filter
	flags  *flagstore.MemFlagStore
	bans   *enforcement.Service
	prefs  *MemPreferenceStore
}

func testFixture(t *testing.T) *fixture {
	t.Helper()
	dir, err := roles.NewStaticDirectory("")
	if err != nil {
		t.Fatal(err)
	}
	dir.Grant("mod1", false)
	flags := flagstore.NewMemFlagStore()
	bans := enforcement.NewService(enforcement.NewMemStore(), dir)
	prefs := NewMemPreferenceStore()
	return &fixture{
		filter: NewFilter(flags, bans, prefs),
		flags:  flags,
		bans:   bans,
		prefs:  prefs,
	}
}

func (fix *fixture) markNSFW(t *testing.T, ref content.Ref) {
	t.Helper()
	conf := 0.95
	err := fix.flags.Add(context.Background(), flagstore.ContentFlag{
		Subject:    ref,
		Type:       flagstore.FlagNSFW,
		Confidence: &conf,
		Method:     flagstore.MethodAutomatic,
		FlaggedBy:  "nsfw-classifier",
		FlaggedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatal(err)
	}
}

func refs(out []Annotated) []content.Ref {
	var ids []content.Ref
	for _, a := range out {
		ids = append(ids, a.Ref)
	}
	return ids
}

func TestShadowbanVisibility(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	fix := testFixture(t)

	items := []Item{
		{Ref: content.Ref{Kind: content.KindStory, ID: "s1"}, AuthorID: "ghost"},
		{Ref: content.Ref{Kind: content.KindStory, ID: "s2"}, AuthorID: "bob"},
	}

	assert.NoError(fix.bans.Shadowban(ctx, "mod1", "ghost", "spam ring"))

	// the banned author still sees their own content
	out, err := fix.filter.ForViewer(ctx, items, Viewer{AccountID: "ghost"})
	assert.NoError(err)
	assert.Len(out, 2)

	// moderators see everything
	out, err = fix.filter.ForViewer(ctx, items, Viewer{AccountID: "mod1", Moderator: true})
	assert.NoError(err)
	assert.Len(out, 2)

	// everyone else sees the listing with the banned author silently removed
	out, err = fix.filter.ForViewer(ctx, items, Viewer{AccountID: "carol"})
	assert.NoError(err)
	assert.Equal([]content.Ref{{Kind: content.KindStory, ID: "s2"}}, refs(out))

	out, err = fix.filter.ForViewer(ctx, items, Viewer{})
	assert.NoError(err)
	assert.Equal([]content.Ref{{Kind: content.KindStory, ID: "s2"}}, refs(out))

	// removal restores normal visibility
	assert.NoError(fix.bans.RemoveShadowban(ctx, "mod1", "ghost"))
	out, err = fix.filter.ForViewer(ctx, items, Viewer{AccountID: "carol"})
	assert.NoError(err)
	assert.Len(out, 2)
}

func TestNSFWPreferences(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	fix := testFixture(t)

	clean := Item{Ref: content.Ref{Kind: content.KindStory, ID: "clean"}, AuthorID: "alice"}
	racy := Item{Ref: content.Ref{Kind: content.KindStory, ID: "racy"}, AuthorID: "alice"}
	fix.markNSFW(t, racy.Ref)
	items := []Item{clean, racy}

	assert.NoError(fix.prefs.Set(ctx, "hider", PrefHideNSFW))
	out, err := fix.filter.ForViewer(ctx, items, Viewer{AccountID: "hider"})
	assert.NoError(err)
	assert.Equal([]content.Ref{clean.Ref}, refs(out))

	assert.NoError(fix.prefs.Set(ctx, "blurrer", PrefBlurNSFW))
	out, err = fix.filter.ForViewer(ctx, items, Viewer{AccountID: "blurrer"})
	assert.NoError(err)
	assert.Len(out, 2)
	assert.False(out[0].IsNSFW)
	assert.False(out[0].Blurred)
	assert.True(out[1].IsNSFW)
	assert.True(out[1].Blurred)

	assert.NoError(fix.prefs.Set(ctx, "adult", PrefShowAll))
	out, err = fix.filter.ForViewer(ctx, items, Viewer{AccountID: "adult"})
	assert.NoError(err)
	assert.Len(out, 2)
	assert.True(out[1].IsNSFW)
	assert.False(out[1].Blurred)
}

func TestAnonymousViewerGetsDefaultPref(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	fix := testFixture(t)

	racy := Item{Ref: content.Ref{Kind: content.KindStory, ID: "racy"}, AuthorID: "alice"}
	fix.markNSFW(t, racy.Ref)

	// anonymous and no-preference viewers both land on blur
	for _, viewer := range []Viewer{{}, {AccountID: "newcomer"}} {
		out, err := fix.filter.ForViewer(ctx, []Item{racy}, viewer)
		assert.NoError(err)
		assert.Len(out, 1)
		assert.True(out[0].Blurred)
	}
}

func TestNegatedNSFWFlagReadsClean(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	fix := testFixture(t)

	item := Item{Ref: content.Ref{Kind: content.KindImage, ID: "img1"}, AuthorID: "alice"}
	fix.markNSFW(t, item.Ref)

	// moderator overrides: latest flag wins, so the item reads clean again
	assert.NoError(fix.flags.Add(ctx, flagstore.ContentFlag{
		Subject:   item.Ref,
		Type:      flagstore.FlagNSFW,
		Method:    flagstore.MethodManual,
		FlaggedBy: "mod1",
		FlaggedAt: time.Now().UTC(),
		Reviewed:  true,
		Negated:   true,
	}))

	assert.NoError(fix.prefs.Set(ctx, "hider", PrefHideNSFW))
	out, err := fix.filter.ForViewer(ctx, []Item{item}, Viewer{AccountID: "hider"})
	assert.NoError(err)
	assert.Len(out, 1)
	assert.False(out[0].IsNSFW)
	assert.False(out[0].Blurred)
}

func TestFilterIsPure(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	fix := testFixture(t)

	items := []Item{
		{Ref: content.Ref{Kind: content.KindStory, ID: "s1"}, AuthorID: "ghost"},
		{Ref: content.Ref{Kind: content.KindStory, ID: "s2"}, AuthorID: "bob"},
		{Ref: content.Ref{Kind: content.KindWhisper, ID: "w1"}, AuthorID: "ghost"},
	}
	assert.NoError(fix.bans.Shadowban(ctx, "mod1", "ghost", "spam ring"))

	before := make([]Item, len(items))
	copy(before, items)

	first, err := fix.filter.ForViewer(ctx, items, Viewer{AccountID: "carol"})
	assert.NoError(err)
	second, err := fix.filter.ForViewer(ctx, items, Viewer{AccountID: "carol"})
	assert.NoError(err)

	assert.Equal(first, second)
	assert.Equal(before, items)

	// filtering a sub-list agrees with the full-list outcome
	sub, err := fix.filter.ForViewer(ctx, items[1:2], Viewer{AccountID: "carol"})
	assert.NoError(err)
	assert.Equal(first, sub)
}

func TestDecideTable(t *testing.T) {
	assert := assert.New(t)

	type tc struct {
		name    string
		nsfw    bool
		banned  bool
		viewer  Viewer
		pref    NSFWPref
		include bool
		blurred bool
	}
	cases := []tc{
		{name: "clean content passes", include: true},
		{name: "banned author hidden", banned: true, viewer: Viewer{AccountID: "carol"}},
		{name: "banned author sees self", banned: true, viewer: Viewer{AccountID: "ghost"}, include: true},
		{name: "moderator sees banned", banned: true, viewer: Viewer{AccountID: "mod1", Moderator: true}, include: true},
		{name: "nsfw show-all", nsfw: true, pref: PrefShowAll, include: true},
		{name: "nsfw blur", nsfw: true, pref: PrefBlurNSFW, include: true, blurred: true},
		{name: "nsfw hide", nsfw: true, pref: PrefHideNSFW},
		{name: "ban trumps show-all", nsfw: true, banned: true, viewer: Viewer{AccountID: "carol"}, pref: PrefShowAll},
	}
	for _, c := range cases {
		include, blurred := Decide(c.nsfw, c.banned, "ghost", c.viewer, c.pref)
		assert.Equal(c.include, include, c.name)
		assert.Equal(c.blurred, blurred, c.name)
	}
}

func TestPreferenceStoreRoundtrip(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	prefs := NewMemPreferenceStore()

	pref, err := prefs.Get(ctx, "alice")
	assert.NoError(err)
	assert.Equal(DefaultPref, pref)

	assert.NoError(prefs.Set(ctx, "alice", PrefShowAll))
	pref, err = prefs.Get(ctx, "alice")
	assert.NoError(err)
	assert.Equal(PrefShowAll, pref)

	assert.NoError(prefs.Set(ctx, "alice", PrefHideNSFW))
	pref, err = prefs.Get(ctx, "alice")
	assert.NoError(err)
	assert.Equal(PrefHideNSFW, pref)

	assert.Error(prefs.Set(ctx, "alice", NSFWPref("sideways")))
}
