package visibility

import (
	"context"
	"log/slog"

	"github.com/inkhaven-social/warden/content"
	"github.com/inkhaven-social/warden/flagstore"
)

// NSFWPref is a viewer's choice for how sensitive content is presented.
type NSFWPref string

const (
	PrefShowAll  NSFWPref = "show-all"
	PrefBlurNSFW NSFWPref = "blur-nsfw"
	PrefHideNSFW NSFWPref = "hide-nsfw"
)

// DefaultPref applies to unauthenticated viewers and to accounts that never
// picked a preference.
const DefaultPref = PrefBlurNSFW

func (p NSFWPref) Valid() bool {
	switch p {
	case PrefShowAll, PrefBlurNSFW, PrefHideNSFW:
		return true
	}
	return false
}

// Viewer identifies who is requesting a content listing. The zero value is
// an anonymous viewer.
type Viewer struct {
	AccountID string
	Moderator bool
}

func (v Viewer) Anonymous() bool {
	return v.AccountID == ""
}

// Item is one entry of a content listing before filtering.
type Item struct {
	Ref      content.Ref `json:"ref"`
	AuthorID string      `json:"author_id"`
}

// Annotated is an item that passed the filter, with its display state.
type Annotated struct {
	Item
	IsNSFW  bool `json:"is_nsfw"`
	Blurred bool `json:"is_blurred"`
}

// Decide is the visibility rule for a single item once its inputs are
// resolved: the item's effective NSFW state, whether the author is
// shadowbanned, and the viewer with their preference. It is a pure function;
// the same inputs always produce the same outcome.
//
// Shadowban wins first: the author's content is hidden from everyone except
// the author themselves and moderators, with no trace in the output. Then
// the NSFW preference applies: SHOW_ALL includes the item as-is, BLUR_NSFW
// includes it marked for blurring, HIDE_NSFW drops it.
func Decide(nsfw bool, authorBanned bool, authorID string, viewer Viewer, pref NSFWPref) (include bool, blurred bool) {
	if authorBanned && viewer.AccountID != authorID && !viewer.Moderator {
		return false, false
	}
	if !nsfw {
		return true, false
	}
	switch pref {
	case PrefShowAll:
		return true, false
	case PrefHideNSFW:
		return false, false
	default:
		return true, true
	}
}

// ShadowbanSource is the narrow read-only view of enforcement state the
// filter depends on. Satisfied by enforcement.Service; enforcement knows
// nothing about rendering.
type ShadowbanSource interface {
	IsShadowbanned(ctx context.Context, accountID string) (bool, error)
}

// Filter shapes content listings for a viewer. It only reads: flags,
// enforcement state, and preferences are resolved per call and never
// written, so filtering the same list twice (or a sub-list) gives the same
// result.
type Filter struct {
	Logger *slog.Logger
	Flags  flagstore.FlagStore
	Bans   ShadowbanSource
	Prefs  PreferenceStore
}

func NewFilter(flags flagstore.FlagStore, bans ShadowbanSource, prefs PreferenceStore) *Filter {
	return &Filter{
		Logger: slog.Default().With("system", "visibility"),
		Flags:  flags,
		Bans:   bans,
		Prefs:  prefs,
	}
}

// ForViewer filters and annotates a listing. The input slice is not
// modified. Each distinct author's enforcement state is resolved once per
// call, keeping the per-item cost to the flag lookup.
func (f *Filter) ForViewer(ctx context.Context, items []Item, viewer Viewer) ([]Annotated, error) {
	pref, err := f.viewerPref(ctx, viewer)
	if err != nil {
		return nil, err
	}

	banned := make(map[string]bool)
	out := make([]Annotated, 0, len(items))
	for _, item := range items {
		isBanned, ok := banned[item.AuthorID]
		if !ok {
			isBanned, err = f.Bans.IsShadowbanned(ctx, item.AuthorID)
			if err != nil {
				return nil, err
			}
			banned[item.AuthorID] = isBanned
		}

		flags, err := f.Flags.Get(ctx, item.Ref)
		if err != nil {
			return nil, err
		}
		nsfw := flagstore.IsNSFW(flags)

		include, blurred := Decide(nsfw, isBanned, item.AuthorID, viewer, pref)
		if !include {
			continue
		}
		out = append(out, Annotated{Item: item, IsNSFW: nsfw, Blurred: blurred})
	}
	return out, nil
}

func (f *Filter) viewerPref(ctx context.Context, viewer Viewer) (NSFWPref, error) {
	if viewer.Anonymous() {
		return DefaultPref, nil
	}
	return f.Prefs.Get(ctx, viewer.AccountID)
}
