package content

import (
	"fmt"
	"strings"
)

// Kind discriminates the content variants the platform hosts.
type Kind string

const (
	KindStory   Kind = "story"
	KindChapter Kind = "chapter"
	KindWhisper Kind = "whisper"
	KindImage   Kind = "image"
)

func (k Kind) Valid() bool {
	switch k {
	case KindStory, KindChapter, KindWhisper, KindImage:
		return true
	}
	return false
}

// Ref identifies a single content item of any kind. It is used as the
// subject key for flags, audit rows, and reports.
type Ref struct {
	Kind Kind
	ID   string
}

func (r Ref) String() string {
	return string(r.Kind) + ":" + r.ID
}

func ParseRef(raw string) (Ref, error) {
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 || parts[1] == "" {
		return Ref{}, fmt.Errorf("invalid content ref: %q", raw)
	}
	k := Kind(parts[0])
	if !k.Valid() {
		return Ref{}, fmt.Errorf("invalid content kind: %q", parts[0])
	}
	return Ref{Kind: k, ID: parts[1]}, nil
}

// ImageRef points at an uploaded image by stable ID plus a fetchable URL.
type ImageRef struct {
	ID       string
	URL      string
	MimeType string
}

// Item is the uniform submission payload handed to the decision engine.
// Every kind flattens to an ordered list of text fields plus zero or more
// image references, so detectors never branch on the concrete kind.
//
// Immutable once constructed.
type Item struct {
	Ref      Ref
	AuthorID string
	Texts    []string
	Images   []ImageRef
}

// TextFields returns the item's non-empty text fields, in submission order.
func (it *Item) TextFields() []string {
	out := make([]string, 0, len(it.Texts))
	for _, t := range it.Texts {
		if strings.TrimSpace(t) != "" {
			out = append(out, t)
		}
	}
	return out
}

func (it *Item) ImageRefs() []ImageRef {
	return it.Images
}

// AllText joins the non-empty text fields for whole-payload scanning.
func (it *Item) AllText() string {
	return strings.Join(it.TextFields(), "\n")
}

func (it *Item) Validate() error {
	if !it.Ref.Kind.Valid() {
		return fmt.Errorf("invalid content kind: %q", it.Ref.Kind)
	}
	if it.Ref.ID == "" {
		return fmt.Errorf("content ref missing ID")
	}
	if it.AuthorID == "" {
		return fmt.Errorf("content missing author")
	}
	return nil
}

func NewStory(id, authorID, title, description string, tags []string) Item {
	texts := []string{title, description}
	texts = append(texts, tags...)
	return Item{
		Ref:      Ref{Kind: KindStory, ID: id},
		AuthorID: authorID,
		Texts:    texts,
	}
}

func NewChapter(id, authorID, title, body string) Item {
	return Item{
		Ref:      Ref{Kind: KindChapter, ID: id},
		AuthorID: authorID,
		Texts:    []string{title, body},
	}
}

func NewWhisper(id, authorID, text string) Item {
	return Item{
		Ref:      Ref{Kind: KindWhisper, ID: id},
		AuthorID: authorID,
		Texts:    []string{text},
	}
}

func NewImage(id, authorID, caption string, img ImageRef) Item {
	return Item{
		Ref:      Ref{Kind: KindImage, ID: id},
		AuthorID: authorID,
		Texts:    []string{caption},
		Images:   []ImageRef{img},
	}
}
