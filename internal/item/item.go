package item

import (
	"fmt"
	"strings"
	"time"
)

type Kind string

const (
	KindPost    Kind = "post"
	KindComment Kind = "comment"
)

// Flair is the short label attached to a post or to an author, with the
// optional background color Reddit serves as a "#rrggbb" string.
type Flair struct {
	Text            string `json:"text"`
	BackgroundColor string `json:"background_color"`
	TemplateID      string `json:"template_id"`
}

// MediaSource is one rendition inside preview/media_metadata. Raw listings
// use "u" for resized renditions and "url"/"x"/"y" for preview sources.
type MediaSource struct {
	URL string `json:"url"`
	U   string `json:"u"`
}

// Resolved returns whichever URL field the entry carries.
func (m MediaSource) Resolved() string {
	if m.U != "" {
		return m.U
	}
	return m.URL
}

type MediaEntry struct {
	Status string        `json:"status"`
	Source *MediaSource  `json:"s"`
	Resize []MediaSource `json:"p"`
}

type GalleryItem struct {
	MediaID string `json:"media_id"`
}

type GalleryData struct {
	Items []GalleryItem `json:"items"`
}

type PreviewImage struct {
	Source MediaSource `json:"source"`
}

type Preview struct {
	Images []PreviewImage `json:"images"`
}

// Item is the tagged union over posts and comments as decoded from a Reddit
// listing child. Post-only and comment-only fields are simply zero on the
// other kind; callers discriminate on Kind.
type Item struct {
	Kind Kind `json:"-"`

	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Subreddit  string  `json:"subreddit"`
	Author     string  `json:"author"`
	Permalink  string  `json:"permalink"`
	CreatedUTC float64 `json:"created_utc"`
	Score      int     `json:"score"`

	Spam              bool   `json:"spam"`
	Removed           bool   `json:"removed"`
	RemovedByCategory string `json:"removed_by_category"`
	BannedBy          string `json:"banned_by"`
	RemovalReason     string `json:"removal_reason"`
	Approved          bool   `json:"approved"`

	AuthorFlairText       string `json:"author_flair_text"`
	AuthorFlairTemplateID string `json:"author_flair_template_id"`

	// Post fields.
	Title         string                `json:"title"`
	Selftext      string                `json:"selftext"`
	URL           string                `json:"url"`
	URLOverridden string                `json:"url_overridden_by_dest"`
	IsSelf        bool                  `json:"is_self"`
	IsGallery     bool                  `json:"is_gallery"`
	LinkFlair     Flair                 `json:"-"`
	Preview       *Preview              `json:"preview"`
	MediaMetadata map[string]MediaEntry `json:"media_metadata"`
	GalleryData   *GalleryData          `json:"gallery_data"`

	// Raw link flair fields as served on listing children.
	LinkFlairText       string `json:"link_flair_text"`
	LinkFlairBackground string `json:"link_flair_background_color"`
	LinkFlairTemplateID string `json:"link_flair_template_id"`

	// Comment fields.
	Body     string `json:"body"`
	ParentID string `json:"parent_id"`
	LinkID   string `json:"link_id"`
}

// Normalize fills derived fields after JSON decoding and stamps the kind.
func (i *Item) Normalize(kind Kind) *Item {
	i.Kind = kind
	i.LinkFlair = Flair{
		Text:            i.LinkFlairText,
		BackgroundColor: i.LinkFlairBackground,
		TemplateID:      i.LinkFlairTemplateID,
	}
	return i
}

func (i *Item) IsPost() bool    { return i.Kind == KindPost }
func (i *Item) IsComment() bool { return i.Kind == KindComment }

// FullID is the fullname ("t3_..." / "t1_...") used by the info endpoint and
// as the state-store key.
func (i *Item) FullID() string {
	if i.Name != "" {
		return i.Name
	}
	prefix := "t3"
	if i.IsComment() {
		prefix = "t1"
	}
	return fmt.Sprintf("%s_%s", prefix, i.ID)
}

// UniqueID identifies the item in logs: posts by fullname, comments prefixed
// with their parent so reply chains are readable.
func (i *Item) UniqueID() string {
	if i.IsComment() {
		parent := i.ParentID
		if parent == "" {
			parent = "unknown"
		}
		return fmt.Sprintf("%s/%s", parent, i.FullID())
	}
	return i.FullID()
}

func (i *Item) PermalinkURL() string {
	return "https://www.reddit.com" + i.Permalink
}

// IsRemoved folds the moderation flags into the single removed/filtered state
// used for the ignore-removed gate.
func (i *Item) IsRemoved() bool {
	return i.Spam ||
		i.Removed ||
		i.RemovedByCategory == "automod_filtered" ||
		i.BannedBy == "AutoModerator" ||
		i.BannedBy == "true" ||
		i.RemovalReason == "legal"
}

// PostFullID returns the fullname of the post a comment belongs to.
func (i *Item) PostFullID() string {
	if i.IsPost() {
		return i.FullID()
	}
	return i.LinkID
}

// ParentIsComment reports whether a comment replies to another comment rather
// than directly to the post.
func (i *Item) ParentIsComment() bool {
	return strings.HasPrefix(i.ParentID, "t1_")
}

func (i *Item) CreatedAt() time.Time {
	return time.Unix(int64(i.CreatedUTC), 0).UTC()
}
