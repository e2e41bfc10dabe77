package content

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind identifies which entity a content item belongs to.
// Feeds (image posts) and posts (discussions) share one schema shape and
// one listing engine; only the backing tables differ.
type Kind string

const (
	KindFeed Kind = "feed"
	KindPost Kind = "post"
)

// Kinds lists every supported kind in mount order.
var Kinds = []Kind{KindFeed, KindPost}

// ParseKind validates a kind string from a URL or config value
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindFeed, KindPost:
		return Kind(s), nil
	default:
		return "", NewValidationError("kind", fmt.Sprintf("unknown content kind %q", s))
	}
}

// Tables holds the relational table names backing a kind.
// Values are compile-time constants and safe to interpolate into SQL.
type Tables struct {
	Items string
	Likes string
	Saves string
}

// Tables returns the table names for this kind
func (k Kind) Tables() Tables {
	switch k {
	case KindPost:
		return Tables{Items: "posts", Likes: "post_likes", Saves: "post_saves"}
	default:
		return Tables{Items: "feeds", Likes: "feed_likes", Saves: "feed_saves"}
	}
}

// Item is a feed or post row with its denormalized engagement counters.
// Counters are only mutated through the counters package.
type Item struct {
	CreatedAt    time.Time    `json:"createdAt"`
	Viewer       *ViewerState `json:"viewer,omitempty"`
	Kind         Kind         `json:"kind"`
	Title        string       `json:"title,omitempty"`
	Body         string       `json:"body,omitempty"`
	LikeCount    int64        `json:"likeCount"`
	ViewCount    int64        `json:"viewCount"`
	CommentCount int64        `json:"commentCount"`
	SaveCount    int64        `json:"saveCount"`
	ID           uuid.UUID    `json:"id"`
	AuthorID     uuid.UUID    `json:"authorId"`
}

// ViewerState is the requesting user's relation to an item
type ViewerState struct {
	Liked bool `json:"liked"`
	Saved bool `json:"saved"`
}
