package content

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Document is the searchable projection of an Item held by the external text index
type Document struct {
	CreatedAt time.Time `json:"createdAt"`
	Kind      Kind      `json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	LikeCount int64     `json:"likeCount"`
	ID        uuid.UUID `json:"id"`
	AuthorID  uuid.UUID `json:"authorId"`
}

// DocumentOf projects an item into its index document
func DocumentOf(item *Item) Document {
	return Document{
		ID:        item.ID,
		Kind:      item.Kind,
		AuthorID:  item.AuthorID,
		Title:     item.Title,
		Body:      item.Body,
		CreatedAt: item.CreatedAt,
		LikeCount: item.LikeCount,
	}
}

// DocumentFields is a partial document update; nil fields are left untouched
type DocumentFields struct {
	Title     *string `json:"title,omitempty"`
	Body      *string `json:"body,omitempty"`
	LikeCount *int64  `json:"likeCount,omitempty"`
}

// IndexOp is the kind of change an IndexEvent carries
type IndexOp string

const (
	IndexOpUpsert IndexOp = "upsert"
	IndexOpUpdate IndexOp = "update"
	IndexOpDelete IndexOp = "delete"
)

// IndexEvent describes one change the search index must eventually apply
type IndexEvent struct {
	Document *Document      `json:"document,omitempty"`
	Fields   *DocumentFields `json:"fields,omitempty"`
	Op       IndexOp         `json:"op"`
	Kind     Kind            `json:"kind"`
	ID       uuid.UUID       `json:"id"`
}

// IndexPublisher hands index changes to the eventually-consistent search index.
// Implementations must not block the caller on index availability; a returned
// error only means the event could not be handed off and is logged by callers.
type IndexPublisher interface {
	Publish(ctx context.Context, event IndexEvent) error
}

// DocumentSource walks the primary store in id order to rebuild the index
type DocumentSource interface {
	ScanDocuments(ctx context.Context, after uuid.UUID, limit int) ([]Document, error)
}
