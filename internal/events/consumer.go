package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"Mosaic/internal/core/content"
	"Mosaic/internal/core/listing"

	"github.com/nats-io/nats.go"
)

const defaultApplyTimeout = 5 * time.Second

// IndexConsumer applies index events to the search index
type IndexConsumer struct {
	index   listing.SearchIndex
	logger  *slog.Logger
	timeout time.Duration
}

func NewIndexConsumer(index listing.SearchIndex, logger *slog.Logger) *IndexConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &IndexConsumer{index: index, logger: logger, timeout: defaultApplyTimeout}
}

// Apply performs the index call an event describes
func (c *IndexConsumer) Apply(ctx context.Context, event content.IndexEvent) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	switch event.Op {
	case content.IndexOpUpsert:
		if event.Document == nil {
			return fmt.Errorf("upsert event for %s without document", event.ID)
		}
		return c.index.Index(ctx, *event.Document)
	case content.IndexOpUpdate:
		if event.Fields == nil {
			return nil
		}
		return c.index.Update(ctx, event.Kind, event.ID, *event.Fields)
	case content.IndexOpDelete:
		return c.index.Delete(ctx, event.Kind, event.ID)
	default:
		return fmt.Errorf("unknown index op %q", event.Op)
	}
}

// HandleMsg is the NATS message callback
func (c *IndexConsumer) HandleMsg(msg *nats.Msg) {
	var event content.IndexEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		c.logger.Error("invalid index event", "subject", msg.Subject, "error", err)
		return
	}

	if err := c.Apply(context.Background(), event); err != nil {
		c.logger.Warn("failed to apply index event",
			"subject", msg.Subject, "content_id", event.ID, "error", err)
		return
	}
	c.logger.Debug("index event applied", "subject", msg.Subject, "content_id", event.ID)
}

// msgSubscriber is the subscribe side of *nats.Conn
type msgSubscriber interface {
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// Subscribe receives every index event. Each server instance owns its own
// index file, so every instance must apply every event; a queue group would
// leave all but one index stale.
func (c *IndexConsumer) Subscribe(nc msgSubscriber) (*nats.Subscription, error) {
	return nc.Subscribe(SubjectAll, c.HandleMsg)
}
