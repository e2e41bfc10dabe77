package events

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"Mosaic/internal/core/content"
	"Mosaic/internal/core/listing"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	msgs []*nats.Msg
	err  error
}

func (c *capturePublisher) PublishMsg(msg *nats.Msg) error {
	c.msgs = append(c.msgs, msg)
	return c.err
}

type mockIndex struct {
	mock.Mock
}

func (m *mockIndex) Index(ctx context.Context, doc content.Document) error {
	return m.Called(ctx, doc).Error(0)
}

func (m *mockIndex) Update(ctx context.Context, kind content.Kind, id uuid.UUID, fields content.DocumentFields) error {
	return m.Called(ctx, kind, id, fields).Error(0)
}

func (m *mockIndex) Delete(ctx context.Context, kind content.Kind, id uuid.UUID) error {
	return m.Called(ctx, kind, id).Error(0)
}

func (m *mockIndex) Search(ctx context.Context, q listing.SearchQuery) (*listing.SearchResult, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*listing.SearchResult), args.Error(1)
}

func likeEvent(kind content.Kind, id uuid.UUID, count int64) content.IndexEvent {
	return content.IndexEvent{
		Op:     content.IndexOpUpdate,
		Kind:   kind,
		ID:     id,
		Fields: &content.DocumentFields{LikeCount: &count},
	}
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "content.index.feed.update", Subject(content.KindFeed, content.IndexOpUpdate))
	assert.Equal(t, "content.index.post.delete", Subject(content.KindPost, content.IndexOpDelete))
}

func TestNatsPublisher_PublishesJSONOnKindSubject(t *testing.T) {
	capture := &capturePublisher{}
	pub := &NatsPublisher{nc: capture}
	id := uuid.New()

	require.NoError(t, pub.Publish(context.Background(), likeEvent(content.KindPost, id, 4)))
	require.Len(t, capture.msgs, 1)
	assert.Equal(t, "content.index.post.update", capture.msgs[0].Subject)

	var decoded content.IndexEvent
	require.NoError(t, json.Unmarshal(capture.msgs[0].Data, &decoded))
	assert.Equal(t, id, decoded.ID)
	require.NotNil(t, decoded.Fields)
	assert.Equal(t, int64(4), *decoded.Fields.LikeCount)
}

func TestNatsPublisher_PropagatesConnError(t *testing.T) {
	pub := &NatsPublisher{nc: &capturePublisher{err: nats.ErrConnectionClosed}}

	err := pub.Publish(context.Background(), likeEvent(content.KindFeed, uuid.New(), 1))
	assert.ErrorIs(t, err, nats.ErrConnectionClosed)
}

func TestIndexConsumer_Apply(t *testing.T) {
	id := uuid.New()
	doc := content.Document{ID: id, Kind: content.KindFeed, Title: "t"}

	index := new(mockIndex)
	index.On("Index", mock.Anything, doc).Return(nil).Once()
	index.On("Update", mock.Anything, content.KindFeed, id, mock.Anything).Return(nil).Once()
	index.On("Delete", mock.Anything, content.KindFeed, id).Return(nil).Once()

	c := NewIndexConsumer(index, nil)
	ctx := context.Background()

	require.NoError(t, c.Apply(ctx, content.IndexEvent{Op: content.IndexOpUpsert, Kind: content.KindFeed, ID: id, Document: &doc}))
	require.NoError(t, c.Apply(ctx, likeEvent(content.KindFeed, id, 2)))
	require.NoError(t, c.Apply(ctx, content.IndexEvent{Op: content.IndexOpDelete, Kind: content.KindFeed, ID: id}))

	assert.Error(t, c.Apply(ctx, content.IndexEvent{Op: content.IndexOpUpsert, ID: id}))
	assert.Error(t, c.Apply(ctx, content.IndexEvent{Op: "rename", ID: id}))

	index.AssertExpectations(t)
}

func TestIndexConsumer_HandleMsgIgnoresGarbage(t *testing.T) {
	index := new(mockIndex)
	c := NewIndexConsumer(index, nil)

	assert.NotPanics(t, func() {
		c.HandleMsg(&nats.Msg{Subject: "content.index.feed.update", Data: []byte("{not json")})
	})
	index.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestIndexConsumer_HandleMsgApplies(t *testing.T) {
	id := uuid.New()
	index := new(mockIndex)
	index.On("Delete", mock.Anything, content.KindPost, id).Return(nil).Once()

	data, err := json.Marshal(content.IndexEvent{Op: content.IndexOpDelete, Kind: content.KindPost, ID: id})
	require.NoError(t, err)

	NewIndexConsumer(index, nil).HandleMsg(&nats.Msg{Subject: Subject(content.KindPost, content.IndexOpDelete), Data: data})
	index.AssertExpectations(t)
}

// fanoutBroker delivers each message to every subscriber, as a plain NATS subscription does
type fanoutBroker struct {
	subjects []string
	handlers []nats.MsgHandler
	mu       sync.Mutex
}

func (b *fanoutBroker) Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subjects = append(b.subjects, subj)
	b.handlers = append(b.handlers, cb)
	return &nats.Subscription{Subject: subj}, nil
}

func (b *fanoutBroker) PublishMsg(msg *nats.Msg) error {
	b.mu.Lock()
	handlers := append([]nats.MsgHandler(nil), b.handlers...)
	b.mu.Unlock()
	for _, h := range handlers {
		h(msg)
	}
	return nil
}

func TestIndexConsumer_EveryInstanceAppliesEveryEvent(t *testing.T) {
	id := uuid.New()
	broker := &fanoutBroker{}

	var indexes []*mockIndex
	for i := 0; i < 2; i++ {
		index := new(mockIndex)
		index.On("Update", mock.Anything, content.KindFeed, id, mock.Anything).Return(nil).Once()
		indexes = append(indexes, index)

		_, err := NewIndexConsumer(index, nil).Subscribe(broker)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{SubjectAll, SubjectAll}, broker.subjects)

	pub := &NatsPublisher{nc: broker}
	require.NoError(t, pub.Publish(context.Background(), likeEvent(content.KindFeed, id, 3)))

	for _, index := range indexes {
		index.AssertExpectations(t)
	}
}

// TestIndexConsumer_SubscribeOnServer runs against a real NATS server when TEST_NATS_URL is set
func TestIndexConsumer_SubscribeOnServer(t *testing.T) {
	url := os.Getenv("TEST_NATS_URL")
	if url == "" {
		t.Skip("TEST_NATS_URL not set")
	}

	id := uuid.New()
	applied := make(chan int, 2)
	for i := 0; i < 2; i++ {
		nc, err := nats.Connect(url)
		require.NoError(t, err)
		t.Cleanup(nc.Close)

		instance := i
		index := new(mockIndex)
		index.On("Update", mock.Anything, content.KindPost, id, mock.Anything).
			Return(nil).
			Run(func(mock.Arguments) { applied <- instance })

		_, err = NewIndexConsumer(index, nil).Subscribe(nc)
		require.NoError(t, err)
		require.NoError(t, nc.Flush())
	}

	pubConn, err := nats.Connect(url)
	require.NoError(t, err)
	t.Cleanup(pubConn.Close)
	require.NoError(t, NewNatsPublisher(pubConn).Publish(context.Background(), likeEvent(content.KindPost, id, 1)))

	seen := make(map[int]bool)
	for len(seen) < 2 {
		select {
		case instance := <-applied:
			seen[instance] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("event reached %d of 2 instances", len(seen))
		}
	}
}

func TestDirectPublisher_AppliesInBackground(t *testing.T) {
	id := uuid.New()
	index := new(mockIndex)
	applied := make(chan struct{}, 1)
	index.On("Update", mock.Anything, content.KindFeed, id, mock.Anything).
		Return(errors.New("index down")).Once().
		Run(func(mock.Arguments) { applied <- struct{}{} })

	pub := NewDirectPublisher(NewIndexConsumer(index, nil), 4, nil)
	defer pub.Close()

	require.NoError(t, pub.Publish(context.Background(), likeEvent(content.KindFeed, id, 1)))

	select {
	case <-applied:
	case <-time.After(time.Second):
		t.Fatal("event was not applied")
	}
}

func TestDirectPublisher_ClosedRejects(t *testing.T) {
	pub := NewDirectPublisher(NewIndexConsumer(new(mockIndex), nil), 1, nil)
	pub.Close()
	pub.Close()

	err := pub.Publish(context.Background(), likeEvent(content.KindFeed, uuid.New(), 1))
	assert.ErrorIs(t, err, ErrPublisherClosed)
}

func TestDirectPublisher_FullQueueDrops(t *testing.T) {
	index := new(mockIndex)
	release := make(chan struct{})
	index.On("Delete", mock.Anything, mock.Anything, mock.Anything).
		Return(nil).
		Run(func(mock.Arguments) { <-release })

	pub := NewDirectPublisher(NewIndexConsumer(index, nil), 1, nil)
	event := content.IndexEvent{Op: content.IndexOpDelete, Kind: content.KindFeed, ID: uuid.New()}

	// First event occupies the worker, the second fills the buffer
	var full bool
	for i := 0; i < 10 && !full; i++ {
		if err := pub.Publish(context.Background(), event); errors.Is(err, ErrQueueFull) {
			full = true
		}
	}
	assert.True(t, full)

	close(release)
	pub.Close()
}
