package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"drayage-tms/internal/domain/event"
	"drayage-tms/internal/events/mocks"
	"drayage-tms/internal/testutil/memstore"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var occurred = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func seedEvents(t *testing.T, store *memstore.Store, n int) []event.Event {
	t.Helper()
	var evs []event.Event
	for i := 0; i < n; i++ {
		evs = append(evs, event.New(event.EntityOrder, uuid.New(), event.ActionStatusChanged, "DISPATCHED",
			occurred.Add(time.Duration(i)*time.Second)))
	}
	require.NoError(t, store.Append(context.Background(), evs))
	return pending(t, store)
}

func pending(t *testing.T, store *memstore.Store) []event.Event {
	t.Helper()
	evs, err := store.ListPending(context.Background(), 100)
	require.NoError(t, err)
	return evs
}

func TestRelayPublishesInSeqOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := memstore.New()
	evs := seedEvents(t, store, 3)

	pub := mocks.NewMockPublisher(ctrl)
	gomock.InOrder(
		pub.EXPECT().Publish(gomock.Any(), evs[0]).Return(nil),
		pub.EXPECT().Publish(gomock.Any(), evs[1]).Return(nil),
		pub.EXPECT().Publish(gomock.Any(), evs[2]).Return(nil),
	)

	relay := NewRelay(store, store, pub, 10)
	n, err := relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Empty(t, pending(t, store))
	assert.Equal(t, int64(3), relay.Stats().Published)
}

func TestRelayOrdersByAppendNotTimestamp(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := memstore.New()
	ctx := context.Background()

	// One mutation stamps all of its events with the same instant.
	first := []event.Event{
		event.New(event.EntityOrder, uuid.New(), event.ActionStatusChanged, "COMPLETED", occurred),
		event.New(event.EntityChargeLine, uuid.New(), event.ActionCreated, "", occurred),
		event.New(event.EntityInvoice, uuid.New(), event.ActionCreated, "DRAFT", occurred),
		event.New(event.EntityOrder, uuid.New(), event.ActionStatusChanged, "INVOICED", occurred),
	}
	// A later mutation whose clock read an earlier instant.
	second := []event.Event{
		event.New(event.EntityContainer, uuid.New(), event.ActionStatusChanged, "COMPLETED", occurred.Add(-time.Second)),
	}
	require.NoError(t, store.Append(ctx, first))
	require.NoError(t, store.Append(ctx, second))

	var want []uuid.UUID
	for _, e := range append(first, second...) {
		want = append(want, e.ID)
	}

	var got []uuid.UUID
	var seqs []int64
	pub := mocks.NewMockPublisher(ctrl)
	pub.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e event.Event) error {
			got = append(got, e.ID)
			seqs = append(seqs, e.Seq)
			return nil
		}).Times(len(want))

	n, err := NewRelay(store, store, pub, 10).Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(want), n)
	assert.Equal(t, want, got)
	for i := 1; i < len(seqs); i++ {
		assert.Less(t, seqs[i-1], seqs[i])
	}
}

func TestRelayStopsAtFirstPublishFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := memstore.New()
	evs := seedEvents(t, store, 3)

	pub := mocks.NewMockPublisher(ctrl)
	gomock.InOrder(
		pub.EXPECT().Publish(gomock.Any(), evs[0]).Return(nil),
		pub.EXPECT().Publish(gomock.Any(), evs[1]).Return(errors.New("broker unavailable")),
	)

	relay := NewRelay(store, store, pub, 10)
	n, err := relay.Flush(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker unavailable")
	assert.Equal(t, 1, n)

	left := pending(t, store)
	require.Len(t, left, 2)
	assert.Equal(t, evs[1].ID, left[0].ID)
	assert.Equal(t, evs[2].ID, left[1].ID)
	assert.Equal(t, int64(1), relay.Stats().Failed)
}

func TestRelayRedeliversWhenMarkFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := memstore.New()
	evs := seedEvents(t, store, 2)

	pub := mocks.NewMockPublisher(ctrl)
	pub.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).Times(4)

	store.FailOn("MarkPublished", errors.New("connection reset"))
	relay := NewRelay(store, store, pub, 10)

	_, err := relay.Flush(context.Background())
	require.Error(t, err)
	require.Len(t, pending(t, store), 2)

	n, err := relay.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(evs), n)
	assert.Empty(t, pending(t, store))
}

func TestRelayDrainWalksAllBatches(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := memstore.New()
	seedEvents(t, store, 5)

	pub := mocks.NewMockPublisher(ctrl)
	pub.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).Times(5)

	relay := NewRelay(store, store, pub, 2)
	n, err := relay.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, int64(3), relay.Stats().Passes)
}

func TestKafkaPublisherKeysByEntity(t *testing.T) {
	ctrl := gomock.NewController(t)
	w := mocks.NewMockWriter(ctrl)
	e := event.New(event.EntityContainer, uuid.New(), event.ActionStatusChanged, "COMPLETED", occurred)

	w.EXPECT().WriteMessages(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, msgs ...kafka.Message) error {
			require.Len(t, msgs, 1)
			assert.Equal(t, e.EntityID.String(), string(msgs[0].Key))

			var got event.Event
			require.NoError(t, json.Unmarshal(msgs[0].Value, &got))
			assert.Equal(t, e.ID, got.ID)
			assert.Equal(t, "COMPLETED", got.NewStatus)
			return nil
		})

	require.NoError(t, NewKafkaPublisherWithWriter(w).Publish(context.Background(), e))
}
