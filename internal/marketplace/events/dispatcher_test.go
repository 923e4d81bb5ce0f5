package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskhive/taskhive-be/internal/marketplace/domain"
	"github.com/taskhive/taskhive-be/internal/marketplace/storage"
)

type publishedMessage struct {
	routingKey string
	body       []byte
}

type stubPublisher struct {
	err       error
	published []publishedMessage
}

func (p *stubPublisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, publishedMessage{routingKey: routingKey, body: body})
	return nil
}

type sentNotification struct {
	recipient string
	kind      string
	payload   []byte
}

type stubSender struct {
	err  error
	sent []sentNotification
}

func (s *stubSender) Send(ctx context.Context, recipient, kind string, payload []byte) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentNotification{recipient: recipient, kind: kind, payload: payload})
	return nil
}

type geoCall struct {
	jobID string
	op    domain.GeoSyncOperation
}

type stubGeoIndexer struct {
	err   error
	calls []geoCall
}

func (g *stubGeoIndexer) Sync(ctx context.Context, jobID string, op domain.GeoSyncOperation) error {
	if g.err != nil {
		return g.err
	}
	g.calls = append(g.calls, geoCall{jobID: jobID, op: op})
	return nil
}

type recordingRetryStore struct {
	notifications []*storage.FailedNotification
	geoSyncs      []*storage.FailedGeoSync
}

func (r *recordingRetryStore) InsertFailedNotification(ctx context.Context, rec *storage.FailedNotification) error {
	r.notifications = append(r.notifications, rec)
	return nil
}

func (r *recordingRetryStore) UpsertFailedGeoSync(ctx context.Context, rec *storage.FailedGeoSync) error {
	r.geoSyncs = append(r.geoSyncs, rec)
	return nil
}

type dispatcherFixture struct {
	publisher *stubPublisher
	sender    *stubSender
	geo       *stubGeoIndexer
	store     *recordingRetryStore
	dispatch  *Dispatcher
}

func newFixture() *dispatcherFixture {
	f := &dispatcherFixture{
		publisher: &stubPublisher{},
		sender:    &stubSender{},
		geo:       &stubGeoIndexer{},
		store:     &recordingRetryStore{},
	}
	f.dispatch = NewDispatcher(f.publisher, f.sender, f.geo, f.store, slog.New(slog.DiscardHandler))
	return f
}

func TestDispatcher_JobModified(t *testing.T) {
	t.Run("publishes and syncs geo index on create", func(t *testing.T) {
		f := newFixture()

		f.dispatch.JobModified(context.Background(), domain.JobModifiedEvent{
			JobID:    "job-1",
			ClientID: "client-1",
			Type:     domain.ModificationCreated,
			Status:   domain.JobStatusCreated,
		})

		require.Len(t, f.publisher.published, 1)
		assert.Equal(t, RoutingKeyJobModified, f.publisher.published[0].routingKey)

		var ev domain.JobModifiedEvent
		require.NoError(t, json.Unmarshal(f.publisher.published[0].body, &ev))
		assert.Equal(t, "job-1", ev.JobID)

		assert.Equal(t, []geoCall{{jobID: "job-1", op: domain.GeoSyncCreate}}, f.geo.calls)
		assert.Empty(t, f.store.notifications)
	})

	t.Run("status change without location change skips geo sync", func(t *testing.T) {
		f := newFixture()

		f.dispatch.JobModified(context.Background(), domain.JobModifiedEvent{
			JobID:  "job-1",
			Type:   domain.ModificationStatusChanged,
			Status: domain.JobStatusOpenForBids,
		})

		assert.Len(t, f.publisher.published, 1)
		assert.Empty(t, f.geo.calls)
	})

	t.Run("location change triggers geo update", func(t *testing.T) {
		f := newFixture()

		f.dispatch.JobModified(context.Background(), domain.JobModifiedEvent{
			JobID:           "job-1",
			Type:            domain.ModificationUpdated,
			LocationChanged: true,
		})

		assert.Equal(t, []geoCall{{jobID: "job-1", op: domain.GeoSyncUpdate}}, f.geo.calls)
	})

	t.Run("publish failure degrades to a retry record", func(t *testing.T) {
		f := newFixture()
		f.publisher.err = errors.New("broker unavailable")

		f.dispatch.JobModified(context.Background(), domain.JobModifiedEvent{
			JobID: "job-1",
			Type:  domain.ModificationStatusChanged,
		})

		require.Len(t, f.store.notifications, 1)
		rec := f.store.notifications[0]
		assert.Equal(t, "job-1", rec.JobID)
		assert.Equal(t, "event.job.modified", rec.Kind)
		assert.Equal(t, "broker unavailable", rec.LastError)
		assert.NotEmpty(t, rec.Payload)
	})

	t.Run("geo sync failure degrades to a geo retry record", func(t *testing.T) {
		f := newFixture()
		f.geo.err = errors.New("geo index unavailable")

		f.dispatch.JobModified(context.Background(), domain.JobModifiedEvent{
			JobID: "job-1",
			Type:  domain.ModificationDeleted,
		})

		require.Len(t, f.store.geoSyncs, 1)
		assert.Equal(t, "job-1", f.store.geoSyncs[0].JobID)
		assert.Equal(t, domain.GeoSyncDelete, f.store.geoSyncs[0].Operation)
	})
}

func TestDispatcher_JobExpired(t *testing.T) {
	f := newFixture()

	f.dispatch.JobExpired(context.Background(), domain.JobExpiredEvent{
		JobID:    "job-1",
		ClientID: "client-1",
	})

	require.Len(t, f.publisher.published, 1)
	assert.Equal(t, RoutingKeyJobExpired, f.publisher.published[0].routingKey)
}

func TestDispatcher_Notify(t *testing.T) {
	t.Run("delivers to the recipient", func(t *testing.T) {
		f := newFixture()

		f.dispatch.Notify(context.Background(), "worker-1", "payment.released", map[string]interface{}{
			"job_id": "job-1",
			"amount": int64(15000),
		})

		require.Len(t, f.sender.sent, 1)
		assert.Equal(t, "worker-1", f.sender.sent[0].recipient)
		assert.Equal(t, "payment.released", f.sender.sent[0].kind)
		assert.Empty(t, f.store.notifications)
	})

	t.Run("send failure degrades to a retry record", func(t *testing.T) {
		f := newFixture()
		f.sender.err = errors.New("push service down")

		f.dispatch.Notify(context.Background(), "client-1", "job.completed", map[string]interface{}{
			"job_id": "job-1",
		})

		require.Len(t, f.store.notifications, 1)
		rec := f.store.notifications[0]
		assert.Equal(t, "job-1", rec.JobID)
		assert.Equal(t, "client-1", rec.Recipient)
		assert.Equal(t, "job.completed", rec.Kind)
	})
}

func TestDispatcher_Replay(t *testing.T) {
	t.Run("event records replay through the publisher", func(t *testing.T) {
		f := newFixture()

		err := f.dispatch.Replay(context.Background(), &storage.FailedNotification{
			ID:      "n-1",
			Kind:    "event.job.modified",
			Payload: `{"job_id":"job-1"}`,
		})
		require.NoError(t, err)

		require.Len(t, f.publisher.published, 1)
		assert.Equal(t, "job.modified", f.publisher.published[0].routingKey)
		assert.Empty(t, f.sender.sent)
	})

	t.Run("notification records replay through the sender", func(t *testing.T) {
		f := newFixture()

		err := f.dispatch.Replay(context.Background(), &storage.FailedNotification{
			ID:        "n-2",
			Recipient: "worker-1",
			Kind:      "bid.accepted",
			Payload:   `{"job_id":"job-1"}`,
		})
		require.NoError(t, err)

		require.Len(t, f.sender.sent, 1)
		assert.Equal(t, "worker-1", f.sender.sent[0].recipient)
		assert.Empty(t, f.publisher.published)
	})

	t.Run("replay surfaces the underlying failure", func(t *testing.T) {
		f := newFixture()
		f.sender.err = errors.New("still down")

		err := f.dispatch.Replay(context.Background(), &storage.FailedNotification{
			ID:   "n-3",
			Kind: "job.completed",
		})
		assert.Error(t, err)
	})
}

func TestDispatcher_ReplayGeoSync(t *testing.T) {
	f := newFixture()

	err := f.dispatch.ReplayGeoSync(context.Background(), &storage.FailedGeoSync{
		ID:        "g-1",
		JobID:     "job-1",
		Operation: domain.GeoSyncDelete,
	})
	require.NoError(t, err)
	assert.Equal(t, []geoCall{{jobID: "job-1", op: domain.GeoSyncDelete}}, f.geo.calls)
}
