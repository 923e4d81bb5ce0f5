package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/taskhive/taskhive-be/internal/marketplace/domain"
	"github.com/taskhive/taskhive-be/internal/marketplace/storage"
)

// Routing keys for lifecycle events on the marketplace exchange.
const (
	RoutingKeyJobModified = "job.modified"
	RoutingKeyJobExpired  = "job.expired"
)

// eventKindPrefix marks retry records that replay an exchange publish
// rather than a direct notification.
const eventKindPrefix = "event."

// MessagePublisher publishes lifecycle events to the message bus.
type MessagePublisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// Sender delivers a notification to a recipient. External collaborator;
// only its success/failure contract matters here.
type Sender interface {
	Send(ctx context.Context, recipient, kind string, payload []byte) error
}

// GeoIndexer pushes job location changes to the geo index. External
// collaborator; failures are retried through the geo-sync ledger.
type GeoIndexer interface {
	Sync(ctx context.Context, jobID string, op domain.GeoSyncOperation) error
}

// RetryStore persists the durable retry ledger.
type RetryStore interface {
	InsertFailedNotification(ctx context.Context, rec *storage.FailedNotification) error
	UpsertFailedGeoSync(ctx context.Context, rec *storage.FailedGeoSync) error
}

// Dispatcher fans job lifecycle changes out to the event bus, the
// notification sender, and the geo index, always after the triggering
// transaction has committed. A failed side effect degrades to a retry
// record and never fails the state transition that triggered it.
type Dispatcher struct {
	publisher MessagePublisher
	sender    Sender
	geo       GeoIndexer
	store     RetryStore
	logger    *slog.Logger
	now       func() time.Time
}

// NewDispatcher creates a new event dispatcher.
func NewDispatcher(publisher MessagePublisher, sender Sender, geo GeoIndexer, store RetryStore, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		publisher: publisher,
		sender:    sender,
		geo:       geo,
		store:     store,
		logger:    logger,
		now:       time.Now,
	}
}

// JobModified publishes a JobModifiedEvent and pushes a geo-index
// update when the job's physical presence changed.
func (d *Dispatcher) JobModified(ctx context.Context, ev domain.JobModifiedEvent) {
	body, err := json.Marshal(ev)
	if err != nil {
		d.logger.Error("Failed to marshal job modified event",
			slog.String("job_id", ev.JobID),
			slog.Any("error", err),
		)
		return
	}

	if err := d.publisher.Publish(ctx, RoutingKeyJobModified, body); err != nil {
		d.recordFailedPublish(ctx, ev.JobID, RoutingKeyJobModified, body, err)
	}

	if op, ok := geoOperation(ev); ok {
		if err := d.geo.Sync(ctx, ev.JobID, op); err != nil {
			d.recordFailedGeoSync(ctx, ev.JobID, op, err)
		}
	}
}

// JobExpired publishes a JobExpiredEvent.
func (d *Dispatcher) JobExpired(ctx context.Context, ev domain.JobExpiredEvent) {
	body, err := json.Marshal(ev)
	if err != nil {
		d.logger.Error("Failed to marshal job expired event",
			slog.String("job_id", ev.JobID),
			slog.Any("error", err),
		)
		return
	}

	if err := d.publisher.Publish(ctx, RoutingKeyJobExpired, body); err != nil {
		d.recordFailedPublish(ctx, ev.JobID, RoutingKeyJobExpired, body, err)
	}
}

// Notify delivers a notification to a recipient, degrading to a retry
// record on failure.
func (d *Dispatcher) Notify(ctx context.Context, recipient, kind string, payload map[string]interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		d.logger.Error("Failed to marshal notification payload",
			slog.String("kind", kind),
			slog.Any("error", err),
		)
		return
	}

	if err := d.sender.Send(ctx, recipient, kind, body); err != nil {
		jobID, _ := payload["job_id"].(string)
		d.recordFailedNotification(ctx, jobID, recipient, kind, body, err)
	}
}

// Replay re-attempts the side effect a retry record describes. Used by
// the notification retry sweep.
func (d *Dispatcher) Replay(ctx context.Context, rec *storage.FailedNotification) error {
	if strings.HasPrefix(rec.Kind, eventKindPrefix) {
		return d.publisher.Publish(ctx, strings.TrimPrefix(rec.Kind, eventKindPrefix), []byte(rec.Payload))
	}
	return d.sender.Send(ctx, rec.Recipient, rec.Kind, []byte(rec.Payload))
}

// ReplayGeoSync re-attempts the geo-index push a retry record describes.
func (d *Dispatcher) ReplayGeoSync(ctx context.Context, rec *storage.FailedGeoSync) error {
	return d.geo.Sync(ctx, rec.JobID, rec.Operation)
}

func geoOperation(ev domain.JobModifiedEvent) (domain.GeoSyncOperation, bool) {
	switch {
	case ev.Type == domain.ModificationCreated:
		return domain.GeoSyncCreate, true
	case ev.Type == domain.ModificationDeleted:
		return domain.GeoSyncDelete, true
	case ev.LocationChanged:
		return domain.GeoSyncUpdate, true
	}
	return "", false
}

func (d *Dispatcher) recordFailedPublish(ctx context.Context, jobID, routingKey string, body []byte, cause error) {
	d.logger.Warn("Event publish failed, recording for retry",
		slog.String("job_id", jobID),
		slog.String("routing_key", routingKey),
		slog.Any("error", cause),
	)

	now := d.now()
	rec := &storage.FailedNotification{
		ID:        uuid.New().String(),
		JobID:     jobID,
		Kind:      eventKindPrefix + routingKey,
		Payload:   string(body),
		LastError: cause.Error(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := d.store.InsertFailedNotification(ctx, rec); err != nil {
		d.logger.Error("Failed to record failed event publish",
			slog.String("job_id", jobID),
			slog.Any("error", err),
		)
	}
}

func (d *Dispatcher) recordFailedNotification(ctx context.Context, jobID, recipient, kind string, body []byte, cause error) {
	d.logger.Warn("Notification send failed, recording for retry",
		slog.String("recipient", recipient),
		slog.String("kind", kind),
		slog.Any("error", cause),
	)

	now := d.now()
	rec := &storage.FailedNotification{
		ID:        uuid.New().String(),
		JobID:     jobID,
		Recipient: recipient,
		Kind:      kind,
		Payload:   string(body),
		LastError: cause.Error(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := d.store.InsertFailedNotification(ctx, rec); err != nil {
		d.logger.Error("Failed to record failed notification",
			slog.String("recipient", recipient),
			slog.Any("error", err),
		)
	}
}

func (d *Dispatcher) recordFailedGeoSync(ctx context.Context, jobID string, op domain.GeoSyncOperation, cause error) {
	d.logger.Warn("Geo-index sync failed, recording for retry",
		slog.String("job_id", jobID),
		slog.String("operation", string(op)),
		slog.Any("error", cause),
	)

	now := d.now()
	rec := &storage.FailedGeoSync{
		ID:        uuid.New().String(),
		JobID:     jobID,
		Operation: op,
		LastError: cause.Error(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := d.store.UpsertFailedGeoSync(ctx, rec); err != nil {
		d.logger.Error("Failed to record failed geo sync",
			slog.String("job_id", jobID),
			slog.Any("error", err),
		)
	}
}
