package domain

// ModificationType classifies a job lifecycle event for downstream
// consumers (cache invalidation, geo-index update).
type ModificationType string

const (
	ModificationCreated       ModificationType = "CREATED"
	ModificationUpdated       ModificationType = "UPDATED"
	ModificationStatusChanged ModificationType = "STATUS_CHANGED"
	ModificationDeleted       ModificationType = "DELETED"
)

// JobModifiedEvent is published after every committed job change.
type JobModifiedEvent struct {
	JobID           string           `json:"job_id"`
	ClientID        string           `json:"client_id"`
	Type            ModificationType `json:"type"`
	Status          JobStatus        `json:"status"`
	LocationChanged bool             `json:"location_changed"`
}

// JobExpiredEvent is published when the expiration sweep closes a job.
type JobExpiredEvent struct {
	JobID    string `json:"job_id"`
	ClientID string `json:"client_id"`
}

// GeoSyncOperation tags a geo-index push for retry bookkeeping.
type GeoSyncOperation string

const (
	GeoSyncCreate GeoSyncOperation = "CREATE"
	GeoSyncUpdate GeoSyncOperation = "UPDATE"
	GeoSyncDelete GeoSyncOperation = "DELETE"
)
