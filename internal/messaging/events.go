package messaging

import (
	"time"

	"github.com/google/uuid"
)

// Event routing keys as constants
const (
	EventOrganizationCreated = "organization.created"
	EventOrganizationRenamed = "organization.renamed"
	EventOrganizationDeleted = "organization.deleted"

	// Emitted by the cleanup job when a retained partition is dropped.
	EventPartitionPurged = "partition.purged"
)

// ServiceName identifies this service in published events.
const ServiceName = "tenant-service"

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventType   string    `json:"event_type"`
	EventID     string    `json:"event_id"`
	Timestamp   time.Time `json:"timestamp"`
	ServiceName string    `json:"service_name"`
}

// OrganizationCreatedEvent represents an organization registration
type OrganizationCreatedEvent struct {
	BaseEvent
	Data OrganizationCreatedData `json:"data"`
}

type OrganizationCreatedData struct {
	OrganizationID   string    `json:"organization_id"`
	OrganizationName string    `json:"organization_name"`
	PartitionID      string    `json:"partition_id"`
	AdminID          string    `json:"admin_id"`
	CreatedAt        time.Time `json:"created_at"`
}

// OrganizationRenamedEvent represents a rename, with the partition move if any
type OrganizationRenamedEvent struct {
	BaseEvent
	Data OrganizationRenamedData `json:"data"`
}

type OrganizationRenamedData struct {
	OrganizationID string    `json:"organization_id"`
	OldName        string    `json:"old_name"`
	NewName        string    `json:"new_name"`
	OldPartitionID string    `json:"old_partition_id"`
	NewPartitionID string    `json:"new_partition_id"`
	RecordsCopied  int64     `json:"records_copied"`
	RenamedAt      time.Time `json:"renamed_at"`
}

// OrganizationDeletedEvent represents an organization deletion event
type OrganizationDeletedEvent struct {
	BaseEvent
	Data OrganizationDeletedData `json:"data"`
}

type OrganizationDeletedData struct {
	OrganizationID   string    `json:"organization_id"`
	OrganizationName string    `json:"organization_name"`
	PartitionID      string    `json:"partition_id"`
	PartitionDropped bool      `json:"partition_dropped"`
	DeletedAt        time.Time `json:"deleted_at"`
}

// PartitionPurgedEvent represents the cleanup of a retained partition
type PartitionPurgedEvent struct {
	BaseEvent
	Data PartitionPurgedData `json:"data"`
}

type PartitionPurgedData struct {
	PartitionID    string    `json:"partition_id"`
	OrganizationID string    `json:"organization_id"`
	RetainedAt     time.Time `json:"retained_at"`
	PurgedAt       time.Time `json:"purged_at"`
}

// NewBaseEvent creates a base event with common fields
func NewBaseEvent(eventType string, at time.Time) BaseEvent {
	return BaseEvent{
		EventType:   eventType,
		EventID:     uuid.NewString(),
		Timestamp:   at.UTC(),
		ServiceName: ServiceName,
	}
}
