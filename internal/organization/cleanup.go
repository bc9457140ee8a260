package organization

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"

	"github.com/WailSalutem-Health-Care/tenant-service/internal/messaging"
)

// DefaultRetentionPeriod defines how long partitions left behind by a rename
// are kept (30 days)
const DefaultRetentionPeriod = 30 * 24 * time.Hour

// CleanupService purges retained partitions once their retention has expired
type CleanupService struct {
	store     Store
	publisher messaging.PublisherInterface
	clock     clock.Clock
	retention time.Duration
}

// NewCleanupService creates a new cleanup service. A zero retention uses
// DefaultRetentionPeriod; nil publisher and clock use no-op and wall time.
func NewCleanupService(store Store, publisher messaging.PublisherInterface, clk clock.Clock, retention time.Duration) *CleanupService {
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}
	if clk == nil {
		clk = clock.New()
	}
	if retention <= 0 {
		retention = DefaultRetentionPeriod
	}
	return &CleanupService{store: store, publisher: publisher, clock: clk, retention: retention}
}

func (s *CleanupService) cutoff() time.Time {
	return s.clock.Now().UTC().Add(-s.retention)
}

// CleanupExpiredPartitions drops every retained partition older than the
// retention period and returns how many were purged. A partition id that an
// active organization owns again is released without being dropped.
func (s *CleanupService) CleanupExpiredPartitions(ctx context.Context) (int, error) {
	cutoff := s.cutoff()
	log.Ctx(ctx).Info().Time("cutoff", cutoff).Msg("starting cleanup of retained partitions")

	expired, err := s.store.Retention().ListExpired(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired partitions: %w", err)
	}
	if len(expired) == 0 {
		log.Ctx(ctx).Info().Msg("no expired partitions found for cleanup")
		return 0, nil
	}

	log.Ctx(ctx).Info().Int("count", len(expired)).Msg("found expired partitions")

	purged := 0
	for _, rp := range expired {
		dropped, err := s.purge(ctx, rp)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Str("partition_id", rp.PartitionID).Msg("failed to purge partition")
			continue
		}
		if !dropped {
			continue
		}
		purged++

		now := s.clock.Now().UTC()
		event := messaging.PartitionPurgedEvent{
			BaseEvent: messaging.NewBaseEvent(messaging.EventPartitionPurged, now),
			Data: messaging.PartitionPurgedData{
				PartitionID:    rp.PartitionID,
				OrganizationID: rp.OrganizationID,
				RetainedAt:     rp.RetainedAt,
				PurgedAt:       now,
			},
		}
		if err := s.publisher.Publish(ctx, messaging.EventPartitionPurged, event); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("failed to publish partition purge")
		}
	}

	log.Ctx(ctx).Info().Int("purged", purged).Int("expired", len(expired)).Msg("cleanup finished")
	return purged, nil
}

// purge releases one ledger entry and drops its partition in one
// transaction. It reports false when the partition was left in place.
func (s *CleanupService) purge(ctx context.Context, rp RetainedPartition) (bool, error) {
	dropped := false
	err := s.store.Atomic(ctx, func(tx Store) error {
		released, err := tx.Retention().Release(ctx, rp.PartitionID)
		if err != nil {
			return fmt.Errorf("failed to release partition: %w", err)
		}
		if !released {
			return nil
		}

		if _, err := tx.Registry().FindByPartition(ctx, rp.PartitionID); err == nil {
			log.Ctx(ctx).Info().Str("partition_id", rp.PartitionID).Msg("partition is in use again, keeping it")
			return nil
		} else if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("failed to look up partition owner: %w", err)
		}

		if _, err := tx.Partitions().Drop(ctx, rp.PartitionID); err != nil {
			return fmt.Errorf("failed to drop partition %s: %w", rp.PartitionID, err)
		}
		dropped = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if dropped {
		log.Ctx(ctx).Info().Str("partition_id", rp.PartitionID).Msg("purged retained partition")
	}
	return dropped, nil
}

// GetExpiredPartitionsCount returns count of partitions eligible for cleanup
func (s *CleanupService) GetExpiredPartitionsCount(ctx context.Context) (int, error) {
	expired, err := s.store.Retention().ListExpired(ctx, s.cutoff())
	if err != nil {
		return 0, fmt.Errorf("failed to count expired partitions: %w", err)
	}
	return len(expired), nil
}
