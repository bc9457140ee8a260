package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/WailSalutem-Health-Care/tenant-service/internal/organization"
)

type retainedDoc struct {
	PartitionID    string    `bson:"_id"`
	OrganizationID string    `bson:"organization_id"`
	RetainedAt     time.Time `bson:"retained_at"`
}

type retention struct {
	coll *mongo.Collection
}

func (r *retention) Retain(ctx context.Context, partitionID, orgID string, at time.Time) error {
	_, err := r.coll.ReplaceOne(ctx,
		bson.M{"_id": partitionID},
		retainedDoc{PartitionID: partitionID, OrganizationID: orgID, RetainedAt: at},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to retain %s: %w", partitionID, err)
	}
	return nil
}

func (r *retention) Release(ctx context.Context, partitionID string) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": partitionID})
	if err != nil {
		return false, fmt.Errorf("failed to release %s: %w", partitionID, err)
	}
	return res.DeletedCount > 0, nil
}

func (r *retention) ListExpired(ctx context.Context, before time.Time) ([]organization.RetainedPartition, error) {
	opts := options.Find().SetSort(bson.D{{Key: "retained_at", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{"retained_at": bson.M{"$lt": before}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query retained partitions: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []retainedDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode retained partitions: %w", err)
	}

	out := make([]organization.RetainedPartition, 0, len(docs))
	for _, d := range docs {
		out = append(out, organization.RetainedPartition{
			PartitionID:    d.PartitionID,
			OrganizationID: d.OrganizationID,
			RetainedAt:     d.RetainedAt.UTC(),
		})
	}
	return out, nil
}
