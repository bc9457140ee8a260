package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/WailSalutem-Health-Care/tenant-service/internal/organization"
)

// namespaceExists is returned by create on an existing collection.
const namespaceExists = 48

// copyBatchSize bounds the documents held in memory by CopyAll.
const copyBatchSize = 500

type partitions struct {
	db   *mongo.Database
	undo *undoLog
}

func (p *partitions) Ensure(ctx context.Context, partitionID string) error {
	err := p.db.CreateCollection(ctx, partitionID)
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == namespaceExists {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", partitionID, err)
	}
	p.undo.push("drop collection "+partitionID, func(ctx context.Context) error {
		return p.db.Collection(partitionID).Drop(ctx)
	})
	return nil
}

// CopyAll streams src into dst in batches. Documents get fresh ids and keep
// every other field.
func (p *partitions) CopyAll(ctx context.Context, src, dst string) (int64, error) {
	if src == dst {
		return 0, nil
	}

	cursor, err := p.db.Collection(src).Find(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", src, err)
	}
	defer cursor.Close(ctx)

	target := p.db.Collection(dst)
	var (
		copied int64
		batch  []interface{}
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		res, err := target.InsertMany(ctx, batch)
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", dst, err)
		}
		copied += int64(len(res.InsertedIDs))
		batch = batch[:0]
		return nil
	}

	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return copied, fmt.Errorf("failed to decode record: %w", err)
		}
		doc["_id"] = primitive.NewObjectID()
		batch = append(batch, doc)
		if len(batch) == copyBatchSize {
			if err := flush(); err != nil {
				return copied, err
			}
		}
	}
	if err := cursor.Err(); err != nil {
		return copied, fmt.Errorf("failed to iterate %s: %w", src, err)
	}
	if err := flush(); err != nil {
		return copied, err
	}
	return copied, nil
}

func (p *partitions) Drop(ctx context.Context, partitionID string) (bool, error) {
	exists, err := p.Exists(ctx, partitionID)
	if err != nil || !exists {
		return false, err
	}
	if err := p.db.Collection(partitionID).Drop(ctx); err != nil {
		return false, fmt.Errorf("failed to drop collection %s: %w", partitionID, err)
	}
	return true, nil
}

func (p *partitions) Exists(ctx context.Context, partitionID string) (bool, error) {
	names, err := p.db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: partitionID}})
	if err != nil {
		return false, fmt.Errorf("failed to list collections: %w", err)
	}
	return len(names) > 0, nil
}

func (p *partitions) Count(ctx context.Context, partitionID string) (int64, error) {
	n, err := p.db.Collection(partitionID).CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", partitionID, err)
	}
	return n, nil
}

// Insert requires an existing partition; MongoDB would otherwise create the
// collection implicitly.
func (p *partitions) Insert(ctx context.Context, partitionID string, record map[string]any) (string, error) {
	exists, err := p.Exists(ctx, partitionID)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", organization.ErrPartitionNotFound
	}

	doc := bson.M{}
	for k, v := range record {
		doc[k] = v
	}
	id := primitive.NewObjectID()
	doc["_id"] = id
	if _, ok := doc["created_at"]; !ok {
		doc["created_at"] = time.Now().UTC()
	}

	if _, err := p.db.Collection(partitionID).InsertOne(ctx, doc); err != nil {
		return "", mapMongoError(err)
	}
	return id.Hex(), nil
}
