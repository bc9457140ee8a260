package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/WailSalutem-Health-Care/tenant-service/internal/organization"
)

type connectionDoc struct {
	DB string `bson:"db"`
}

type organizationDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	Name           string             `bson:"organization_name"`
	NameKey        string             `bson:"name_key"`
	CollectionName string             `bson:"collection_name"`
	Connection     connectionDoc      `bson:"connection"`
	AdminRef       primitive.ObjectID `bson:"admin_ref"`
	CreatedAt      time.Time          `bson:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at"`
}

func (d *organizationDoc) toModel() *organization.Organization {
	return &organization.Organization{
		ID:          d.ID.Hex(),
		Name:        d.Name,
		PartitionID: d.CollectionName,
		Database:    d.Connection.DB,
		AdminID:     d.AdminRef.Hex(),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type registry struct {
	coll *mongo.Collection
	undo *undoLog
}

func (r *registry) findOne(ctx context.Context, filter bson.M) (*organization.Organization, error) {
	var doc organizationDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mapMongoError(err)
	}
	return doc.toModel(), nil
}

func (r *registry) FindByName(ctx context.Context, name string) (*organization.Organization, error) {
	return r.findOne(ctx, bson.M{"name_key": organization.NameKey(name)})
}

func (r *registry) FindByPartition(ctx context.Context, partitionID string) (*organization.Organization, error) {
	return r.findOne(ctx, bson.M{"collection_name": partitionID})
}

func (r *registry) FindByAdmin(ctx context.Context, adminID string) (*organization.Organization, error) {
	oid, err := primitive.ObjectIDFromHex(adminID)
	if err != nil {
		return nil, organization.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"admin_ref": oid})
}

func (r *registry) Create(ctx context.Context, org *organization.Organization) (string, error) {
	adminRef, err := primitive.ObjectIDFromHex(org.AdminID)
	if err != nil {
		return "", organization.ErrNotFound
	}
	now := time.Now().UTC()
	doc := organizationDoc{
		ID:             primitive.NewObjectID(),
		Name:           org.Name,
		NameKey:        organization.NameKey(org.Name),
		CollectionName: org.PartitionID,
		Connection:     connectionDoc{DB: org.Database},
		AdminRef:       adminRef,
		CreatedAt:      org.CreatedAt,
		UpdatedAt:      org.UpdatedAt,
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return "", mapMongoError(err)
	}
	r.undo.push("delete organization "+doc.ID.Hex(), func(ctx context.Context) error {
		_, err := r.coll.DeleteOne(ctx, bson.M{"_id": doc.ID})
		return err
	})
	return doc.ID.Hex(), nil
}

func (r *registry) Rename(ctx context.Context, id, newName, partitionID string) (*organization.Organization, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, organization.ErrNotFound
	}

	update := bson.M{"$set": bson.M{
		"organization_name": newName,
		"name_key":          organization.NameKey(newName),
		"collection_name":   partitionID,
		"updated_at":        time.Now().UTC(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc organizationDoc
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&doc); err != nil {
		return nil, mapMongoError(err)
	}
	return doc.toModel(), nil
}

func (r *registry) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return organization.ErrNotFound
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return mapMongoError(err)
	}
	if res.DeletedCount == 0 {
		return organization.ErrNotFound
	}
	return nil
}
