package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/WailSalutem-Health-Care/tenant-service/internal/organization"
)

type adminDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Email        string             `bson:"email"`
	Password     string             `bson:"password"`
	Organization string             `bson:"organization"`
	CreatedAt    time.Time          `bson:"created_at"`
}

func (d *adminDoc) toModel() *organization.Admin {
	return &organization.Admin{
		ID:           d.ID.Hex(),
		Email:        d.Email,
		PasswordHash: d.Password,
		Organization: d.Organization,
		CreatedAt:    d.CreatedAt,
	}
}

type admins struct {
	coll *mongo.Collection
	undo *undoLog
}

func (a *admins) Create(ctx context.Context, admin *organization.Admin) (string, error) {
	doc := adminDoc{
		ID:           primitive.NewObjectID(),
		Email:        admin.Email,
		Password:     admin.PasswordHash,
		Organization: admin.Organization,
		CreatedAt:    admin.CreatedAt,
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if _, err := a.coll.InsertOne(ctx, doc); err != nil {
		return "", mapMongoError(err)
	}
	a.undo.push("delete admin "+doc.ID.Hex(), func(ctx context.Context) error {
		_, err := a.coll.DeleteOne(ctx, bson.M{"_id": doc.ID})
		return err
	})
	return doc.ID.Hex(), nil
}

func (a *admins) findOne(ctx context.Context, filter bson.M) (*organization.Admin, error) {
	var doc adminDoc
	if err := a.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mapMongoError(err)
	}
	return doc.toModel(), nil
}

func (a *admins) Get(ctx context.Context, id string) (*organization.Admin, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, organization.ErrNotFound
	}
	return a.findOne(ctx, bson.M{"_id": oid})
}

func (a *admins) FindByEmail(ctx context.Context, email string) (*organization.Admin, error) {
	return a.findOne(ctx, bson.M{"email": email})
}

func (a *admins) set(ctx context.Context, id string, fields bson.M) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return organization.ErrNotFound
	}
	res, err := a.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": fields})
	if err != nil {
		return mapMongoError(err)
	}
	if res.MatchedCount == 0 {
		return organization.ErrNotFound
	}
	return nil
}

func (a *admins) UpdateCredentials(ctx context.Context, id, email, passwordHash string) error {
	return a.set(ctx, id, bson.M{"email": email, "password": passwordHash})
}

func (a *admins) SetOrganization(ctx context.Context, id, name string) error {
	return a.set(ctx, id, bson.M{"organization": name})
}

func (a *admins) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return organization.ErrNotFound
	}
	res, err := a.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return mapMongoError(err)
	}
	if res.DeletedCount == 0 {
		return organization.ErrNotFound
	}
	return nil
}
