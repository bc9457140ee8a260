// Package mongo implements organization.Store on MongoDB. Registry
// collections and tenant partitions share one database; each partition is a
// collection named after its partition id.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/WailSalutem-Health-Care/tenant-service/internal/organization"
)

const (
	organizationsCollection = "organizations"
	adminsCollection        = "admins"
	retainedCollection      = "retained_partitions"

	adminEmailIndex = "admins_email_unique"
)

// Config holds the MongoDB connection settings.
type Config struct {
	URI      string
	Database string
	// ConnectTimeout bounds the retries of the initial ping.
	ConnectTimeout time.Duration
}

type Store struct {
	client *mongo.Client
	db     *mongo.Database
	// undo is set on the Store handed to an Atomic callback.
	undo *undoLog
}

var _ organization.Store = (*Store)(nil)

// Open connects to MongoDB, retrying the first ping with exponential
// backoff, and creates the registry indexes.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongo uri is required")
	}
	if cfg.Database == "" {
		cfg.Database = "multitenant_master"
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo client: %w", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = cfg.ConnectTimeout
	ping := func() error { return client.Ping(ctx, readpref.Primary()) }
	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Dur("retry_in", wait).Msg("mongo not ready")
	}
	if err := backoff.RetryNotify(ping, backoff.WithContext(bo, ctx), notify); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	s := New(client, cfg.Database)
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	log.Info().Str("database", cfg.Database).Msg("connected to MongoDB")
	return s, nil
}

// New wraps an existing client.
func New(client *mongo.Client, database string) *Store {
	return &Store{client: client, db: client.Database(database)}
}

// Database exposes the master database, mainly for tests.
func (s *Store) Database() *mongo.Database { return s.db }

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the unique indexes that enforce registry
// invariants.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		organizationsCollection: {
			{Keys: bson.D{{Key: "name_key", Value: 1}}, Options: options.Index().SetUnique(true).SetName("organizations_name_key_unique")},
			{Keys: bson.D{{Key: "collection_name", Value: 1}}, Options: options.Index().SetUnique(true).SetName("organizations_collection_name_unique")},
			{Keys: bson.D{{Key: "admin_ref", Value: 1}}, Options: options.Index().SetUnique(true).SetName("organizations_admin_ref_unique")},
		},
		adminsCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName(adminEmailIndex)},
		},
		retainedCollection: {
			{Keys: bson.D{{Key: "retained_at", Value: 1}}, Options: options.Index().SetName("retained_partitions_retained_at")},
		},
	}

	for coll, models := range indexes {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

func (s *Store) Registry() organization.Registry {
	return &registry{coll: s.db.Collection(organizationsCollection), undo: s.undo}
}

func (s *Store) Admins() organization.AdminRepository {
	return &admins{coll: s.db.Collection(adminsCollection), undo: s.undo}
}

func (s *Store) Partitions() organization.PartitionManager {
	return &partitions{db: s.db, undo: s.undo}
}

func (s *Store) Retention() organization.RetentionLedger {
	return &retention{coll: s.db.Collection(retainedCollection)}
}

// Atomic runs fn without a server transaction: collection drops cannot run
// inside one and a standalone server has none. Unique indexes reject
// conflicting concurrent writes. When fn fails, documents it inserted and
// collections it created are removed again. Nested calls join the outer one.
func (s *Store) Atomic(ctx context.Context, fn func(tx organization.Store) error) error {
	if s.undo != nil {
		return fn(s)
	}

	tx := &Store{client: s.client, db: s.db, undo: &undoLog{}}
	if err := fn(tx); err != nil {
		tx.undo.rollback(ctx)
		return err
	}
	return nil
}

// mapMongoError maps driver errors onto the organization sentinels.
func mapMongoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return organization.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		if strings.Contains(err.Error(), adminEmailIndex) {
			return fmt.Errorf("%w: %v", organization.ErrEmailConflict, err)
		}
		return fmt.Errorf("%w: %v", organization.ErrNameConflict, err)
	}
	return err
}
