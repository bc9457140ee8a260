// Package store opens the organization.Store selected by configuration.
package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/WailSalutem-Health-Care/tenant-service/internal/config"
	"github.com/WailSalutem-Health-Care/tenant-service/internal/organization"
	"github.com/WailSalutem-Health-Care/tenant-service/internal/store/memory"
	"github.com/WailSalutem-Health-Care/tenant-service/internal/store/mongo"
	"github.com/WailSalutem-Health-Care/tenant-service/internal/store/postgres"
)

// Opened is a connected store plus what callers report and release.
type Opened struct {
	Store organization.Store
	// Database is reported as connection.db on organization records.
	Database string
	Close    func(ctx context.Context) error
}

// Open connects to the backend named by cfg.Driver. Postgres migrations run
// before it returns.
func Open(ctx context.Context, cfg config.StoreConfig) (*Opened, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		s, err := postgres.Open(ctx, postgres.Config{URL: cfg.DatabaseURL, MasterSchema: cfg.MasterDB})
		if err != nil {
			return nil, err
		}
		return &Opened{
			Store:    s,
			Database: cfg.MasterDB,
			Close:    func(context.Context) error { return s.Close() },
		}, nil

	case config.DriverMongo:
		s, err := mongo.Open(ctx, mongo.Config{URI: cfg.MongoURI, Database: cfg.MasterDB})
		if err != nil {
			return nil, err
		}
		return &Opened{Store: s, Database: cfg.MasterDB, Close: s.Close}, nil

	case config.DriverMemory:
		log.Warn().Msg("using in-memory store, data is lost on exit")
		return &Opened{
			Store:    memory.New(),
			Database: memory.DatabaseName,
			Close:    func(context.Context) error { return nil },
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}
