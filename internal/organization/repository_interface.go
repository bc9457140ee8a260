package organization

import (
	"context"
	"time"
)

// Registry stores organization records. Name lookups compare NameKey.
// Implementations return ErrNameConflict when the name key or partition id
// belongs to another organization, and ErrNotFound when a record is absent.
type Registry interface {
	FindByName(ctx context.Context, name string) (*Organization, error)
	FindByPartition(ctx context.Context, partitionID string) (*Organization, error)
	FindByAdmin(ctx context.Context, adminID string) (*Organization, error)
	Create(ctx context.Context, org *Organization) (string, error)
	Rename(ctx context.Context, id, newName, partitionID string) (*Organization, error)
	Delete(ctx context.Context, id string) error
}

// AdminRepository stores admins. Emails are stored lowercased and are unique.
type AdminRepository interface {
	Create(ctx context.Context, admin *Admin) (string, error)
	Get(ctx context.Context, id string) (*Admin, error)
	FindByEmail(ctx context.Context, email string) (*Admin, error)
	UpdateCredentials(ctx context.Context, id, email, passwordHash string) error
	SetOrganization(ctx context.Context, id, organization string) error
	Delete(ctx context.Context, id string) error
}

// PartitionManager owns tenant partitions.
type PartitionManager interface {
	Ensure(ctx context.Context, partitionID string) error
	// CopyAll copies every record from src into dst with fresh ids and
	// returns the number copied. src == dst is a no-op.
	CopyAll(ctx context.Context, src, dst string) (int64, error)
	Drop(ctx context.Context, partitionID string) (bool, error)
	Exists(ctx context.Context, partitionID string) (bool, error)
	Count(ctx context.Context, partitionID string) (int64, error)
	Insert(ctx context.Context, partitionID string, record map[string]any) (string, error)
}

// RetentionLedger tracks partitions kept after a rename.
type RetentionLedger interface {
	Retain(ctx context.Context, partitionID, orgID string, at time.Time) error
	Release(ctx context.Context, partitionID string) (bool, error)
	ListExpired(ctx context.Context, before time.Time) ([]RetainedPartition, error)
}

// Store groups the repositories of one backend. Atomic runs fn against a
// Store scoped to a single transaction where the backend supports one; an
// error from fn rolls it back.
type Store interface {
	Registry() Registry
	Admins() AdminRepository
	Partitions() PartitionManager
	Retention() RetentionLedger
	Atomic(ctx context.Context, fn func(tx Store) error) error
}
