package organization

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/WailSalutem-Health-Care/tenant-service/internal/auth"
	"github.com/WailSalutem-Health-Care/tenant-service/internal/messaging"
	"github.com/WailSalutem-Health-Care/tenant-service/internal/password"
)

var tracer = otel.Tracer("github.com/WailSalutem-Health-Care/tenant-service/organization")

// PasswordCodec is satisfied by *password.Codec.
type PasswordCodec interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

// TokenIssuer is satisfied by *auth.TokenService.
type TokenIssuer interface {
	Issue(p auth.Principal) (string, error)
}

// MetricsRecorder interface for recording organization metrics
type MetricsRecorder interface {
	RecordOrganizationOperation(ctx context.Context, operation string)
	RecordLoginAttempt(ctx context.Context, success bool)
	RecordRecordsCopied(ctx context.Context, count int64)
}

// Options configures a Service. Publisher, Metrics and Clock are optional.
type Options struct {
	Store     Store
	Codec     PasswordCodec
	Tokens    TokenIssuer
	Publisher messaging.PublisherInterface
	Metrics   MetricsRecorder
	Clock     clock.Clock
	// Database is reported as connection.db on organization records.
	Database string
}

type Service struct {
	store     Store
	codec     PasswordCodec
	tokens    TokenIssuer
	publisher messaging.PublisherInterface
	metrics   MetricsRecorder
	clock     clock.Clock
	database  string

	dummyOnce sync.Once
	dummyHash string
}

func NewService(opts Options) *Service {
	s := &Service{
		store:     opts.Store,
		codec:     opts.Codec,
		tokens:    opts.Tokens,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		clock:     opts.Clock,
		database:  opts.Database,
	}
	if s.publisher == nil {
		s.publisher = messaging.NopPublisher{}
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	return s
}

func requireName(name, field string) error {
	if strings.TrimSpace(name) == "" {
		return invalid("%s is required", field)
	}
	return nil
}

// claimPartition makes partitionID free for orgID: a retained copy left by an
// earlier rename is released and dropped so the caller starts from an empty
// partition. A partition owned by another organization is a name conflict.
func claimPartition(ctx context.Context, tx Store, partitionID, orgID string) error {
	owner, err := tx.Registry().FindByPartition(ctx, partitionID)
	switch {
	case err == nil:
		if owner.ID != orgID {
			return ErrNameConflict
		}
		return nil
	case !errors.Is(err, ErrNotFound):
		return fmt.Errorf("failed to look up partition owner: %w", err)
	}

	released, err := tx.Retention().Release(ctx, partitionID)
	if err != nil {
		return fmt.Errorf("failed to release retained partition: %w", err)
	}
	if released {
		if _, err := tx.Partitions().Drop(ctx, partitionID); err != nil {
			return fmt.Errorf("failed to drop stale partition: %w", err)
		}
		log.Ctx(ctx).Info().Str("partition_id", partitionID).Msg("reclaimed retained partition")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, req CreateOrganizationRequest) (*CreatedOrganization, error) {
	ctx, span := tracer.Start(ctx, "organization.Create", trace.WithAttributes(
		attribute.String("organization.name", req.OrganizationName),
	))
	defer span.End()

	if strings.TrimSpace(req.OrganizationName) == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return nil, invalid("organization_name, email and password are required")
	}
	partitionID := DerivePartitionID(req.OrganizationName)
	if err := ValidatePartitionID(partitionID); err != nil {
		return nil, err
	}

	hash, err := s.hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	var created CreatedOrganization
	err = s.store.Atomic(ctx, func(tx Store) error {
		if _, err := tx.Registry().FindByName(ctx, req.OrganizationName); err == nil {
			return ErrNameConflict
		} else if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("failed to look up organization: %w", err)
		}

		if err := claimPartition(ctx, tx, partitionID, ""); err != nil {
			return err
		}
		if err := tx.Partitions().Ensure(ctx, partitionID); err != nil {
			return fmt.Errorf("failed to create partition: %w", err)
		}

		adminID, err := tx.Admins().Create(ctx, &Admin{
			Email:        strings.ToLower(strings.TrimSpace(req.Email)),
			PasswordHash: hash,
			Organization: req.OrganizationName,
			CreatedAt:    now,
		})
		if err != nil {
			return fmt.Errorf("failed to create admin: %w", err)
		}

		orgID, err := tx.Registry().Create(ctx, &Organization{
			Name:        req.OrganizationName,
			PartitionID: partitionID,
			Database:    s.database,
			AdminID:     adminID,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return fmt.Errorf("failed to create organization: %w", err)
		}

		created = CreatedOrganization{
			ID:          orgID,
			Name:        req.OrganizationName,
			PartitionID: partitionID,
			AdminID:     adminID,
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return nil, err
	}

	span.SetAttributes(attribute.String("organization.id", created.ID))
	s.record(ctx, "create")
	s.publish(ctx, messaging.EventOrganizationCreated, messaging.OrganizationCreatedEvent{
		BaseEvent: messaging.NewBaseEvent(messaging.EventOrganizationCreated, now),
		Data: messaging.OrganizationCreatedData{
			OrganizationID:   created.ID,
			OrganizationName: created.Name,
			PartitionID:      created.PartitionID,
			AdminID:          created.AdminID,
			CreatedAt:        now,
		},
	})
	log.Ctx(ctx).Info().
		Str("organization_id", created.ID).
		Str("partition_id", created.PartitionID).
		Msg("organization created")

	return &created, nil
}

func (s *Service) Get(ctx context.Context, name string) (*OrganizationResponse, error) {
	ctx, span := tracer.Start(ctx, "organization.Get")
	defer span.End()

	if err := requireName(name, "organization_name"); err != nil {
		return nil, err
	}
	org, err := s.store.Registry().FindByName(ctx, name)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			span.RecordError(err)
			err = fmt.Errorf("failed to get organization: %w", err)
		}
		return nil, err
	}
	s.record(ctx, "get")
	return toResponse(org), nil
}

// Rename changes an organization's name. When the derived partition id
// changes, records are copied into the new partition and the old one is
// retained for the cleanup job. Credentials are replaced only when both
// email and password are given.
func (s *Service) Rename(ctx context.Context, req UpdateOrganizationRequest) (*OrganizationResponse, error) {
	newName := req.TargetName()
	ctx, span := tracer.Start(ctx, "organization.Rename", trace.WithAttributes(
		attribute.String("organization.name", req.OrganizationName),
		attribute.String("organization.new_name", newName),
	))
	defer span.End()

	if strings.TrimSpace(req.OrganizationName) == "" || strings.TrimSpace(newName) == "" {
		return nil, invalid("organization_name and new_organization_name are required")
	}
	newPartition := DerivePartitionID(newName)
	if err := ValidatePartitionID(newPartition); err != nil {
		return nil, err
	}

	replaceCredentials := strings.TrimSpace(req.Email) != "" && req.Password != ""
	var hash string
	if replaceCredentials {
		var err error
		if hash, err = s.hash(req.Password); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now().UTC()
	var (
		updated *Organization
		oldName string
		oldPart string
		copied  int64
	)
	err := s.store.Atomic(ctx, func(tx Store) error {
		org, err := tx.Registry().FindByName(ctx, req.OrganizationName)
		if err != nil {
			return err
		}
		oldName, oldPart = org.Name, org.PartitionID

		if other, err := tx.Registry().FindByName(ctx, newName); err == nil {
			if other.ID != org.ID {
				return ErrNameConflict
			}
		} else if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("failed to look up organization: %w", err)
		}

		if newPartition != oldPart {
			if err := claimPartition(ctx, tx, newPartition, org.ID); err != nil {
				return err
			}
			if err := tx.Partitions().Ensure(ctx, newPartition); err != nil {
				return fmt.Errorf("failed to create partition: %w", err)
			}
			if copied, err = tx.Partitions().CopyAll(ctx, oldPart, newPartition); err != nil {
				return fmt.Errorf("failed to copy partition: %w", err)
			}
			if err := tx.Retention().Retain(ctx, oldPart, org.ID, now); err != nil {
				return fmt.Errorf("failed to retain old partition: %w", err)
			}
		} else if err := tx.Partitions().Ensure(ctx, newPartition); err != nil {
			return fmt.Errorf("failed to create partition: %w", err)
		}

		if replaceCredentials {
			email := strings.ToLower(strings.TrimSpace(req.Email))
			if err := tx.Admins().UpdateCredentials(ctx, org.AdminID, email, hash); err != nil {
				return fmt.Errorf("failed to update admin credentials: %w", err)
			}
		}
		if err := tx.Admins().SetOrganization(ctx, org.AdminID, newName); err != nil {
			return fmt.Errorf("failed to update admin organization: %w", err)
		}

		updated, err = tx.Registry().Rename(ctx, org.ID, newName, newPartition)
		if err != nil {
			return fmt.Errorf("failed to rename organization: %w", err)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "rename failed")
		}
		return nil, err
	}

	s.record(ctx, "rename")
	if copied > 0 && s.metrics != nil {
		s.metrics.RecordRecordsCopied(ctx, copied)
	}
	s.publish(ctx, messaging.EventOrganizationRenamed, messaging.OrganizationRenamedEvent{
		BaseEvent: messaging.NewBaseEvent(messaging.EventOrganizationRenamed, now),
		Data: messaging.OrganizationRenamedData{
			OrganizationID: updated.ID,
			OldName:        oldName,
			NewName:        updated.Name,
			OldPartitionID: oldPart,
			NewPartitionID: updated.PartitionID,
			RecordsCopied:  copied,
			RenamedAt:      now,
		},
	})
	log.Ctx(ctx).Info().
		Str("organization_id", updated.ID).
		Str("old_partition_id", oldPart).
		Str("new_partition_id", updated.PartitionID).
		Int64("records_copied", copied).
		Msg("organization renamed")

	return toResponse(updated), nil
}

// Delete removes an organization, its partition and its admin. The caller
// must be the organization's admin; names compare case-insensitively. It
// reports whether the partition existed.
func (s *Service) Delete(ctx context.Context, name string, principal *auth.Principal) (bool, error) {
	ctx, span := tracer.Start(ctx, "organization.Delete", trace.WithAttributes(
		attribute.String("organization.name", name),
	))
	defer span.End()

	if err := requireName(name, "organization_name"); err != nil {
		return false, err
	}

	var (
		org     *Organization
		dropped bool
	)
	err := s.store.Atomic(ctx, func(tx Store) error {
		var err error
		org, err = tx.Registry().FindByName(ctx, name)
		if err != nil {
			return err
		}
		if principal == nil || principal.AdminID == "" || principal.Organization == "" {
			return ErrUnauthorized
		}
		if NameKey(principal.Organization) != NameKey(org.Name) {
			return ErrForbidden
		}

		if dropped, err = tx.Partitions().Drop(ctx, org.PartitionID); err != nil {
			return fmt.Errorf("failed to drop partition: %w", err)
		}
		if err := tx.Registry().Delete(ctx, org.ID); err != nil {
			return fmt.Errorf("failed to delete organization: %w", err)
		}
		if err := tx.Admins().Delete(ctx, org.AdminID); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("failed to delete admin: %w", err)
		}
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	now := s.clock.Now().UTC()
	s.record(ctx, "delete")
	s.publish(ctx, messaging.EventOrganizationDeleted, messaging.OrganizationDeletedEvent{
		BaseEvent: messaging.NewBaseEvent(messaging.EventOrganizationDeleted, now),
		Data: messaging.OrganizationDeletedData{
			OrganizationID:   org.ID,
			OrganizationName: org.Name,
			PartitionID:      org.PartitionID,
			PartitionDropped: dropped,
			DeletedAt:        now,
		},
	})
	log.Ctx(ctx).Info().
		Str("organization_id", org.ID).
		Bool("partition_dropped", dropped).
		Msg("organization deleted")

	return dropped, nil
}

// Login verifies admin credentials and issues a session token. Unknown email
// and wrong password both yield ErrInvalidCredentials after a bcrypt
// comparison.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	ctx, span := tracer.Start(ctx, "organization.Login")
	defer span.End()

	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return nil, invalid("email and password required")
	}

	admin, err := s.store.Admins().FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil && !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to look up admin: %w", err)
	}
	if admin == nil {
		s.codec.Verify(req.Password, s.dummy())
		s.loginAttempt(ctx, false)
		return nil, ErrInvalidCredentials
	}
	if !s.codec.Verify(req.Password, admin.PasswordHash) {
		s.loginAttempt(ctx, false)
		return nil, ErrInvalidCredentials
	}

	var orgID *string
	principal := auth.Principal{AdminID: admin.ID}
	org, err := s.store.Registry().FindByAdmin(ctx, admin.ID)
	switch {
	case err == nil:
		id := org.ID
		orgID = &id
		principal.Organization = org.Name
	case errors.Is(err, ErrNotFound):
		// Token carries a null organization.
	default:
		span.RecordError(err)
		return nil, fmt.Errorf("failed to look up organization: %w", err)
	}

	token, err := s.tokens.Issue(principal)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.loginAttempt(ctx, true)
	span.SetAttributes(attribute.String("admin.id", admin.ID))
	return &LoginResponse{Token: token, OrganizationID: orgID}, nil
}

func (s *Service) hash(plaintext string) (string, error) {
	hash, err := s.codec.Hash(plaintext)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooLong) {
			return "", invalid("%v", err)
		}
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.codec.Hash("not-a-real-password")
	})
	return s.dummyHash
}

func (s *Service) record(ctx context.Context, operation string) {
	if s.metrics != nil {
		s.metrics.RecordOrganizationOperation(ctx, operation)
	}
}

func (s *Service) loginAttempt(ctx context.Context, success bool) {
	if s.metrics != nil {
		s.metrics.RecordLoginAttempt(ctx, success)
	}
}

// publish runs after commit; a failed publish is logged and does not undo
// the change.
func (s *Service) publish(ctx context.Context, routingKey string, event interface{}) {
	if err := s.publisher.Publish(ctx, routingKey, event); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("routing_key", routingKey).Msg("failed to publish event")
	}
}
