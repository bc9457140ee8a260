// Package storetest holds behaviour tests shared by every organization.Store
// implementation.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WailSalutem-Health-Care/tenant-service/internal/organization"
)

// Harness describes a store under test. New must return an empty store.
type Harness struct {
	New func(*testing.T) organization.Store
	// Transactional is false for backends whose Atomic cannot undo inserts.
	Transactional bool
}

// NewStoreTest returns a test running the shared suite against h.
func NewStoreTest(name string, h Harness) func(*testing.T) {
	return func(t *testing.T) {
		t.Run(name, func(t *testing.T) {
			t.Run("RegistryNameUniqueness", func(t *testing.T) { registryNameUniqueness(t, h) })
			t.Run("RegistryPartitionUniqueness", func(t *testing.T) { registryPartitionUniqueness(t, h) })
			t.Run("RegistryRename", func(t *testing.T) { registryRename(t, h) })
			t.Run("RegistryLookups", func(t *testing.T) { registryLookups(t, h) })
			t.Run("Admins", func(t *testing.T) { adminsTest(t, h) })
			t.Run("AdminEmailUniqueness", func(t *testing.T) { adminEmailUniqueness(t, h) })
			t.Run("Partitions", func(t *testing.T) { partitionsTest(t, h) })
			t.Run("CopyAll", func(t *testing.T) { copyAllTest(t, h) })
			t.Run("Retention", func(t *testing.T) { retentionTest(t, h) })
			if h.Transactional {
				t.Run("AtomicRollback", func(t *testing.T) { atomicRollback(t, h) })
			}
			t.Run("AtomicCommit", func(t *testing.T) { atomicCommit(t, h) })
		})
	}
}

func createAdmin(t *testing.T, s organization.Store, email string) string {
	t.Helper()
	id, err := s.Admins().Create(context.Background(), &organization.Admin{
		Email:        email,
		PasswordHash: "hash",
		CreatedAt:    time.Now().UTC(),
	})
	require.NoError(t, err)
	return id
}

func createOrg(t *testing.T, s organization.Store, name, adminID string) string {
	t.Helper()
	id, err := s.Registry().Create(context.Background(), &organization.Organization{
		Name:        name,
		PartitionID: organization.DerivePartitionID(name),
		AdminID:     adminID,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	})
	require.NoError(t, err)
	return id
}

func registryNameUniqueness(t *testing.T, h Harness) {
	s := h.New(t)
	ctx := context.Background()

	createOrg(t, s, "Acme", createAdmin(t, s, "a@acme.test"))

	other := createAdmin(t, s, "b@acme.test")
	_, err := s.Registry().Create(ctx, &organization.Organization{
		Name:        "ACME",
		PartitionID: "org_acme_other",
		AdminID:     other,
	})
	assert.ErrorIs(t, err, organization.ErrNameConflict)
}

func registryPartitionUniqueness(t *testing.T, h Harness) {
	s := h.New(t)
	ctx := context.Background()

	createOrg(t, s, "acme corp", createAdmin(t, s, "a@acme.test"))

	other := createAdmin(t, s, "b@acme.test")
	_, err := s.Registry().Create(ctx, &organization.Organization{
		Name:        "acme_corp",
		PartitionID: organization.DerivePartitionID("acme_corp"),
		AdminID:     other,
	})
	assert.ErrorIs(t, err, organization.ErrNameConflict)
}

func registryRename(t *testing.T, h Harness) {
	s := h.New(t)
	ctx := context.Background()

	acme := createOrg(t, s, "Acme", createAdmin(t, s, "a@acme.test"))
	createOrg(t, s, "Widget", createAdmin(t, s, "w@widget.test"))

	org, err := s.Registry().Rename(ctx, acme, "ACME", organization.DerivePartitionID("ACME"))
	require.NoError(t, err)
	assert.Equal(t, "ACME", org.Name)
	assert.Equal(t, "org_acme", org.PartitionID)

	_, err = s.Registry().Rename(ctx, acme, "widget", organization.DerivePartitionID("widget"))
	assert.ErrorIs(t, err, organization.ErrNameConflict)

	org, err = s.Registry().Rename(ctx, acme, "Acme Corp", organization.DerivePartitionID("Acme Corp"))
	require.NoError(t, err)
	assert.Equal(t, "org_acme_corp", org.PartitionID)

	found, err := s.Registry().FindByName(ctx, "acme corp")
	require.NoError(t, err)
	assert.Equal(t, acme, found.ID)

	_, err = s.Registry().FindByName(ctx, "Acme")
	assert.ErrorIs(t, err, organization.ErrNotFound)

	_, err = s.Registry().Rename(ctx, missingID(t, s), "Nope", "org_nope")
	assert.ErrorIs(t, err, organization.ErrNotFound)
}

// missingID returns an id in the backend's format that names no record.
func missingID(t *testing.T, s organization.Store) string {
	t.Helper()
	ctx := context.Background()
	admin := createAdmin(t, s, "ghost@example.test")
	id := createOrg(t, s, "Ghost", admin)
	require.NoError(t, s.Registry().Delete(ctx, id))
	return id
}

func registryLookups(t *testing.T, h Harness) {
	s := h.New(t)
	ctx := context.Background()

	admin := createAdmin(t, s, "a@acme.test")
	id := createOrg(t, s, "Acme", admin)

	byName, err := s.Registry().FindByName(ctx, "aCmE")
	require.NoError(t, err)
	assert.Equal(t, id, byName.ID)
	assert.Equal(t, "Acme", byName.Name)
	assert.Equal(t, admin, byName.AdminID)
	assert.False(t, byName.CreatedAt.IsZero())

	byPartition, err := s.Registry().FindByPartition(ctx, "org_acme")
	require.NoError(t, err)
	assert.Equal(t, id, byPartition.ID)

	byAdmin, err := s.Registry().FindByAdmin(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, id, byAdmin.ID)

	require.NoError(t, s.Registry().Delete(ctx, id))
	_, err = s.Registry().FindByName(ctx, "Acme")
	assert.ErrorIs(t, err, organization.ErrNotFound)
	_, err = s.Registry().FindByAdmin(ctx, admin)
	assert.ErrorIs(t, err, organization.ErrNotFound)
	assert.ErrorIs(t, s.Registry().Delete(ctx, id), organization.ErrNotFound)
}

func adminsTest(t *testing.T, h Harness) {
	s := h.New(t)
	ctx := context.Background()

	id := createAdmin(t, s, "a@acme.test")

	admin, err := s.Admins().FindByEmail(ctx, "a@acme.test")
	require.NoError(t, err)
	assert.Equal(t, id, admin.ID)
	assert.Equal(t, "hash", admin.PasswordHash)

	require.NoError(t, s.Admins().UpdateCredentials(ctx, id, "new@acme.test", "hash2"))
	require.NoError(t, s.Admins().SetOrganization(ctx, id, "Acme Corp"))

	admin, err = s.Admins().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "new@acme.test", admin.Email)
	assert.Equal(t, "hash2", admin.PasswordHash)
	assert.Equal(t, "Acme Corp", admin.Organization)

	_, err = s.Admins().FindByEmail(ctx, "a@acme.test")
	assert.ErrorIs(t, err, organization.ErrNotFound)

	require.NoError(t, s.Admins().Delete(ctx, id))
	_, err = s.Admins().Get(ctx, id)
	assert.ErrorIs(t, err, organization.ErrNotFound)
	assert.ErrorIs(t, s.Admins().Delete(ctx, id), organization.ErrNotFound)
}

func adminEmailUniqueness(t *testing.T, h Harness) {
	s := h.New(t)
	ctx := context.Background()

	createAdmin(t, s, "a@acme.test")
	_, err := s.Admins().Create(ctx, &organization.Admin{Email: "a@acme.test", PasswordHash: "x"})
	assert.ErrorIs(t, err, organization.ErrEmailConflict)

	other := createAdmin(t, s, "b@acme.test")
	err = s.Admins().UpdateCredentials(ctx, other, "a@acme.test", "x")
	assert.ErrorIs(t, err, organization.ErrEmailConflict)
}

func partitionsTest(t *testing.T, h Harness) {
	s := h.New(t)
	ctx := context.Background()
	p := s.Partitions()

	exists, err := p.Exists(ctx, "org_acme")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, p.Ensure(ctx, "org_acme"))
	require.NoError(t, p.Ensure(ctx, "org_acme"))

	exists, err = p.Exists(ctx, "org_acme")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = p.Insert(ctx, "org_acme", map[string]any{"kind": "patient"})
	require.NoError(t, err)

	n, err := p.Count(ctx, "org_acme")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	dropped, err := p.Drop(ctx, "org_acme")
	require.NoError(t, err)
	assert.True(t, dropped)

	dropped, err = p.Drop(ctx, "org_acme")
	require.NoError(t, err)
	assert.False(t, dropped)

	n, err = p.Count(ctx, "org_acme")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func copyAllTest(t *testing.T, h Harness) {
	s := h.New(t)
	ctx := context.Background()
	p := s.Partitions()

	require.NoError(t, p.Ensure(ctx, "org_src"))
	for i := 0; i < 5; i++ {
		_, err := p.Insert(ctx, "org_src", map[string]any{"n": i})
		require.NoError(t, err)
	}

	same, err := p.CopyAll(ctx, "org_src", "org_src")
	require.NoError(t, err)
	assert.Zero(t, same)

	require.NoError(t, p.Ensure(ctx, "org_dst"))
	copied, err := p.CopyAll(ctx, "org_src", "org_dst")
	require.NoError(t, err)
	assert.EqualValues(t, 5, copied)

	src, err := p.Count(ctx, "org_src")
	require.NoError(t, err)
	dst, err := p.Count(ctx, "org_dst")
	require.NoError(t, err)
	assert.Equal(t, src, dst)

	require.NoError(t, p.Ensure(ctx, "org_empty"))
	copied, err = p.CopyAll(ctx, "org_empty", "org_dst")
	require.NoError(t, err)
	assert.Zero(t, copied)
}

func retentionTest(t *testing.T, h Harness) {
	s := h.New(t)
	ctx := context.Background()
	ledger := s.Retention()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, ledger.Retain(ctx, "org_old", "org-1", base))
	require.NoError(t, ledger.Retain(ctx, "org_newer", "org-1", base.Add(48*time.Hour)))

	expired, err := ledger.ListExpired(ctx, base.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "org_old", expired[0].PartitionID)
	assert.Equal(t, "org-1", expired[0].OrganizationID)
	assert.True(t, base.Equal(expired[0].RetainedAt))

	released, err := ledger.Release(ctx, "org_old")
	require.NoError(t, err)
	assert.True(t, released)

	released, err = ledger.Release(ctx, "org_old")
	require.NoError(t, err)
	assert.False(t, released)

	expired, err = ledger.ListExpired(ctx, base.Add(72*time.Hour))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "org_newer", expired[0].PartitionID)
}

var errAbort = errors.New("abort")

func atomicRollback(t *testing.T, h Harness) {
	s := h.New(t)
	ctx := context.Background()

	err := s.Atomic(ctx, func(tx organization.Store) error {
		admin := createAdmin(t, tx, "a@acme.test")
		createOrg(t, tx, "Acme", admin)
		require.NoError(t, tx.Partitions().Ensure(ctx, "org_acme"))
		return errAbort
	})
	assert.ErrorIs(t, err, errAbort)

	_, err = s.Registry().FindByName(ctx, "Acme")
	assert.ErrorIs(t, err, organization.ErrNotFound)
	_, err = s.Admins().FindByEmail(ctx, "a@acme.test")
	assert.ErrorIs(t, err, organization.ErrNotFound)
	exists, err := s.Partitions().Exists(ctx, "org_acme")
	require.NoError(t, err)
	assert.False(t, exists)
}

func atomicCommit(t *testing.T, h Harness) {
	s := h.New(t)
	ctx := context.Background()

	err := s.Atomic(ctx, func(tx organization.Store) error {
		admin := createAdmin(t, tx, "a@acme.test")
		createOrg(t, tx, "Acme", admin)
		return tx.Partitions().Ensure(ctx, "org_acme")
	})
	require.NoError(t, err)

	org, err := s.Registry().FindByName(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, "org_acme", org.PartitionID)
	exists, err := s.Partitions().Exists(ctx, "org_acme")
	require.NoError(t, err)
	assert.True(t, exists)
}
