package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/WailSalutem-Health-Care/tenant-service/internal/organization"
)

type registry struct {
	sc scope
}

func (r *registry) find(match func(organization.Organization) bool) (*organization.Organization, error) {
	var found *organization.Organization
	err := r.sc.do(func(st *state) error {
		for _, org := range st.orgs {
			if match(org) {
				o := org
				found = &o
				return nil
			}
		}
		return organization.ErrNotFound
	})
	return found, err
}

func (r *registry) FindByName(ctx context.Context, name string) (*organization.Organization, error) {
	key := organization.NameKey(name)
	return r.find(func(o organization.Organization) bool { return organization.NameKey(o.Name) == key })
}

func (r *registry) FindByPartition(ctx context.Context, partitionID string) (*organization.Organization, error) {
	return r.find(func(o organization.Organization) bool { return o.PartitionID == partitionID })
}

func (r *registry) FindByAdmin(ctx context.Context, adminID string) (*organization.Organization, error) {
	return r.find(func(o organization.Organization) bool { return o.AdminID == adminID })
}

// conflicts mirrors the unique constraints of the persistent stores.
func conflicts(st *state, selfID, name, partitionID, adminID string) bool {
	key := organization.NameKey(name)
	for id, o := range st.orgs {
		if id == selfID {
			continue
		}
		if organization.NameKey(o.Name) == key || o.PartitionID == partitionID || (adminID != "" && o.AdminID == adminID) {
			return true
		}
	}
	return false
}

func (r *registry) Create(ctx context.Context, org *organization.Organization) (string, error) {
	id := uuid.NewString()
	err := r.sc.do(func(st *state) error {
		if conflicts(st, "", org.Name, org.PartitionID, org.AdminID) {
			return organization.ErrNameConflict
		}
		stored := *org
		stored.ID = id
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = r.sc.now()
		}
		if stored.UpdatedAt.IsZero() {
			stored.UpdatedAt = stored.CreatedAt
		}
		st.orgs[id] = stored
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *registry) Rename(ctx context.Context, id, newName, partitionID string) (*organization.Organization, error) {
	var updated organization.Organization
	err := r.sc.do(func(st *state) error {
		org, ok := st.orgs[id]
		if !ok {
			return organization.ErrNotFound
		}
		if conflicts(st, id, newName, partitionID, "") {
			return organization.ErrNameConflict
		}
		org.Name = newName
		org.PartitionID = partitionID
		org.UpdatedAt = r.sc.now()
		st.orgs[id] = org
		updated = org
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *registry) Delete(ctx context.Context, id string) error {
	return r.sc.do(func(st *state) error {
		if _, ok := st.orgs[id]; !ok {
			return organization.ErrNotFound
		}
		delete(st.orgs, id)
		return nil
	})
}

type admins struct {
	sc scope
}

func (a *admins) Create(ctx context.Context, admin *organization.Admin) (string, error) {
	id := uuid.NewString()
	err := a.sc.do(func(st *state) error {
		for _, existing := range st.admins {
			if existing.Email == admin.Email {
				return organization.ErrEmailConflict
			}
		}
		stored := *admin
		stored.ID = id
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = a.sc.now()
		}
		st.admins[id] = stored
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (a *admins) Get(ctx context.Context, id string) (*organization.Admin, error) {
	var out organization.Admin
	err := a.sc.do(func(st *state) error {
		admin, ok := st.admins[id]
		if !ok {
			return organization.ErrNotFound
		}
		out = admin
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *admins) FindByEmail(ctx context.Context, email string) (*organization.Admin, error) {
	var out *organization.Admin
	err := a.sc.do(func(st *state) error {
		for _, admin := range st.admins {
			if admin.Email == email {
				found := admin
				out = &found
				return nil
			}
		}
		return organization.ErrNotFound
	})
	return out, err
}

func (a *admins) update(id string, fn func(st *state, admin *organization.Admin) error) error {
	return a.sc.do(func(st *state) error {
		admin, ok := st.admins[id]
		if !ok {
			return organization.ErrNotFound
		}
		if err := fn(st, &admin); err != nil {
			return err
		}
		st.admins[id] = admin
		return nil
	})
}

func (a *admins) UpdateCredentials(ctx context.Context, id, email, passwordHash string) error {
	return a.update(id, func(st *state, admin *organization.Admin) error {
		for otherID, other := range st.admins {
			if otherID != id && other.Email == email {
				return organization.ErrEmailConflict
			}
		}
		admin.Email = email
		admin.PasswordHash = passwordHash
		return nil
	})
}

func (a *admins) SetOrganization(ctx context.Context, id, name string) error {
	return a.update(id, func(st *state, admin *organization.Admin) error {
		admin.Organization = name
		return nil
	})
}

func (a *admins) Delete(ctx context.Context, id string) error {
	return a.sc.do(func(st *state) error {
		if _, ok := st.admins[id]; !ok {
			return organization.ErrNotFound
		}
		delete(st.admins, id)
		return nil
	})
}

type partitions struct {
	sc scope
}

func (p *partitions) Ensure(ctx context.Context, partitionID string) error {
	return p.sc.do(func(st *state) error {
		if _, ok := st.partitions[partitionID]; !ok {
			st.partitions[partitionID] = []record{}
		}
		return nil
	})
}

func (p *partitions) CopyAll(ctx context.Context, src, dst string) (int64, error) {
	if src == dst {
		return 0, nil
	}
	var copied int64
	err := p.sc.do(func(st *state) error {
		now := p.sc.now()
		for _, rec := range st.partitions[src] {
			st.partitions[dst] = append(st.partitions[dst], record{
				id:        uuid.NewString(),
				data:      copyData(rec.data),
				createdAt: now,
			})
			copied++
		}
		if _, ok := st.partitions[dst]; !ok {
			st.partitions[dst] = []record{}
		}
		return nil
	})
	return copied, err
}

func (p *partitions) Drop(ctx context.Context, partitionID string) (bool, error) {
	var existed bool
	err := p.sc.do(func(st *state) error {
		_, existed = st.partitions[partitionID]
		delete(st.partitions, partitionID)
		return nil
	})
	return existed, err
}

func (p *partitions) Exists(ctx context.Context, partitionID string) (bool, error) {
	var exists bool
	err := p.sc.do(func(st *state) error {
		_, exists = st.partitions[partitionID]
		return nil
	})
	return exists, err
}

func (p *partitions) Count(ctx context.Context, partitionID string) (int64, error) {
	var n int64
	err := p.sc.do(func(st *state) error {
		n = int64(len(st.partitions[partitionID]))
		return nil
	})
	return n, err
}

func (p *partitions) Insert(ctx context.Context, partitionID string, data map[string]any) (string, error) {
	id := uuid.NewString()
	err := p.sc.do(func(st *state) error {
		recs, ok := st.partitions[partitionID]
		if !ok {
			return organization.ErrPartitionNotFound
		}
		st.partitions[partitionID] = append(recs, record{id: id, data: copyData(data), createdAt: p.sc.now()})
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func copyData(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
